package notify

import (
	"fmt"
	"math/big"
	"strings"
	"unicode/utf8"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

// Alert is one rendered notification.
type Alert struct {
	Kind      domain.EventKind
	AuctionID domain.AuctionID
	Title     string
	Body      string
}

// Format renders an event as an Alert.
func Format(e domain.Event) Alert {
	title, body := describe(e)
	return Alert{Kind: e.Kind, AuctionID: e.AuctionID, Title: title, Body: body}
}

func describe(e domain.Event) (title, body string) {
	short := shortID(e.AuctionID)
	switch e.Kind {
	case domain.EventAuctionCreated:
		return "Auction created", fmt.Sprintf("%s item %s #%s reserve %s, curator %s",
			short, e.ItemCollection.Hex(), intString(e.ItemID), intString(e.ReservePrice), e.Curator.Hex())
	case domain.EventAuctionBid:
		return "Bid placed", fmt.Sprintf("%s %s bid %s", short, e.Bidder.Hex(), intString(e.Amount))
	case domain.EventAuctionDurationExtended:
		return "Auction extended", fmt.Sprintf("%s duration now %ds", short, e.Duration)
	case domain.EventAuctionCanceled:
		return "Auction canceled", fmt.Sprintf("%s item returned to %s", short, e.Curator.Hex())
	case domain.EventCuratorFeePaid:
		return "Curator fee paid", fmt.Sprintf("%s %s to %s", short, intString(e.Amount), e.Recipient.Hex())
	case domain.EventCreatorRoyaltyPaid:
		return "Creator royalty paid", fmt.Sprintf("%s %s to %s", short, intString(e.Amount), e.Recipient.Hex())
	case domain.EventAuctionEnded:
		return "Auction settled", fmt.Sprintf("%s won by %s for %s", short, e.Bidder.Hex(), intString(e.Amount))
	case domain.EventPaymentFallback:
		return "Payment wrapped", fmt.Sprintf("direct transfer of %s to %s failed; paid in wrapped asset",
			intString(e.Amount), e.Recipient.Hex())
	case domain.EventPaused:
		return "Engine paused", "new auctions and bids are rejected"
	case domain.EventUnpaused:
		return "Engine unpaused", "new auctions and bids are accepted"
	case domain.EventRecoveryDisabled:
		return "Recovery disabled", "recovery operations are permanently disabled"
	case domain.EventItemRecovered:
		return "Item recovered", fmt.Sprintf("%s item %s #%s sent to %s",
			short, e.ItemCollection.Hex(), intString(e.ItemID), e.Recipient.Hex())
	case domain.EventCurrencyRecovered:
		return "Currency recovered", fmt.Sprintf("%s sent to %s", intString(e.Amount), e.Recipient.Hex())
	}
	return strings.ReplaceAll(string(e.Kind), "_", " "), short
}

// quiet reports whether a should be delivered without pinging anyone. Bid
// traffic is high volume; settlements and admin actions are not.
func quiet(a Alert) bool {
	return a.Kind == domain.EventAuctionBid || a.Kind == domain.EventAuctionDurationExtended
}

const (
	telegramMaxRunes = 4096
	discordMaxRunes  = 2000
)

// telegramReserved are the MarkdownV2 characters that must be escaped
// outside of entities.
const telegramReserved = "_*[]()~`>#+-=|{}.!\\"

// telegramText renders a for parse_mode MarkdownV2: a bold title line then
// the escaped body. Event kinds such as auction_ended keep their underscores.
// Escaping at most doubles a rune, so each part is cut to a quarter of the
// limit before escaping and no escape sequence is ever split.
func telegramText(a Alert) string {
	text := "*" + escapeMarkdownV2(truncate(a.Title, telegramMaxRunes/4)) + "*"
	if a.Body != "" {
		text += "\n" + escapeMarkdownV2(truncate(a.Body, telegramMaxRunes/4))
	}
	return text
}

func escapeMarkdownV2(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(telegramReserved, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// discordContent renders a as a Discord message. Broadcast mentions in the
// body are broken with a zero-width space; the webhook payload also disables
// mention parsing.
func discordContent(a Alert) string {
	text := "**" + a.Title + "**"
	if a.Body != "" {
		text += "\n" + defuseMentions(a.Body)
	}
	return truncate(text, discordMaxRunes)
}

var mentionDefuser = strings.NewReplacer("@everyone", "@\u200beveryone", "@here", "@\u200bhere")

func defuseMentions(s string) string {
	return mentionDefuser.Replace(s)
}

// truncate cuts s to n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}

func shortID(id domain.AuctionID) string {
	if id == (domain.AuctionID{}) {
		return ""
	}
	h := id.Hex()
	return h[:10]
}

func intString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
