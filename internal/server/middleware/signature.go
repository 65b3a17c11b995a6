package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/auctionhouse/internal/crypto"
	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

// maxSignedBody caps the body a signed request may carry.
const maxSignedBody = 1 << 20

type callerKey struct{}

// Caller returns the verified caller stored by Signed.
func Caller(ctx context.Context) (common.Address, bool) {
	addr, ok := ctx.Value(callerKey{}).(common.Address)
	return addr, ok
}

// WithCaller returns a context carrying addr as the verified caller.
func WithCaller(ctx context.Context, addr common.Address) context.Context {
	return context.WithValue(ctx, callerKey{}, addr)
}

// SignatureConfig configures request signature verification.
type SignatureConfig struct {
	ChainID int64
	MaxAge  time.Duration
	// Nonces records seen nonces for MaxAge. Nil disables replay protection.
	Nonces domain.LockManager
	Now    func() time.Time
	Logger *slog.Logger
}

// Signed returns middleware that authenticates the caller from an EIP-712
// signature over the method, path, body, timestamp and nonce. Requests older
// or newer than MaxAge and reused nonces are rejected with 401.
func Signed(cfg SignatureConfig) func(http.Handler) http.Handler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 5 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			callerHex := r.Header.Get(crypto.HeaderCaller)
			sig := r.Header.Get(crypto.HeaderSignature)
			nonce := r.Header.Get(crypto.HeaderNonce)
			if callerHex == "" || sig == "" || nonce == "" {
				writeUnauthorized(w, "missing request signature")
				return
			}
			if !common.IsHexAddress(callerHex) {
				writeUnauthorized(w, "malformed caller address")
				return
			}
			ts, err := strconv.ParseInt(r.Header.Get(crypto.HeaderTimestamp), 10, 64)
			if err != nil {
				writeUnauthorized(w, "malformed request timestamp")
				return
			}
			skew := cfg.Now().Sub(time.Unix(ts, 0))
			if skew > cfg.MaxAge || skew < -cfg.MaxAge {
				writeUnauthorized(w, "request timestamp outside the allowed window")
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxSignedBody+1))
			if err != nil {
				writeUnauthorized(w, "unreadable request body")
				return
			}
			if len(body) > maxSignedBody {
				writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			req := crypto.Request{
				Caller:    common.HexToAddress(callerHex),
				Method:    r.Method,
				Path:      r.URL.Path,
				Body:      body,
				Timestamp: ts,
				Nonce:     nonce,
			}
			if err := crypto.Verify(req, sig, cfg.ChainID); err != nil {
				writeUnauthorized(w, "invalid request signature")
				return
			}

			if cfg.Nonces != nil {
				// The lock is left to expire; holding it marks the nonce as used.
				_, err := cfg.Nonces.Acquire(r.Context(), "nonce:"+req.Caller.Hex()+":"+nonce, 2*cfg.MaxAge)
				if errors.Is(err, domain.ErrLockHeld) {
					writeUnauthorized(w, "nonce already used")
					return
				}
				if err != nil {
					cfg.Logger.ErrorContext(r.Context(), "nonce check failed", slog.String("error", err.Error()))
					writeError(w, http.StatusServiceUnavailable, "nonce check unavailable")
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), req.Caller)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusUnauthorized, msg)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
