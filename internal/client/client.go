// Package client is the REST client for a running auction house server. Calls
// that mutate state are signed with the caller's key the same way the server's
// signature middleware verifies them.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/auctionhouse/internal/crypto"
	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

// Client talks to one server. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	signer     *crypto.Signer
	now        func() time.Time
}

// New creates a Client for baseURL, e.g. "http://localhost:8000". signer may
// be nil for read-only use.
func New(baseURL string, signer *crypto.Signer, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		signer:     signer,
		now:        time.Now,
	}
}

// Settleable returns up to limit auctions the server can settle now.
func (c *Client) Settleable(ctx context.Context, limit int) ([]domain.Auction, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/auctions/settleable"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp struct {
		Auctions []domain.Auction `json:"auctions"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, false, &resp); err != nil {
		return nil, fmt.Errorf("client: settleable: %w", err)
	}
	return resp.Auctions, nil
}

// Settle asks the server to settle id. caller must be the signer's address;
// the server takes the caller from the signature.
func (c *Client) Settle(ctx context.Context, caller common.Address, id domain.AuctionID) (*domain.Receipt, error) {
	if c.signer == nil || c.signer.Address() != caller {
		return nil, fmt.Errorf("client: settle %s: caller %s is not the signing key: %w", id.Hex(), caller.Hex(), domain.ErrUnauthorized)
	}
	var receipt domain.Receipt
	if err := c.do(ctx, http.MethodPost, "/api/auctions/"+id.Hex()+"/settle", nil, true, &receipt); err != nil {
		return nil, fmt.Errorf("client: settle %s: %w", id.Hex(), err)
	}
	return &receipt, nil
}

// Status returns the engine flag surface.
func (c *Client) Status(ctx context.Context) (domain.EngineStatus, error) {
	var st domain.EngineStatus
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, false, &st); err != nil {
		return st, fmt.Errorf("client: status: %w", err)
	}
	return st, nil
}

// Call sends a signed request with a raw body and returns the status code
// and response body without interpreting them.
func (c *Client) Call(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	resp, err := c.send(ctx, method, path, body, true)
	if err != nil {
		return 0, nil, fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("client: read response: %w", err)
	}
	return resp.StatusCode, raw, nil
}

// do sends one request and decodes a 2xx JSON body into out.
func (c *Client) do(ctx context.Context, method, path string, body []byte, signed bool, out any) error {
	resp, err := c.send(ctx, method, path, body, signed)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := checkHTTPStatus(resp.StatusCode, raw); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, body []byte, signed bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	if signed {
		if c.signer == nil {
			return nil, fmt.Errorf("signed request without a key: %w", domain.ErrSigningFailed)
		}
		// The signature binds the path only; the query string is not covered.
		headers, err := c.signer.Headers(method, req.URL.Path, body, c.now())
		if err != nil {
			return nil, fmt.Errorf("sign request: %w", err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	return resp, nil
}

// checkHTTPStatus maps non-2xx status codes to domain errors carrying the
// server's message.
func checkHTTPStatus(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	msg := string(body)
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		msg = e.Error
	}

	switch status {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, msg)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, msg)
	case http.StatusLocked:
		return fmt.Errorf("%w: %s", domain.ErrReentrant, msg)
	default:
		return fmt.Errorf("HTTP %d: %s", status, msg)
	}
}
