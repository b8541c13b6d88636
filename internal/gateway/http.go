package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Subash-08/loke-store-sub001/internal/domain"
)

// TokenSource supplies the current bearer token, or "" when the session
// is unauthenticated.
type TokenSource interface {
	Token() string
}

// HTTPClient implements API over the JSON surface exposed by the server.
// Every call carries a bounded timeout; a timed-out request surfaces as
// an EUNAVAILABLE domain error, never hangs the caller.
type HTTPClient struct {
	baseURL string // e.g. "https://store.example.com/api/cart"
	client  *http.Client
	tokens  TokenSource
	timeout time.Duration
}

// HTTPClientConfig configures an HTTPClient.
type HTTPClientConfig struct {
	// BaseURL is the resource root, e.g. "https://host/api/cart" or
	// ".../api/wishlist".
	BaseURL string

	// Tokens supplies the bearer token for authenticated calls.
	Tokens TokenSource

	// Timeout bounds each individual call. Defaults to 10s.
	Timeout time.Duration

	// Client overrides the underlying http.Client (tests).
	Client *http.Client
}

// NewHTTPClient creates a gateway client for one resource root.
func NewHTTPClient(cfg HTTPClientConfig) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("gateway base URL is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  cfg.Client,
		tokens:  cfg.Tokens,
		timeout: cfg.Timeout,
	}, nil
}

// Wire shapes. Identity is always the tuple; see the handler package for
// the server side of this contract.
type itemPayload struct {
	ItemKind   domain.ItemKind  `json:"itemKind"`
	ProductRef string           `json:"productRef"`
	VariantRef string           `json:"variantRef,omitempty"`
	Quantity   int64            `json:"quantity,omitempty"`
	UnitPrice  int64            `json:"unitPrice,omitempty"`
	Snapshot   *domain.Snapshot `json:"snapshot,omitempty"`
}

type itemsResponse struct {
	Items []domain.Record `json:"items"`
}

type mergeRequest struct {
	BatchID string        `json:"batchId"`
	Items   []itemPayload `json:"items"`
}

type mergeResultPayload struct {
	ItemKind   domain.ItemKind `json:"itemKind"`
	ProductRef string          `json:"productRef"`
	VariantRef string          `json:"variantRef,omitempty"`
	Status     MergeStatus     `json:"status"`
	Reason     string          `json:"reason,omitempty"`
}

type mergeResponse struct {
	Results []mergeResultPayload `json:"results"`
	Items   []domain.Record      `json:"items"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func recordPayload(r domain.Record) itemPayload {
	return itemPayload{
		ItemKind:   r.ItemKind,
		ProductRef: r.ProductRef,
		VariantRef: r.VariantRef,
		Quantity:   r.Quantity,
		UnitPrice:  r.UnitPrice,
		Snapshot:   r.Snapshot,
	}
}

func keyPayload(key domain.ItemKey) itemPayload {
	return itemPayload{
		ItemKind:   key.Kind,
		ProductRef: key.ProductRef,
		VariantRef: key.VariantRef,
	}
}

// Fetch retrieves the authoritative item set.
func (c *HTTPClient) Fetch(ctx context.Context) ([]domain.Record, error) {
	var out itemsResponse
	if err := c.do(ctx, http.MethodGet, "", nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// Add submits one item; the server dedups on the identity tuple.
func (c *HTTPClient) Add(ctx context.Context, record domain.Record) ([]domain.Record, error) {
	var out itemsResponse
	if err := c.do(ctx, http.MethodPost, "/items", recordPayload(record), &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// UpdateQuantity sets the quantity for an item; zero deletes it.
func (c *HTTPClient) UpdateQuantity(ctx context.Context, key domain.ItemKey, quantity int64) ([]domain.Record, error) {
	payload := keyPayload(key)
	payload.Quantity = quantity

	var out itemsResponse
	if err := c.do(ctx, http.MethodPut, "/items", payload, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// Remove deletes one item by its identity tuple.
func (c *HTTPClient) Remove(ctx context.Context, key domain.ItemKey) ([]domain.Record, error) {
	var out itemsResponse
	if err := c.do(ctx, http.MethodDelete, "/items", keyPayload(key), &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// Clear removes every item.
func (c *HTTPClient) Clear(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "", nil, nil)
}

// Merge bulk-absorbs guest records. The full tuple plus quantity and
// unit price is transmitted for every record.
func (c *HTTPClient) Merge(ctx context.Context, batchID string, records []domain.Record) (*MergeOutcome, error) {
	req := mergeRequest{BatchID: batchID, Items: make([]itemPayload, 0, len(records))}
	for _, r := range records {
		req.Items = append(req.Items, recordPayload(r))
	}

	var out mergeResponse
	if err := c.do(ctx, http.MethodPost, "/merge", req, &out); err != nil {
		return nil, err
	}

	outcome := &MergeOutcome{Items: out.Items}
	for _, r := range out.Results {
		outcome.Results = append(outcome.Results, MergeResult{
			Key:    domain.NewItemKey(r.ItemKind, r.ProductRef, r.VariantRef),
			Status: r.Status,
			Reason: r.Reason,
		})
	}
	return outcome, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	op := "gateway." + strings.ToLower(method) + path

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return domain.WrapError(err, domain.EINTERNAL, op, "failed to encode request")
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return domain.WrapError(err, domain.EINTERNAL, op, "failed to build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.WrapError(err, domain.EUNAVAILABLE, op, "request timed out")
		}
		return domain.WrapError(err, domain.EUNAVAILABLE, op, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.decodeError(op, resp)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.WrapError(err, domain.EINTERNAL, op, "failed to decode response")
	}
	return nil
}

// decodeError maps an error response to a domain error, preferring the
// server-supplied code/message when the body parses.
func (c *HTTPClient) decodeError(op string, resp *http.Response) error {
	code := codeForStatus(resp.StatusCode)

	var body errorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(raw, &body); err == nil && body.Error.Message != "" {
		if body.Error.Code != "" {
			code = body.Error.Code
		}
		return &domain.Error{Code: code, Op: op, Message: body.Error.Message}
	}

	return domain.Errorf(code, op, "server returned status %d", resp.StatusCode)
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return domain.EINVALID
	case http.StatusUnauthorized:
		return domain.EUNAUTHORIZED
	case http.StatusNotFound:
		return domain.ENOTFOUND
	case http.StatusConflict:
		return domain.ECONFLICT
	case http.StatusTooManyRequests:
		return domain.ERATELIMIT
	default:
		return domain.EUNAVAILABLE
	}
}
