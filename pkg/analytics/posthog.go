package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Client is a PostHog-compatible HTTP implementation of Provider.
// It keeps track of the current distinct ID the way browser SDKs do: an
// anonymous UUID until Identify is called, a fresh anonymous UUID after Reset.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	mu          sync.Mutex
	distinctID  string
	flags       map[string]bool
	flagsLoaded bool
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(p *Client) {
		if c != nil {
			p.httpClient = c
		}
	}
}

// NewClient creates a provider client for a PostHog-compatible API.
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		distinctID: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// captureRequest is the wire format of the capture endpoint.
type captureRequest struct {
	APIKey     string         `json:"api_key"`
	Event      string         `json:"event"`
	DistinctID string         `json:"distinct_id"`
	Properties map[string]any `json:"properties,omitempty"`
	Timestamp  string         `json:"timestamp"`
	UUID       string         `json:"uuid"`
}

// decideRequest is the wire format of the flag evaluation endpoint.
type decideRequest struct {
	APIKey     string `json:"api_key"`
	DistinctID string `json:"distinct_id"`
}

// decideResponse carries the evaluated flag set. Values may be booleans or
// variant strings; a non-empty variant counts as enabled.
type decideResponse struct {
	FeatureFlags map[string]any `json:"featureFlags"`
}

// Identify captures an $identify event and adopts the identifier as the
// current distinct ID.
func (c *Client) Identify(ctx context.Context, distinctID string, properties map[string]any) error {
	if distinctID == "" {
		return ErrInvalidDistinctID
	}

	c.mu.Lock()
	anonID := c.distinctID
	c.mu.Unlock()

	props := map[string]any{
		"$anon_distinct_id": anonID,
		"$set":              properties,
	}
	if err := c.capture(ctx, "$identify", distinctID, props); err != nil {
		return err
	}

	c.mu.Lock()
	c.distinctID = distinctID
	c.flagsLoaded = false
	c.mu.Unlock()
	return nil
}

// Reset discards the current visitor: new anonymous distinct ID, flags dropped.
// This mirrors browser SDK behavior where reset is a local operation.
func (c *Client) Reset(ctx context.Context) error {
	c.mu.Lock()
	c.distinctID = uuid.NewString()
	c.flags = nil
	c.flagsLoaded = false
	c.mu.Unlock()
	return nil
}

// Group captures a $groupidentify event for the cohort assignment.
func (c *Client) Group(ctx context.Context, groupType, groupKey string, properties map[string]any) error {
	if groupType == "" || groupKey == "" {
		return ErrInvalidGroup
	}

	c.mu.Lock()
	distinctID := c.distinctID
	c.mu.Unlock()

	props := map[string]any{
		"$group_type": groupType,
		"$group_key":  groupKey,
		"$group_set":  properties,
	}
	return c.capture(ctx, "$groupidentify", distinctID, props)
}

// Capture sends a single event, stamping the current distinct ID when the
// event carries none.
func (c *Client) Capture(ctx context.Context, event Event) error {
	distinctID := event.DistinctID
	if distinctID == "" {
		c.mu.Lock()
		distinctID = c.distinctID
		c.mu.Unlock()
	}

	eventUUID := event.UUID
	if eventUUID == "" {
		eventUUID = uuid.NewString()
	}
	timestamp := event.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	body := captureRequest{
		APIKey:     c.apiKey,
		Event:      event.Name,
		DistinctID: distinctID,
		Properties: event.Properties,
		Timestamp:  timestamp.Format(time.RFC3339),
		UUID:       eventUUID,
	}
	return c.post(ctx, "/capture/", body, nil)
}

// IsFeatureEnabled evaluates a flag against the most recently loaded flag set,
// loading it on first use.
func (c *Client) IsFeatureEnabled(ctx context.Context, flagName string) (bool, error) {
	c.mu.Lock()
	loaded := c.flagsLoaded
	c.mu.Unlock()

	if !loaded {
		if err := c.ReloadFlags(ctx); err != nil {
			return false, err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flags[flagName], nil
}

// ReloadFlags refreshes the flag set for the current distinct ID.
func (c *Client) ReloadFlags(ctx context.Context) error {
	c.mu.Lock()
	distinctID := c.distinctID
	c.mu.Unlock()

	var resp decideResponse
	err := c.post(ctx, "/decide/?v=3", decideRequest{
		APIKey:     c.apiKey,
		DistinctID: distinctID,
	}, &resp)
	if err != nil {
		return err
	}

	flags := make(map[string]bool, len(resp.FeatureFlags))
	for name, value := range resp.FeatureFlags {
		switch v := value.(type) {
		case bool:
			flags[name] = v
		case string:
			flags[name] = v != ""
		}
	}

	c.mu.Lock()
	c.flags = flags
	c.flagsLoaded = true
	c.mu.Unlock()
	return nil
}

func (c *Client) capture(ctx context.Context, name, distinctID string, properties map[string]any) error {
	return c.post(ctx, "/capture/", captureRequest{
		APIKey:     c.apiKey,
		Event:      name,
		DistinctID: distinctID,
		Properties: properties,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		UUID:       uuid.NewString(),
	}, nil)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Join(ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: unexpected status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
