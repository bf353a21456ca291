// Package backend talks to the optional application backend: remote app
// configuration and fire-and-forget usage events. Wallet operations never
// depend on it being reachable.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/starkwallet-io/starkwallet-client/internal/log"
	"github.com/starkwallet-io/starkwallet-client/internal/storage"
	"github.com/starkwallet-io/starkwallet-client/internal/walleterr"
)

const (
	fetchAttempts   = 3
	fetchBaseDelay  = time.Second
	requestTimeout  = 10 * time.Second
	maxResponseSize = 1 << 20
)

// AppConfig is the remotely managed per-app configuration.
type AppConfig struct {
	AppID           string          `json:"appId"`
	DisplayName     string          `json:"displayName"`
	AllowedNetworks []string        `json:"allowedNetworks"`
	Features        map[string]bool `json:"features"`
}

// Event is one analytics datapoint. Payload stays small and flat.
type Event struct {
	Name       string            `json:"name"`
	AppID      string            `json:"appId"`
	Network    string            `json:"network,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
	OccurredAt string            `json:"occurredAt"`
}

// Client fetches config with bounded retry and caches the result so a later
// offline start still has something to work with.
type Client struct {
	baseURL string
	client  *http.Client
	store   *storage.Manager

	sleep func(ctx context.Context, d time.Duration) error
}

// New validates the base URL. Pass nil for the default HTTP client.
func New(baseURL string, store *storage.Manager, client *http.Client) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, walleterr.New(walleterr.KindConfiguration, walleterr.CodeInvalidURL,
			"invalid backend url %q", baseURL)
	}
	if client == nil {
		client = &http.Client{Timeout: requestTimeout}
	}
	return &Client{
		baseURL: u.String(),
		client:  client,
		store:   store,
		sleep:   sleepCtx,
	}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// FetchAppConfig retrieves the app's remote configuration. Transient failures
// retry with a doubling delay; a 4xx means the request itself is wrong and
// fails immediately as a configuration error. The raw payload is cached
// through the storage manager on success.
func (c *Client) FetchAppConfig(ctx context.Context, appID string) (*AppConfig, error) {
	endpoint := fmt.Sprintf("%s/v1/apps/%s/config", c.baseURL, url.PathEscape(appID))

	var lastErr error
	for attempt := 0; attempt < fetchAttempts; attempt++ {
		if attempt > 0 {
			delay := fetchBaseDelay * time.Duration(1<<uint(attempt-1))
			if err := c.sleep(ctx, delay); err != nil {
				return nil, walleterr.Wrap(err, walleterr.KindNetwork, walleterr.CodeRPCFailure,
					"canceled fetching config for %s", appID)
			}
		}

		raw, err := c.get(ctx, endpoint)
		if err == nil {
			var cfg AppConfig
			if jerr := json.Unmarshal(raw, &cfg); jerr != nil {
				return nil, walleterr.Wrap(jerr, walleterr.KindConfiguration, walleterr.CodeInvalidAppID,
					"malformed config for %s", appID)
			}
			c.cache(ctx, appID, raw)
			return &cfg, nil
		}
		if walleterr.IsKind(err, walleterr.KindConfiguration) {
			return nil, err
		}
		lastErr = err
	}
	return nil, walleterr.Wrap(lastErr, walleterr.KindNetwork, walleterr.CodeProviderUnreachable,
		"config fetch for %s failed after %d attempts", appID, fetchAttempts)
}

// CachedAppConfig returns the last successfully fetched config, if any.
func (c *Client) CachedAppConfig(ctx context.Context, appID string) (*AppConfig, bool, error) {
	raw, ok, err := c.store.GetCachedConfig(ctx, appID)
	if err != nil || !ok {
		return nil, false, err
	}
	var cfg AppConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, false, walleterr.Wrap(err, walleterr.KindStorage, walleterr.CodeStorageAccess,
			"corrupt cached config for %s", appID)
	}
	return &cfg, true, nil
}

// ReportEvent is fire-and-forget: every failure is logged and swallowed so
// analytics can never break a wallet operation.
func (c *Client) ReportEvent(ctx context.Context, ev Event) {
	if ev.OccurredAt == "" {
		ev.OccurredAt = time.Now().UTC().Format(time.RFC3339)
	}
	body, err := json.Marshal(ev)
	if err != nil {
		log.Debug("event encode failed", "event", ev.Name, "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/events", bytes.NewReader(body))
	if err != nil {
		log.Debug("event request build failed", "event", ev.Name, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		log.Debug("event delivery failed", "event", ev.Name, "error", err)
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
	if resp.StatusCode >= 300 {
		log.Debug("event rejected", "event", ev.Name, "status", resp.StatusCode)
	}
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, walleterr.Wrap(err, walleterr.KindNetwork, walleterr.CodeRPCFailure, "build request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, walleterr.Wrap(err, walleterr.KindNetwork, walleterr.CodeProviderUnreachable, "%s", endpoint)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, walleterr.Wrap(err, walleterr.KindNetwork, walleterr.CodeRPCFailure, "read response")
	}
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return raw, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, walleterr.New(walleterr.KindConfiguration, walleterr.CodeInvalidAppID,
			"backend rejected request: http %d", resp.StatusCode)
	default:
		return nil, walleterr.New(walleterr.KindNetwork, walleterr.CodeRPCFailure,
			"backend http %d", resp.StatusCode)
	}
}

func (c *Client) cache(ctx context.Context, appID string, raw []byte) {
	if c.store == nil {
		return
	}
	if err := c.store.PutCachedConfig(ctx, appID, string(raw)); err != nil {
		log.Warn("config cache write failed", "appId", appID, "error", err)
	}
}
