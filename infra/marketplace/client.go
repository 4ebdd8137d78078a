// Package marketplace hands escalated orders to the freight marketplace
// REST API, authenticated with OAuth2 client credentials.
package marketplace

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

	"github.com/cenkalti/backoff/v4"

	"github.com/kilianp07/carrierchain/auth"
	"github.com/kilianp07/carrierchain/core/logger"
	"github.com/kilianp07/carrierchain/core/model"
	coremon "github.com/kilianp07/carrierchain/core/monitoring"
	"github.com/kilianp07/carrierchain/core/notify"
)

const defaultPath = "/v1/freight-requests"

// Config defines the marketplace endpoint.
type Config struct {
	BaseURL string `json:"base_url"`
	// Path receives the POSTed escalations.
	Path       string        `json:"path"`
	Timeout    time.Duration `json:"timeout"`
	MaxRetries int           `json:"max_retries"`
	BackoffMS  int           `json:"backoff_ms"`
	Auth       auth.Conf     `json:"auth"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Path == "" {
		c.Path = defaultPath
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS <= 0 {
		c.BackoffMS = 200
	}
}

// Client posts escalations to the marketplace.
type Client struct {
	cfg   Config
	url   string
	http  *http.Client
	creds *auth.ClientCred
	log   logger.Logger
}

// New returns a marketplace client. Auth is optional.
func New(cfg Config, log logger.Logger) (*Client, error) {
	cfg.SetDefaults()
	if cfg.BaseURL == "" {
		return nil, errors.New("marketplace: base_url is required")
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	c := &Client{
		cfg:  cfg,
		url:  strings.TrimRight(cfg.BaseURL, "/") + cfg.Path,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log,
	}
	if cfg.Auth.Enabled() {
		c.creds = auth.NewClientCred(cfg.Auth)
	}
	return c, nil
}

// statusError is returned for non-2xx answers.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d, body: %s", e.code, e.body)
}

// Handoff posts the order to the marketplace. Server errors and network
// failures are retried with exponential backoff; client errors are not.
func (c *Client) Handoff(ctx context.Context, order model.Order, reason string) error {
	payload, err := json.Marshal(notify.NewEscalation(order, reason))
	if err != nil {
		return err
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Duration(c.cfg.BackoffMS) * time.Millisecond
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.cfg.MaxRetries)), ctx)

	refreshed := false
	err = backoff.Retry(func() error {
		err := c.post(ctx, payload)
		var se *statusError
		switch {
		case err == nil:
			return nil
		case errors.As(err, &se) && se.code == http.StatusUnauthorized && c.creds != nil && !refreshed:
			refreshed = true
			if _, rerr := c.creds.ForceRefresh(ctx); rerr != nil {
				return backoff.Permanent(rerr)
			}
			return err
		case errors.As(err, &se) && se.code < http.StatusInternalServerError && se.code != http.StatusTooManyRequests:
			return backoff.Permanent(err)
		}
		c.log.Warnf("marketplace handoff for %s failed, retrying: %v", order.ID, err)
		return err
	}, policy)
	if err != nil {
		coremon.CaptureException(err, map[string]string{"module": "marketplace", "order_id": order.ID})
		return fmt.Errorf("marketplace handoff: %w", err)
	}
	c.log.Infof("order %s handed to marketplace: %s", order.ID, reason)
	return nil
}

func (c *Client) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.creds != nil {
		if err := c.creds.SetAuthHeader(req); err != nil {
			return fmt.Errorf("failed to set auth header: %w", err)
		}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &statusError{code: resp.StatusCode, body: string(body)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
