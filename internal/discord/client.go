package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Config holds configuration for the Discord webhook client.
type Config struct {
	URL            string        `mapstructure:"url"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`

	// RatePerMinute caps outbound requests client-side; Discord enforces a
	// 30 req/min budget per webhook.
	RatePerMinute int `mapstructure:"rate_per_minute"`
}

// Client defines the Discord webhook client
type Client struct {
	cfg        Config
	limiter    *rate.Limiter
	httpClient *http.Client
}

// NewClient initializes a new Discord webhook client
func NewClient(cfg Config) *Client {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 1 * time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 10 * time.Second
	}
	if cfg.RatePerMinute <= 0 {
		cfg.RatePerMinute = 30
	}

	return &Client{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RatePerMinute)), cfg.RatePerMinute),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type payload struct {
	Content string `json:"content"`
}

// Send posts a message with retry logic
func (c *Client) Send(ctx context.Context, content string) error {
	if content == "" {
		return nil
	}

	body, err := json.Marshal(payload{Content: content})
	if err != nil {
		return err
	}

	var lastErr error
	backoff := c.cfg.InitialBackoff

	for i := 0; i < c.cfg.MaxAttempts; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if i > 0 {
			// Wait for backoff
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}

			// Exponential backoff
			backoff *= 2
			if backoff > c.cfg.MaxBackoff {
				backoff = c.cfg.MaxBackoff
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		err := c.attemptSend(ctx, body)
		if err == nil {
			return nil // Success
		}

		lastErr = err
	}

	return fmt.Errorf("discord webhook failed after %d attempts: %w", c.cfg.MaxAttempts, lastErr)
}

func (c *Client) attemptSend(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.URL, bytes.NewBuffer(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "asaas-relay/v1")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Keep whatever detail Discord returned; truncated so a log line
		// stays a log line.
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if len(detail) > 0 {
			return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
		}
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	return nil
}
