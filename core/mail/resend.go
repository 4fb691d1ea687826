// Package mail sends transactional email through the Resend API.
package mail

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pleia/config"
	"pleia/logger"

	"github.com/go-resty/resty/v2"
)

const resendBaseURL = "https://api.resend.com"

// ErrNotConfigured is returned when no Resend API key is set. Callers
// treat email as best-effort and only log this.
var ErrNotConfigured = errors.New("resend API key not configured")

// Sender delivers a single email. Narrow interface so the newsletter
// service can be tested with a fake.
type Sender interface {
	Send(ctx context.Context, to, subject, html string) error
}

// Client is the Resend HTTP client.
type Client struct {
	http *resty.Client
	from string
}

// NewClient builds a Resend client from configuration.
func NewClient(cfg *config.Config) *Client {
	httpClient := resty.New().
		SetBaseURL(resendBaseURL).
		SetAuthToken(cfg.ResendAPIKey).
		SetTimeout(15 * time.Second).
		SetRetryCount(2)

	return &Client{
		http: httpClient,
		from: cfg.ResendFromEmail,
	}
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type sendResponse struct {
	ID string `json:"id"`
}

// Send delivers one email. Returns ErrNotConfigured when no key is set.
func (c *Client) Send(ctx context.Context, to, subject, html string) error {
	if c.http.Token == "" {
		return ErrNotConfigured
	}

	var result sendResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(sendRequest{
			From:    c.from,
			To:      []string{to},
			Subject: subject,
			HTML:    html,
		}).
		SetResult(&result).
		Post("/emails")
	if err != nil {
		return fmt.Errorf("resend request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("resend returned status %d: %s", resp.StatusCode(), resp.String())
	}

	logger.Info("[Mail] Email sent",
		logger.String("to", to),
		logger.String("subject", subject),
		logger.String("resendID", result.ID))
	return nil
}
