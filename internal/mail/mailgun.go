package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	dErrors "canvass/pkg/domain-errors"
)

// MailgunConfig holds the transport settings.
type MailgunConfig struct {
	APIKey  string
	Domain  string
	BaseURL string
	From    string
}

// MailgunSender delivers messages through the Mailgun HTTP API.
type MailgunSender struct {
	cfg    MailgunConfig
	client *http.Client
}

// NewMailgun constructs a Mailgun sender. The http.Client carries no timeout
// of its own; callers bound each Send with a context deadline.
func NewMailgun(cfg MailgunConfig) (*MailgunSender, error) {
	if cfg.APIKey == "" || cfg.Domain == "" || cfg.From == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "mailgun requires api key, domain, and from address")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.mailgun.net"
	}
	return &MailgunSender{cfg: cfg, client: &http.Client{}}, nil
}

// Send posts one message to Mailgun and returns its message id.
func (s *MailgunSender) Send(ctx context.Context, msg Message) (string, error) {
	if len(msg.To) == 0 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "message has no recipients")
	}

	form := url.Values{}
	form.Set("from", s.cfg.From)
	for _, to := range msg.To {
		form.Add("to", to)
	}
	for _, cc := range msg.CC {
		form.Add("cc", cc)
	}
	form.Set("subject", msg.Subject)
	form.Set("text", msg.Body)
	if msg.ReplyTo != "" {
		form.Set("h:Reply-To", msg.ReplyTo)
	}

	endpoint := fmt.Sprintf("%s/v3/%s/messages", strings.TrimRight(s.cfg.BaseURL, "/"), s.cfg.Domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build mailgun request: %w", err)
	}
	req.SetBasicAuth("api", s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("mailgun request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("mailgun responded %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode mailgun response: %w", err)
	}
	return parsed.ID, nil
}

var _ Sender = (*MailgunSender)(nil)
