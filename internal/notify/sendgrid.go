package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"pressroom/internal/domain"
)

// Message is one outbound email.
type Message struct {
	To          string
	Subject     string
	PlainBody   string
	HTMLBody    string
	Attachments []Attachment
}

// Attachment is an inline file on a message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Mailer sends messages. Implemented by SendGridMailer; faked in tests.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SendGridOptions configure the SendGrid client.
type SendGridOptions struct {
	APIKey     string
	FromEmail  string
	FromName   string
	BaseURL    string
	HTTPClient *http.Client
}

// SendGridMailer delivers mail through the SendGrid v3 API.
type SendGridMailer struct {
	opts SendGridOptions
}

func NewSendGridMailer(opts SendGridOptions) *SendGridMailer {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.sendgrid.com"
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.FromName == "" {
		opts.FromName = "Pressroom"
	}
	return &SendGridMailer{opts: opts}
}

type sgAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sgContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sgAttachment struct {
	Content     string `json:"content"`
	Type        string `json:"type"`
	Filename    string `json:"filename"`
	Disposition string `json:"disposition"`
}

type sgRequest struct {
	Personalizations []struct {
		To []sgAddress `json:"to"`
	} `json:"personalizations"`
	From        sgAddress      `json:"from"`
	Subject     string         `json:"subject"`
	Content     []sgContent    `json:"content"`
	Attachments []sgAttachment `json:"attachments,omitempty"`
}

func (m *SendGridMailer) Send(ctx context.Context, msg Message) error {
	payload := sgRequest{
		From:    sgAddress{Email: m.opts.FromEmail, Name: m.opts.FromName},
		Subject: msg.Subject,
	}
	payload.Personalizations = append(payload.Personalizations, struct {
		To []sgAddress `json:"to"`
	}{To: []sgAddress{{Email: msg.To}}})

	if msg.PlainBody != "" {
		payload.Content = append(payload.Content, sgContent{Type: "text/plain", Value: msg.PlainBody})
	}
	if msg.HTMLBody != "" {
		payload.Content = append(payload.Content, sgContent{Type: "text/html", Value: msg.HTMLBody})
	}
	for _, att := range msg.Attachments {
		payload.Attachments = append(payload.Attachments, sgAttachment{
			Content:     base64.StdEncoding.EncodeToString(att.Data),
			Type:        att.ContentType,
			Filename:    att.Filename,
			Disposition: "attachment",
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.opts.BaseURL+"/v3/mail/send", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+m.opts.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.opts.HTTPClient.Do(req)
	if err != nil {
		return domain.Classified(domain.ErrClassTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		class := domain.ErrClassTransient
		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			class = domain.ErrClassAuth
		case resp.StatusCode >= 500:
			class = domain.ErrClassRemoteUnavailable
		}
		return domain.Classified(class, fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, bytes.TrimSpace(raw)))
	}
	return nil
}
