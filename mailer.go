package main

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	gomail "github.com/wneessen/go-mail"
)

// Submission is one validated contact form entry on its way to the inbox.
type Submission struct {
	Name    string
	Email   string
	Message string
}

// Sender delivers a contact submission to the site owner.
type Sender interface {
	Send(ctx context.Context, sub Submission) error
}

// NewSenderFromConfig picks the delivery path: a Brevo API key wins,
// then SMTP credentials, then a dev fallback that only logs.
func NewSenderFromConfig(cfg *Config) Sender {
	switch {
	case cfg.BrevoAPIKey != "":
		log.Println("mailer: delivering via Brevo API")
		return NewBrevoSender(cfg.BrevoAPIKey, cfg.ContactFrom, cfg.ContactFromName, cfg.ContactTo)
	case cfg.SMTPHost != "":
		log.Printf("mailer: delivering via SMTP (%s:%d)", cfg.SMTPHost, cfg.SMTPPort)
		return NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.ContactFrom, cfg.ContactFromName, cfg.ContactTo)
	default:
		log.Println("mailer: no provider configured, submissions are logged only")
		return LogSender{}
	}
}

// LogSender is the no-delivery fallback for development.
type LogSender struct{}

func (LogSender) Send(_ context.Context, sub Submission) error {
	log.Printf("mailer (log only): from %s <%s>: %s", sub.Name, sub.Email, sub.Message)
	return nil
}

const brevoEndpoint = "https://api.brevo.com/v3/smtp/email"

// BrevoSender delivers through Brevo's transactional HTTP API.
type BrevoSender struct {
	apiKey    string
	fromEmail string
	fromName  string
	toEmail   string
	client    *http.Client
}

type brevoParty struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

type brevoEmailRequest struct {
	Sender      brevoParty   `json:"sender"`
	To          []brevoParty `json:"to"`
	ReplyTo     *brevoParty  `json:"replyTo,omitempty"`
	Subject     string       `json:"subject"`
	HTMLContent string       `json:"htmlContent"`
}

func NewBrevoSender(apiKey, fromEmail, fromName, toEmail string) *BrevoSender {
	return &BrevoSender{
		apiKey:    apiKey,
		fromEmail: fromEmail,
		fromName:  fromName,
		toEmail:   toEmail,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (b *BrevoSender) Send(ctx context.Context, sub Submission) error {
	content, err := renderContactEmail(sub)
	if err != nil {
		return err
	}

	payload := brevoEmailRequest{
		Sender:      brevoParty{Name: b.fromName, Email: b.fromEmail},
		To:          []brevoParty{{Email: b.toEmail}},
		ReplyTo:     &brevoParty{Name: sub.Name, Email: sub.Email},
		Subject:     contactSubject(sub),
		HTMLContent: content,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, brevoEndpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("api-key", b.apiKey)
	req.Header.Set("content-type", "application/json")
	req.Header.Set("accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("brevo send failed: status %d: %s", resp.StatusCode, string(data))
	}

	return nil
}

// SMTPSender delivers over a direct SMTP connection via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromEmail string
	fromName  string
	toEmail   string
}

func NewSMTPSender(host string, port int, username, password, fromEmail, fromName, toEmail string) *SMTPSender {
	return &SMTPSender{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromEmail: fromEmail,
		fromName:  fromName,
		toEmail:   toEmail,
	}
}

func (s *SMTPSender) Send(ctx context.Context, sub Submission) error {
	content, err := renderContactEmail(sub)
	if err != nil {
		return err
	}

	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(s.toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	// Replies should go to the person who wrote in, not to the site.
	if err := msg.ReplyTo(sub.Email); err != nil {
		return fmt.Errorf("smtp reply-to: %w", err)
	}
	msg.Subject(contactSubject(sub))
	msg.SetBodyString(gomail.TypeTextHTML, content)

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}

//go:embed templates/email/*.html
var emailFS embed.FS

type contactEmailData struct {
	Name    string
	Email   string
	Message string
	SentAt  string
}

// renderContactEmail builds the notification body. User-provided text
// is stripped of markup before it goes anywhere near an email client.
func renderContactEmail(sub Submission) (string, error) {
	tmpl, err := template.New("contact.html").ParseFS(emailFS, "templates/email/contact.html")
	if err != nil {
		return "", fmt.Errorf("parse email template: %w", err)
	}

	policy := bluemonday.StrictPolicy()
	data := contactEmailData{
		Name:    policy.Sanitize(strings.TrimSpace(sub.Name)),
		Email:   policy.Sanitize(strings.TrimSpace(sub.Email)),
		Message: policy.Sanitize(strings.TrimSpace(sub.Message)),
		SentAt:  time.Now().Format("Jan 2, 2006 at 15:04 MST"),
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("execute email template: %w", err)
	}
	return buf.String(), nil
}

func contactSubject(sub Submission) string {
	return fmt.Sprintf("New message from %s", strings.TrimSpace(sub.Name))
}
