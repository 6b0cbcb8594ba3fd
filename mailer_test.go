package main

import (
	"context"
	"strings"
	"testing"
)

func TestNewSenderFromConfigSelection(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"brevo wins", Config{BrevoAPIKey: "xkeysib-abc", SMTPHost: "mail.example.com"}, "brevo"},
		{"smtp without key", Config{SMTPHost: "mail.example.com", SMTPPort: 587}, "smtp"},
		{"nothing configured", Config{}, "log"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := NewSenderFromConfig(&tt.cfg)
			var got string
			switch sender.(type) {
			case *BrevoSender:
				got = "brevo"
			case *SMTPSender:
				got = "smtp"
			case LogSender:
				got = "log"
			default:
				got = "unknown"
			}
			if got != tt.want {
				t.Errorf("selected %s sender, want %s", got, tt.want)
			}
		})
	}
}

func TestLogSenderNeverFails(t *testing.T) {
	err := LogSender{}.Send(context.Background(), Submission{
		Name:    "Ada",
		Email:   "ada@example.com",
		Message: "Hello",
	})
	if err != nil {
		t.Fatalf("Send returned %v", err)
	}
}

func TestRenderContactEmail(t *testing.T) {
	content, err := renderContactEmail(Submission{
		Name:    "Ada",
		Email:   "ada@example.com",
		Message: "Saw your uptime monitor, very nice.",
	})
	if err != nil {
		t.Fatalf("renderContactEmail: %v", err)
	}

	for _, want := range []string{"Ada", "ada@example.com", "Saw your uptime monitor"} {
		if !strings.Contains(content, want) {
			t.Errorf("rendered email is missing %q", want)
		}
	}
}

func TestRenderContactEmailStripsMarkup(t *testing.T) {
	content, err := renderContactEmail(Submission{
		Name:    "Mallory",
		Email:   "mallory@example.com",
		Message: `Nice site <script>alert("hi")</script> I need <b>help</b>`,
	})
	if err != nil {
		t.Fatalf("renderContactEmail: %v", err)
	}

	if strings.Contains(content, "<script>") || strings.Contains(content, "<b>help</b>") {
		t.Error("submitted markup survived into the email body")
	}
	if !strings.Contains(content, "I need help") {
		t.Error("stripping markup lost the surrounding text")
	}
}

func TestContactSubject(t *testing.T) {
	got := contactSubject(Submission{Name: "  Ada  "})
	if got != "New message from Ada" {
		t.Errorf("contactSubject = %q", got)
	}
}
