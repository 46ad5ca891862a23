package mailer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// DevMailer implements Mailer for local development. Notifications are
// written to a directory as HTML plus a JSON metadata file instead of going
// through the email provider.
type DevMailer struct {
	dir string
}

// NewDev creates a mailer that writes emails to disk. The directory is
// created on first send.
func NewDev(dir string) *DevMailer {
	return &DevMailer{dir: dir}
}

func (m *DevMailer) PaymentFailed(_ context.Context, email, reason string) error {
	body := "<p>Payment failed.</p>"
	if reason != "" {
		body += fmt.Sprintf("<p>Reason: %s</p>", reason)
	}
	return m.write(email, "Payment failed for your mentorpath subscription", body, "payment-failed")
}

func (m *DevMailer) TrialEnding(_ context.Context, email string, daysLeft int) error {
	body := fmt.Sprintf("<p>Trial ends in %d day(s).</p>", daysLeft)
	return m.write(email, "Your mentorpath trial is ending soon", body, "trial-ending")
}

type devEmailMetadata struct {
	Timestamp string `json:"timestamp"`
	SendTo    string `json:"send_to"`
	Subject   string `json:"subject"`
	Tag       string `json:"tag,omitempty"`
}

func (m *DevMailer) write(to, subject, htmlBody, tag string) error {
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return fmt.Errorf("%w: failed to create directory: %v", ErrFailedToSend, err)
	}

	now := time.Now()
	base := fmt.Sprintf("%s_%s", now.Format("2006_01_02_150405"), sanitizeFilename(tag))

	if err := os.WriteFile(filepath.Join(m.dir, base+".html"), []byte(htmlBody), 0644); err != nil {
		return fmt.Errorf("%w: failed to write HTML file: %v", ErrFailedToSend, err)
	}

	metadata, err := json.MarshalIndent(devEmailMetadata{
		Timestamp: now.Format(time.RFC3339),
		SendTo:    to,
		Subject:   subject,
		Tag:       tag,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: failed to marshal metadata: %v", ErrFailedToSend, err)
	}
	if err := os.WriteFile(filepath.Join(m.dir, base+".json"), metadata, 0644); err != nil {
		return fmt.Errorf("%w: failed to write JSON file: %v", ErrFailedToSend, err)
	}
	return nil
}

var sanitizeRegex = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)

func sanitizeFilename(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = sanitizeRegex.ReplaceAllString(s, "")
	if len(s) > 100 {
		s = s[:100]
	}
	if s == "" {
		s = "email"
	}
	return strings.ToLower(s)
}
