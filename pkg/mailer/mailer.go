// Package mailer sends billing notification emails.
package mailer

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrz1836/postmark"
)

var (
	ErrInvalidConfig = errors.New("invalid mailer configuration")
	ErrFailedToSend  = errors.New("failed to send email")
)

// Config holds email delivery configuration. Tokens are optional so local
// environments can run without outbound email.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL"`
	SupportEmail         string `env:"SUPPORT_EMAIL"`
	// DevEmailDir makes local runs write emails to disk instead of sending.
	DevEmailDir string `env:"DEV_EMAIL_DIR" envDefault:"./tmp/emails"`
}

// Mailer sends the billing lifecycle notifications. Sends are best effort:
// callers log failures and move on, they never fail the triggering flow.
type Mailer interface {
	PaymentFailed(ctx context.Context, email, reason string) error
	TrialEnding(ctx context.Context, email string, daysLeft int) error
}

type postmarkMailer struct {
	client *postmark.Client
	cfg    Config
}

// NewPostmark creates a Postmark-backed mailer. All configuration fields
// are required at this point; use a nil Mailer to disable email entirely.
func NewPostmark(cfg Config) (Mailer, error) {
	if cfg.PostmarkServerToken == "" || cfg.PostmarkAccountToken == "" {
		return nil, fmt.Errorf("%w: postmark tokens are required", ErrInvalidConfig)
	}
	if cfg.SenderEmail == "" || cfg.SupportEmail == "" {
		return nil, fmt.Errorf("%w: sender and support emails are required", ErrInvalidConfig)
	}
	return &postmarkMailer{
		client: postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken),
		cfg:    cfg,
	}, nil
}

func (m *postmarkMailer) PaymentFailed(ctx context.Context, email, reason string) error {
	body := "<p>We couldn't process your latest payment for mentorpath Pro.</p>" +
		"<p>Please update your payment method from your account's billing page to keep Pro access.</p>"
	if reason != "" {
		body += fmt.Sprintf("<p>Reason given by the payment provider: %s</p>", reason)
	}
	return m.send(ctx, email, "Payment failed for your mentorpath subscription", body, "payment-failed")
}

func (m *postmarkMailer) TrialEnding(ctx context.Context, email string, daysLeft int) error {
	body := fmt.Sprintf(
		"<p>Your mentorpath trial ends in %d day(s).</p>"+
			"<p>Upgrade to Pro to keep unlimited tasks, notes, habits, events and sheets.</p>",
		daysLeft)
	return m.send(ctx, email, "Your mentorpath trial is ending soon", body, "trial-ending")
}

func (m *postmarkMailer) send(ctx context.Context, to, subject, htmlBody, tag string) error {
	resp, err := m.client.SendEmail(ctx, postmark.Email{
		From:     m.cfg.SenderEmail,
		ReplyTo:  m.cfg.SupportEmail,
		To:       to,
		Subject:  subject,
		Tag:      tag,
		HTMLBody: htmlBody,
	})
	if err != nil {
		return errors.Join(ErrFailedToSend, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(ErrFailedToSend,
			fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message))
	}
	return nil
}
