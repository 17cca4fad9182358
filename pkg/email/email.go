package email

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/mrz1836/postmark"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	ErrFailedToSendEmail = errors.New("failed to send email")
	ErrInvalidConfig     = errors.New("invalid email config")
	ErrInvalidParams     = errors.New("invalid email params")
)

type Config struct {
	PostmarkServerToken  string `yaml:"serverToken" envconfig:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `yaml:"accountToken" envconfig:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `yaml:"sender" envconfig:"SENDER_EMAIL" default:"noreply@librakeeper.com"`
}

type Sender interface {
	SendEmail(ctx context.Context, params SendEmailParams) error
}

type SendEmailParams struct {
	SendTo   string `json:"send_to"`
	Subject  string `json:"subject"`
	BodyHTML string `json:"body_html"`
	Tag      string `json:"tag,omitempty"`
}

func (p SendEmailParams) Validate() error {
	if _, err := mail.ParseAddress(p.SendTo); err != nil {
		return errors.Wrapf(ErrInvalidParams, "recipient %q", p.SendTo)
	}
	if p.Subject == "" {
		return errors.Wrap(ErrInvalidParams, "subject is required")
	}
	if p.BodyHTML == "" {
		return errors.Wrap(ErrInvalidParams, "body is required")
	}
	return nil
}

// NewSender returns a Postmark client when a server token is configured and a
// log-only sender otherwise.
func NewSender(cfg Config, log *zap.Logger) (Sender, error) {
	if cfg.PostmarkServerToken == "" {
		return NewLogSender(log), nil
	}
	return NewPostmarkClient(cfg)
}

type postmarkClient struct {
	client *postmark.Client
	from   string
}

func NewPostmarkClient(cfg Config) (Sender, error) {
	if cfg.PostmarkServerToken == "" {
		return nil, errors.Wrap(ErrInvalidConfig, "PostmarkServerToken is required")
	}
	if _, err := mail.ParseAddress(cfg.SenderEmail); err != nil {
		return nil, errors.Wrap(ErrInvalidConfig, "SenderEmail must be a valid email address")
	}
	return &postmarkClient{
		client: postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken),
		from:   "LibraKeeper <" + cfg.SenderEmail + ">",
	}, nil
}

func (c *postmarkClient) SendEmail(ctx context.Context, params SendEmailParams) error {
	if err := params.Validate(); err != nil {
		return err
	}
	resp, err := c.client.SendEmail(ctx, postmark.Email{
		From:     c.from,
		To:       params.SendTo,
		Subject:  params.Subject,
		Tag:      params.Tag,
		HTMLBody: params.BodyHTML,
	})
	if err != nil {
		return errors.Wrap(ErrFailedToSendEmail, err.Error())
	}
	if resp.ErrorCode > 0 {
		return errors.Wrap(ErrFailedToSendEmail, fmt.Sprintf("postmark error: %d - %s", resp.ErrorCode, resp.Message))
	}
	return nil
}

type logSender struct {
	log *zap.Logger
}

// NewLogSender writes emails to the log instead of delivering them.
func NewLogSender(log *zap.Logger) Sender {
	return &logSender{log: log.Named("email")}
}

func (s *logSender) SendEmail(_ context.Context, params SendEmailParams) error {
	if err := params.Validate(); err != nil {
		return err
	}
	s.log.Warn("email provider is not configured, email not sent",
		zap.String("to", params.SendTo),
		zap.String("subject", params.Subject),
		zap.String("tag", params.Tag),
	)
	return nil
}
