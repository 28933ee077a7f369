package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mrz1836/postmark"
)

// EmailConfig holds configuration for the Postmark email dispatcher.
type EmailConfig struct {
	ServerToken  string `env:"POSTMARK_SERVER_TOKEN,required"`
	AccountToken string `env:"POSTMARK_ACCOUNT_TOKEN,required"`
	SenderEmail  string `env:"NOTIFICATION_SENDER_EMAIL,required"`
}

// AddressResolver maps a user ID to their billing email address.
// Account data lives outside this core, so the lookup is delegated.
type AddressResolver func(ctx context.Context, userID uuid.UUID) (string, error)

// EmailDispatcher delivers billing notifications via Postmark transactional
// email. Subject and body are intentionally plain: rendering rich templates
// belongs to the application layer above this core.
type EmailDispatcher struct {
	client  *postmark.Client
	config  EmailConfig
	resolve AddressResolver
}

// NewEmailDispatcher creates a Postmark-backed dispatcher.
func NewEmailDispatcher(cfg EmailConfig, resolve AddressResolver) (*EmailDispatcher, error) {
	if cfg.ServerToken == "" {
		return nil, fmt.Errorf("%w: ServerToken is required", ErrInvalidConfig)
	}
	if cfg.AccountToken == "" {
		return nil, fmt.Errorf("%w: AccountToken is required", ErrInvalidConfig)
	}
	if cfg.SenderEmail == "" {
		return nil, fmt.Errorf("%w: SenderEmail is required", ErrInvalidConfig)
	}
	if resolve == nil {
		return nil, fmt.Errorf("%w: address resolver is required", ErrInvalidConfig)
	}

	return &EmailDispatcher{
		client:  postmark.NewClient(cfg.ServerToken, cfg.AccountToken),
		config:  cfg,
		resolve: resolve,
	}, nil
}

func (d *EmailDispatcher) Notify(ctx context.Context, userID uuid.UUID, event Type, payload map[string]any) error {
	to, err := d.resolve(ctx, userID)
	if err != nil {
		return errors.Join(ErrRecipientNotFound, err)
	}

	subject, body := renderEmail(event, payload)
	if subject == "" {
		return fmt.Errorf("%w: %s", ErrUnknownEventType, event)
	}

	resp, err := d.client.SendEmail(ctx, postmark.Email{
		From:     d.config.SenderEmail,
		To:       to,
		Subject:  subject,
		Tag:      string(event),
		TextBody: body,
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

func renderEmail(event Type, payload map[string]any) (subject, body string) {
	plan, _ := payload["plan_id"].(string)

	switch event {
	case TypeSubscriptionActivated:
		return "Your subscription is active",
			fmt.Sprintf("Welcome aboard! Your %s subscription is now active.", plan)
	case TypeSubscriptionUpgraded:
		return "Your subscription was upgraded",
			fmt.Sprintf("Your subscription has been switched to the %s plan.", plan)
	case TypeSubscriptionPaused:
		return "Your subscription is paused",
			"Your subscription is paused. Billing is on hold until you resume."
	case TypeSubscriptionResumed:
		return "Your subscription has resumed",
			"Your subscription is active again and a new billing cycle has started."
	case TypeSubscriptionCancelled:
		return "Your subscription was cancelled",
			"Your subscription has been cancelled. Remaining credits stay on your account."
	case TypeSubscriptionExpired:
		return "Your subscription has expired",
			"Your subscription has expired. Pick a plan to keep using paid features."
	case TypeRenewalSucceeded:
		return "Subscription renewed",
			fmt.Sprintf("Your %s subscription renewed successfully.", plan)
	case TypeRenewalFailed:
		return "We could not renew your subscription",
			"Your renewal payment failed and the subscription has expired. Update your payment method and resubscribe."
	}
	return "", ""
}
