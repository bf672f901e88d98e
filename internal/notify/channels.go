package notify

import (
	"context"

	"pgt-ticketing/internal/common/aws"
)

type snsSender interface {
	Publish(ctx context.Context, subject, message string, attrs map[string]string) (string, error)
}

// SNSChannel publishes alerts to an SNS topic.
type SNSChannel struct {
	client snsSender
}

func NewSNSChannel(client *aws.SNSClient) *SNSChannel {
	return &SNSChannel{client: client}
}

func (c *SNSChannel) Name() string { return "sns" }

func (c *SNSChannel) Send(ctx context.Context, subject, body string, attrs map[string]string) error {
	_, err := c.client.Publish(ctx, subject, body, attrs)
	return err
}

type sesSender interface {
	SendText(ctx context.Context, to []string, subject, body string) (string, error)
}

// SESChannel mails alerts to a fixed recipient list.
type SESChannel struct {
	client sesSender
	to     []string
}

func NewSESChannel(client *aws.SESClient, to []string) *SESChannel {
	return &SESChannel{client: client, to: to}
}

func (c *SESChannel) Name() string { return "ses" }

func (c *SESChannel) Send(ctx context.Context, subject, body string, _ map[string]string) error {
	_, err := c.client.SendText(ctx, c.to, subject, body)
	return err
}
