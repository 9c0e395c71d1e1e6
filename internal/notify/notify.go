// Package notify delivers the drift message to a notification channel. Each
// Send is a single attempt; failures are returned to the caller.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/slack-go/slack"
	"github.com/yourusername/nsgwatch/internal/logger"
)

// Subject is used by channels that carry a subject line
const Subject = "NSG SMTP allow-list drift"

// ErrNoChannel is returned when Send is called without a destination
var ErrNoChannel = errors.New("notification channel is empty")

// Notifier sends a text message to a channel
type Notifier interface {
	Send(ctx context.Context, channel, text string) error
}

// SlackPoster is the subset of the Slack client used here
type SlackPoster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackNotifier posts messages to a Slack channel
type SlackNotifier struct {
	client SlackPoster
	logger *logger.Logger
}

// NewSlackNotifier creates a notifier authenticated with a bot token
func NewSlackNotifier(token string) *SlackNotifier {
	return NewSlackNotifierWithClient(slack.New(token))
}

// NewSlackNotifierWithClient wraps an existing Slack client
func NewSlackNotifierWithClient(client SlackPoster) *SlackNotifier {
	return &SlackNotifier{
		client: client,
		logger: logger.WithFields(map[string]interface{}{"component": "slack"}),
	}
}

// Send implements Notifier
func (n *SlackNotifier) Send(ctx context.Context, channel, text string) error {
	if channel == "" {
		return ErrNoChannel
	}
	_, ts, err := n.client.PostMessageContext(ctx, channel, slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("failed to post to slack channel %s: %w", channel, err)
	}
	n.logger.Info("Posted message to %s at %s", channel, ts)
	return nil
}

// SNSPublishAPI defines the interface for the SNS Publish API
type SNSPublishAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSNotifier publishes messages to an SNS topic; the channel is the topic ARN
type SNSNotifier struct {
	client SNSPublishAPI
	logger *logger.Logger
}

// NewSNSNotifier creates a notifier for region using the default AWS
// credential chain. Publish is attempted once.
func NewSNSNotifier(ctx context.Context, region string, optFns ...func(*config.LoadOptions) error) (*SNSNotifier, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
		config.WithRetryMaxAttempts(1),
	}
	cfg, err := config.LoadDefaultConfig(ctx, append(opts, optFns...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewSNSNotifierWithClient(sns.NewFromConfig(cfg)), nil
}

// NewSNSNotifierWithClient wraps an existing SNS client
func NewSNSNotifierWithClient(client SNSPublishAPI) *SNSNotifier {
	return &SNSNotifier{
		client: client,
		logger: logger.WithFields(map[string]interface{}{"component": "sns"}),
	}
}

// Send implements Notifier
func (n *SNSNotifier) Send(ctx context.Context, channel, text string) error {
	if channel == "" {
		return ErrNoChannel
	}
	out, err := n.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(channel),
		Subject:  aws.String(Subject),
		Message:  aws.String(text),
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	n.logger.Info("Published message %s", aws.ToString(out.MessageId))
	return nil
}

// WriterNotifier writes messages to an io.Writer, typically stdout
type WriterNotifier struct {
	w io.Writer
}

// NewWriterNotifier creates a notifier that writes to w
func NewWriterNotifier(w io.Writer) *WriterNotifier {
	return &WriterNotifier{w: w}
}

// Send implements Notifier. The channel is ignored.
func (n *WriterNotifier) Send(_ context.Context, _ string, text string) error {
	if _, err := io.WriteString(n.w, text); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}
