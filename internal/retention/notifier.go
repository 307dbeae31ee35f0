package retention

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// Notifier is told about secrets that need rotating.
type Notifier interface {
	NotifyRotation(ctx context.Context, r SecretRotationResult) error
}

type Publisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSNotifier publishes a rotation summary to an SNS topic.
type SNSNotifier struct {
	Client   Publisher
	TopicARN string
}

func NewSNSNotifier(client Publisher, topicARN string) *SNSNotifier {
	return &SNSNotifier{Client: client, TopicARN: strings.TrimSpace(topicARN)}
}

func (n *SNSNotifier) NotifyRotation(ctx context.Context, r SecretRotationResult) error {
	if n == nil || n.Client == nil || n.TopicARN == "" {
		return nil
	}
	subject, body := rotationMessage(r)
	_, err := n.Client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.TopicARN),
		Subject:  aws.String(subject),
		Message:  aws.String(body),
	})
	if err != nil {
		return fmt.Errorf("publish rotation reminder: %w", err)
	}
	return nil
}

func rotationMessage(r SecretRotationResult) (string, string) {
	subject := fmt.Sprintf("Merchantdesk: %d overdue, %d upcoming secret rotations", len(r.Overdue), len(r.Upcoming))

	var b strings.Builder
	if len(r.Overdue) > 0 {
		b.WriteString("Overdue:\n")
		for _, s := range r.Overdue {
			fmt.Fprintf(&b, "- %s %s (store %s): %d day(s) overdue\n", s.Provider, s.Label, s.StoreID, s.DaysOverdue)
		}
	}
	if len(r.Upcoming) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Upcoming:\n")
		for _, s := range r.Upcoming {
			fmt.Fprintf(&b, "- %s %s (store %s): due in %d day(s)\n", s.Provider, s.Label, s.StoreID, s.DaysUntilDue)
		}
	}
	return subject, b.String()
}
