package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/dwsmith1983/chia-monitor/pkg/types"
)

// EventBridge envelope identifiers.
const (
	eventSource     = "chia-monitor"
	eventDetailType = "Chia Farm Notification"
	snsSubjectLimit = 100
)

// SNSAPI is the subset of the SNS client used by SNSDestination.
type SNSAPI interface {
	Publish(ctx context.Context, input *sns.PublishInput, opts ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SQSAPI is the subset of the SQS client used by SQSDestination.
type SQSAPI interface {
	SendMessage(ctx context.Context, input *sqs.SendMessageInput, opts ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// EventBridgeAPI is the subset of the EventBridge client used by EventBridgeDestination.
type EventBridgeAPI interface {
	PutEvents(ctx context.Context, input *eventbridge.PutEventsInput, opts ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// S3API is the subset of the S3 client used by S3Destination.
type S3API interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// SecretsAPI is the subset of the Secrets Manager client used to resolve
// secretsmanager:// destinations.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, input *secretsmanager.GetSecretValueInput, opts ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SNSDestination publishes notifications to an SNS topic.
type SNSDestination struct {
	client   SNSAPI
	topicARN string
}

// NewSNSDestination creates an SNS destination.
func NewSNSDestination(topicARN string, client SNSAPI) (*SNSDestination, error) {
	if topicARN == "" {
		return nil, fmt.Errorf("SNS topic ARN required")
	}
	return &SNSDestination{client: client, topicARN: topicARN}, nil
}

// Name returns the destination identifier.
func (d *SNSDestination) Name() string { return SchemeSNS }

// Send publishes the title as subject and the body as message.
func (d *SNSDestination) Send(ctx context.Context, n types.Notification) error {
	subject := n.Title
	if len(subject) > snsSubjectLimit {
		subject = subject[:snsSubjectLimit]
	}
	_, err := d.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(d.topicARN),
		Subject:  aws.String(subject),
		Message:  aws.String(n.Title + "\n" + n.Body),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"channel": {DataType: aws.String("String"), StringValue: aws.String(string(n.Channel))},
		},
	})
	if err != nil {
		return fmt.Errorf("publishing to SNS: %w", err)
	}
	return nil
}

// SQSDestination sends notifications as JSON messages to an SQS queue.
type SQSDestination struct {
	client   SQSAPI
	queueURL string
}

// NewSQSDestination creates an SQS destination.
func NewSQSDestination(queueURL string, client SQSAPI) (*SQSDestination, error) {
	if strings.TrimPrefix(queueURL, "https://") == "" {
		return nil, fmt.Errorf("SQS queue URL required")
	}
	return &SQSDestination{client: client, queueURL: queueURL}, nil
}

// Name returns the destination identifier.
func (d *SQSDestination) Name() string { return SchemeSQS }

// Send enqueues the notification as JSON.
func (d *SQSDestination) Send(ctx context.Context, n types.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshaling notification: %w", err)
	}
	_, err = d.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(d.queueURL),
		MessageBody: aws.String(string(data)),
	})
	if err != nil {
		return fmt.Errorf("sending to SQS: %w", err)
	}
	return nil
}

// EventBridgeDestination puts notifications on an event bus.
type EventBridgeDestination struct {
	client EventBridgeAPI
	bus    string
}

// NewEventBridgeDestination creates an EventBridge destination.
func NewEventBridgeDestination(bus string, client EventBridgeAPI) (*EventBridgeDestination, error) {
	if bus == "" {
		return nil, fmt.Errorf("EventBridge bus name required")
	}
	return &EventBridgeDestination{client: client, bus: bus}, nil
}

// Name returns the destination identifier.
func (d *EventBridgeDestination) Name() string { return SchemeEventBridge }

// Send puts one event whose detail is the notification.
func (d *EventBridgeDestination) Send(ctx context.Context, n types.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshaling notification: %w", err)
	}
	out, err := d.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []ebtypes.PutEventsRequestEntry{{
			EventBusName: aws.String(d.bus),
			Source:       aws.String(eventSource),
			DetailType:   aws.String(eventDetailType),
			Detail:       aws.String(string(data)),
			Time:         aws.Time(n.Timestamp),
		}},
	})
	if err != nil {
		return fmt.Errorf("putting event: %w", err)
	}
	if out.FailedEntryCount > 0 {
		msg := "unknown"
		if len(out.Entries) > 0 && out.Entries[0].ErrorMessage != nil {
			msg = *out.Entries[0].ErrorMessage
		}
		return fmt.Errorf("event rejected: %s", msg)
	}
	return nil
}

// S3Destination archives notifications to S3.
type S3Destination struct {
	client S3API
	bucket string
	prefix string
}

// NewS3Destination creates an S3 destination.
func NewS3Destination(bucket, prefix string, client S3API) (*S3Destination, error) {
	if bucket == "" {
		return nil, fmt.Errorf("S3 bucket name required")
	}
	return &S3Destination{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

// Name returns the destination identifier.
func (d *S3Destination) Name() string { return SchemeS3 }

// Send archives the notification as JSON.
// Key format: {prefix}/{date}/{channel}/{id}.json
func (d *S3Destination) Send(ctx context.Context, n types.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshaling notification: %w", err)
	}
	key := fmt.Sprintf("%s/%s/%s/%s.json", d.prefix, n.Timestamp.UTC().Format("2006-01-02"), n.Channel, n.ID)
	key = strings.TrimLeft(key, "/")

	_, err = d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("putting notification to S3: %w", err)
	}
	return nil
}

// resolveSecret reads a destination URL stored as a secret string.
func (c *Clients) resolveSecret(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("secret id required")
	}
	client, err := c.secrets(ctx)
	if err != nil {
		return "", err
	}
	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(id)})
	if err != nil {
		return "", fmt.Errorf("reading secret %s: %w", id, err)
	}
	if out.SecretString == nil || strings.TrimSpace(*out.SecretString) == "" {
		return "", fmt.Errorf("secret %s is empty", id)
	}
	return strings.TrimSpace(*out.SecretString), nil
}
