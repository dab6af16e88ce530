package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// Destination URL schemes.
const (
	SchemeConsole        = "console"
	SchemeHTTP           = "http"
	SchemeHTTPS          = "https"
	SchemeJSON           = "json"
	SchemeJSONS          = "jsons"
	SchemeFile           = "file"
	SchemeSNS            = "sns"
	SchemeSQS            = "sqs"
	SchemeEventBridge    = "eventbridge"
	SchemeS3             = "s3"
	SchemeNATS           = "nats"
	SchemeSecretsManager = "secretsmanager"
)

// Clients supplies the transports destinations are built on. Nil fields are
// created on first use from the default AWS config or the default dialers.
type Clients struct {
	HTTP        *http.Client
	SNS         SNSAPI
	SQS         SQSAPI
	EventBridge EventBridgeAPI
	S3          S3API
	Secrets     SecretsAPI
	NATSConnect func(url string) (NATSConn, error)

	awsOnce sync.Once
	awsCfg  aws.Config
	awsErr  error
}

func (c *Clients) aws(ctx context.Context) (aws.Config, error) {
	c.awsOnce.Do(func() {
		c.awsCfg, c.awsErr = awsconfig.LoadDefaultConfig(ctx)
		if c.awsErr != nil {
			c.awsErr = fmt.Errorf("loading AWS config: %w", c.awsErr)
		}
	})
	return c.awsCfg, c.awsErr
}

// Parse builds the destination a URL names.
func (c *Clients) Parse(ctx context.Context, raw string) (Destination, error) {
	return c.parse(ctx, raw, true)
}

func (c *Clients) parse(ctx context.Context, raw string, resolveSecrets bool) (Destination, error) {
	scheme, rest, ok := strings.Cut(strings.TrimSpace(raw), "://")
	if !ok || scheme == "" {
		return nil, fmt.Errorf("destination %q: missing scheme", raw)
	}
	switch strings.ToLower(scheme) {
	case SchemeConsole:
		return NewConsoleDestination(nil), nil
	case SchemeHTTP, SchemeHTTPS:
		return NewWebhookDestination(raw, c.HTTP)
	case SchemeJSON:
		return NewWebhookDestination("http://"+rest, c.HTTP)
	case SchemeJSONS:
		return NewWebhookDestination("https://"+rest, c.HTTP)
	case SchemeFile:
		return NewFileDestination(rest)
	case SchemeSNS:
		client, err := c.sns(ctx)
		if err != nil {
			return nil, err
		}
		return NewSNSDestination(rest, client)
	case SchemeSQS:
		client, err := c.sqs(ctx)
		if err != nil {
			return nil, err
		}
		return NewSQSDestination("https://"+rest, client)
	case SchemeEventBridge:
		client, err := c.eventBridge(ctx)
		if err != nil {
			return nil, err
		}
		return NewEventBridgeDestination(rest, client)
	case SchemeS3:
		bucket, prefix, _ := strings.Cut(rest, "/")
		client, err := c.s3(ctx)
		if err != nil {
			return nil, err
		}
		return NewS3Destination(bucket, prefix, client)
	case SchemeNATS:
		server, subject, _ := strings.Cut(rest, "/")
		connect := c.NATSConnect
		if connect == nil {
			connect = DialNATS
		}
		return NewNATSDestination("nats://"+server, subject, connect)
	case SchemeSecretsManager:
		if !resolveSecrets {
			return nil, fmt.Errorf("destination %q: secret resolves to another secret", raw)
		}
		resolved, err := c.resolveSecret(ctx, rest)
		if err != nil {
			return nil, err
		}
		return c.parse(ctx, resolved, false)
	default:
		return nil, fmt.Errorf("destination %q: unsupported scheme %q", raw, scheme)
	}
}

func (c *Clients) sns(ctx context.Context) (SNSAPI, error) {
	if c.SNS == nil {
		cfg, err := c.aws(ctx)
		if err != nil {
			return nil, err
		}
		c.SNS = sns.NewFromConfig(cfg)
	}
	return c.SNS, nil
}

func (c *Clients) sqs(ctx context.Context) (SQSAPI, error) {
	if c.SQS == nil {
		cfg, err := c.aws(ctx)
		if err != nil {
			return nil, err
		}
		c.SQS = sqs.NewFromConfig(cfg)
	}
	return c.SQS, nil
}

func (c *Clients) eventBridge(ctx context.Context) (EventBridgeAPI, error) {
	if c.EventBridge == nil {
		cfg, err := c.aws(ctx)
		if err != nil {
			return nil, err
		}
		c.EventBridge = eventbridge.NewFromConfig(cfg)
	}
	return c.EventBridge, nil
}

func (c *Clients) s3(ctx context.Context) (S3API, error) {
	if c.S3 == nil {
		cfg, err := c.aws(ctx)
		if err != nil {
			return nil, err
		}
		c.S3 = s3.NewFromConfig(cfg)
	}
	return c.S3, nil
}

func (c *Clients) secrets(ctx context.Context) (SecretsAPI, error) {
	if c.Secrets == nil {
		cfg, err := c.aws(ctx)
		if err != nil {
			return nil, err
		}
		c.Secrets = secretsmanager.NewFromConfig(cfg)
	}
	return c.Secrets, nil
}
