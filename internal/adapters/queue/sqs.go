// Package queue implements the queue publisher and receiver ports on AWS SQS.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"eventbooking/internal/domain"
)

const (
	longPollSeconds      = 20
	visibilityTimeoutSec = 30
)

// SQSConfig holds configuration for AWS SQS.
type SQSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	// Endpoint overrides the SQS endpoint, for localstack or elasticmq.
	Endpoint string
	// QueuePrefix is prepended to every queue name.
	QueuePrefix string
}

func newClient(cfg SQSConfig) *sqs.Client {
	awsCfg := aws.Config{
		Region: cfg.Region,
		Credentials: aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				"",
			),
		),
	}
	return sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
}

// QueueName returns the queue name used for the given event type.
func QueueName(cfg SQSConfig, eventType string) string {
	return cfg.QueuePrefix + eventType
}

// Publisher sends envelopes to one SQS queue per event type. Queues are
// created on first use and their URLs cached for the life of the process.
type Publisher struct {
	client *sqs.Client
	cfg    SQSConfig
	logger *slog.Logger

	mu   sync.Mutex
	urls map[string]string
}

// NewPublisher creates an SQS-backed QueuePublisher.
func NewPublisher(cfg SQSConfig, logger *slog.Logger) *Publisher {
	return &Publisher{
		client: newClient(cfg),
		cfg:    cfg,
		logger: logger,
		urls:   make(map[string]string),
	}
}

var _ domain.QueuePublisher = (*Publisher)(nil)

func (p *Publisher) Publish(ctx context.Context, env domain.OutboxEnvelope) error {
	url, err := p.queueURL(ctx, QueueName(p.cfg, env.EventType))
	if err != nil {
		return err
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(url),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("send message to %s: %w", env.EventType, err)
	}
	return nil
}

func (p *Publisher) queueURL(ctx context.Context, name string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if url, ok := p.urls[name]; ok {
		return url, nil
	}
	url, err := ensureQueue(ctx, p.client, name)
	if err != nil {
		return "", err
	}
	p.logger.Debug("resolved queue url", "queue", name, "url", url)
	p.urls[name] = url
	return url, nil
}

// ensureQueue resolves the queue URL, creating the queue if it does not exist.
func ensureQueue(ctx context.Context, client *sqs.Client, name string) (string, error) {
	out, err := client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{
		QueueName: aws.String(name),
	})
	if err == nil {
		return aws.ToString(out.QueueUrl), nil
	}
	var notFound *types.QueueDoesNotExist
	if !errors.As(err, &notFound) {
		return "", fmt.Errorf("get queue url %s: %w", name, err)
	}
	created, err := client.CreateQueue(ctx, &sqs.CreateQueueInput{
		QueueName: aws.String(name),
		Attributes: map[string]string{
			string(types.QueueAttributeNameVisibilityTimeout): fmt.Sprintf("%d", visibilityTimeoutSec),
		},
	})
	if err != nil {
		return "", fmt.Errorf("create queue %s: %w", name, err)
	}
	return aws.ToString(created.QueueUrl), nil
}

// Receiver long-polls a single SQS queue.
type Receiver struct {
	client *sqs.Client

	mu        sync.Mutex
	queueName string
	queueURL  string
}

// NewReceiver creates a QueueReceiver for the queue serving the given event
// type. The queue is resolved lazily on the first Receive.
func NewReceiver(cfg SQSConfig, eventType string) *Receiver {
	return &Receiver{
		client:    newClient(cfg),
		queueName: QueueName(cfg, eventType),
	}
}

var _ domain.QueueReceiver = (*Receiver)(nil)

func (r *Receiver) Receive(ctx context.Context, max int) ([]domain.QueueMessage, error) {
	url, err := r.url(ctx)
	if err != nil {
		return nil, err
	}
	out, err := r.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(url),
		MaxNumberOfMessages: int32(max),
		WaitTimeSeconds:     longPollSeconds,
	})
	if err != nil {
		return nil, fmt.Errorf("receive from %s: %w", r.queueName, err)
	}
	messages := make([]domain.QueueMessage, 0, len(out.Messages))
	for _, m := range out.Messages {
		messages = append(messages, toQueueMessage(m))
	}
	return messages, nil
}

func toQueueMessage(m types.Message) domain.QueueMessage {
	return domain.QueueMessage{
		ID:            aws.ToString(m.MessageId),
		Body:          []byte(aws.ToString(m.Body)),
		ReceiptHandle: aws.ToString(m.ReceiptHandle),
	}
}

func (r *Receiver) Ack(ctx context.Context, msg domain.QueueMessage) error {
	url, err := r.url(ctx)
	if err != nil {
		return err
	}
	_, err = r.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(url),
		ReceiptHandle: aws.String(msg.ReceiptHandle),
	})
	if err != nil {
		return fmt.Errorf("delete message from %s: %w", r.queueName, err)
	}
	return nil
}

func (r *Receiver) url(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.queueURL != "" {
		return r.queueURL, nil
	}
	url, err := ensureQueue(ctx, r.client, r.queueName)
	if err != nil {
		return "", err
	}
	r.queueURL = url
	return url, nil
}
