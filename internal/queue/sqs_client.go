package queue

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// sqsAPI abstracts the AWS SQS client for testability.
type sqsAPI interface {
	SendMessage(ctx context.Context, input *sqsSendInput) (*sqsSendOutput, error)
	ReceiveMessage(ctx context.Context, input *sqsReceiveInput) (*sqsReceiveOutput, error)
	DeleteMessage(ctx context.Context, input *sqsDeleteInput) error
	ChangeMessageVisibility(ctx context.Context, input *sqsChangeVisibilityInput) error
}

type sqsSendInput struct {
	QueueURL     string
	MessageBody  string
	DelaySeconds int32
}

type sqsSendOutput struct {
	MessageID string
}

type sqsReceiveInput struct {
	QueueURL            string
	MaxNumberOfMessages int32
	WaitTimeSeconds     int32
	VisibilityTimeout   int32
}

type sqsReceiveOutput struct {
	Messages []sqsReceivedMessage
}

type sqsReceivedMessage struct {
	MessageID     string
	ReceiptHandle string
	Body          string
}

type sqsDeleteInput struct {
	QueueURL      string
	ReceiptHandle string
}

type sqsChangeVisibilityInput struct {
	QueueURL          string
	ReceiptHandle     string
	VisibilityTimeout int32
}

// awsSQSClient wraps the AWS SDK client and implements sqsAPI.
type awsSQSClient struct {
	client *sqs.Client
}

// newAWSSQSClient creates an awsSQSClient for region. A non-empty endpoint
// points the client at an SQS-compatible service such as LocalStack.
func newAWSSQSClient(ctx context.Context, region, endpoint string) (*awsSQSClient, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := sqs.NewFromConfig(cfg, func(o *sqs.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return &awsSQSClient{client: client}, nil
}

func (c *awsSQSClient) SendMessage(ctx context.Context, input *sqsSendInput) (*sqsSendOutput, error) {
	out, err := c.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:     aws.String(input.QueueURL),
		MessageBody:  aws.String(input.MessageBody),
		DelaySeconds: input.DelaySeconds,
	})
	if err != nil {
		return nil, err
	}
	return &sqsSendOutput{MessageID: aws.ToString(out.MessageId)}, nil
}

func (c *awsSQSClient) ReceiveMessage(ctx context.Context, input *sqsReceiveInput) (*sqsReceiveOutput, error) {
	out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(input.QueueURL),
		MaxNumberOfMessages: input.MaxNumberOfMessages,
		WaitTimeSeconds:     input.WaitTimeSeconds,
		VisibilityTimeout:   input.VisibilityTimeout,
	})
	if err != nil {
		return nil, err
	}

	messages := make([]sqsReceivedMessage, 0, len(out.Messages))
	for _, m := range out.Messages {
		messages = append(messages, sqsReceivedMessage{
			MessageID:     aws.ToString(m.MessageId),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
			Body:          aws.ToString(m.Body),
		})
	}
	return &sqsReceiveOutput{Messages: messages}, nil
}

func (c *awsSQSClient) DeleteMessage(ctx context.Context, input *sqsDeleteInput) error {
	_, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(input.QueueURL),
		ReceiptHandle: aws.String(input.ReceiptHandle),
	})
	return err
}

func (c *awsSQSClient) ChangeMessageVisibility(ctx context.Context, input *sqsChangeVisibilityInput) error {
	_, err := c.client.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(input.QueueURL),
		ReceiptHandle:     aws.String(input.ReceiptHandle),
		VisibilityTimeout: input.VisibilityTimeout,
	})
	return err
}
