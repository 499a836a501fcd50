// Package queue hands finished uploads to the external worker through SQS.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/smithy-go"

	"github.com/rpdevelops/data-ingestion-api/internal/ingest"
)

// SQSAPI is the subset of the SQS client used for publishing.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSQueue publishes job messages to a single queue URL.
type SQSQueue struct {
	client SQSAPI
	url    string
}

func NewSQSQueue(client SQSAPI, url string) *SQSQueue {
	return &SQSQueue{client: client, url: url}
}

// Publish sends one job message and returns the provider message ID.
// A missing queue satisfies errors.Is(err, ingest.ErrQueueMissing), which
// the HTTP layer maps to a distinct status.
func (q *SQSQueue) Publish(ctx context.Context, msg ingest.JobMessage) (string, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("encode job message: %w", err)
	}

	out, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.url),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		if queueMissing(err) {
			return "", fmt.Errorf("publish job %d: %w", msg.JobID, errors.Join(ingest.ErrQueueMissing, err))
		}
		return "", fmt.Errorf("publish job %d: %w", msg.JobID, err)
	}

	return aws.ToString(out.MessageId), nil
}

func queueMissing(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "AWS.SimpleQueueService.NonExistentQueue", "QueueDoesNotExist":
		return true
	}
	return false
}
