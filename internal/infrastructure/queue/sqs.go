package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	log "github.com/sirupsen/logrus"

	"storefront-backend/internal/usecase"
)

type sqsAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQSQueue carries reconcile jobs whose webhook-time reconciliation failed.
// A job that fails again stays on the queue and is redelivered after the
// queue's visibility timeout.
type SQSQueue struct {
	client   sqsAPI
	queueURL string
	// ErrorBackoff is the pause after a failed receive.
	ErrorBackoff time.Duration
}

func NewSQSQueue(ctx context.Context, region, queueURL string) (*SQSQueue, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &SQSQueue{client: sqs.NewFromConfig(cfg), queueURL: queueURL, ErrorBackoff: 5 * time.Second}, nil
}

func (q *SQSQueue) Enqueue(ctx context.Context, job usecase.ReconcileJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}
	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("send reconcile job: %w", err)
	}
	return nil
}

type Handler func(ctx context.Context, job usecase.ReconcileJob) error

// Consume long-polls the queue and runs handle for each job until ctx is
// done. Jobs are deleted only after handle succeeds; undecodable messages are
// deleted and logged.
func (q *SQSQueue) Consume(ctx context.Context, handle Handler) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(q.queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			log.WithError(err).Error("receive reconcile jobs")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(q.ErrorBackoff):
			}
			continue
		}
		for _, m := range out.Messages {
			q.process(ctx, m, handle)
		}
	}
}

func (q *SQSQueue) process(ctx context.Context, m types.Message, handle Handler) {
	logCtx := log.WithField("message_id", aws.ToString(m.MessageId))
	var job usecase.ReconcileJob
	if err := json.Unmarshal([]byte(aws.ToString(m.Body)), &job); err != nil || job.SessionID == "" {
		logCtx.WithError(err).Error("dropping malformed reconcile job")
		q.delete(ctx, m)
		return
	}
	logCtx = logCtx.WithField("session_id", job.SessionID)
	if err := handle(ctx, job); err != nil {
		logCtx.WithError(err).Warn("reconcile job failed, leaving for redelivery")
		return
	}
	q.delete(ctx, m)
	logCtx.Info("reconcile job done")
}

func (q *SQSQueue) delete(ctx context.Context, m types.Message) {
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: m.ReceiptHandle,
	})
	if err != nil {
		log.WithError(err).WithField("message_id", aws.ToString(m.MessageId)).Error("delete reconcile job")
	}
}
