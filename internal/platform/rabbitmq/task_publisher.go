package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// IngestionTask is queued once a file's chunks have been merged into a
// single object; the ingestion worker consumes it to parse, split,
// embed and index the file. Grounded on manshu's FileProcessingTask.
type IngestionTask struct {
	Fingerprint string `json:"fingerprint"`
	UserID      uint   `json:"user_id"`
	ObjectKey   string `json:"object_key"`
	ScopeTag    string `json:"scope_tag"`
	IsPublic    bool   `json:"is_public"`
}

// TaskPublisher declares and publishes to the ingestion queue.
// Grounded on the teacher's MessagePublisher: open a channel per
// publish, declare idempotently, publish with persistent delivery.
type TaskPublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewTaskPublisher(conn *amqp.Connection, queueName string) *TaskPublisher {
	return &TaskPublisher{conn: conn, queueName: queueName}
}

func (p *TaskPublisher) Publish(ctx context.Context, task IngestionTask) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	_, err = ch.QueueDeclare(p.queueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue failed: %w", err)
	}

	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal ingestion task failed: %w", err)
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
		},
	); err != nil {
		return fmt.Errorf("publish ingestion task failed: %w", err)
	}
	return nil
}
