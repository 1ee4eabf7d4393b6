package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"docrelay/internal/app"
	"docrelay/internal/model"
	"docrelay/internal/platform/rabbitmq"
)

type JobRunner interface {
	Run(ctx context.Context, msg model.DocumentJobMessage) error
}

type outcome int

const (
	outcomeAck outcome = iota
	outcomeDrop
	outcomeRequeue
)

// DocumentJobWorker consumes queued large-document jobs and runs them one at
// a time.
type DocumentJobWorker struct {
	conn      *amqp.Connection
	runner    JobRunner
	queueName string
	logger    *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewDocumentJobWorker(conn *amqp.Connection, runner JobRunner, queueName string, logger *zap.Logger) *DocumentJobWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentJobWorker{
		conn:      conn,
		runner:    runner,
		queueName: queueName,
		logger:    logger,
	}
}

func (w *DocumentJobWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}
	if err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					w.logger.Warn("document job deliveries closed")
					return
				}
				switch w.handle(workerCtx, d.Body, d.Redelivered) {
				case outcomeAck:
					_ = d.Ack(false)
				case outcomeDrop:
					_ = d.Nack(false, false)
				case outcomeRequeue:
					_ = d.Nack(false, true)
				}
			}
		}
	}()

	w.logger.Info("document job worker started", zap.String("queue", w.queueName))
	return nil
}

// handle runs one delivery. Malformed or unknown jobs are dropped; store
// failures are requeued once.
func (w *DocumentJobWorker) handle(ctx context.Context, body []byte, redelivered bool) outcome {
	var msg model.DocumentJobMessage
	if err := json.Unmarshal(body, &msg); err != nil || msg.JobID == "" {
		w.logger.Warn("worker decode job failed", zap.ByteString("body", body), zap.Error(err))
		return outcomeDrop
	}

	err := w.runner.Run(ctx, msg)
	switch {
	case err == nil:
		return outcomeAck
	case errors.Is(err, app.ErrJobNotFound):
		w.logger.Warn("worker dropped unknown job", zap.String("job_id", msg.JobID))
		return outcomeDrop
	case redelivered:
		w.logger.Error("worker job failed again, dropping", zap.String("job_id", msg.JobID), zap.Error(err))
		return outcomeDrop
	default:
		w.logger.Error("worker job failed, requeueing", zap.String("job_id", msg.JobID), zap.Error(err))
		return outcomeRequeue
	}
}

func (w *DocumentJobWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
