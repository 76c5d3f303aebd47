// Package events consumes ledger line events from Kafka and applies them through the ledger
// service. An offset is committed only once its mutation has committed.
package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"

	"github.com/SscSPs/ledger_balances/internal/apperrors"
	portssvc "github.com/SscSPs/ledger_balances/internal/core/ports/services"
	"github.com/SscSPs/ledger_balances/internal/middleware"
)

var eventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ledger_events_total",
		Help: "Total number of consumed ledger line events by outcome",
	},
	[]string{"status"},
)

// MessageReader is the subset of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config configures the consumer.
type Config struct {
	Brokers     []string
	Topic       string
	GroupID     string
	MaxAttempts int           // attempts per message before it is skipped
	Backoff     time.Duration // linear backoff between attempts
}

// Consumer reads ledger line events and dispatches them to the ledger service.
type Consumer struct {
	reader      MessageReader
	ledger      portssvc.LedgerWriterSvc
	logger      *slog.Logger
	validate    *validator.Validate
	maxAttempts int
	backoff     time.Duration
}

// NewConsumer creates a consumer reading cfg.Topic as member of cfg.GroupID.
func NewConsumer(cfg Config, ledger portssvc.LedgerWriterSvc, logger *slog.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return newConsumer(reader, cfg, ledger, logger)
}

func newConsumer(reader MessageReader, cfg Config, ledger portssvc.LedgerWriterSvc, logger *slog.Logger) *Consumer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 200 * time.Millisecond
	}
	return &Consumer{
		reader:      reader,
		ledger:      ledger,
		logger:      logger.With(slog.String("component", "ledger_events")),
		validate:    newValidator(),
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.Backoff,
	}
}

// Run consumes until ctx is cancelled or the reader is closed.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("Ledger event consumer started")
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				c.logger.Info("Ledger event consumer stopped")
				return nil
			}
			c.logger.Error("Failed to fetch event", slog.String("error", err.Error()))
			if !sleep(ctx, c.backoff) {
				return nil
			}
			continue
		}

		if !c.process(ctx, m) {
			// Cancelled mid-retry; the message will be redelivered.
			return nil
		}
		if err := c.reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("Failed to commit event offset",
				slog.Int("partition", m.Partition), slog.Int64("offset", m.Offset), slog.String("error", err.Error()))
		}
	}
}

// Close closes the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// process applies one message with retries. It returns false only when ctx was cancelled before
// the message was either applied or given up on.
func (c *Consumer) process(ctx context.Context, m kafka.Message) bool {
	logger := c.logger.With(slog.Int("partition", m.Partition), slog.Int64("offset", m.Offset))

	msg, err := decodeMessage(c.validate, m.Value)
	if err != nil {
		logger.Warn("Skipping invalid ledger event", slog.String("error", err.Error()))
		eventsTotal.WithLabelValues("invalid").Inc()
		return true
	}

	msgCtx := middleware.WithLogger(ctx, logger.With(slog.String("event_type", string(msg.Type))))
	for attempt := 1; ; attempt++ {
		err = dispatch(msgCtx, c.ledger, msg)
		if err == nil {
			eventsTotal.WithLabelValues("applied").Inc()
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		if !retryable(err) || attempt >= c.maxAttempts {
			logger.Error("Skipping ledger event after failure",
				slog.String("event_type", string(msg.Type)), slog.Int("attempts", attempt), slog.String("error", err.Error()))
			eventsTotal.WithLabelValues("skipped").Inc()
			return true
		}
		logger.Warn("Ledger event failed, retrying", slog.Int("attempt", attempt), slog.String("error", err.Error()))
		if !sleep(ctx, time.Duration(attempt)*c.backoff) {
			return false
		}
	}
}

// retryable reports whether a failure may succeed on a later attempt. Client errors never do.
func retryable(err error) bool {
	return !errors.Is(err, apperrors.ErrValidation) &&
		!errors.Is(err, apperrors.ErrInvalidFilter) &&
		!errors.Is(err, apperrors.ErrNotFound) &&
		!errors.Is(err, apperrors.ErrDuplicate)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
