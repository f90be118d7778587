package outbox

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"gorm.io/gorm"

	"github.com/halcyon-wellness/storefront-api/pkg/config"
	"github.com/halcyon-wellness/storefront-api/pkg/db/models"
	"github.com/halcyon-wellness/storefront-api/pkg/enums"
	"github.com/halcyon-wellness/storefront-api/pkg/logger"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

// Publisher delivers an encoded event to a topic and blocks until acknowledged.
type Publisher interface {
	Publish(ctx context.Context, topic string, data []byte, attributes map[string]string) (string, error)
}

type txRunner interface {
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

// Topics maps aggregate types to Pub/Sub topic names.
type Topics map[enums.OutboxAggregateType]string

// TopicsFromConfig builds the routing table from the Pub/Sub section.
func TopicsFromConfig(cfg config.PubSubConfig) Topics {
	return Topics{
		enums.AggregateAppointment: cfg.AppointmentsTopic,
		enums.AggregateOrder:       cfg.OrdersTopic,
	}
}

type DispatcherParams struct {
	DB           txRunner
	Repository   *Repository
	Publisher    Publisher
	Topics       Topics
	Logger       *logger.Logger
	BatchSize    int
	MaxAttempts  int
	PollInterval time.Duration
}

// Dispatcher drains outbox_events into the message bus.
type Dispatcher struct {
	db           txRunner
	repo         *Repository
	publisher    Publisher
	topics       Topics
	logg         *logger.Logger
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
	now          func() time.Time
	jitter       *rand.Rand
}

func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository is required")
	}
	if params.Publisher == nil {
		return nil, errors.New("publisher is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	d := &Dispatcher{
		db:           params.DB,
		repo:         params.Repository,
		publisher:    params.Publisher,
		topics:       params.Topics,
		logg:         params.Logger,
		batchSize:    params.BatchSize,
		maxAttempts:  params.MaxAttempts,
		pollInterval: params.PollInterval,
		now:          time.Now,
		jitter:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if d.batchSize <= 0 {
		d.batchSize = defaultBatchSize
	}
	if d.maxAttempts <= 0 {
		d.maxAttempts = defaultMaxAttempts
	}
	if d.pollInterval <= 0 {
		d.pollInterval = defaultPollInterval
	}
	return d, nil
}

// Run polls until ctx is cancelled, backing off exponentially on batch errors.
func (d *Dispatcher) Run(ctx context.Context) error {
	backoff := d.pollInterval
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		processed, err := d.ProcessBatch(ctx)
		if err != nil {
			d.logg.Error(ctx, "outbox dispatcher batch error", err)
			backoff = nextBackoff(backoff, d.pollInterval)
			if err := sleepCtx(ctx, d.withJitter(backoff)); err != nil {
				return err
			}
			continue
		}
		backoff = d.pollInterval

		if processed > 0 {
			continue
		}
		if err := sleepCtx(ctx, d.withJitter(d.pollInterval)); err != nil {
			return err
		}
	}
}

// ProcessBatch publishes one batch and reports how many rows it handled.
func (d *Dispatcher) ProcessBatch(ctx context.Context) (int, error) {
	handled := 0
	err := d.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := d.repo.FetchForPublish(tx, d.batchSize, d.maxAttempts)
		if err != nil {
			return fmt.Errorf("fetch outbox batch: %w", err)
		}
		for _, row := range rows {
			handled++
			fields := d.fields(row)
			logCtx := d.logg.WithFields(ctx, fields)

			if err := d.publish(ctx, row); err != nil {
				attempt := row.AttemptCount + 1
				warnCtx := d.logg.WithFields(logCtx, map[string]any{"attempt_count": attempt, "error": err.Error()})
				if attempt >= d.maxAttempts {
					d.logg.Warn(warnCtx, "outbox event exhausted publish attempts")
				} else {
					d.logg.Warn(warnCtx, "outbox publish failed")
				}
				if markErr := d.repo.MarkFailed(tx, row.ID, err); markErr != nil {
					return fmt.Errorf("mark failure %s: %w", row.ID, markErr)
				}
				continue
			}

			if err := d.repo.MarkPublished(tx, row.ID, d.now().UTC()); err != nil {
				return fmt.Errorf("mark published %s: %w", row.ID, err)
			}
			d.logg.Info(logCtx, "outbox event published")
		}
		return nil
	})
	return handled, err
}

func (d *Dispatcher) publish(ctx context.Context, row models.OutboxEvent) error {
	topic := d.topics[row.AggregateType]
	if topic == "" {
		return fmt.Errorf("no topic configured for aggregate %q", row.AggregateType)
	}

	env, err := DecodeEnvelope(row.Payload)
	if err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	_, err = d.publisher.Publish(publishCtx, topic, row.Payload, map[string]string{
		"event_id":       env.EventID,
		"event_type":     string(row.EventType),
		"aggregate_type": string(row.AggregateType),
		"aggregate_id":   row.AggregateID.String(),
		"occurred_at":    env.OccurredAt.Format(time.RFC3339Nano),
	})
	return err
}

func (d *Dispatcher) fields(row models.OutboxEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":      row.ID.String(),
		"event_type":     row.EventType,
		"aggregate_type": row.AggregateType,
		"aggregate_id":   row.AggregateID.String(),
		"attempt_count":  row.AttemptCount,
	}
	if topic := d.topics[row.AggregateType]; topic != "" {
		fields["topic"] = topic
	}
	return fields
}

func (d *Dispatcher) withJitter(wait time.Duration) time.Duration {
	if wait <= 0 {
		return 0
	}
	return wait + time.Duration(d.jitter.Int63n(int64(jitterWindow)))
}

func nextBackoff(current, base time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
