package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/waterfire-source/cardpos-backend/pkg/config"
	"github.com/waterfire-source/cardpos-backend/pkg/db/models"
	apperrors "github.com/waterfire-source/cardpos-backend/pkg/errors"
	"github.com/waterfire-source/cardpos-backend/pkg/logger"
	"github.com/waterfire-source/cardpos-backend/pkg/metrics"
	"github.com/waterfire-source/cardpos-backend/pkg/outbox"
)

const (
	defaultBatchSize      = 50
	defaultPollMs         = 500
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

type dbClient interface {
	Ping(context.Context) error
}

type pubSubClient interface {
	Ping(context.Context) error
	ChannelStockPublisher() *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublished(limit, maxAttempts int) ([]models.OutboxChannelStockRecord, error)
	MarkPublished(id uuid.UUID) error
	MarkFailed(id uuid.UUID, cause error) error
	MarkTerminal(id uuid.UUID, maxAttempts int, cause error) error
}

type publisherFactory func() publisher

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type ServiceParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               dbClient
	PubSub           pubSubClient
	Repository       outboxRepository
	Metrics          *metrics.PublisherMetrics
	PublisherFactory publisherFactory
}

type Service struct {
	cfg              *config.Config
	logg             *logger.Logger
	db               dbClient
	repo             outboxRepository
	pubsub           pubSubClient
	met              *metrics.PublisherMetrics
	publisherFactory publisherFactory
	batchSize        int
	maxAttempts      int
	pollInterval     time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.PubSub == nil {
		return nil, errors.New("pubsub client is required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository is required")
	}

	factory := params.PublisherFactory
	if factory == nil {
		factory = func() publisher {
			return newGCPPublisher(params.PubSub.ChannelStockPublisher())
		}
	}

	batch := params.Config.Outbox.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	pollMs := params.Config.Outbox.PollIntervalMS
	if pollMs <= 0 {
		pollMs = defaultPollMs
	}
	maxAttempts := params.Config.Outbox.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	return &Service{
		cfg:              params.Config,
		logg:             params.Logger,
		db:               params.DB,
		repo:             params.Repository,
		pubsub:           params.PubSub,
		met:              params.Metrics,
		publisherFactory: factory,
		batchSize:        batch,
		maxAttempts:      maxAttempts,
		pollInterval:     time.Duration(pollMs) * time.Millisecond,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	if err := pingDependency(ctx, s.logg, "database", s.db.Ping); err != nil {
		return err
	}
	if err := pingDependency(ctx, s.logg, "pubsub", s.pubsub.Ping); err != nil {
		return err
	}
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	interval := s.pollInterval
	if interval <= 0 {
		interval = time.Duration(defaultPollMs) * time.Millisecond
	}
	backoff := interval

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "outbox publisher context canceled")
			return ctx.Err()
		default:
		}

		start := time.Now()
		processed, err := s.processBatch(ctx)
		s.met.ObservePoll(time.Since(start))
		if err != nil {
			dump := apperrors.Dump(err)
			errCtx := s.logg.WithField(ctx, "error_chain", dump.Chain)
			if dump.PGCode != "" {
				errCtx = s.logg.WithField(errCtx, "pg_code", dump.PGCode)
			}
			s.logg.Error(errCtx, "outbox publisher batch error", err)
			backoff = nextBackoff(backoff, interval, maxBackoff)
			if err := s.sleep(ctx, withJitter(backoff)); err != nil {
				return err
			}
			continue
		}

		backoff = interval

		if processed {
			continue
		}

		if err := s.sleep(ctx, withJitter(interval)); err != nil {
			return err
		}
	}
}

// processBatch drains one page of unpublished records. A publish failure
// for one record never blocks the rest of the batch; only bookkeeping
// failures abort the cycle.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	records, err := s.repo.FetchUnpublished(s.batchSize, s.maxAttempts)
	if err != nil {
		return false, fmt.Errorf("fetch unpublished: %w", err)
	}
	if len(records) == 0 {
		return false, nil
	}

	for i := range records {
		rec := &records[i]
		fields := s.recordFields(rec)

		if err := s.publishRecord(ctx, rec); err != nil {
			nextAttempt := rec.AttemptCount + 1
			fields["attempt_count"] = nextAttempt

			if nextAttempt >= s.maxAttempts {
				fields["terminal_reason"] = "max_attempts"
				ctxWithFields := s.logg.WithFields(ctx, fields)
				ctxWithFields = s.logg.WithField(ctxWithFields, "error", err.Error())
				s.logg.Warn(ctxWithFields, "channel stock record will not be retried")
				terminalErr := fmt.Errorf("max publish attempts reached: %w", err)
				if markErr := s.repo.MarkTerminal(rec.ID, s.maxAttempts, terminalErr); markErr != nil {
					return true, fmt.Errorf("mark terminal %s: %w", rec.ID, markErr)
				}
				s.met.IncTerminal()
				continue
			}

			ctxWithFields := s.logg.WithFields(ctx, fields)
			ctxWithFields = s.logg.WithField(ctxWithFields, "error", err.Error())
			s.logg.Warn(ctxWithFields, "channel stock publish failed")
			if markErr := s.repo.MarkFailed(rec.ID, err); markErr != nil {
				return true, fmt.Errorf("mark failure %s: %w", rec.ID, markErr)
			}
			s.met.IncFailed()
			continue
		}

		if markErr := s.repo.MarkPublished(rec.ID); markErr != nil {
			return true, fmt.Errorf("mark published %s: %w", rec.ID, markErr)
		}
		s.met.IncPublished()
		s.logg.Info(s.logg.WithFields(ctx, fields), "channel stock record published")
	}
	return true, nil
}

func (s *Service) publishRecord(ctx context.Context, rec *models.OutboxChannelStockRecord) error {
	payload, err := outbox.Encode(rec)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", rec.ID, err)
	}

	pub := s.publisherFactory()
	if pub == nil {
		return errors.New("channel stock publisher not configured")
	}

	msg := &gcppubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"record_id":     rec.ID.String(),
			"stock_unit_id": rec.StockUnitID.String(),
			"store_id":      rec.StoreID.String(),
			"reason":        string(rec.Reason),
			"created_at":    rec.CreatedAt.Format(time.RFC3339Nano),
		},
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	result := pub.Publish(publishCtx, msg)
	if result == nil {
		return errors.New("publisher returned nil result")
	}
	if _, err := result.Get(publishCtx); err != nil {
		return err
	}
	return nil
}

func (s *Service) recordFields(rec *models.OutboxChannelStockRecord) map[string]any {
	fields := map[string]any{
		"record_id":     rec.ID.String(),
		"stock_unit_id": rec.StockUnitID.String(),
		"store_id":      rec.StoreID.String(),
		"reason":        rec.Reason,
		"delta":         rec.Delta,
		"batch_size":    s.batchSize,
		"attempt_count": rec.AttemptCount,
	}
	if rec.LastError != nil {
		fields["last_error"] = *rec.LastError
	}
	return fields
}

func (s *Service) sleep(ctx context.Context, d time.Duration) error {
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

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	jitter := time.Duration(jitterSource.Int63n(int64(jitterWindow)))
	return d + jitter
}

func newGCPPublisher(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	return &gcpPublisher{Publisher: p}
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return p.Publisher.Publish(ctx, msg)
}
