package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/galleryprints/catalog-api/internal/repositories"
)

// DefaultRetagBatchSize bounds how many works one retag job may carry so the
// tagging collaborator is never hit with unbounded fan-out.
const DefaultRetagBatchSize = 5

// RetagPublisher publishes retag job messages to the background queue.
type RetagPublisher interface {
	PublishRetagJob(ctx context.Context, message RetagJobMessage) (string, error)
}

// RetagJobMessage is the payload delivered to background workers via Pub/Sub.
type RetagJobMessage struct {
	JobID          string    `json:"jobId"`
	WorkIDs        []string  `json:"workIds"`
	Batch          int       `json:"batch"`
	Model          string    `json:"model"`
	QueuedAt       time.Time `json:"queuedAt"`
	IdempotencyKey string    `json:"idempotencyKey,omitempty"`
}

// RetagService queues AI retag jobs for existing works in bounded batches.
type RetagService interface {
	// Dispatch queues the given work ids, or every active work when the slice
	// is empty, and returns the number of batches published.
	Dispatch(ctx context.Context, workIDs []string, idempotencyKey string) (int, error)
}

// RetagServiceDeps enumerates collaborators required to construct the service.
// Publisher may be nil, in which case dispatch degrades to a logged no-op.
type RetagServiceDeps struct {
	Works     repositories.WorkRepository
	Publisher RetagPublisher
	BatchSize int
	Model     string
	Clock     func() time.Time
	IDGen     func() string
	Logger    *zap.Logger
}

type retagService struct {
	works     repositories.WorkRepository
	publisher RetagPublisher
	batchSize int
	model     string
	clock     func() time.Time
	newID     func() string
	logger    *zap.Logger
}

// NewRetagService wires dependencies into a RetagService implementation.
func NewRetagService(deps RetagServiceDeps) (RetagService, error) {
	if deps.Works == nil {
		return nil, errors.New("retag service: work repository is required")
	}
	batchSize := deps.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultRetagBatchSize
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGen
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &retagService{
		works:     deps.Works,
		publisher: deps.Publisher,
		batchSize: batchSize,
		model:     deps.Model,
		clock:     func() time.Time { return clock().UTC() },
		newID:     idGen,
		logger:    logger,
	}, nil
}

func (s *retagService) Dispatch(ctx context.Context, workIDs []string, idempotencyKey string) (int, error) {
	if s.publisher == nil {
		s.logger.Info("retag dispatch skipped: no publisher configured",
			zap.Int("requested", len(workIDs)))
		return 0, nil
	}

	if len(workIDs) == 0 {
		all, err := s.works.ListActiveIDs(ctx)
		if err != nil {
			return 0, fmt.Errorf("retag: list active works: %w", err)
		}
		workIDs = all
	}
	if len(workIDs) == 0 {
		return 0, nil
	}

	jobID := s.newID()
	queuedAt := s.clock()
	batches := 0
	for start := 0; start < len(workIDs); start += s.batchSize {
		end := start + s.batchSize
		if end > len(workIDs) {
			end = len(workIDs)
		}
		batches++
		message := RetagJobMessage{
			JobID:          jobID,
			WorkIDs:        workIDs[start:end],
			Batch:          batches,
			Model:          s.model,
			QueuedAt:       queuedAt,
			IdempotencyKey: idempotencyKey,
		}
		if _, err := s.publisher.PublishRetagJob(ctx, message); err != nil {
			return batches - 1, fmt.Errorf("retag: publish batch %d: %w", batches, err)
		}
	}

	s.logger.Info("retag batches queued",
		zap.String("jobId", jobID),
		zap.Int("works", len(workIDs)),
		zap.Int("batches", batches))
	return batches, nil
}
