package service

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rmbriones/shs-admission-api/internal/models"
	"github.com/rmbriones/shs-admission-api/pkg/jobs"
)

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AuditService records the audit trail asynchronously through the job queue
// so state-changing commits never wait on log persistence. Records are best
// effort; a full buffer drops the record with a warning rather than
// back-pressuring the request.
type AuditService struct {
	queue   *jobs.Queue
	logger  *zap.Logger
	enabled bool
}

// NewAuditService wires the queue to the audit repository.
func NewAuditService(repo auditWriter, logger *zap.Logger, workers, bufferSize int, enabled bool) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	handler := func(ctx context.Context, job jobs.Job) error {
		log, ok := job.Payload.(*models.AuditLog)
		if !ok {
			return nil
		}
		return repo.CreateAuditLog(ctx, log)
	}
	queue := jobs.NewQueue("audit", handler, jobs.QueueConfig{
		Workers:    workers,
		BufferSize: bufferSize,
		Logger:     logger,
	})
	return &AuditService{queue: queue, logger: logger, enabled: enabled}
}

// Start launches the queue workers.
func (s *AuditService) Start(ctx context.Context) {
	if s == nil || !s.enabled {
		return
	}
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *AuditService) Stop() {
	if s == nil || !s.enabled {
		return
	}
	s.queue.Stop()
}

// Record enqueues one audit event. Detail is marshalled to JSON; a marshal
// failure drops the detail but keeps the event.
func (s *AuditService) Record(actor, action, resource string, resourceID *string, detail interface{}) {
	if s == nil || !s.enabled {
		return
	}
	log := &models.AuditLog{
		Actor:      actor,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
	}
	if detail != nil {
		if payload, err := json.Marshal(detail); err == nil {
			log.Detail = payload
		}
	}
	if !s.queue.TryEnqueue(jobs.Job{ID: uuid.NewString(), Type: action, Payload: log}) {
		s.logger.Warn("audit record dropped", zap.String("action", action), zap.String("resource", resource))
	}
}
