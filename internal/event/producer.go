package event

import (
	"context"
	"log/slog"
	"time"

	"github.com/utafrali/contentsearch/internal/domain"
	"github.com/utafrali/contentsearch/internal/service"
	pkgkafka "github.com/utafrali/contentsearch/pkg/kafka"
)

// Topics for index job outcomes.
const (
	TopicIndexJobCompleted = "search.index_job.completed"
	TopicIndexJobFailed    = "search.index_job.failed"
)

// AggregateTypeIndexJob is the aggregate type of job events.
const AggregateTypeIndexJob = "index_job"

// SourceSearchService identifies events published by this service.
const SourceSearchService = "content-search"

const publishTimeout = 5 * time.Second

// Publisher sends an event envelope to a topic. *pkgkafka.Producer
// satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// IndexJobData is the payload of index job events.
type IndexJobData struct {
	JobID              string     `json:"job_id"`
	JobType            string     `json:"job_type"`
	Status             string     `json:"status"`
	SourceService      string     `json:"source_service,omitempty"`
	DocumentsTotal     int        `json:"documents_total"`
	DocumentsProcessed int        `json:"documents_processed"`
	DocumentsFailed    int        `json:"documents_failed"`
	ErrorMessage       string     `json:"error_message,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
}

// JobPublisher announces finished index jobs on Kafka.
type JobPublisher struct {
	publisher Publisher
	logger    *slog.Logger
}

var _ service.JobObserver = (*JobPublisher)(nil)

// NewJobPublisher creates a job publisher.
func NewJobPublisher(publisher Publisher, logger *slog.Logger) *JobPublisher {
	return &JobPublisher{publisher: publisher, logger: logger}
}

// JobFinished implements service.JobObserver. Publish failures are logged;
// the job outcome stands.
func (p *JobPublisher) JobFinished(ctx context.Context, job *domain.IndexJob) {
	topic := TopicIndexJobCompleted
	if job.Status == domain.JobStatusFailed {
		topic = TopicIndexJobFailed
	}

	data := IndexJobData{
		JobID:              job.ID.String(),
		JobType:            string(job.JobType),
		Status:             string(job.Status),
		SourceService:      job.SourceService,
		DocumentsTotal:     job.DocumentsTotal,
		DocumentsProcessed: job.DocumentsProcessed,
		DocumentsFailed:    job.DocumentsFailed,
		ErrorMessage:       job.ErrorMessage,
		CompletedAt:        job.CompletedAt,
	}
	event, err := pkgkafka.NewEvent(topic, data.JobID, AggregateTypeIndexJob, SourceSearchService, data)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to build index job event", slog.String("error", err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := p.publisher.Publish(ctx, topic, event); err != nil {
		p.logger.WarnContext(ctx, "failed to publish index job event",
			slog.String("job_id", data.JobID),
			slog.String("topic", topic),
			slog.String("error", err.Error()),
		)
	}
}
