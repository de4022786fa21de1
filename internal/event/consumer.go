package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/contentsearch/internal/domain"
	"github.com/utafrali/contentsearch/internal/engine"
	"github.com/utafrali/contentsearch/internal/service"
	pkgkafka "github.com/utafrali/contentsearch/pkg/kafka"
)

// Kafka topics carrying upstream document changes. The envelope's
// event_type equals the topic name.
var (
	TopicDocumentUpserted = pkgkafka.Topic("document", "upserted")
	TopicDocumentDeleted  = pkgkafka.Topic("document", "deleted")
)

// ConsumedTopics lists every topic the consumer subscribes to.
func ConsumedTopics() []string {
	return []string{TopicDocumentUpserted, TopicDocumentDeleted}
}

// DocumentIndexer is the part of the indexing service driven by events.
type DocumentIndexer interface {
	IndexIncremental(ctx context.Context, docs []domain.Document, sourceService string) (*service.BulkResult, error)
	DeleteFromIndex(ctx context.Context, documentID string, docType domain.DocumentType) error
}

// DocumentData is one document inside a document.upserted payload.
type DocumentData struct {
	DocumentID   string         `json:"document_id"`
	DocumentType string         `json:"document_type"`
	Title        string         `json:"title"`
	Content      string         `json:"content"`
	Language     string         `json:"language"`
	AuthorID     string         `json:"author_id,omitempty"`
	AuthorName   string         `json:"author_name,omitempty"`
	Status       string         `json:"status,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	PublishedAt  *time.Time     `json:"published_at,omitempty"`
}

func (d DocumentData) toDomain() domain.Document {
	return domain.Document{
		DocumentID:   d.DocumentID,
		DocumentType: domain.DocumentType(d.DocumentType),
		Title:        d.Title,
		Content:      d.Content,
		Language:     d.Language,
		AuthorID:     d.AuthorID,
		AuthorName:   d.AuthorName,
		Status:       d.Status,
		Metadata:     d.Metadata,
		PublishedAt:  d.PublishedAt,
	}
}

// DocumentUpsertedData is the document.upserted payload: either a batch
// under "documents" or a single document at the top level.
type DocumentUpsertedData struct {
	Documents []DocumentData `json:"documents"`
}

// DocumentDeletedData is the document.deleted payload.
type DocumentDeletedData struct {
	DocumentID   string `json:"document_id"`
	DocumentType string `json:"document_type"`
}

// Consumer applies upstream change events to the index.
type Consumer struct {
	indexer DocumentIndexer
	logger  *slog.Logger
}

// NewConsumer creates an event consumer.
func NewConsumer(indexer DocumentIndexer, logger *slog.Logger) *Consumer {
	return &Consumer{indexer: indexer, logger: logger}
}

// Handle processes one event. Only store connectivity loss is returned so
// the message is retried; malformed or invalid documents are logged and
// skipped.
func (c *Consumer) Handle(ctx context.Context, event *pkgkafka.Event) error {
	switch event.EventType {
	case TopicDocumentUpserted:
		return c.handleUpserted(ctx, event)
	case TopicDocumentDeleted:
		return c.handleDeleted(ctx, event)
	default:
		c.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
		)
		return nil
	}
}

func decodeDocuments(raw json.RawMessage) ([]DocumentData, error) {
	var batch DocumentUpsertedData
	if err := json.Unmarshal(raw, &batch); err != nil {
		return nil, err
	}
	if len(batch.Documents) > 0 {
		return batch.Documents, nil
	}
	var single DocumentData
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, err
	}
	if single.DocumentID == "" && single.Title == "" {
		return nil, nil
	}
	return []DocumentData{single}, nil
}

func (c *Consumer) handleUpserted(ctx context.Context, event *pkgkafka.Event) error {
	data, err := decodeDocuments(event.Data)
	if err != nil {
		c.logger.ErrorContext(ctx, "malformed document.upserted payload, skipping",
			slog.String("event_id", event.EventID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if len(data) == 0 {
		return nil
	}

	docs := make([]domain.Document, len(data))
	for i, d := range data {
		docs[i] = d.toDomain()
	}

	res, err := c.indexer.IndexIncremental(ctx, docs, event.Source)
	if err != nil {
		if errors.Is(err, engine.ErrStoreUnavailable) {
			return fmt.Errorf("index documents from upserted event: %w", err)
		}
		c.logger.ErrorContext(ctx, "incremental index failed",
			slog.String("event_id", event.EventID),
			slog.String("error", err.Error()),
		)
		return nil
	}

	attrs := []any{
		slog.String("event_id", event.EventID),
		slog.String("job_id", res.JobID.String()),
		slog.Int("indexed", res.Indexed),
		slog.Int("failed", res.Failed),
	}
	if res.Failed > 0 {
		c.logger.WarnContext(ctx, "documents rejected from upserted event", attrs...)
		return nil
	}
	c.logger.InfoContext(ctx, "indexed documents from upserted event", attrs...)
	return nil
}

func (c *Consumer) handleDeleted(ctx context.Context, event *pkgkafka.Event) error {
	var data DocumentDeletedData
	if err := event.UnmarshalData(&data); err != nil {
		c.logger.ErrorContext(ctx, "malformed document.deleted payload, skipping",
			slog.String("event_id", event.EventID),
			slog.String("error", err.Error()),
		)
		return nil
	}

	err := c.indexer.DeleteFromIndex(ctx, data.DocumentID, domain.DocumentType(data.DocumentType))
	if err != nil {
		if errors.Is(err, engine.ErrStoreUnavailable) {
			return fmt.Errorf("delete document from deleted event: %w", err)
		}
		c.logger.ErrorContext(ctx, "delete from deleted event rejected",
			slog.String("event_id", event.EventID),
			slog.String("error", err.Error()),
		)
		return nil
	}

	c.logger.InfoContext(ctx, "deleted document from deleted event",
		slog.String("document_id", data.DocumentID),
		slog.String("document_type", data.DocumentType),
	)
	return nil
}
