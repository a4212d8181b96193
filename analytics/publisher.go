package analytics

import (
	"context"
	"encoding/json"
	"time"

	"clauselens/web/types"

	"cloud.google.com/go/pubsub"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// topicSender is the narrow pubsub surface used by the publisher, extracted so
// tests can capture messages instead of talking to GCP.
type topicSender interface {
	Publish(ctx context.Context, msg *pubsub.Message) *pubsub.PublishResult
	Stop()
}

// Publisher emits analytics events to a Pub/Sub topic. Publishing is
// best-effort: failures are logged and dropped, never surfaced to callers, so
// analytics can never fail an ingestion or a question.
type Publisher struct {
	topic   topicSender
	client  *pubsub.Client
	logger  *zap.Logger
	enabled bool
}

// NewPublisher connects to Pub/Sub and configures batched publishing. A
// disabled publisher is valid and drops everything silently.
func NewPublisher(ctx context.Context, projectID, topicName string, enabled bool, logger *zap.Logger) (*Publisher, error) {
	if !enabled || projectID == "" {
		logger.Info("Analytics publishing disabled")
		return &Publisher{logger: logger}, nil
	}

	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, err
	}

	topic := client.Topic(topicName)
	topic.PublishSettings = pubsub.PublishSettings{
		CountThreshold: 10,
		DelayThreshold: time.Second,
		ByteThreshold:  1 << 20,
	}

	logger.Info("Analytics publisher connected",
		zap.String("project", projectID),
		zap.String("topic", topicName))
	return &Publisher{topic: topic, client: client, logger: logger, enabled: true}, nil
}

// Close flushes pending messages and releases the client.
func (p *Publisher) Close() {
	if p.topic != nil {
		p.topic.Stop()
	}
	if p.client != nil {
		p.client.Close()
	}
}

// publish serializes the payload into the envelope and fires it off. Delivery
// results are drained in the background.
func (p *Publisher) publish(eventType string, payload any) {
	if !p.enabled || p.topic == nil {
		return
	}

	dataJSON, err := json.Marshal(payload)
	if err != nil {
		p.logger.Warn("Failed to encode analytics payload",
			zap.String("event_type", eventType), zap.Error(err))
		return
	}
	event := newEnvelope(eventType)
	event.EventData = string(dataJSON)

	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("Failed to encode analytics event",
			zap.String("event_type", eventType), zap.Error(err))
		return
	}

	result := p.topic.Publish(context.Background(), &pubsub.Message{
		Data: body,
		Attributes: map[string]string{
			"event_type": event.EventType,
			"event_id":   event.EventID,
		},
	})

	go func() {
		if _, err := result.Get(context.Background()); err != nil {
			p.logger.Warn("Analytics publish failed",
				zap.String("event_type", eventType),
				zap.String("event_id", event.EventID),
				zap.Error(err))
		}
	}()
}

// DocumentUploaded records an accepted upload.
func (p *Publisher) DocumentUploaded(docID uuid.UUID, filename string, byteSize int64, pageCount int, sessionID string) {
	p.publish(EventDocumentUploaded, DocumentUploadedData{
		DocID:     docID.String(),
		Filename:  filename,
		ByteSize:  byteSize,
		PageCount: pageCount,
		SessionID: sessionID,
	})
}

// ClauseAnalyzed records one analyzed clause.
func (p *Publisher) ClauseAnalyzed(docID uuid.UUID, clause types.Clause) {
	p.publish(EventClauseAnalyzed, ClauseAnalyzedData{
		DocID:       docID.String(),
		ClauseID:    clause.ID.String(),
		Order:       clause.Order,
		Category:    clause.Category,
		RiskLevel:   clause.RiskLevel,
		RiskScore:   clause.RiskScore,
		NeedsReview: clause.NeedsReview,
	})
}

// RiskDetected flags a high-scoring clause.
func (p *Publisher) RiskDetected(docID uuid.UUID, clause types.Clause) {
	p.publish(EventRiskDetected, RiskDetectedData{
		DocID:       docID.String(),
		ClauseID:    clause.ID.String(),
		Category:    clause.Category,
		RiskLevel:   clause.RiskLevel,
		RiskScore:   clause.RiskScore,
		RiskFactors: clause.RiskFactors,
	})
}

// QuestionAsked records one Q&A interaction. Only the question hash leaves
// the service.
func (p *Publisher) QuestionAsked(docID uuid.UUID, sessionID, question, lang string, confidence float64, sourceCount int) {
	p.publish(EventQuestionAsked, QuestionAskedData{
		DocID:        docID.String(),
		SessionID:    sessionID,
		QuestionHash: HashQuestion(question),
		Language:     lang,
		Confidence:   confidence,
		SourceCount:  sourceCount,
	})
}
