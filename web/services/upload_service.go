package services

import (
	"context"
	"strings"

	"clauselens/config"
	apperrors "clauselens/errors"
	"clauselens/pipeline"
	"clauselens/utils"
	"clauselens/web/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UploadStore is the persistence surface uploads need.
type UploadStore interface {
	CreateDocument(ctx context.Context, doc types.Document) error
}

// UploadAnalytics receives upload events. May be nil.
type UploadAnalytics interface {
	DocumentUploaded(docID uuid.UUID, filename string, byteSize int64, pageCount int, sessionID string)
}

// UploadService accepts contract files, creates the document record, and
// enqueues ingestion. The record is created before the job is submitted so a
// status poll issued immediately after upload always finds the document.
type UploadService struct {
	cfg          *config.Config
	store        UploadStore
	orchestrator *pipeline.Orchestrator
	analytics    UploadAnalytics
	logger       *zap.Logger
}

func NewUploadService(cfg *config.Config, store UploadStore, orchestrator *pipeline.Orchestrator, analytics UploadAnalytics, logger *zap.Logger) *UploadService {
	return &UploadService{
		cfg:          cfg,
		store:        store,
		orchestrator: orchestrator,
		analytics:    analytics,
		logger:       logger,
	}
}

// Upload validates the file, persists the initial record, and queues the
// ingestion job. The returned document is in processing state.
func (s *UploadService) Upload(ctx context.Context, filename, mime string, data []byte, sessionID *string) (*types.Document, error) {
	if len(data) == 0 {
		return nil, apperrors.WrapError(apperrors.ErrInvalidInput, "empty file")
	}
	if int64(len(data)) > s.cfg.MaxFileSizeBytes() {
		return nil, apperrors.WrapErrorf(apperrors.ErrInputTooLarge,
			"%d bytes exceeds limit of %d MB", len(data), s.cfg.MaxFileSizeMB)
	}
	if !supportedUpload(filename, mime) {
		return nil, apperrors.WrapErrorf(apperrors.ErrUnsupportedFormat,
			"file %q (%s)", filename, mime)
	}
	filename = utils.SanitizeFilename(filename)

	doc := types.Document{
		ID:        uuid.New(),
		Filename:  filename,
		ByteSize:  int64(len(data)),
		Language:  s.cfg.DefaultLanguage,
		Status:    types.StatusProcessing,
		SessionID: sessionID,
	}
	if err := s.store.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}

	if err := s.orchestrator.Submit(ctx, pipeline.IngestJob{
		DocID:    doc.ID,
		Filename: filename,
		MIME:     mime,
		Data:     data,
	}); err != nil {
		return nil, err
	}

	if s.analytics != nil {
		session := ""
		if sessionID != nil {
			session = *sessionID
		}
		s.analytics.DocumentUploaded(doc.ID, filename, doc.ByteSize, 0, session)
	}

	s.logger.Info("Document accepted for ingestion",
		zap.String("doc_id", doc.ID.String()),
		zap.String("filename", filename),
		zap.Int64("bytes", doc.ByteSize))
	return &doc, nil
}

func supportedUpload(filename, mime string) bool {
	switch mime {
	case "application/pdf",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return true
	}
	lower := strings.ToLower(filename)
	return strings.HasSuffix(lower, ".pdf") || strings.HasSuffix(lower, ".docx")
}
