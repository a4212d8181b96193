package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

// MaxBatchWrites is the per-transaction cap on batched clause writes. The
// store rejects larger batches with ErrBatchTooLarge; callers chunk to fit.
const MaxBatchWrites = 50

type PostgresStore struct {
	DB     *sql.DB
	logger *zap.Logger
}

func NewPostgresStore(connStr string, logger *zap.Logger) (*PostgresStore, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	logger.Info("Connected to document store")
	return &PostgresStore{DB: db, logger: logger}, nil
}

// EnsureSchema creates the required tables if they do not already exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context, embeddingDim int) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS documents (
            id UUID PRIMARY KEY,
            filename TEXT NOT NULL,
            byte_size BIGINT NOT NULL DEFAULT 0,
            page_count INT NOT NULL DEFAULT 0,
            language TEXT NOT NULL DEFAULT 'en',
            masked BOOLEAN NOT NULL DEFAULT FALSE,
            status TEXT NOT NULL DEFAULT 'processing',
            failed_at_stage TEXT DEFAULT '',
            stages_completed TEXT[] DEFAULT '{}'::TEXT[],
            clause_count INT NOT NULL DEFAULT 0,
            pii_summary JSONB DEFAULT '{}'::jsonb,
            baseline_readability JSONB DEFAULT '{}'::jsonb,
            risk_profile JSONB,
            processing_statistics JSONB DEFAULT '{}'::jsonb,
            session_id TEXT,
            created_at TIMESTAMPTZ DEFAULT NOW(),
            updated_at TIMESTAMPTZ DEFAULT NOW(),
            processed_at TIMESTAMPTZ
        )`,
		`CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS clauses (
            id UUID PRIMARY KEY,
            doc_id UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
            ord INT NOT NULL,
            original_text TEXT NOT NULL,
            summary TEXT NOT NULL DEFAULT '',
            category TEXT NOT NULL DEFAULT 'Other',
            risk_level TEXT NOT NULL DEFAULT 'low',
            risk_score DOUBLE PRECISION NOT NULL DEFAULT 0,
            needs_review BOOLEAN NOT NULL DEFAULT FALSE,
            readability JSONB DEFAULT '{}'::jsonb,
            negotiation_tip TEXT,
            confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
            embedding vector(%d),
            detected_keywords TEXT[] DEFAULT '{}'::TEXT[],
            risk_factors TEXT[] DEFAULT '{}'::TEXT[],
            processing_method TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ DEFAULT NOW(),
            UNIQUE (doc_id, ord)
        )`, embeddingDim),
		`CREATE INDEX IF NOT EXISTS idx_clauses_doc_ord ON clauses(doc_id, ord)`,
		`CREATE TABLE IF NOT EXISTS chat_sessions (
            id UUID PRIMARY KEY,
            title TEXT NOT NULL DEFAULT '',
            selected_documents UUID[] DEFAULT '{}'::UUID[],
            context_summary TEXT NOT NULL DEFAULT '',
            total_messages INT NOT NULL DEFAULT 0,
            archived BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ DEFAULT NOW(),
            last_activity TIMESTAMPTZ DEFAULT NOW()
        )`,
		`CREATE INDEX IF NOT EXISTS idx_chat_sessions_last_activity ON chat_sessions(last_activity DESC)`,
		`CREATE TABLE IF NOT EXISTS messages (
            id UUID PRIMARY KEY,
            session_id UUID NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
            role TEXT NOT NULL,
            content TEXT NOT NULL,
            sources JSONB DEFAULT '[]'::jsonb,
            metadata JSONB DEFAULT '{}'::jsonb,
            created_at TIMESTAMPTZ DEFAULT NOW()
        )`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session_created_at ON messages(session_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS qa_history (
            id UUID PRIMARY KEY,
            doc_id UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
            question TEXT NOT NULL,
            answer TEXT NOT NULL,
            sources JSONB DEFAULT '[]'::jsonb,
            confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
            session_id TEXT,
            created_at TIMESTAMPTZ DEFAULT NOW()
        )`,
		`CREATE INDEX IF NOT EXISTS idx_qa_history_doc ON qa_history(doc_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS negotiations (
            id UUID PRIMARY KEY,
            doc_id UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
            clause_id UUID NOT NULL REFERENCES clauses(id) ON DELETE CASCADE,
            tip TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'open',
            created_at TIMESTAMPTZ DEFAULT NOW()
        )`,
	}

	for _, stmt := range stmts {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// Ping verifies store connectivity for health checks.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.DB.Close()
}
