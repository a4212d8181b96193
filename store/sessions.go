package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	apperrors "clauselens/errors"
	"clauselens/web/types"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// CreateChatSession inserts a new session row.
func (s *PostgresStore) CreateChatSession(ctx context.Context, session types.ChatSession) error {
	query := `
        INSERT INTO chat_sessions (id, title, selected_documents, created_at, last_activity)
        VALUES ($1, $2, $3, $4, $4)
    `
	now := time.Now()
	_, err := s.DB.ExecContext(ctx, query, session.ID, session.Title,
		pq.Array(session.SelectedDocuments), now)
	return apperrors.WrapError(err, "create chat session")
}

// GetChatSession fetches a session by id.
func (s *PostgresStore) GetChatSession(ctx context.Context, sessionID uuid.UUID) (*types.ChatSession, error) {
	query := `
        SELECT id, title, selected_documents, context_summary, total_messages,
            archived, created_at, last_activity
        FROM chat_sessions WHERE id = $1
    `
	var session types.ChatSession
	var selected []uuid.UUID
	err := s.DB.QueryRowContext(ctx, query, sessionID).Scan(
		&session.ID, &session.Title, pq.Array(&selected), &session.ContextSummary,
		&session.TotalMessages, &session.Archived, &session.CreatedAt, &session.LastActivity)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.WrapErrorf(apperrors.ErrNotFound, "session %s", sessionID)
		}
		return nil, apperrors.WrapError(err, "get chat session")
	}
	session.SelectedDocuments = selected
	return &session, nil
}

// ListChatSessions returns non-archived sessions, most recently active first.
func (s *PostgresStore) ListChatSessions(ctx context.Context, limit int) ([]types.ChatSession, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
        SELECT id, title, selected_documents, context_summary, total_messages,
            archived, created_at, last_activity
        FROM chat_sessions
        WHERE archived = FALSE
        ORDER BY last_activity DESC
        LIMIT $1
    `
	rows, err := s.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, apperrors.WrapError(err, "list chat sessions")
	}
	defer rows.Close()

	var sessions []types.ChatSession
	for rows.Next() {
		var session types.ChatSession
		var selected []uuid.UUID
		if err := rows.Scan(&session.ID, &session.Title, pq.Array(&selected),
			&session.ContextSummary, &session.TotalMessages, &session.Archived,
			&session.CreatedAt, &session.LastActivity); err != nil {
			return nil, apperrors.WrapError(err, "scan chat session")
		}
		session.SelectedDocuments = selected
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// UpdateSessionDocuments replaces the session's selected document list.
func (s *PostgresStore) UpdateSessionDocuments(ctx context.Context, sessionID uuid.UUID, docIDs []uuid.UUID) error {
	query := `
        UPDATE chat_sessions
        SET selected_documents = $1, last_activity = NOW()
        WHERE id = $2
    `
	res, err := s.DB.ExecContext(ctx, query, pq.Array(docIDs), sessionID)
	if err != nil {
		return apperrors.WrapError(err, "update session documents")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.WrapErrorf(apperrors.ErrNotFound, "session %s", sessionID)
	}
	return nil
}

// AppendMessage adds a message to the session's append-only log and bumps the
// activity markers in the same transaction.
func (s *PostgresStore) AppendMessage(ctx context.Context, msg types.Message) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.WrapError(err, "begin append message")
	}
	defer tx.Rollback()

	sourcesJSON, err := json.Marshal(msg.Sources)
	if err != nil {
		return apperrors.WrapError(err, "marshal message sources")
	}
	metadataJSON, err := json.Marshal(msg.Metadata)
	if err != nil {
		return apperrors.WrapError(err, "marshal message metadata")
	}
	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `
        INSERT INTO messages (id, session_id, role, content, sources, metadata, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `
	if _, err := tx.ExecContext(ctx, query, msg.ID, msg.SessionID, msg.Role,
		msg.Content, sourcesJSON, metadataJSON, createdAt); err != nil {
		return apperrors.WrapError(err, "insert message")
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE chat_sessions SET total_messages = total_messages + 1, last_activity = NOW() WHERE id = $1`,
		msg.SessionID); err != nil {
		return apperrors.WrapError(err, "bump session activity")
	}

	return tx.Commit()
}

// GetSessionMessages returns the most recent messages of a session in
// chronological order, up to limit (0 = all).
func (s *PostgresStore) GetSessionMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]types.Message, error) {
	query := `
        SELECT id, session_id, role, content, sources, metadata, created_at
        FROM (
            SELECT id, session_id, role, content, sources, metadata, created_at
            FROM messages WHERE session_id = $1
            ORDER BY created_at DESC
            LIMIT CASE WHEN $2 > 0 THEN $2 ELSE NULL END
        ) recent
        ORDER BY created_at ASC
    `
	rows, err := s.DB.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, apperrors.WrapError(err, "query session messages")
	}
	defer rows.Close()

	var messages []types.Message
	for rows.Next() {
		var msg types.Message
		var sourcesJSON, metadataJSON []byte
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content,
			&sourcesJSON, &metadataJSON, &msg.CreatedAt); err != nil {
			return nil, apperrors.WrapError(err, "scan message")
		}
		if len(sourcesJSON) > 0 {
			json.Unmarshal(sourcesJSON, &msg.Sources)
		}
		if len(metadataJSON) > 0 {
			json.Unmarshal(metadataJSON, &msg.Metadata)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// UpdateSessionSummary stores the rolling conversation summary.
func (s *PostgresStore) UpdateSessionSummary(ctx context.Context, sessionID uuid.UUID, summary string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE chat_sessions SET context_summary = $1 WHERE id = $2`, summary, sessionID)
	return apperrors.WrapError(err, "update session summary")
}

// ArchiveChatSession soft-deletes a session.
func (s *PostgresStore) ArchiveChatSession(ctx context.Context, sessionID uuid.UUID) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE chat_sessions SET archived = TRUE WHERE id = $1`, sessionID)
	if err != nil {
		return apperrors.WrapError(err, "archive chat session")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.WrapErrorf(apperrors.ErrNotFound, "session %s", sessionID)
	}
	return nil
}

// DeleteChatSession hard-deletes a session and cascades to its messages.
func (s *PostgresStore) DeleteChatSession(ctx context.Context, sessionID uuid.UUID) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM chat_sessions WHERE id = $1`, sessionID)
	if err != nil {
		return apperrors.WrapError(err, "delete chat session")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.WrapErrorf(apperrors.ErrNotFound, "session %s", sessionID)
	}
	return nil
}

// DeleteInactiveSessions removes sessions whose last activity predates the
// cutoff. Used by the background retention sweeper.
func (s *PostgresStore) DeleteInactiveSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.DB.ExecContext(ctx,
		`DELETE FROM chat_sessions WHERE last_activity < $1`, cutoff)
	if err != nil {
		return 0, apperrors.WrapError(err, "delete inactive sessions")
	}
	n, _ := res.RowsAffected()
	return n, nil
}
