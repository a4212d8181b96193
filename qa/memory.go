package qa

import (
	"context"
	"fmt"
	"strings"

	"clauselens/web/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionStore is the persistence surface conversation memory needs.
type SessionStore interface {
	GetChatSession(ctx context.Context, sessionID uuid.UUID) (*types.ChatSession, error)
	GetSessionMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]types.Message, error)
	AppendMessage(ctx context.Context, msg types.Message) error
	UpdateSessionSummary(ctx context.Context, sessionID uuid.UUID, summary string) error
}

// ConversationMemory assembles conversational context for a session: the
// recent message window verbatim plus a rolling summary of everything older.
type ConversationMemory struct {
	store        SessionStore
	chat         ChatFunc
	windowSize   int
	summaryAfter int
	logger       *zap.Logger
}

func NewConversationMemory(store SessionStore, chat ChatFunc, windowSize, summaryAfter int, logger *zap.Logger) *ConversationMemory {
	return &ConversationMemory{
		store:        store,
		chat:         chat,
		windowSize:   windowSize,
		summaryAfter: summaryAfter,
		logger:       logger,
	}
}

// Context returns the rolling summary (may be empty) and the recent message
// window for a session.
func (m *ConversationMemory) Context(ctx context.Context, sessionID uuid.UUID) (string, []types.Message, error) {
	session, err := m.store.GetChatSession(ctx, sessionID)
	if err != nil {
		return "", nil, err
	}
	messages, err := m.store.GetSessionMessages(ctx, sessionID, m.windowSize)
	if err != nil {
		return "", nil, err
	}
	return session.ContextSummary, messages, nil
}

// Record appends a question/answer exchange to the session log and refreshes
// the rolling summary once the conversation is long enough.
func (m *ConversationMemory) Record(ctx context.Context, sessionID uuid.UUID, question string, answer *types.Answer) error {
	userMsg := types.Message{
		ID:        uuid.New(),
		SessionID: sessionID,
		Role:      "user",
		Content:   question,
	}
	if err := m.store.AppendMessage(ctx, userMsg); err != nil {
		return err
	}

	assistantMsg := types.Message{
		ID:        uuid.New(),
		SessionID: sessionID,
		Role:      "assistant",
		Content:   answer.Text,
		Sources:   answer.Sources,
		Metadata: map[string]any{
			"confidence": answer.Confidence,
			"language":   answer.Language,
		},
	}
	if err := m.store.AppendMessage(ctx, assistantMsg); err != nil {
		return err
	}

	m.maybeSummarize(ctx, sessionID)
	return nil
}

// maybeSummarize refreshes the rolling summary when the total message count
// has crossed the threshold. Summarization failures fall back to a counting
// summary so the session keeps working.
func (m *ConversationMemory) maybeSummarize(ctx context.Context, sessionID uuid.UUID) {
	session, err := m.store.GetChatSession(ctx, sessionID)
	if err != nil {
		m.logger.Warn("Failed to load session for summarization", zap.Error(err))
		return
	}
	if session.TotalMessages < m.summaryAfter {
		return
	}

	messages, err := m.store.GetSessionMessages(ctx, sessionID, m.windowSize*2)
	if err != nil {
		m.logger.Warn("Failed to load messages for summarization", zap.Error(err))
		return
	}

	summary := m.summarize(ctx, messages, session.TotalMessages)
	if err := m.store.UpdateSessionSummary(ctx, sessionID, summary); err != nil {
		m.logger.Warn("Failed to store session summary", zap.Error(err))
	}
}

func (m *ConversationMemory) summarize(ctx context.Context, messages []types.Message, total int) string {
	var sb strings.Builder
	sb.WriteString("Summarize this conversation about legal documents in 2-3 sentences. ")
	sb.WriteString("Capture the topics discussed and any conclusions reached.\n\n")
	for _, msg := range messages {
		sb.WriteString(fmt.Sprintf("%s: %s\n", msg.Role, msg.Content))
	}

	summary, err := m.chat(ctx, []types.LLMMessage{
		{Role: "user", Content: sb.String()},
	}, nil)
	if err != nil || strings.TrimSpace(summary) == "" {
		m.logger.Debug("Summary generation failed, using fallback", zap.Error(err))
		return fallbackSummaryText(messages, total)
	}
	return strings.TrimSpace(summary)
}

func fallbackSummaryText(messages []types.Message, total int) string {
	for _, msg := range messages {
		if msg.Role == "user" {
			return fmt.Sprintf("Conversation with %d messages covering document analysis and Q&A.", total)
		}
	}
	return fmt.Sprintf("Conversation with %d messages.", total)
}
