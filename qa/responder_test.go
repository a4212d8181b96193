package qa

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"clauselens/config"
	apperrors "clauselens/errors"
	"clauselens/language"
	"clauselens/web/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type fakeQAStore struct {
	docs       map[uuid.UUID]*types.Document
	clauses    map[uuid.UUID][]types.Clause
	records    []types.QARecord
	messages   []types.Message
	session    *types.ChatSession
	backfilled map[uuid.UUID]map[uuid.UUID][]float32
}

func newFakeQAStore() *fakeQAStore {
	return &fakeQAStore{
		docs:       make(map[uuid.UUID]*types.Document),
		clauses:    make(map[uuid.UUID][]types.Clause),
		backfilled: make(map[uuid.UUID]map[uuid.UUID][]float32),
	}
}

func (s *fakeQAStore) GetDocument(_ context.Context, docID uuid.UUID) (*types.Document, error) {
	doc, ok := s.docs[docID]
	if !ok {
		return nil, apperrors.WrapError(apperrors.ErrNotFound, "document")
	}
	return doc, nil
}

func (s *fakeQAStore) GetClausesByDocument(_ context.Context, docID uuid.UUID) ([]types.Clause, error) {
	return s.clauses[docID], nil
}

func (s *fakeQAStore) UpdateClauseEmbeddings(_ context.Context, docID uuid.UUID, embeddings map[uuid.UUID][]float32) error {
	s.backfilled[docID] = embeddings
	return nil
}

func (s *fakeQAStore) CreateQARecord(_ context.Context, record types.QARecord) error {
	s.records = append(s.records, record)
	return nil
}

func (s *fakeQAStore) GetChatSession(_ context.Context, sessionID uuid.UUID) (*types.ChatSession, error) {
	if s.session == nil {
		return nil, apperrors.WrapError(apperrors.ErrNotFound, "session")
	}
	return s.session, nil
}

func (s *fakeQAStore) GetSessionMessages(_ context.Context, _ uuid.UUID, limit int) ([]types.Message, error) {
	if limit > 0 && len(s.messages) > limit {
		return s.messages[len(s.messages)-limit:], nil
	}
	return s.messages, nil
}

func (s *fakeQAStore) AppendMessage(_ context.Context, msg types.Message) error {
	s.messages = append(s.messages, msg)
	return nil
}

func (s *fakeQAStore) UpdateSessionSummary(_ context.Context, _ uuid.UUID, summary string) error {
	if s.session != nil {
		s.session.ContextSummary = summary
	}
	return nil
}

func responderTestConfig() *config.Config {
	return &config.Config{
		DefaultLanguage:       "en",
		TopKResults:           5,
		MinSimilarity:         0.2,
		LLMTemperature:        0.2,
		ContextWindowMessages: 10,
		SummaryThreshold:      20,
	}
}

func newTestResponder(t *testing.T, store *fakeQAStore, chat ChatFunc) *Responder {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	cfg := responderTestConfig()

	cache, err := NewClauseCache(16, time.Minute, logger)
	if err != nil {
		t.Fatalf("NewClauseCache() error = %v", err)
	}
	embed := func(_ context.Context, _ string) ([]float32, error) {
		return []float32{1, 0}, nil
	}
	memory := NewConversationMemory(store, chat, cfg.ContextWindowMessages, cfg.SummaryThreshold, logger)
	return NewResponder(cfg, store, cache, memory, chat, embed, nil, logger)
}

func completedDoc(store *fakeQAStore) uuid.UUID {
	docID := uuid.New()
	store.docs[docID] = &types.Document{ID: docID, Status: types.StatusCompleted}
	store.clauses[docID] = []types.Clause{
		{
			ID: uuid.New(), DocID: docID, Order: 1,
			OriginalText: "Either party may terminate this agreement with thirty days notice.",
			Category:     types.CategoryTermination,
			Embedding:    []float32{1, 0},
		},
		{
			ID: uuid.New(), DocID: docID, Order: 2,
			OriginalText: "Payment is due within thirty days of invoice.",
			Category:     types.CategoryPayment,
			Embedding:    []float32{0, 1},
		},
	}
	return docID
}

func TestAskReturnsGroundedAnswer(t *testing.T) {
	store := newFakeQAStore()
	docID := completedDoc(store)

	chat := func(_ context.Context, _ []types.LLMMessage, _ *float64) (string, error) {
		return `{"answer":"You can terminate with thirty days notice.","used_clauses":[1],"confidence":0.9}`, nil
	}
	r := newTestResponder(t, store, chat)

	answer, err := r.Ask(context.Background(), AskRequest{
		DocIDs:   []uuid.UUID{docID},
		Question: "How do I terminate the contract?",
	})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	if answer.Text != "You can terminate with thirty days notice." {
		t.Errorf("answer text = %q", answer.Text)
	}
	if answer.Confidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9", answer.Confidence)
	}
	if len(answer.Sources) != 1 {
		t.Fatalf("sources = %d, want 1", len(answer.Sources))
	}
	if answer.Sources[0].Order != 1 || answer.Sources[0].Category != types.CategoryTermination {
		t.Errorf("citation = %+v", answer.Sources[0])
	}
	if answer.Language != "en" {
		t.Errorf("language = %q, want en", answer.Language)
	}

	r.Flush()
	if len(store.records) != 1 {
		t.Errorf("persisted %d QA records, want 1", len(store.records))
	}
}

func TestAskHonorsMemoryToggle(t *testing.T) {
	tests := []struct {
		name        string
		useMemory   bool
		wantContext bool
	}{
		{"memory_on", true, true},
		{"memory_off", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeQAStore()
			docID := completedDoc(store)
			sid := uuid.New()
			store.session = &types.ChatSession{
				ID:             sid,
				ContextSummary: "Earlier discussion of termination notice.",
				TotalMessages:  2,
			}
			store.messages = []types.Message{
				{ID: uuid.New(), SessionID: sid, Role: "user", Content: "What is the notice period?"},
				{ID: uuid.New(), SessionID: sid, Role: "assistant", Content: "Thirty days."},
			}

			chat := func(_ context.Context, _ []types.LLMMessage, _ *float64) (string, error) {
				return `{"answer":"Thirty days notice.","used_clauses":[1],"confidence":0.8}`, nil
			}
			r := newTestResponder(t, store, chat)

			answer, err := r.Ask(context.Background(), AskRequest{
				DocIDs:    []uuid.UUID{docID},
				Question:  "How do I terminate?",
				SessionID: &sid,
				UseMemory: tt.useMemory,
			})
			if err != nil {
				t.Fatalf("Ask() error = %v", err)
			}
			r.Flush()

			if answer.ConversationContextUsed != tt.wantContext {
				t.Errorf("conversation_context_used = %v, want %v",
					answer.ConversationContextUsed, tt.wantContext)
			}
			// The exchange lands in the session log regardless of the toggle.
			if len(store.messages) != 4 {
				t.Errorf("session log has %d messages, want 4", len(store.messages))
			}
		})
	}
}

func TestAskValidation(t *testing.T) {
	store := newFakeQAStore()
	docID := completedDoc(store)
	r := newTestResponder(t, store, nil)

	tests := []struct {
		name string
		req  AskRequest
	}{
		{"empty_question", AskRequest{DocIDs: []uuid.UUID{docID}, Question: "   "}},
		{"too_long", AskRequest{DocIDs: []uuid.UUID{docID}, Question: strings.Repeat("a", 2001)}},
		{"no_documents", AskRequest{Question: "valid question"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Ask(context.Background(), tt.req)
			if !errors.Is(err, apperrors.ErrInvalidInput) {
				t.Errorf("Ask() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestAskRejectsProcessingDocument(t *testing.T) {
	store := newFakeQAStore()
	docID := uuid.New()
	store.docs[docID] = &types.Document{ID: docID, Status: types.StatusProcessing}
	r := newTestResponder(t, store, nil)

	_, err := r.Ask(context.Background(), AskRequest{
		DocIDs:   []uuid.UUID{docID},
		Question: "Is this document ready?",
	})
	if !errors.Is(err, apperrors.ErrDocumentNotReady) {
		t.Errorf("Ask() error = %v, want ErrDocumentNotReady", err)
	}
}

func TestAskNoRelevantClauses(t *testing.T) {
	store := newFakeQAStore()
	docID := uuid.New()
	store.docs[docID] = &types.Document{ID: docID, Status: types.StatusCompleted}
	// All embeddings orthogonal to the question vector.
	store.clauses[docID] = []types.Clause{
		{ID: uuid.New(), DocID: docID, Order: 1, OriginalText: "text", Embedding: []float32{0, 1}},
	}
	r := newTestResponder(t, store, nil)

	answer, err := r.Ask(context.Background(), AskRequest{
		DocIDs:   []uuid.UUID{docID},
		Question: "What about something unrelated?",
	})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if answer.Text != noRelevantClausesAnswer {
		t.Errorf("answer = %q, want canned no-results answer", answer.Text)
	}
	if answer.Confidence != 0 {
		t.Errorf("confidence = %v, want 0", answer.Confidence)
	}
}

func TestAskRawTextFallback(t *testing.T) {
	store := newFakeQAStore()
	docID := completedDoc(store)

	chat := func(_ context.Context, _ []types.LLMMessage, _ *float64) (string, error) {
		return "The contract allows termination on notice.", nil
	}
	r := newTestResponder(t, store, chat)

	answer, err := r.Ask(context.Background(), AskRequest{
		DocIDs:   []uuid.UUID{docID},
		Question: "How do I terminate?",
	})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if answer.Text != "The contract allows termination on notice." {
		t.Errorf("answer = %q", answer.Text)
	}
	if answer.Confidence != 0.5 {
		t.Errorf("fallback confidence = %v, want 0.5", answer.Confidence)
	}
	if len(answer.Sources) == 0 {
		t.Error("fallback answer cites nothing, want all retrieved clauses")
	}
}

func TestAskBackfillsMissingEmbeddings(t *testing.T) {
	store := newFakeQAStore()
	docID := uuid.New()
	store.docs[docID] = &types.Document{ID: docID, Status: types.StatusCompleted}
	store.clauses[docID] = []types.Clause{
		{ID: uuid.New(), DocID: docID, Order: 1, OriginalText: "Termination clause text."},
	}

	chat := func(_ context.Context, _ []types.LLMMessage, _ *float64) (string, error) {
		return `{"answer":"Answer.","used_clauses":[1],"confidence":0.8}`, nil
	}
	r := newTestResponder(t, store, chat)

	if _, err := r.Ask(context.Background(), AskRequest{
		DocIDs:   []uuid.UUID{docID},
		Question: "What about termination?",
	}); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	if len(store.backfilled[docID]) != 1 {
		t.Errorf("backfilled %d embeddings, want 1", len(store.backfilled[docID]))
	}
}

func TestAskNotReadyWhenBackfillFails(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	store := newFakeQAStore()
	docID := uuid.New()
	store.docs[docID] = &types.Document{ID: docID, Status: types.StatusCompleted}
	store.clauses[docID] = []types.Clause{
		{ID: uuid.New(), DocID: docID, Order: 1, OriginalText: "text"},
	}

	cfg := responderTestConfig()
	cache, _ := NewClauseCache(16, time.Minute, logger)
	embed := func(_ context.Context, _ string) ([]float32, error) {
		return nil, errors.New("embedding host down")
	}
	memory := NewConversationMemory(store, nil, cfg.ContextWindowMessages, cfg.SummaryThreshold, logger)
	r := NewResponder(cfg, store, cache, memory, nil, embed, nil, logger)

	_, err := r.Ask(context.Background(), AskRequest{
		DocIDs:   []uuid.UUID{docID},
		Question: "Anything?",
	})
	if !errors.Is(err, apperrors.ErrDocumentNotReady) {
		t.Errorf("Ask() error = %v, want ErrDocumentNotReady", err)
	}
}

func TestParseAnswerPayload(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{
			name: "plain_object",
			raw:  `{"answer":"Yes.","used_clauses":[1,2],"confidence":0.7}`,
			want: "Yes.",
		},
		{
			name: "code_fenced",
			raw:  "```json\n{\"answer\":\"Yes.\",\"used_clauses\":[],\"confidence\":0.4}\n```",
			want: "Yes.",
		},
		{
			name: "surrounding_prose",
			raw:  "Sure, here you go: {\"answer\":\"Yes.\",\"confidence\":0.6} hope that helps",
			want: "Yes.",
		},
		{
			name:    "no_object",
			raw:     "I refuse to answer in JSON.",
			wantErr: true,
		},
		{
			name:    "empty_answer_field",
			raw:     `{"answer":"  ","confidence":0.9}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := parseAnswerPayload(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseAnswerPayload() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && payload.Answer != tt.want {
				t.Errorf("answer = %q, want %q", payload.Answer, tt.want)
			}
		})
	}
}

func TestResolveLanguage(t *testing.T) {
	store := newFakeQAStore()
	r := newTestResponder(t, store, nil)

	got := r.resolveLanguage("any question", "fr", true)
	if got.Language != "fr" || got.Method != language.MethodUserOverride {
		t.Errorf("override result = %+v", got)
	}

	got = r.resolveLanguage("short?", "", true)
	if got.Language != "en" {
		t.Errorf("default result = %+v, want en", got)
	}

	// Detection disabled: the configured default wins even for foreign text.
	got = r.resolveLanguage("¿Dónde está la cláusula de pago en este contrato?", "", false)
	if got.Language != "en" || got.Method != language.MethodDefault {
		t.Errorf("detection-off result = %+v, want en via default", got)
	}
}

func TestSnippetTruncation(t *testing.T) {
	short := "short clause"
	if got := snippet(short); got != short {
		t.Errorf("snippet(short) = %q", got)
	}

	long := strings.Repeat("a", 400)
	got := snippet(long)
	if len(got) != snippetLength || !strings.HasSuffix(got, "...") {
		t.Errorf("snippet(long) length = %d, want %d with ellipsis", len(got), snippetLength)
	}
}
