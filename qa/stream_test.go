package qa

import (
	"context"
	"testing"

	"clauselens/web/types"

	"github.com/google/uuid"
)

func TestAskStreamFrameOrder(t *testing.T) {
	store := newFakeQAStore()
	docID := completedDoc(store)

	chat := func(_ context.Context, _ []types.LLMMessage, _ *float64) (string, error) {
		return `{"answer":"Thirty days notice.","used_clauses":[1],"confidence":0.8}`, nil
	}
	r := newTestResponder(t, store, chat)

	var frames []StreamFrame
	err := r.AskStream(context.Background(), AskRequest{
		DocIDs:   []uuid.UUID{docID},
		Question: "How do I terminate?",
	}, func(frame StreamFrame) error {
		frames = append(frames, frame)
		return nil
	})
	if err != nil {
		t.Fatalf("AskStream() error = %v", err)
	}

	wantTypes := []string{
		FrameStatus, FrameLanguageDetection, FrameUserMessage,
		FrameStatus, FrameAnswer, FrameComplete,
	}
	if len(frames) != len(wantTypes) {
		t.Fatalf("got %d frames, want %d", len(frames), len(wantTypes))
	}
	for i, want := range wantTypes {
		if frames[i].Type != want {
			t.Errorf("frame %d type = %q, want %q", i, frames[i].Type, want)
		}
	}
	if frames[1].Language == nil {
		t.Error("language frame has no detection result")
	}
	if frames[2].Message != "How do I terminate?" {
		t.Errorf("user message frame = %q", frames[2].Message)
	}
	if frames[4].Answer == nil || frames[4].Answer.Text != "Thirty days notice." {
		t.Errorf("answer frame = %+v", frames[4].Answer)
	}
}

func TestAskStreamEmitsErrorFrame(t *testing.T) {
	store := newFakeQAStore()
	r := newTestResponder(t, store, nil)

	var frames []StreamFrame
	err := r.AskStream(context.Background(), AskRequest{
		Question: "no documents selected",
	}, func(frame StreamFrame) error {
		frames = append(frames, frame)
		return nil
	})
	if err == nil {
		t.Fatal("AskStream() error = nil, want validation error")
	}

	last := frames[len(frames)-1]
	if last.Type != FrameError || last.Error == "" {
		t.Errorf("terminal frame = %+v, want error frame", last)
	}
}
