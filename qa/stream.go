package qa

import (
	"context"

	"clauselens/language"
	"clauselens/web/types"
)

// Stream frame types, in emission order. Every stream ends with either a
// complete or an error frame.
const (
	FrameStatus            = "status"
	FrameLanguageDetection = "language_detection"
	FrameUserMessage       = "user_message"
	FrameAnswer            = "answer"
	FrameComplete          = "complete"
	FrameError             = "error"
)

// StreamFrame is one server-sent event in an answer stream.
type StreamFrame struct {
	Type     string           `json:"type"`
	Status   string           `json:"status,omitempty"`
	Language *language.Result `json:"language,omitempty"`
	Message  string           `json:"message,omitempty"`
	Answer   *types.Answer    `json:"answer,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// EmitFunc delivers one frame to the client. Returning an error aborts the
// stream.
type EmitFunc func(frame StreamFrame) error

// AskStream answers a question while streaming progress frames. The terminal
// frame is complete on success or error on failure; the error is also
// returned so handlers can map it onto a status code when nothing has been
// written yet.
func (r *Responder) AskStream(ctx context.Context, req AskRequest, emit EmitFunc) error {
	if err := emit(StreamFrame{Type: FrameStatus, Status: "processing_question"}); err != nil {
		return err
	}

	lang := r.resolveLanguage(req.Question, req.Language, req.AutoDetectLanguage)
	if err := emit(StreamFrame{Type: FrameLanguageDetection, Language: &lang}); err != nil {
		return err
	}
	if err := emit(StreamFrame{Type: FrameUserMessage, Message: req.Question}); err != nil {
		return err
	}
	if err := emit(StreamFrame{Type: FrameStatus, Status: "retrieving_clauses"}); err != nil {
		return err
	}

	answer, err := r.Ask(ctx, req)
	if err != nil {
		emit(StreamFrame{Type: FrameError, Error: err.Error()})
		return err
	}

	if err := emit(StreamFrame{Type: FrameAnswer, Answer: answer}); err != nil {
		return err
	}
	return emit(StreamFrame{Type: FrameComplete})
}
