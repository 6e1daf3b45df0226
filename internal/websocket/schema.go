package websocket

import "encoding/json"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer    Action = "answer"
	ActionNavigate  Action = "navigate"
	ActionIntegrity Action = "integrity"
	ActionSubmit    Action = "submit"
	ActionPing      Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// AnswerRequest saves the candidate's current answer for one question.
// The answer value carries its own kind tag (text, choice, multi_choice).
type AnswerRequest struct {
	Action     Action          `json:"action"`
	QuestionID string          `json:"question_id"`
	Answer     json.RawMessage `json:"answer"`
}

// NavigateRequest moves the session cursor. Direction is "next", "previous",
// or "jump" (with explicit section/question indices).
type NavigateRequest struct {
	Action    Action `json:"action"`
	Direction string `json:"direction"`
	Section   int    `json:"section"`
	Question  int    `json:"question"`
}

// IntegrityRequest reports one proctoring signal from the exam page.
type IntegrityRequest struct {
	Action    Action `json:"action"`
	EventType string `json:"event_type"`
	Timestamp int64  `json:"timestamp"`
}

// Submit carries no payload beyond the envelope action.

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError     Event = "error"
	EventSaved     Event = "saved"
	EventWarning   Event = "warning"
	EventSubmitted Event = "submitted"
	EventExpired   Event = "expired"
	EventPong      Event = "pong"
)

// SavedResponse acknowledges an answer or navigation write with the updated
// completion figure.
type SavedResponse struct {
	Event             Event   `json:"event"`
	Status            string  `json:"status"`
	CompletionPercent float64 `json:"completion_percent"`
}

// WarningResponse notifies the candidate that a tab switch was counted.
type WarningResponse struct {
	Event          Event  `json:"event"`
	Message        string `json:"message"`
	TabSwitchCount int    `json:"tab_switch_count"`
}

// SubmittedResponse acknowledges a finalized submission. Carries no score.
type SubmittedResponse struct {
	Event       Event  `json:"event"`
	Status      string `json:"status"`
	Message     string `json:"message"`
	SubmittedAt int64  `json:"submitted_at"`
}

// ExpiredResponse announces that the countdown reached zero.
type ExpiredResponse struct {
	Event      Event `json:"event"`
	AutoSubmit bool  `json:"auto_submit"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event            Event `json:"event"`
	RemainingSeconds int   `json:"remaining_seconds"`
}
