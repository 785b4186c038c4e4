package realtime

import "github.com/noah-isme/exam-adp-api/internal/models"

// Message types carried over the answer channel.
const (
	TypeAnswer    = "answer"
	TypeAnswerAck = "answer-ack"
	TypeTimer     = "exam-timer-update"
	TypeExamEnded = "exam-ended"
	TypeError     = "error"
)

// InboundMessage is one client frame. Seq is the client's monotonically
// increasing counter for the connection; acks echo it back.
type InboundMessage struct {
	Type           string              `json:"type"`
	Seq            uint64              `json:"seq"`
	QuestionID     string              `json:"question_id"`
	SelectedOption models.AnswerOption `json:"selected_option"`
}

// OutboundMessage is one server frame.
type OutboundMessage struct {
	Type             string `json:"type"`
	Seq              uint64 `json:"seq,omitempty"`
	QuestionID       string `json:"question_id,omitempty"`
	SecondsRemaining int64  `json:"seconds_remaining,omitempty"`
	Message          string `json:"message,omitempty"`
}
