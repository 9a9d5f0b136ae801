package match

import "quiz-arena-service/internal/domain"

// Event is an outbound message fanned out to connections in a match's room.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

const (
	EventPlayerJoined       = "player_joined"
	EventPlayerReady        = "player_ready"
	EventMatchStarted       = "match_started"
	EventNextQuestion       = "next_question"
	EventMatchCompleted     = "match_completed"
	EventPlayerDisconnected = "player_disconnected"
)

// Conn is the outbound half of one player's connection. Send must never
// block; implementations enqueue onto a buffered channel and drop stale
// messages under pressure, so the match loop never waits on network I/O.
type Conn interface {
	Send(event Event)
}

// PlayerEventPayload identifies a player in room-scoped notifications.
type PlayerEventPayload struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"username"`
}

// QuestionOption is an option as shown to players; correctness is withheld.
type QuestionOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// QuestionPayload carries the active question to the room.
type QuestionPayload struct {
	QuestionIndex  int              `json:"questionIndex"`
	TotalQuestions int              `json:"totalQuestions"`
	QuestionID     string           `json:"questionId"`
	Prompt         string           `json:"prompt"`
	Options        []QuestionOption `json:"options"`
	TimeLimitSec   int              `json:"timeLimitSec"`
}

// CompletedPayload carries the final standings to the room.
type CompletedPayload struct {
	MatchID  string           `json:"matchId"`
	Rankings []domain.Ranking `json:"rankings"`
}

func sanitizeQuestion(q domain.Question, index, total, limitSec int) QuestionPayload {
	options := make([]QuestionOption, 0, len(q.Options))
	for _, opt := range q.Options {
		options = append(options, QuestionOption{ID: opt.ID, Text: opt.Text})
	}
	return QuestionPayload{
		QuestionIndex:  index,
		TotalQuestions: total,
		QuestionID:     q.ID,
		Prompt:         q.Prompt,
		Options:        options,
		TimeLimitSec:   limitSec,
	}
}
