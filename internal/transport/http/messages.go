package http

import "encoding/json"

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type authenticatePayload struct {
	Token string `json:"token"`
}

type createMatchPayload struct {
	QuizID     string `json:"quizId"`
	MaxPlayers int    `json:"maxPlayers"`
}

type joinMatchPayload struct {
	MatchCode string `json:"matchCode"`
}

type submitAnswerPayload struct {
	QuestionID      string   `json:"questionId"`
	SelectedOptions []string `json:"selectedOptions"`
	TimeSpentSec    float64  `json:"timeSpent"`
}

type authenticatedPayload struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

type matchCreatedPayload struct {
	MatchID   string `json:"matchId"`
	MatchCode string `json:"matchCode"`
}

type errorPayload struct {
	Message string `json:"message"`
}
