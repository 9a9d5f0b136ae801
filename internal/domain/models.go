package domain

import "time"

// MatchStatus tracks a match through its lifecycle. Transitions are
// monotonic: Waiting -> InProgress -> Completed, never backward.
type MatchStatus string

const (
	StatusWaiting    MatchStatus = "waiting"
	StatusInProgress MatchStatus = "in_progress"
	StatusCompleted  MatchStatus = "completed"
)

// Identity is the verified principal attached to a connection.
type Identity struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	IsActive    bool   `json:"-"`
}

// Option represents a possible answer for a question.
type Option struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Question models an MCQ question; multiple options may be correct.
type Question struct {
	ID           string   `json:"id"`
	Prompt       string   `json:"prompt"`
	Options      []Option `json:"options"`
	TimeLimitSec int      `json:"timeLimitSec"` // falls back to the configured default if zero
}

// Quiz is the content snapshot a match is played against. It is captured
// at match creation so later edits to the source never affect a live match.
type Quiz struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// AnswerSubmission models the scoring signal from clients. TimeSpentSec is
// client-reported and clipped server-side into [0, time limit].
type AnswerSubmission struct {
	QuestionID      string
	SelectedOptions []string
	TimeSpentSec    float64
}

// Answer is one player's recorded response to one question. Correctness and
// points are computed once and never rewritten.
type Answer struct {
	QuestionID      string   `json:"questionId"`
	SelectedOptions []string `json:"selectedOptions"`
	TimeSpentSec    float64  `json:"timeSpentSec"`
	Correct         bool     `json:"correct"`
	Points          int      `json:"points"`
}

// AnswerResult is the private outcome sent back to the submitting player.
type AnswerResult struct {
	QuestionID     string   `json:"questionId"`
	Correct        bool     `json:"isCorrect"`
	Points         int      `json:"points"`
	CorrectOptions []string `json:"correctOptions"`
	TotalScore     int      `json:"totalScore"`
}

// PlayerView is a broadcast-safe snapshot of one player in a match.
type PlayerView struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"username"`
	Score       int    `json:"score"`
	Ready       bool   `json:"ready"`
	Connected   bool   `json:"connected"`
}

// MatchInfo is a broadcast-safe snapshot of a match.
type MatchInfo struct {
	ID             string       `json:"matchId"`
	JoinCode       string       `json:"matchCode"`
	QuizID         string       `json:"quizId"`
	QuizTitle      string       `json:"quizTitle"`
	Status         MatchStatus  `json:"status"`
	MaxPlayers     int          `json:"maxPlayers"`
	Players        []PlayerView `json:"players"`
	QuestionIndex  int          `json:"questionIndex"`
	TotalQuestions int          `json:"totalQuestions"`
	CreatedAt      time.Time    `json:"createdAt"`
}

// Ranking is one row of the final standings.
type Ranking struct {
	Rank        int     `json:"rank"`
	UserID      string  `json:"userId"`
	DisplayName string  `json:"username"`
	Score       int     `json:"score"`
	MeanTimeSec float64 `json:"meanTimeSec"`
	RatingDelta int     `json:"ratingDelta"`
}

// MatchResult is applied to the persistent profile store for one player.
type MatchResult struct {
	UserID      string
	RatingDelta int
	Won         bool
}
