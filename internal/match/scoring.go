package match

import (
	"math"

	"quiz-arena-service/internal/domain"
)

const (
	basePoints     = 100
	maxSpeedBonus  = 50
	defaultTimeSec = 30
)

// Score evaluates one submission against a question. Correctness requires the
// selected set to match the correct-option set exactly; no partial credit on
// multi-correct questions. A correct answer earns base points plus a speed
// bonus proportional to the time left on the question clock.
//
// timeSpentSec is client-reported; it is clipped into [0, timeLimitSec] so a
// client can neither earn more than the full bonus nor report negative time.
func Score(question domain.Question, selected []string, timeSpentSec, timeLimitSec float64) (correct bool, points int) {
	correctSet := make(map[string]struct{})
	for _, opt := range question.Options {
		if opt.Correct {
			correctSet[opt.ID] = struct{}{}
		}
	}

	selectedSet := make(map[string]struct{}, len(selected))
	for _, id := range selected {
		selectedSet[id] = struct{}{}
	}

	if len(selectedSet) != len(correctSet) || len(correctSet) == 0 {
		return false, 0
	}
	for id := range selectedSet {
		if _, ok := correctSet[id]; !ok {
			return false, 0
		}
	}

	if timeLimitSec <= 0 {
		timeLimitSec = defaultTimeSec
	}
	spent := timeSpentSec
	if spent < 0 {
		spent = 0
	}
	if spent > timeLimitSec {
		spent = timeLimitSec
	}

	bonus := math.Round(maxSpeedBonus * (timeLimitSec - spent) / timeLimitSec)
	return true, basePoints + int(bonus)
}

// CorrectOptions returns the IDs of a question's correct options, in option order.
func CorrectOptions(question domain.Question) []string {
	ids := make([]string, 0, len(question.Options))
	for _, opt := range question.Options {
		if opt.Correct {
			ids = append(ids, opt.ID)
		}
	}
	return ids
}
