package match

import (
	"testing"

	"quiz-arena-service/internal/domain"
)

func scoringQuestion() domain.Question {
	return domain.Question{
		ID:     "q1",
		Prompt: "Which are even?",
		Options: []domain.Option{
			{ID: "o1", Text: "2", Correct: true},
			{ID: "o2", Text: "3", Correct: false},
			{ID: "o3", Text: "4", Correct: true},
		},
		TimeLimitSec: 30,
	}
}

func TestScoreSpeedBonus(t *testing.T) {
	q := scoringQuestion()

	cases := []struct {
		name      string
		spent     float64
		wantScore int
	}{
		{"instant answer earns full bonus", 0, 150},
		{"full time earns base only", 30, 100},
		{"half time earns half bonus", 15, 125},
	}
	for _, tc := range cases {
		correct, points := Score(q, []string{"o1", "o3"}, tc.spent, 30)
		if !correct {
			t.Fatalf("%s: expected correct", tc.name)
		}
		if points != tc.wantScore {
			t.Fatalf("%s: expected %d points, got %d", tc.name, tc.wantScore, points)
		}
	}
}

func TestScoreRequiresExactSet(t *testing.T) {
	q := scoringQuestion()

	// Subset of the correct options: no partial credit.
	if correct, points := Score(q, []string{"o1"}, 0, 30); correct || points != 0 {
		t.Fatalf("expected incorrect for subset, got correct=%v points=%d", correct, points)
	}
	// Superset.
	if correct, _ := Score(q, []string{"o1", "o2", "o3"}, 0, 30); correct {
		t.Fatalf("expected incorrect for superset")
	}
	// Wrong option.
	if correct, points := Score(q, []string{"o1", "o2"}, 5, 30); correct || points != 0 {
		t.Fatalf("expected incorrect answer to score zero, got correct=%v points=%d", correct, points)
	}
	// Duplicated IDs must not fake a matching set size.
	if correct, _ := Score(q, []string{"o1", "o1"}, 0, 30); correct {
		t.Fatalf("expected duplicated selection to be incorrect")
	}
}

func TestScoreClipsReportedTime(t *testing.T) {
	q := scoringQuestion()

	if _, points := Score(q, []string{"o1", "o3"}, -5, 30); points != 150 {
		t.Fatalf("expected negative time clipped to full bonus, got %d", points)
	}
	if _, points := Score(q, []string{"o1", "o3"}, 500, 30); points != 100 {
		t.Fatalf("expected overlong time clipped to base points, got %d", points)
	}
}

func TestCorrectOptions(t *testing.T) {
	got := CorrectOptions(scoringQuestion())
	if len(got) != 2 || got[0] != "o1" || got[1] != "o3" {
		t.Fatalf("expected [o1 o3], got %v", got)
	}
}
