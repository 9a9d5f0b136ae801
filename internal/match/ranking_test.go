package match

import (
	"testing"

	"quiz-arena-service/internal/domain"
)

func rankedPlayer(userID string, seq, score int, times ...float64) *playerState {
	p := &playerState{
		identity: domain.Identity{UserID: userID, DisplayName: userID},
		score:    score,
		joinSeq:  seq,
		answered: make(map[string]struct{}),
	}
	for _, ts := range times {
		p.answers = append(p.answers, domain.Answer{TimeSpentSec: ts})
	}
	return p
}

func TestComputeRankingsOrdersByScoreThenMeanTime(t *testing.T) {
	players := []*playerState{
		rankedPlayer("slow", 1, 300, 10),
		rankedPlayer("fast", 2, 300, 5),
		rankedPlayer("low", 3, 100, 20),
	}

	rankings := computeRankings(players)
	want := []string{"fast", "slow", "low"}
	for i, userID := range want {
		if rankings[i].UserID != userID {
			t.Fatalf("rank %d: expected %s, got %s", i+1, userID, rankings[i].UserID)
		}
		if rankings[i].Rank != i+1 {
			t.Fatalf("expected rank %d, got %d", i+1, rankings[i].Rank)
		}
	}
}

func TestComputeRankingsNoAnswersSortLast(t *testing.T) {
	players := []*playerState{
		rankedPlayer("ghost", 1, 0),
		rankedPlayer("player", 2, 0, 29),
	}

	rankings := computeRankings(players)
	if rankings[0].UserID != "player" || rankings[1].UserID != "ghost" {
		t.Fatalf("expected answerless player last, got %v then %v", rankings[0].UserID, rankings[1].UserID)
	}
	if rankings[1].MeanTimeSec != 0 {
		t.Fatalf("expected answerless mean time reported as 0, got %v", rankings[1].MeanTimeSec)
	}
}

func TestComputeRankingsTieBreaksByJoinOrder(t *testing.T) {
	players := []*playerState{
		rankedPlayer("second", 2, 200, 10),
		rankedPlayer("first", 1, 200, 10),
	}

	rankings := computeRankings(players)
	if rankings[0].UserID != "first" {
		t.Fatalf("expected join order to break exact ties, got %s first", rankings[0].UserID)
	}
}

func TestComputeRankingsRatingDeltas(t *testing.T) {
	players := []*playerState{
		rankedPlayer("a", 1, 400, 5),
		rankedPlayer("b", 2, 300, 5),
		rankedPlayer("c", 3, 200, 5),
		rankedPlayer("d", 4, 100, 5),
	}

	rankings := computeRankings(players)
	if rankings[0].RatingDelta != 25 {
		t.Fatalf("expected winner +25, got %d", rankings[0].RatingDelta)
	}
	for _, r := range rankings[1:] {
		if r.RatingDelta != -8 {
			t.Fatalf("expected loser -8, got %d for %s", r.RatingDelta, r.UserID)
		}
	}
}

func TestComputeRankingsSinglePlayerNoAdjustment(t *testing.T) {
	rankings := computeRankings([]*playerState{rankedPlayer("solo", 1, 150, 10)})
	if len(rankings) != 1 || rankings[0].RatingDelta != 0 {
		t.Fatalf("expected single player with zero delta, got %+v", rankings)
	}
}

func TestMatchResultsMarksWinner(t *testing.T) {
	rankings := computeRankings([]*playerState{
		rankedPlayer("win", 1, 300, 5),
		rankedPlayer("lose", 2, 100, 5),
	})
	results := matchResults(rankings)
	if !results[0].Won || results[0].UserID != "win" {
		t.Fatalf("expected win flagged for rank 1, got %+v", results[0])
	}
	if results[1].Won {
		t.Fatalf("expected loss for rank 2, got %+v", results[1])
	}
}
