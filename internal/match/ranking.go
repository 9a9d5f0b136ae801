package match

import (
	"math"
	"sort"

	"quiz-arena-service/internal/domain"
)

const winnerRatingBonus = 25

// computeRankings orders players by cumulative score descending, then mean
// answer time ascending (players with no answers sort last), then join order
// so exact ties stay deterministic. Ranks are 1..N and the rank-1 player
// gains the winner bonus while everyone else splits the matching penalty.
func computeRankings(players []*playerState) []domain.Ranking {
	ordered := make([]*playerState, len(players))
	copy(ordered, players)

	meanTimes := make(map[string]float64, len(ordered))
	for _, p := range ordered {
		meanTimes[p.identity.UserID] = meanAnswerTime(p.answers)
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].score != ordered[j].score {
			return ordered[i].score > ordered[j].score
		}
		mi, mj := meanTimes[ordered[i].identity.UserID], meanTimes[ordered[j].identity.UserID]
		if mi != mj {
			return mi < mj
		}
		return ordered[i].joinSeq < ordered[j].joinSeq
	})

	loserDelta := 0
	if len(ordered) > 1 {
		loserDelta = -(winnerRatingBonus / (len(ordered) - 1))
	}

	rankings := make([]domain.Ranking, 0, len(ordered))
	for i, p := range ordered {
		delta := loserDelta
		if i == 0 {
			delta = winnerRatingBonus
		}
		if len(ordered) == 1 {
			delta = 0
		}
		mean := meanTimes[p.identity.UserID]
		if math.IsInf(mean, 1) {
			mean = 0
		}
		rankings = append(rankings, domain.Ranking{
			Rank:        i + 1,
			UserID:      p.identity.UserID,
			DisplayName: p.identity.DisplayName,
			Score:       p.score,
			MeanTimeSec: mean,
			RatingDelta: delta,
		})
	}
	return rankings
}

func meanAnswerTime(answers []domain.Answer) float64 {
	if len(answers) == 0 {
		return math.Inf(1)
	}
	var sum float64
	for _, a := range answers {
		sum += a.TimeSpentSec
	}
	return sum / float64(len(answers))
}

// matchResults converts final rankings into profile-store mutations.
func matchResults(rankings []domain.Ranking) []domain.MatchResult {
	results := make([]domain.MatchResult, 0, len(rankings))
	for _, r := range rankings {
		results = append(results, domain.MatchResult{
			UserID:      r.UserID,
			RatingDelta: r.RatingDelta,
			Won:         r.Rank == 1,
		})
	}
	return results
}
