package match

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"quiz-arena-service/internal/domain"
	"quiz-arena-service/internal/infra/memory"
)

var (
	alice = domain.Identity{UserID: "u-alice", DisplayName: "Alice", IsActive: true}
	bob   = domain.Identity{UserID: "u-bob", DisplayName: "Bob", IsActive: true}
	carol = domain.Identity{UserID: "u-carol", DisplayName: "Carol", IsActive: true}
)

type fakeConn struct {
	mu     sync.Mutex
	events []Event
}

func (c *fakeConn) Send(event Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *fakeConn) countType(eventType string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

func (c *fakeConn) lastOfType(eventType string) (Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.events) - 1; i >= 0; i-- {
		if c.events[i].Type == eventType {
			return c.events[i], true
		}
	}
	return Event{}, false
}

func twoQuestionQuiz() domain.Quiz {
	return domain.Quiz{
		ID:    "quiz-1",
		Title: "Battle",
		Questions: []domain.Question{
			{
				ID:     "q1",
				Prompt: "What is 2 + 2?",
				Options: []domain.Option{
					{ID: "o1", Text: "3", Correct: false},
					{ID: "o2", Text: "4", Correct: true},
				},
				TimeLimitSec: 30,
			},
			{
				ID:     "q2",
				Prompt: "What is 3 * 3?",
				Options: []domain.Option{
					{ID: "o1", Text: "9", Correct: true},
					{ID: "o2", Text: "6", Correct: false},
				},
				TimeLimitSec: 30,
			},
		},
	}
}

func newTestService(clock clockwork.Clock) (*Service, *memory.ProfileStore) {
	quizzes := memory.NewQuizRepository(memory.NewStaticQuizLoader(map[string]domain.Quiz{
		"quiz-1": twoQuestionQuiz(),
		"empty":  {ID: "empty", Title: "Empty"},
	}), time.Minute)
	profiles := memory.NewProfileStore()
	service := NewService(quizzes, profiles, Settings{Clock: clock})
	return service, profiles
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestCreateMatchRejectsEmptyAndUnknownQuizzes(t *testing.T) {
	service, _ := newTestService(clockwork.NewFakeClock())

	if _, err := service.CreateMatch(context.Background(), alice, "empty", 4); err != domain.ErrEmptyQuiz {
		t.Fatalf("expected empty quiz error, got %v", err)
	}
	if _, err := service.CreateMatch(context.Background(), alice, "missing", 4); err != domain.ErrQuizNotFound {
		t.Fatalf("expected quiz not found, got %v", err)
	}
}

func TestFullMatchLifecycleWithFixedTimer(t *testing.T) {
	clock := clockwork.NewFakeClock()
	service, profiles := newTestService(clock)

	info, err := service.CreateMatch(context.Background(), alice, "quiz-1", 4)
	if err != nil {
		t.Fatalf("create match: %v", err)
	}
	if info.Status != domain.StatusWaiting || info.JoinCode == "" {
		t.Fatalf("expected waiting match with join code, got %+v", info)
	}

	c1, c2 := &fakeConn{}, &fakeConn{}
	if _, err := service.JoinByCode(info.JoinCode, alice, c1); err != nil {
		t.Fatalf("alice join: %v", err)
	}
	// Join codes are case-insensitive.
	joined, err := service.JoinByCode(strings.ToLower(info.JoinCode), bob, c2)
	if err != nil {
		t.Fatalf("bob join: %v", err)
	}
	if len(joined.Players) != 2 {
		t.Fatalf("expected 2 players after join, got %d", len(joined.Players))
	}
	if c1.countType(EventPlayerJoined) != 1 {
		t.Fatalf("expected alice notified of bob joining")
	}

	if err := service.MarkReady(alice.UserID); err != nil {
		t.Fatalf("alice ready: %v", err)
	}
	snap, _ := service.Snapshot(info.ID)
	if snap.Status != domain.StatusWaiting {
		t.Fatalf("one ready player must not start the match, got %s", snap.Status)
	}
	if err := service.MarkReady(bob.UserID); err != nil {
		t.Fatalf("bob ready: %v", err)
	}

	snap, _ = service.Snapshot(info.ID)
	if snap.Status != domain.StatusInProgress {
		t.Fatalf("expected match started once all ready, got %s", snap.Status)
	}
	if c1.countType(EventMatchStarted) != 1 || c2.countType(EventMatchStarted) != 1 {
		t.Fatalf("expected match_started broadcast to both players")
	}

	// Both answer question 0 early.
	res, err := service.SubmitAnswer(alice.UserID, domain.AnswerSubmission{
		QuestionID: "q1", SelectedOptions: []string{"o2"}, TimeSpentSec: 5,
	})
	if err != nil {
		t.Fatalf("alice answer: %v", err)
	}
	if !res.Correct || res.Points != 142 || res.TotalScore != 142 {
		t.Fatalf("expected correct answer worth 142, got %+v", res)
	}
	if len(res.CorrectOptions) != 1 || res.CorrectOptions[0] != "o2" {
		t.Fatalf("expected correct options in private result, got %v", res.CorrectOptions)
	}
	if _, err := service.SubmitAnswer(bob.UserID, domain.AnswerSubmission{
		QuestionID: "q1", SelectedOptions: []string{"o1"}, TimeSpentSec: 10,
	}); err != nil {
		t.Fatalf("bob answer: %v", err)
	}

	// Early answers never shorten the timer: one tick short of the limit the
	// match is still on question 0.
	clock.Advance(29 * time.Second)
	snap, _ = service.Snapshot(info.ID)
	if snap.Status != domain.StatusInProgress || snap.QuestionIndex != 0 {
		t.Fatalf("expected still on question 0 at 29s, got %s index %d", snap.Status, snap.QuestionIndex)
	}
	if _, err := service.SubmitAnswer(alice.UserID, domain.AnswerSubmission{
		QuestionID: "q2", SelectedOptions: []string{"o1"},
	}); err != domain.ErrQuestionNotActive {
		t.Fatalf("expected question-not-active before advance, got %v", err)
	}

	clock.Advance(2 * time.Second)
	waitFor(t, "advance to question 1", func() bool {
		return c1.countType(EventNextQuestion) == 1
	})

	if _, err := service.SubmitAnswer(alice.UserID, domain.AnswerSubmission{
		QuestionID: "q2", SelectedOptions: []string{"o1"}, TimeSpentSec: 12,
	}); err != nil {
		t.Fatalf("alice answer q2: %v", err)
	}
	if _, err := service.SubmitAnswer(bob.UserID, domain.AnswerSubmission{
		QuestionID: "q2", SelectedOptions: []string{"o1"}, TimeSpentSec: 3,
	}); err != nil {
		t.Fatalf("bob answer q2: %v", err)
	}

	clock.Advance(31 * time.Second)
	waitFor(t, "match completion", func() bool {
		snap, err := service.Snapshot(info.ID)
		return err == nil && snap.Status == domain.StatusCompleted
	})

	event, ok := c2.lastOfType(EventMatchCompleted)
	if !ok {
		t.Fatalf("expected match_completed broadcast")
	}
	completed := event.Payload.(CompletedPayload)
	if len(completed.Rankings) != 2 {
		t.Fatalf("expected 2 rankings, got %d", len(completed.Rankings))
	}
	if completed.Rankings[0].UserID != alice.UserID || completed.Rankings[0].Rank != 1 {
		t.Fatalf("expected alice ranked first, got %+v", completed.Rankings[0])
	}
	if completed.Rankings[0].RatingDelta != 25 || completed.Rankings[1].RatingDelta != -25 {
		t.Fatalf("expected +25/-25 deltas, got %+v", completed.Rankings)
	}

	// Persistence is async; it must land without blocking completion.
	waitFor(t, "profile persistence", func() bool {
		p, ok := profiles.Get(alice.UserID)
		return ok && p.TotalMatches == 1
	})
	winner, _ := profiles.Get(alice.UserID)
	if winner.Rating != 25 || winner.Wins != 1 || winner.Losses != 0 {
		t.Fatalf("unexpected winner profile %+v", winner)
	}
	loser, _ := profiles.Get(bob.UserID)
	if loser.Rating != -25 || loser.Wins != 0 || loser.Losses != 1 {
		t.Fatalf("unexpected loser profile %+v", loser)
	}

	// Completed matches stay queryable until the retention window passes.
	if _, err := service.Snapshot(info.ID); err != nil {
		t.Fatalf("expected completed match still queryable: %v", err)
	}
	clock.Advance(6 * time.Minute)
	waitFor(t, "retention removal", func() bool {
		return service.Registry().Len() == 0
	})
}

func TestDuplicateSubmissionRecordsOneAnswer(t *testing.T) {
	clock := clockwork.NewFakeClock()
	service, _ := newTestService(clock)
	info := startTwoPlayerMatch(t, service)

	first, err := service.SubmitAnswer(alice.UserID, domain.AnswerSubmission{
		QuestionID: "q1", SelectedOptions: []string{"o2"}, TimeSpentSec: 5,
	})
	if err != nil {
		t.Fatalf("first answer: %v", err)
	}
	if _, err := service.SubmitAnswer(alice.UserID, domain.AnswerSubmission{
		QuestionID: "q1", SelectedOptions: []string{"o1"}, TimeSpentSec: 1,
	}); err != domain.ErrDuplicateSubmission {
		t.Fatalf("expected duplicate submission error, got %v", err)
	}

	snap, _ := service.Snapshot(info.ID)
	for _, p := range snap.Players {
		if p.UserID == alice.UserID && p.Score != first.TotalScore {
			t.Fatalf("second submission must not change the score: %d vs %d", p.Score, first.TotalScore)
		}
	}
}

func TestSubmitRejectedOutsideInProgress(t *testing.T) {
	service, _ := newTestService(clockwork.NewFakeClock())

	info, err := service.CreateMatch(context.Background(), alice, "quiz-1", 4)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := service.JoinByCode(info.JoinCode, alice, &fakeConn{}); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := service.SubmitAnswer(alice.UserID, domain.AnswerSubmission{
		QuestionID: "q1", SelectedOptions: []string{"o2"},
	}); err != domain.ErrInvalidState {
		t.Fatalf("expected invalid state while waiting, got %v", err)
	}
}

func TestJoinCapacity(t *testing.T) {
	service, _ := newTestService(clockwork.NewFakeClock())

	info, err := service.CreateMatch(context.Background(), alice, "quiz-1", 2)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := service.JoinByCode(info.JoinCode, alice, &fakeConn{}); err != nil {
		t.Fatalf("alice join: %v", err)
	}
	if _, err := service.JoinByCode(info.JoinCode, bob, &fakeConn{}); err != nil {
		t.Fatalf("bob join: %v", err)
	}
	if _, err := service.JoinByCode(info.JoinCode, carol, &fakeConn{}); err != domain.ErrMatchFull {
		t.Fatalf("expected capacity error, got %v", err)
	}

	snap, _ := service.Snapshot(info.ID)
	if len(snap.Players) != 2 {
		t.Fatalf("failed join must not change player count, got %d", len(snap.Players))
	}
}

func TestJoinSecondMatchRejected(t *testing.T) {
	service, _ := newTestService(clockwork.NewFakeClock())

	first, _ := service.CreateMatch(context.Background(), alice, "quiz-1", 4)
	second, _ := service.CreateMatch(context.Background(), bob, "quiz-1", 4)
	if _, err := service.JoinByCode(first.JoinCode, alice, &fakeConn{}); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := service.JoinByCode(second.JoinCode, alice, &fakeConn{}); err != domain.ErrAlreadyInMatch {
		t.Fatalf("expected already-in-match error, got %v", err)
	}
}

func TestSoleDisconnectDuringWaitingRemovesMatch(t *testing.T) {
	service, _ := newTestService(clockwork.NewFakeClock())

	info, err := service.CreateMatch(context.Background(), alice, "quiz-1", 4)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := service.JoinByCode(info.JoinCode, alice, &fakeConn{}); err != nil {
		t.Fatalf("join: %v", err)
	}

	service.Disconnect(alice.UserID)

	if _, err := service.Snapshot(info.ID); err != domain.ErrMatchNotFound {
		t.Fatalf("expected match removed, got %v", err)
	}
	if _, ok := service.Registry().MatchForUser(alice.UserID); ok {
		t.Fatalf("expected user index cleared")
	}
	// With the index cleared the user can join a fresh match.
	next, _ := service.CreateMatch(context.Background(), alice, "quiz-1", 4)
	if _, err := service.JoinByCode(next.JoinCode, alice, &fakeConn{}); err != nil {
		t.Fatalf("rejoin after removal: %v", err)
	}
}

func TestInProgressDisconnectRetainsPlayerAndAnswers(t *testing.T) {
	clock := clockwork.NewFakeClock()
	service, _ := newTestService(clock)
	info := startTwoPlayerMatch(t, service)

	if _, err := service.SubmitAnswer(bob.UserID, domain.AnswerSubmission{
		QuestionID: "q1", SelectedOptions: []string{"o2"}, TimeSpentSec: 4,
	}); err != nil {
		t.Fatalf("bob answer: %v", err)
	}

	service.Disconnect(bob.UserID)

	snap, err := service.Snapshot(info.ID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Status != domain.StatusInProgress {
		t.Fatalf("disconnect must not cancel a running match, got %s", snap.Status)
	}
	if len(snap.Players) != 2 {
		t.Fatalf("expected disconnected player retained, got %d players", len(snap.Players))
	}
	for _, p := range snap.Players {
		if p.UserID == bob.UserID {
			if p.Connected {
				t.Fatalf("expected bob marked disconnected")
			}
			if p.Score == 0 {
				t.Fatalf("expected bob's score retained")
			}
		}
	}

	// Let both questions elapse: bob must still appear in the rankings.
	clock.Advance(31 * time.Second)
	waitFor(t, "question 1", func() bool {
		s, err := service.Snapshot(info.ID)
		return err == nil && s.Status == domain.StatusInProgress && s.QuestionIndex == 1
	})
	clock.Advance(31 * time.Second)
	waitFor(t, "completion", func() bool {
		s, err := service.Snapshot(info.ID)
		return err == nil && s.Status == domain.StatusCompleted
	})
}

func TestForceEndCancelsTimerAndRemoves(t *testing.T) {
	clock := clockwork.NewFakeClock()
	service, _ := newTestService(clock)
	info := startTwoPlayerMatch(t, service)

	if err := service.ForceEnd(info.ID); err != nil {
		t.Fatalf("force end: %v", err)
	}
	if _, err := service.Snapshot(info.ID); err != domain.ErrMatchNotFound {
		t.Fatalf("expected match removed, got %v", err)
	}

	// A timer firing after removal must be a silent no-op.
	clock.Advance(31 * time.Second)
	if service.Registry().Len() != 0 {
		t.Fatalf("expected registry empty after force end")
	}
}

func startTwoPlayerMatch(t *testing.T, service *Service) domain.MatchInfo {
	t.Helper()
	info, err := service.CreateMatch(context.Background(), alice, "quiz-1", 4)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := service.JoinByCode(info.JoinCode, alice, &fakeConn{}); err != nil {
		t.Fatalf("alice join: %v", err)
	}
	if _, err := service.JoinByCode(info.JoinCode, bob, &fakeConn{}); err != nil {
		t.Fatalf("bob join: %v", err)
	}
	if err := service.MarkReady(alice.UserID); err != nil {
		t.Fatalf("alice ready: %v", err)
	}
	if err := service.MarkReady(bob.UserID); err != nil {
		t.Fatalf("bob ready: %v", err)
	}
	snap, err := service.Snapshot(info.ID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Status != domain.StatusInProgress {
		t.Fatalf("expected match in progress, got %s", snap.Status)
	}
	return snap
}
