package match

import (
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"quiz-arena-service/internal/domain"
)

// playerState is actor-private; only the match loop touches it.
type playerState struct {
	identity  domain.Identity
	conn      Conn
	connected bool
	score     int
	ready     bool
	answers   []domain.Answer
	answered  map[string]struct{}
	joinSeq   int
}

// hooks are the match's outbound edges: registry index maintenance, removal,
// and rating persistence. They must not send commands back into the match.
type hooks struct {
	recordUser func(userID, matchID string) error
	clearUser  func(userID string)
	remove     func(matchID string)
	persist    func(matchID string, results []domain.MatchResult)
}

// Match is one live quiz session. All state below the commands channel is
// owned by the run loop; external callers interact only through commands.
type Match struct {
	id         string
	joinCode   string
	quiz       domain.Quiz
	maxPlayers int
	createdAt  time.Time

	status            domain.MatchStatus
	current           int
	questionStartedAt time.Time

	players     map[string]*playerState
	joinCounter int

	commands chan command
	done     chan struct{}
	stopOnce sync.Once

	clock        clockwork.Clock
	questionTime time.Duration
	retention    time.Duration
	advanceTimer clockwork.Timer

	hooks hooks
}

type matchParams struct {
	id           string
	quiz         domain.Quiz
	maxPlayers   int
	clock        clockwork.Clock
	questionTime time.Duration
	retention    time.Duration
	hooks        hooks
}

func newMatch(p matchParams) *Match {
	return &Match{
		id:           p.id,
		quiz:         p.quiz,
		maxPlayers:   p.maxPlayers,
		createdAt:    p.clock.Now(),
		status:       domain.StatusWaiting,
		players:      make(map[string]*playerState),
		commands:     make(chan command, 16),
		done:         make(chan struct{}),
		clock:        p.clock,
		questionTime: p.questionTime,
		retention:    p.retention,
		hooks:        p.hooks,
	}
}

// ID returns the match id. Immutable, safe without the loop.
func (m *Match) ID() string { return m.id }

// JoinCode returns the shareable code. Set once at registration.
func (m *Match) JoinCode() string { return m.joinCode }

// CreatedAt returns the creation timestamp. Immutable, used by the reaper.
func (m *Match) CreatedAt() time.Time { return m.createdAt }

func (m *Match) run() {
	for {
		select {
		case cmd := <-m.commands:
			m.apply(cmd)
		case <-m.done:
			return
		}
	}
}

// stop ends the run loop. Pending timer goroutines observe done and drain.
func (m *Match) stop() {
	m.stopOnce.Do(func() { close(m.done) })
}

func (m *Match) send(cmd command) bool {
	select {
	case m.commands <- cmd:
		return true
	case <-m.done:
		return false
	}
}

func (m *Match) apply(cmd command) {
	switch c := cmd.(type) {
	case joinCmd:
		info, err := m.handleJoin(c.user, c.conn)
		c.reply <- joinReply{info: info, err: err}
	case readyCmd:
		c.reply <- m.handleReady(c.userID)
	case answerCmd:
		result, err := m.handleAnswer(c.userID, c.sub)
		c.reply <- answerReply{result: result, err: err}
	case disconnectCmd:
		m.handleDisconnect(c.userID)
		c.reply <- struct{}{}
	case advanceCmd:
		m.handleAdvance(c.questionIndex)
	case snapshotCmd:
		c.reply <- m.snapshot()
	case forceEndCmd:
		m.cancelAdvanceTimer()
		m.hooks.remove(m.id)
		c.reply <- struct{}{}
	}
}

// Join adds the user to a waiting match and notifies the rest of the room.
func (m *Match) Join(user domain.Identity, conn Conn) (domain.MatchInfo, error) {
	reply := make(chan joinReply, 1)
	if !m.send(joinCmd{user: user, conn: conn, reply: reply}) {
		return domain.MatchInfo{}, domain.ErrMatchNotFound
	}
	select {
	case r := <-reply:
		return r.info, r.err
	case <-m.done:
		return domain.MatchInfo{}, domain.ErrMatchNotFound
	}
}

// Ready flags the player ready; when every present player is ready and at
// least two are present, the match starts.
func (m *Match) Ready(userID string) error {
	reply := make(chan error, 1)
	if !m.send(readyCmd{userID: userID, reply: reply}) {
		return domain.ErrMatchNotFound
	}
	select {
	case err := <-reply:
		return err
	case <-m.done:
		return domain.ErrMatchNotFound
	}
}

// Submit scores an answer against the active question.
func (m *Match) Submit(userID string, sub domain.AnswerSubmission) (domain.AnswerResult, error) {
	reply := make(chan answerReply, 1)
	if !m.send(answerCmd{userID: userID, sub: sub, reply: reply}) {
		return domain.AnswerResult{}, domain.ErrMatchNotFound
	}
	select {
	case r := <-reply:
		return r.result, r.err
	case <-m.done:
		return domain.AnswerResult{}, domain.ErrMatchNotFound
	}
}

// Disconnect handles a transport-level drop for one player.
func (m *Match) Disconnect(userID string) {
	reply := make(chan struct{}, 1)
	if !m.send(disconnectCmd{userID: userID, reply: reply}) {
		return
	}
	select {
	case <-reply:
	case <-m.done:
	}
}

// Snapshot returns a broadcast-safe view of the match.
func (m *Match) Snapshot() (domain.MatchInfo, error) {
	reply := make(chan domain.MatchInfo, 1)
	if !m.send(snapshotCmd{reply: reply}) {
		return domain.MatchInfo{}, domain.ErrMatchNotFound
	}
	select {
	case info := <-reply:
		return info, nil
	case <-m.done:
		return domain.MatchInfo{}, domain.ErrMatchNotFound
	}
}

// ForceEnd cancels any pending timer and removes the match. Administrative
// path; disconnections never end a match this way.
func (m *Match) ForceEnd() {
	reply := make(chan struct{}, 1)
	if !m.send(forceEndCmd{reply: reply}) {
		return
	}
	select {
	case <-reply:
	case <-m.done:
	}
}

func (m *Match) handleJoin(user domain.Identity, conn Conn) (domain.MatchInfo, error) {
	if m.status != domain.StatusWaiting {
		return domain.MatchInfo{}, domain.ErrInvalidState
	}
	if existing, ok := m.players[user.UserID]; ok {
		// Rejoin while waiting refreshes the connection handle.
		existing.identity.DisplayName = user.DisplayName
		existing.conn = conn
		existing.connected = true
		return m.snapshot(), nil
	}
	if len(m.players) >= m.maxPlayers {
		return domain.MatchInfo{}, domain.ErrMatchFull
	}
	if err := m.hooks.recordUser(user.UserID, m.id); err != nil {
		return domain.MatchInfo{}, err
	}

	m.joinCounter++
	m.players[user.UserID] = &playerState{
		identity:  user,
		conn:      conn,
		connected: true,
		answered:  make(map[string]struct{}),
		joinSeq:   m.joinCounter,
	}
	log.Info().Str("match_id", m.id).Str("user_id", user.UserID).Int("players", len(m.players)).Msg("player joined match")

	m.broadcast(Event{Type: EventPlayerJoined, Payload: PlayerEventPayload{
		UserID:      user.UserID,
		DisplayName: user.DisplayName,
	}}, user.UserID)
	return m.snapshot(), nil
}

func (m *Match) handleReady(userID string) error {
	if m.status != domain.StatusWaiting {
		return domain.ErrInvalidState
	}
	player, ok := m.players[userID]
	if !ok {
		return domain.ErrPlayerNotFound
	}
	if player.ready {
		return nil
	}
	player.ready = true
	m.broadcast(Event{Type: EventPlayerReady, Payload: PlayerEventPayload{
		UserID:      userID,
		DisplayName: player.identity.DisplayName,
	}}, "")

	m.startIfAllReady()
	return nil
}

func (m *Match) startIfAllReady() {
	if m.status != domain.StatusWaiting || len(m.players) < 2 {
		return
	}
	for _, p := range m.players {
		if !p.ready {
			return
		}
	}

	m.status = domain.StatusInProgress
	m.current = 0
	m.questionStartedAt = m.clock.Now()
	log.Info().Str("match_id", m.id).Int("players", len(m.players)).Int("questions", len(m.quiz.Questions)).Msg("match started")

	m.broadcast(Event{Type: EventMatchStarted, Payload: m.currentQuestionPayload()}, "")
	m.scheduleAdvance()
}

func (m *Match) handleAnswer(userID string, sub domain.AnswerSubmission) (domain.AnswerResult, error) {
	if m.status != domain.StatusInProgress {
		return domain.AnswerResult{}, domain.ErrInvalidState
	}
	player, ok := m.players[userID]
	if !ok {
		return domain.AnswerResult{}, domain.ErrPlayerNotFound
	}
	question := m.quiz.Questions[m.current]
	if sub.QuestionID != question.ID {
		return domain.AnswerResult{}, domain.ErrQuestionNotActive
	}
	if _, dup := player.answered[question.ID]; dup {
		return domain.AnswerResult{}, domain.ErrDuplicateSubmission
	}

	limit := m.questionLimitSec()
	correct, points := Score(question, sub.SelectedOptions, sub.TimeSpentSec, float64(limit))

	player.answered[question.ID] = struct{}{}
	player.answers = append(player.answers, domain.Answer{
		QuestionID:      question.ID,
		SelectedOptions: sub.SelectedOptions,
		TimeSpentSec:    sub.TimeSpentSec,
		Correct:         correct,
		Points:          points,
	})
	player.score += points

	return domain.AnswerResult{
		QuestionID:     question.ID,
		Correct:        correct,
		Points:         points,
		CorrectOptions: CorrectOptions(question),
		TotalScore:     player.score,
	}, nil
}

func (m *Match) handleDisconnect(userID string) {
	player, ok := m.players[userID]
	if !ok {
		return
	}

	if m.status == domain.StatusWaiting {
		// Leaving a lobby removes the player entirely; the index entry goes
		// with them. An emptied lobby is deleted on the spot.
		delete(m.players, userID)
		m.hooks.clearUser(userID)
		if len(m.players) == 0 {
			log.Info().Str("match_id", m.id).Msg("last player left waiting match, removing")
			m.hooks.remove(m.id)
			return
		}
		m.broadcast(Event{Type: EventPlayerDisconnected, Payload: PlayerEventPayload{
			UserID:      userID,
			DisplayName: player.identity.DisplayName,
		}}, "")
		m.startIfAllReady()
		return
	}

	// In progress or completed: the player entry and its answers survive so
	// scoring history is never erased. Only the connection goes stale.
	player.connected = false
	player.conn = nil
	m.hooks.clearUser(userID)
	m.broadcast(Event{Type: EventPlayerDisconnected, Payload: PlayerEventPayload{
		UserID:      userID,
		DisplayName: player.identity.DisplayName,
	}}, "")
}

func (m *Match) handleAdvance(questionIndex int) {
	if m.status != domain.StatusInProgress || questionIndex != m.current {
		// Stale timer racing a removal or an already-applied transition.
		log.Debug().Str("match_id", m.id).Int("fired_for", questionIndex).Msg("ignoring stale advance")
		return
	}

	m.current++
	if m.current >= len(m.quiz.Questions) {
		m.complete()
		return
	}

	m.questionStartedAt = m.clock.Now()
	m.broadcast(Event{Type: EventNextQuestion, Payload: m.currentQuestionPayload()}, "")
	m.scheduleAdvance()
}

func (m *Match) complete() {
	m.status = domain.StatusCompleted
	m.current = len(m.quiz.Questions) - 1
	m.cancelAdvanceTimer()

	players := make([]*playerState, 0, len(m.players))
	for _, p := range m.players {
		players = append(players, p)
	}
	rankings := computeRankings(players)
	log.Info().Str("match_id", m.id).Int("players", len(rankings)).Msg("match completed")

	m.broadcast(Event{Type: EventMatchCompleted, Payload: CompletedPayload{
		MatchID:  m.id,
		Rankings: rankings,
	}}, "")
	m.hooks.persist(m.id, matchResults(rankings))

	// Keep the completed match queryable for a while before reclaiming it.
	// The timer is armed here, not in the goroutine, so it is registered
	// before any caller can observe the completed status.
	retention := m.clock.After(m.retention)
	go func() {
		select {
		case <-retention:
			m.hooks.remove(m.id)
		case <-m.done:
		}
	}()
}

func (m *Match) currentQuestionPayload() QuestionPayload {
	return sanitizeQuestion(m.quiz.Questions[m.current], m.current, len(m.quiz.Questions), m.questionLimitSec())
}

func (m *Match) questionLimitSec() int {
	if limit := m.quiz.Questions[m.current].TimeLimitSec; limit > 0 {
		return limit
	}
	return int(m.questionTime / time.Second)
}

// broadcast fans an event out to connected players, skipping except. Send is
// a non-blocking enqueue, so the loop never waits on the network here.
func (m *Match) broadcast(event Event, except string) {
	for id, p := range m.players {
		if id == except || !p.connected || p.conn == nil {
			continue
		}
		p.conn.Send(event)
	}
}

func (m *Match) snapshot() domain.MatchInfo {
	players := make([]*playerState, 0, len(m.players))
	for _, p := range m.players {
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool { return players[i].joinSeq < players[j].joinSeq })

	views := make([]domain.PlayerView, 0, len(players))
	for _, p := range players {
		views = append(views, domain.PlayerView{
			UserID:      p.identity.UserID,
			DisplayName: p.identity.DisplayName,
			Score:       p.score,
			Ready:       p.ready,
			Connected:   p.connected,
		})
	}

	return domain.MatchInfo{
		ID:             m.id,
		JoinCode:       m.joinCode,
		QuizID:         m.quiz.ID,
		QuizTitle:      m.quiz.Title,
		Status:         m.status,
		MaxPlayers:     m.maxPlayers,
		Players:        views,
		QuestionIndex:  m.current,
		TotalQuestions: len(m.quiz.Questions),
		CreatedAt:      m.createdAt,
	}
}
