package match

import "quiz-arena-service/internal/domain"

// Commands are the only way match state is mutated. Each match's loop drains
// them one at a time, so player events and timer firings never interleave.
type command interface{ isCommand() }

type joinCmd struct {
	user  domain.Identity
	conn  Conn
	reply chan joinReply
}

type joinReply struct {
	info domain.MatchInfo
	err  error
}

type readyCmd struct {
	userID string
	reply  chan error
}

type answerCmd struct {
	userID string
	sub    domain.AnswerSubmission
	reply  chan answerReply
}

type answerReply struct {
	result domain.AnswerResult
	err    error
}

type disconnectCmd struct {
	userID string
	reply  chan struct{}
}

// advanceCmd is fired by the question timer. questionIndex guards against
// stale timers racing a manual transition or removal.
type advanceCmd struct {
	questionIndex int
}

type snapshotCmd struct {
	reply chan domain.MatchInfo
}

type forceEndCmd struct {
	reply chan struct{}
}

func (joinCmd) isCommand()       {}
func (readyCmd) isCommand()      {}
func (answerCmd) isCommand()     {}
func (disconnectCmd) isCommand() {}
func (advanceCmd) isCommand()    {}
func (snapshotCmd) isCommand()   {}
func (forceEndCmd) isCommand()   {}
