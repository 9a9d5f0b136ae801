package match

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// scheduleAdvance arms the one-shot timer that moves the match to the next
// question. The timer is the sole authority for progression: it is never
// shortened when players answer early, so question timing stays uniform.
// Called only from the run loop, which keeps exactly one timer active.
func (m *Match) scheduleAdvance() {
	m.cancelAdvanceTimer()

	limit := time.Duration(m.questionLimitSec()) * time.Second
	timer := m.clock.NewTimer(limit)
	m.advanceTimer = timer

	index := m.current
	go func() {
		select {
		case <-timer.Chan():
			select {
			case m.commands <- advanceCmd{questionIndex: index}:
			case <-m.done:
			}
		case <-m.done:
			stopAndDrainTimer(timer)
		}
	}()

	log.Debug().Str("match_id", m.id).Int("question", index).Dur("limit", limit).Msg("scheduled question advance")
}

// cancelAdvanceTimer stops the pending advance timer, if any. Run-loop only.
func (m *Match) cancelAdvanceTimer() {
	if m.advanceTimer == nil {
		return
	}
	stopAndDrainTimer(m.advanceTimer)
	m.advanceTimer = nil
}

// stopAndDrainTimer stops a timer and drains its channel so the waiting
// goroutine never leaks a buffered tick.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
