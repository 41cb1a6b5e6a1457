package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// defaultTickInterval keeps client countdowns in sub-second agreement with
// the engine's clock.
const defaultTickInterval = 250 * time.Millisecond

// Countdown emits remaining-time ticks for open questions. Clients render
// their timers from these ticks instead of local clocks, so every screen in
// the room counts down together.
type Countdown struct {
	clock    Clock
	interval time.Duration
	logger   zerolog.Logger
}

// NewCountdown creates a ticker with the given interval; zero means the
// default.
func NewCountdown(clock Clock, interval time.Duration, logger zerolog.Logger) *Countdown {
	if clock == nil {
		clock = SystemClock
	}
	if interval <= 0 {
		interval = defaultTickInterval
	}
	return &Countdown{
		clock:    clock,
		interval: interval,
		logger:   logger.With().Str("component", "countdown").Logger(),
	}
}

// Tick is one countdown emission for the currently open question.
type Tick struct {
	QuestionIndex int
	Remaining     time.Duration
	ServerTime    time.Time
}

// Run follows a session's document stream and calls emit once per interval
// while a question is open. The remaining time is recomputed from the
// question's start stamp on every tick, so a late subscriber or a paused
// goroutine can never drift the countdown. Run returns when the session
// finishes, the stream closes, or ctx is cancelled.
func (c *Countdown) Run(ctx context.Context, updates <-chan *Document, emit func(Tick)) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	var current *Document
	for {
		select {
		case <-ctx.Done():
			return
		case doc, ok := <-updates:
			if !ok {
				return
			}
			current = doc
			if doc.Status == StatusFinished {
				return
			}
		case <-ticker.C:
			if current == nil || current.Status != StatusPlaying {
				continue
			}
			now := c.clock()
			emit(Tick{
				QuestionIndex: current.CurrentQuestionIndex,
				Remaining:     current.Remaining(now),
				ServerTime:    now,
			})
		}
	}
}
