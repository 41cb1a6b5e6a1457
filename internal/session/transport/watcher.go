package transport

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/classrally/classrally/internal/rank"
	"github.com/classrally/classrally/internal/session"
	ws "github.com/classrally/classrally/pkg/http/ws"
)

// watcherSet runs one broadcaster per live session. The watcher owns the
// session's store subscription and pushes every committed document to all
// connected participants, each seeing their role's view.
type watcherSet struct {
	handler      *Handler
	clock        session.Clock
	tickInterval time.Duration
	logger       zerolog.Logger

	mu       sync.Mutex
	watching map[string]struct{}
}

func newWatcherSet(handler *Handler, clock session.Clock, tickInterval time.Duration, logger zerolog.Logger) *watcherSet {
	return &watcherSet{
		handler:      handler,
		clock:        clock,
		tickInterval: tickInterval,
		logger:       logger.With().Str("component", "session_watcher").Logger(),
		watching:     make(map[string]struct{}),
	}
}

// ensure starts a watcher for the session if none is running.
func (s *watcherSet) ensure(ctx context.Context, code string) error {
	s.mu.Lock()
	if _, ok := s.watching[code]; ok {
		s.mu.Unlock()
		return nil
	}
	s.watching[code] = struct{}{}
	s.mu.Unlock()

	updates, cancel, err := s.handler.svc.Subscribe(ctx, code)
	if err != nil {
		s.mu.Lock()
		delete(s.watching, code)
		s.mu.Unlock()
		return err
	}

	go s.run(code, updates, cancel)
	return nil
}

// run fans a session's document stream out to its participants until the
// stream closes or the session finishes. Detaching on the finished broadcast
// releases the store subscription so a finished session can be collected;
// late snapshot requests are still served from the store directly. A
// countdown goroutine shares the stream through a forwarding channel and
// emits sub-second ticks while a question is open.
func (s *watcherSet) run(code string, updates <-chan *session.Document, cancel func()) {
	defer cancel()
	defer func() {
		s.mu.Lock()
		delete(s.watching, code)
		s.mu.Unlock()
	}()

	ctx, stopCountdown := context.WithCancel(context.Background())
	defer stopCountdown()

	countdownDocs := make(chan *session.Document, 8)
	countdown := session.NewCountdown(s.clock, s.tickInterval, s.logger)
	go countdown.Run(ctx, countdownDocs, func(tick session.Tick) {
		s.broadcastTick(code, tick)
	})

	var prevHost, prevTeam []rank.Entry
	for doc := range updates {
		select {
		case countdownDocs <- doc:
		default:
			// countdown only needs the latest document; dropping is fine
		}

		prevHost, prevTeam = s.broadcast(code, doc, prevHost, prevTeam)

		if doc.Status == session.StatusFinished {
			break
		}
	}
	close(countdownDocs)

	s.logger.Debug().Str("code", code).Msg("watcher stopped")
}

// broadcast sends the document and rankings to every attached participant,
// choosing the host or team view by comparing the participant id against the
// document's host.
func (s *watcherSet) broadcast(code string, doc *session.Document, prevHost, prevTeam []rank.Entry) (hostEntries, teamEntries []rank.Entry) {
	h := s.handler

	hostState := h.statePayload(code, doc, true)
	teamState := h.statePayload(code, doc, false)

	hostEntries = h.ranker.Compute(doc)
	teamEntries = h.ranker.ComputeVisible(doc)
	hostRanking := rankingMessage(hostEntries, rank.Movement(prevHost, hostEntries))
	teamRanking := rankingMessage(teamEntries, rank.Movement(prevTeam, teamEntries))

	hostMsg := stateMessage(hostState)
	teamMsg := stateMessage(teamState)

	for _, pid := range h.hub.SessionParticipants(code) {
		isHost := pid.String() == doc.HostID
		if isHost {
			h.hub.SendToParticipant(pid, hostMsg)
			h.hub.SendToParticipant(pid, hostRanking)
		} else {
			h.hub.SendToParticipant(pid, teamMsg)
			h.hub.SendToParticipant(pid, teamRanking)
		}
	}
	return hostEntries, teamEntries
}

func (s *watcherSet) broadcastTick(code string, tick session.Tick) {
	payload := ws.CountdownTickPayload{
		QuestionIndex: tick.QuestionIndex,
		RemainingMs:   tick.Remaining.Milliseconds(),
		ServerTime:    tick.ServerTime.UnixMilli(),
	}
	msg := ws.Message{Type: ws.TypeCountdownTick}
	msg.Payload, _ = json.Marshal(payload)
	s.handler.hub.BroadcastToSession(code, msg)
}

func stateMessage(state ws.SessionStatePayload) ws.Message {
	msg := ws.Message{Type: ws.TypeSessionState}
	msg.Payload, _ = json.Marshal(state)
	return msg
}

func rankingMessage(entries []rank.Entry, moves map[string]int) ws.Message {
	out := make([]ws.RankingEntry, len(entries))
	for i, e := range entries {
		out[i] = ws.RankingEntry{
			Team:                  e.Team,
			Score:                 e.Score,
			CurrentQuestionPoints: e.CurrentQuestionPoints,
			HasAnswered:           e.HasAnswered,
			Rank:                  e.Rank,
			Movement:              moves[e.Team],
		}
	}
	msg := ws.Message{Type: ws.TypeRankingUpdate}
	msg.Payload, _ = json.Marshal(ws.RankingUpdatePayload{Entries: out})
	return msg
}
