package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/paircast/relay/internal/protocol"
)

// DefaultFetchDelay is how long a receiver waits after load before asking
// for the currently active code. The delay gives the push channel time to
// establish so the announced code is not missed between the two.
const DefaultFetchDelay = 500 * time.Millisecond

// LogEntry is one relayed message stamped with its local receipt time.
// Ordering is receipt order, not send order.
type LogEntry struct {
	At   time.Time
	Body string
}

// ReceiverConfig configures a receiver session. Surface and Open are
// required; FetchCode may be nil when there is no code endpoint to poll.
type ReceiverConfig struct {
	// RootURL is the root address join URLs are derived from.
	RootURL    string
	Surface    ReceiverSurface
	Open       OpenStreamFunc
	FetchCode  FetchCodeFunc
	FetchDelay time.Duration
}

// ReceiverSession passively renders relayed messages most-recent-first and
// presents or hides the pairing target on demand. It requires no code of
// its own; the receiver is the trusted display.
type ReceiverSession struct {
	rootURL    string
	surface    ReceiverSurface
	open       OpenStreamFunc
	fetchCode  FetchCodeFunc
	fetchDelay time.Duration

	mu      sync.Mutex
	state   ConnState
	entries []LogEntry
}

func NewReceiverSession(cfg ReceiverConfig) *ReceiverSession {
	delay := cfg.FetchDelay
	if delay <= 0 {
		delay = DefaultFetchDelay
	}

	return &ReceiverSession{
		rootURL:    cfg.RootURL,
		surface:    cfg.Surface,
		open:       cfg.Open,
		fetchCode:  cfg.FetchCode,
		fetchDelay: delay,
		state:      StateNew,
	}
}

// Connect opens the push channel and schedules the one-shot current-code
// fetch. It returns once the stream is established or failed to open; the
// stream itself runs until ctx is canceled.
func (s *ReceiverSession) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateNew {
		s.mu.Unlock()
		return nil
	}
	s.state = StateConnecting
	s.mu.Unlock()

	err := s.open(ctx, StreamEvents{
		OnOpen:  s.handleOpen,
		OnEvent: s.HandleEvent,
		OnError: s.handleError,
	})
	if err != nil {
		s.handleError(err)
		return err
	}

	if s.fetchCode != nil {
		go s.fetchCurrentCode(ctx)
	}

	return nil
}

// HandleEvent processes one raw push payload. Malformed payloads are
// logged and dropped; the channel stays open for the next event.
func (s *ReceiverSession) HandleEvent(raw []byte) {
	ev, err := protocol.ParsePushEvent(raw)
	if err != nil {
		log.Warn().Err(err).Str("payload", string(raw)).Msg("dropping malformed push event")
		return
	}

	switch ev.Kind {
	case protocol.PushUpdate:
		entry := LogEntry{At: time.Now(), Body: ev.Body}
		s.mu.Lock()
		s.entries = append([]LogEntry{entry}, s.entries...)
		s.mu.Unlock()
		s.surface.PrependEntry(entry)

	case protocol.PushShowCode:
		s.showCode(ev.Code)

	case protocol.PushHideCode:
		s.surface.HidePairingTarget()

	case protocol.PushPing:
		// keepalive, nothing to render

	default:
		log.Info().Str("type", ev.RawType).Msg("unhandled push event type")
	}
}

// Entries returns a copy of the visible log, most recent first.
func (s *ReceiverSession) Entries() []LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := make([]LogEntry, len(s.entries))
	copy(entries, s.entries)
	return entries
}

// State reports the channel state.
func (s *ReceiverSession) State() ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *ReceiverSession) showCode(code string) {
	joinURL := protocol.JoinURL(s.rootURL, code)
	s.surface.ShowPairingTarget(joinURL)
}

// fetchCurrentCode covers the case where a code was already showing before
// this receiver loaded: one delayed read request, routed through the same
// showCode path as pushed announcements.
func (s *ReceiverSession) fetchCurrentCode(ctx context.Context) {
	timer := time.NewTimer(s.fetchDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	s.FetchCurrentCodeNow(ctx)
}

func (s *ReceiverSession) handleOpen() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateConnecting {
		s.state = StateOpen
	}
	s.surface.SetDegraded(false)
}

// handleError logs and surfaces a degraded indicator. No reconnect is
// attempted; unlike the controller there is no terminal lockout either.
func (s *ReceiverSession) handleError(err error) {
	log.Error().Err(err).Msg("receiver channel error")

	s.mu.Lock()
	s.state = StateErrored
	s.mu.Unlock()

	s.surface.SetDegraded(true)
}

// FetchCurrentCodeNow runs the current-code fetch without the startup
// delay. Used when the caller knows the stream is already established.
func (s *ReceiverSession) FetchCurrentCodeNow(ctx context.Context) {
	if s.fetchCode == nil {
		return
	}

	code, err := s.fetchCode(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to fetch current access code")
		return
	}

	if code != "" {
		s.showCode(code)
	}
}
