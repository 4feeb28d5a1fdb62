package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/paircast/relay/internal/protocol"
)

// Feedback strings surfaced by the controller session. These are part of
// the observable contract; tests compare them exactly.
const (
	feedbackMissingCode  = "Missing code"
	feedbackNothing      = "Nothing to send."
	feedbackNotConnected = "Not connected"
	feedbackInvalid      = "Invalid"
	feedbackExpired      = "Code has expired"
	feedbackSocketClosed = "Socket closed"
)

// SubmitPolicy decides what happens when Submit is called before the
// channel reaches the open state.
type SubmitPolicy int

const (
	// SubmitReject refuses early submissions with feedback. Default.
	SubmitReject SubmitPolicy = iota
	// SubmitQueue holds early submissions and flushes them in order once
	// the channel opens.
	SubmitQueue
)

// ClosePolicy decides whether a clean channel close disables submission.
type ClosePolicy int

const (
	// CloseKeepsEnabled leaves submission enabled after a clean close.
	// Default; only a transport error is terminal.
	CloseKeepsEnabled ClosePolicy = iota
	// CloseDisables treats a clean close like a transport error.
	CloseDisables
)

// ControllerConfig configures a controller session. Surface and Dial are
// required; Code may be empty, in which case the session starts disabled.
type ControllerConfig struct {
	Code         string
	Surface      ControllerSurface
	Dial         DialFunc
	SubmitPolicy SubmitPolicy
	ClosePolicy  ClosePolicy
}

// ControllerSession submits text updates under a single access code and
// reflects the server's delivery feedback. A transport error disables
// submission for the remaining life of the session; there is no reconnect.
type ControllerSession struct {
	code         string
	surface      ControllerSurface
	dial         DialFunc
	submitPolicy SubmitPolicy
	closePolicy  ClosePolicy

	mu            sync.Mutex
	state         ConnState
	conn          DuplexConn
	disabled      bool
	queued        []string
	lastSubmitted string
}

// NewControllerSession builds a session for one page lifetime. A missing
// code is a precondition failure, not a protocol round-trip: the session
// surfaces "Missing code", disables submission, and will never dial.
func NewControllerSession(cfg ControllerConfig) *ControllerSession {
	s := &ControllerSession{
		code:         cfg.Code,
		surface:      cfg.Surface,
		dial:         cfg.Dial,
		submitPolicy: cfg.SubmitPolicy,
		closePolicy:  cfg.ClosePolicy,
		state:        StateNew,
	}

	if strings.TrimSpace(s.code) == "" {
		s.disabled = true
		s.surface.Feedback(feedbackMissingCode)
		s.surface.SetSubmitEnabled(false)
	}

	return s
}

// Connect opens the duplex channel. It is a no-op for a disabled session.
func (s *ControllerSession) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.disabled || s.state != StateNew {
		s.mu.Unlock()
		return nil
	}
	s.state = StateConnecting
	s.mu.Unlock()

	conn, err := s.dial(ctx, ConnEvents{
		OnOpen:    s.handleOpen,
		OnMessage: s.handleMessage,
		OnError:   s.handleError,
		OnClose:   s.handleClose,
	})
	if err != nil {
		s.handleError(err)
		return err
	}

	s.mu.Lock()
	s.conn = conn
	// A transport that reports open synchronously during dial fires the
	// open callback before the conn is stored; flush anything it left queued.
	s.flushQueueLocked()
	s.mu.Unlock()
	return nil
}

// Submit validates and sends one text update. Empty or whitespace-only
// text never reaches the network. The feedback area is cleared
// optimistically on send; the input field is only cleared once the server
// confirms the relay.
func (s *ControllerSession) Submit(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disabled {
		return
	}

	if strings.TrimSpace(text) == "" {
		s.surface.Feedback(feedbackNothing)
		return
	}

	if s.state != StateOpen || s.conn == nil {
		switch s.submitPolicy {
		case SubmitQueue:
			s.queued = append(s.queued, text)
		default:
			s.surface.Feedback(feedbackNotConnected)
		}
		return
	}

	s.sendLocked(text)
}

// sendLocked sends one update. Callers hold s.mu.
func (s *ControllerSession) sendLocked(text string) {
	s.surface.Feedback("")
	s.lastSubmitted = text

	msg := protocol.UpdateMessage{
		Type: protocol.TypeUpdate,
		Code: s.code,
		Body: text,
	}

	if err := s.conn.Send(msg); err != nil {
		s.failLocked(err)
	}
}

// State reports the channel state.
func (s *ControllerSession) State() ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Disabled reports whether submission has been permanently disabled.
func (s *ControllerSession) Disabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disabled
}

// Close releases the channel without treating it as an error.
func (s *ControllerSession) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (s *ControllerSession) handleOpen() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateConnecting {
		return
	}
	s.state = StateOpen
	s.flushQueueLocked()
}

// flushQueueLocked sends queued submissions in order. Callers hold s.mu.
// Flushing needs both an open state and a stored conn; either side can be
// reached first depending on the transport's callback timing.
func (s *ControllerSession) flushQueueLocked() {
	if s.state != StateOpen || s.conn == nil {
		return
	}

	queued := s.queued
	s.queued = nil
	for _, text := range queued {
		if s.disabled {
			return
		}
		s.sendLocked(text)
	}
}

func (s *ControllerSession) handleMessage(raw string) {
	reply := protocol.ParseReply(raw)

	s.mu.Lock()
	defer s.mu.Unlock()

	switch reply.Kind {
	case protocol.ReplyInvalid:
		s.surface.Feedback(feedbackInvalid)
	case protocol.ReplyExpired:
		s.surface.Feedback(feedbackExpired)
	case protocol.ReplyRelayed:
		s.surface.Feedback(fmt.Sprintf("Message relayed '%s'", s.lastSubmitted))
		s.surface.ClearInput()
	default:
		log.Debug().Str("raw", reply.Raw).Msg("ignoring unrecognized reply")
	}
}

func (s *ControllerSession) handleError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failLocked(err)
}

// failLocked marks the session terminally errored. Callers hold s.mu.
func (s *ControllerSession) failLocked(err error) {
	log.Error().Err(err).Msg("controller channel error")

	s.state = StateErrored
	s.disabled = true
	s.surface.Feedback(feedbackSocketClosed)
	s.surface.SetSubmitEnabled(false)
}

func (s *ControllerSession) handleClose() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateErrored {
		return
	}
	s.state = StateClosed

	if s.closePolicy == CloseDisables {
		s.disabled = true
		s.surface.SetSubmitEnabled(false)
	}
}
