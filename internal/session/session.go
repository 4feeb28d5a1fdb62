// Package session implements the client-side halves of the relay protocol:
// a controller session submitting updates over a duplex channel, and a
// receiver session rendering pushed events. Sessions own their channel and
// their connection state; controllers and receivers never reference each
// other, all coupling goes through the relay server via the access code.
package session

import (
	"context"

	"github.com/paircast/relay/internal/protocol"
)

// ConnState tracks the lifecycle of a session's single channel.
type ConnState int

const (
	StateNew ConnState = iota
	StateConnecting
	StateOpen
	StateClosed
	StateErrored
)

func (s ConnState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// ControllerSurface is the rendering surface a controller session drives.
// Implementations are expected to be cheap and non-blocking.
type ControllerSurface interface {
	// Feedback replaces the visible feedback text. An empty string clears it.
	Feedback(msg string)
	// ClearInput empties the message input field.
	ClearInput()
	// SetSubmitEnabled enables or disables the submit affordance.
	SetSubmitEnabled(enabled bool)
}

// ReceiverSurface is the rendering surface a receiver session drives.
type ReceiverSurface interface {
	// PrependEntry inserts a log entry above all existing entries.
	PrependEntry(entry LogEntry)
	// ShowPairingTarget makes the pairing target visible for the join URL.
	ShowPairingTarget(joinURL string)
	// HidePairingTarget clears and hides the pairing target.
	HidePairingTarget()
	// SetDegraded toggles a visible indicator that the push channel is down.
	SetDegraded(degraded bool)
}

// DuplexConn is a controller session's bidirectional channel.
type DuplexConn interface {
	Send(msg protocol.UpdateMessage) error
	Close() error
}

// ConnEvents carries the callbacks a duplex transport invokes. All
// callbacks must be non-nil. There is no ordering guarantee between
// callback delivery and user-initiated actions on the session.
type ConnEvents struct {
	OnOpen    func()
	OnMessage func(raw string)
	OnError   func(err error)
	OnClose   func()
}

// DialFunc opens a duplex channel, wiring 'events' to the transport.
type DialFunc func(ctx context.Context, events ConnEvents) (DuplexConn, error)

// StreamEvents carries the callbacks a push transport invokes.
type StreamEvents struct {
	OnOpen  func()
	OnEvent func(raw []byte)
	OnError func(err error)
}

// OpenStreamFunc opens a push channel. The stream runs until the context
// is canceled or the transport fails.
type OpenStreamFunc func(ctx context.Context, events StreamEvents) error

// FetchCodeFunc retrieves the currently active access code.
type FetchCodeFunc func(ctx context.Context) (string, error)
