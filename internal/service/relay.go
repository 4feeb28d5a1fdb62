package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/paircast/relay/internal/protocol"
	"github.com/paircast/relay/internal/sse"
)

// EventPublisher pushes events toward subscribed receivers. *sse.Broker is
// the production implementation.
type EventPublisher interface {
	Publish(ctx context.Context, event sse.Event) error
}

// RelayService turns controller updates into receiver events. The reply it
// returns goes back to the controller verbatim on its duplex channel.
type RelayService struct {
	codes     *CodeService
	publisher EventPublisher
}

func NewRelayService(codes *CodeService, publisher EventPublisher) *RelayService {
	return &RelayService{
		codes:     codes,
		publisher: publisher,
	}
}

// HandleUpdate validates the message's code and, when valid, fans the body
// out to receivers. The first message relayed with a code also hides the
// pairing target, since the pairing it advertised has now happened.
func (s *RelayService) HandleUpdate(ctx context.Context, msg protocol.UpdateMessage) protocol.ReplyKind {
	result := s.codes.Validate(ctx, msg.Code)

	switch result.Outcome {
	case CodeInvalid:
		return protocol.ReplyInvalid
	case CodeExpired:
		return protocol.ReplyExpired
	}

	if result.FirstUse {
		if err := s.publisher.Publish(ctx, sse.NewHideCodeEvent()); err != nil {
			log.Error().Err(err).Msg("failed to publish hideCode event")
		}
	}

	if err := s.publisher.Publish(ctx, sse.NewUpdateEvent(msg.Body)); err != nil {
		log.Error().Err(err).Msg("failed to publish update event")
		return protocol.ReplyUnrecognized
	}

	log.Info().
		Str("code", msg.Code).
		Int("bodyLen", len(msg.Body)).
		Msg("message relayed")

	return protocol.ReplyRelayed
}
