package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/paircast/relay/internal/service"
	"github.com/paircast/relay/internal/sse"
)

// RotateJob keeps one live access code in circulation: it mints a fresh
// code whenever the previous one has expired and announces it to
// receivers. It never retires a code early; an unexpired code stays valid
// for its full TTL even across job ticks.
type RotateJob struct {
	codes     *service.CodeService
	publisher service.EventPublisher
	interval  time.Duration
	done      chan struct{}
}

func NewRotateJob(codes *service.CodeService, publisher service.EventPublisher, interval time.Duration) *RotateJob {
	return &RotateJob{
		codes:     codes,
		publisher: publisher,
		interval:  interval,
		done:      make(chan struct{}),
	}
}

func (j *RotateJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("rotate job started")
}

func (j *RotateJob) Stop() {
	close(j.done)
	log.Info().Msg("rotate job stopped")
}

func (j *RotateJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.rotate()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.rotate()
		}
	}
}

func (j *RotateJob) rotate() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	current, err := j.codes.Current(ctx)
	if err != nil {
		log.Error().Err(err).Msg("rotate: failed to look up current code")
		return
	}

	if current != nil {
		log.Debug().
			Str("code", current.Code).
			Time("expiresAt", current.ExpiresAt).
			Msg("rotate: unexpired code still in circulation")
		return
	}

	ac, err := j.codes.Issue(ctx)
	if err != nil {
		log.Error().Err(err).Msg("rotate: failed to issue code")
		return
	}

	if err := j.publisher.Publish(ctx, sse.NewShowCodeEvent(ac.Code)); err != nil {
		log.Error().Err(err).Str("code", ac.Code).Msg("rotate: failed to announce code")
	}
}
