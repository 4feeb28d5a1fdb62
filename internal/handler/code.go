package handler

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	apperrors "github.com/paircast/relay/internal/errors"
	"github.com/paircast/relay/internal/httputil"
	"github.com/paircast/relay/internal/model"
	"github.com/paircast/relay/internal/repository"
	"github.com/paircast/relay/internal/service"
	"github.com/paircast/relay/internal/sse"
)

// CurrentCoder looks up the active access code. *service.CodeService
// implements it.
type CurrentCoder interface {
	Current(ctx context.Context) (*model.AccessCode, error)
}

// CodeResponse is the body returned by the current-code endpoint.
type CodeResponse struct {
	Code string `json:"code"`
}

// CodeHandler serves the current-code lookup endpoint. Besides returning
// the code, it re-announces it to receivers over the push channel and
// resets its last-used mark, so a receiver that reloads mid-rotation gets
// the pairing target back.
type CodeHandler struct {
	codes     CurrentCoder
	codeRepo  repository.AccessCodeRepository
	publisher service.EventPublisher
}

func NewCodeHandler(codes CurrentCoder, codeRepo repository.AccessCodeRepository, publisher service.EventPublisher) *CodeHandler {
	return &CodeHandler{
		codes:     codes,
		codeRepo:  codeRepo,
		publisher: publisher,
	}
}

func (h *CodeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ac, err := h.codes.Current(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to look up current access code")
		httputil.WriteError(w, apperrors.Database(err))
		return
	}

	if ac == nil {
		httputil.WriteError(w, apperrors.NoActiveCode())
		return
	}

	// A receiver asking for the code means it wants to show the pairing
	// target again, so clear any stale first-use mark that would keep the
	// target hidden.
	if err := h.codeRepo.ResetLastUsed(ctx, ac.Code); err != nil {
		log.Error().Err(err).Str("code", ac.Code).Msg("failed to reset last use")
		httputil.WriteError(w, apperrors.Database(err))
		return
	}

	if err := h.publisher.Publish(ctx, sse.NewShowCodeEvent(ac.Code)); err != nil {
		log.Error().Err(err).Msg("failed to publish showCode event")
	}

	writeJSON(w, http.StatusOK, CodeResponse{Code: ac.Code})
}
