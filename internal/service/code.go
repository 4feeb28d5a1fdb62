package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/paircast/relay/internal/model"
	"github.com/paircast/relay/internal/repository"
)

// Alphabet excludes O, I, 0 and 1 so codes survive being read off a screen.
const accessCodeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// ValidationOutcome classifies a presented access code.
type ValidationOutcome int

const (
	CodeInvalid ValidationOutcome = iota
	CodeExpired
	CodeValid
)

// ValidationResult carries the outcome of checking a presented code.
// FirstUse is true when this is the first message relayed with the code,
// which is when receivers should hide the pairing target.
type ValidationResult struct {
	Outcome  ValidationOutcome
	FirstUse bool
}

type CodeService struct {
	codeRepo repository.AccessCodeRepository
	ttl      time.Duration
}

func NewCodeService(codeRepo repository.AccessCodeRepository, ttl time.Duration) *CodeService {
	return &CodeService{
		codeRepo: codeRepo,
		ttl:      ttl,
	}
}

// Issue mints and stores a fresh access code expiring one TTL from now.
func (s *CodeService) Issue(ctx context.Context) (*model.AccessCode, error) {
	var code string
	for attempts := 0; attempts < 10; attempts++ {
		code = generateRandomCode()
		existing, err := s.codeRepo.FindByCode(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("check code uniqueness: %w", err)
		}
		if existing == nil {
			break
		}
	}

	ac, err := s.codeRepo.Create(ctx, model.CreateAccessCodeParams{
		Code:      code,
		ExpiresAt: time.Now().Add(s.ttl),
	})
	if err != nil {
		return nil, fmt.Errorf("create access code: %w", err)
	}

	log.Info().
		Str("code", ac.Code).
		Time("expiresAt", ac.ExpiresAt).
		Msg("access code issued")

	return ac, nil
}

// Current returns the newest unexpired code, or nil when none exists.
func (s *CodeService) Current(ctx context.Context) (*model.AccessCode, error) {
	return s.codeRepo.Current(ctx)
}

// Validate checks a code presented by a controller and, when the code is
// good, stamps its last-used time. A code is expired, not merely invalid,
// when its immediate successor has already carried traffic: the controller
// held a real code that rotation has since retired.
func (s *CodeService) Validate(ctx context.Context, code string) ValidationResult {
	ac, err := s.codeRepo.FindByCode(ctx, code)
	if err != nil {
		log.Error().Err(err).Msg("validate code: database error")
		return ValidationResult{Outcome: CodeInvalid}
	}

	if ac == nil {
		log.Warn().Str("code", code).Msg("unknown access code")
		return ValidationResult{Outcome: CodeInvalid}
	}

	successor, err := s.codeRepo.NewestAfter(ctx, ac.CreatedAt)
	if err != nil {
		log.Error().Err(err).Msg("validate code: successor lookup")
		return ValidationResult{Outcome: CodeInvalid}
	}

	if successor != nil && successor.Used() {
		log.Warn().
			Str("code", code).
			Str("successor", successor.Code).
			Msg("access code expired, a newer code is in use")
		return ValidationResult{Outcome: CodeExpired}
	}

	firstUse := !ac.Used()

	if err := s.codeRepo.TouchLastUsed(ctx, ac.Code, time.Now()); err != nil {
		log.Error().Err(err).Str("code", ac.Code).Msg("failed to stamp last use")
	}

	return ValidationResult{Outcome: CodeValid, FirstUse: firstUse}
}

func generateRandomCode() string {
	chars := []byte(accessCodeChars)
	part1 := make([]byte, 4)
	part2 := make([]byte, 4)

	for i := 0; i < 4; i++ {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
		part1[i] = chars[n.Int64()]
	}
	for i := 0; i < 4; i++ {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
		part2[i] = chars[n.Int64()]
	}

	return fmt.Sprintf("%s-%s", string(part1), string(part2))
}
