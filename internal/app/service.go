/**
 * @description
 * This file contains the core business logic for the settlement-service. The
 * `Service` struct orchestrates the settlement state machine: user
 * registration and KYC gating, the transfer escrow lifecycle, the liquidity
 * provider registry, and the withdrawal settlement lifecycle. It coordinates
 * between the record repository, the Token Ledger client, and the message
 * broker.
 *
 * Key invariants enforced here:
 * - Every operation re-derives the expected record address from its seeds
 *   and rejects a mismatching client-supplied address.
 * - Every error aborts the whole operation with no partial mutation.
 * - Per-user counters advance by exactly one per successful initiate/request
 *   and double as the uniqueness nonce for derived request addresses.
 *
 * @dependencies
 * - context, errors, fmt, log, time: Standard Go libraries.
 * - internal/addressing, internal/domain, internal/ledger, internal/store.
 * - pkg/rabbitmq: Settlement event publishing.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/crosspay/settlement-service/internal/addressing"
	"github.com/crosspay/settlement-service/internal/domain"
	"github.com/crosspay/settlement-service/internal/ledger"
	"github.com/crosspay/settlement-service/internal/store"
	"github.com/crosspay/settlement-service/pkg/rabbitmq"
)

// EventsExchange is the topic exchange settlement events are published to.
const EventsExchange = "crosspay.events"

// ErrRateLimited is returned when an authority exceeds the configured
// operation rate limit.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimiter is the distributed limiter consulted before the
// request-creating operations. A nil limiter disables limiting.
type RateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// Service provides the core business logic for settlement operations.
type Service struct {
	repo     store.Repository
	tokens   ledger.TokenLedger
	events   rabbitmq.Publisher
	treasury domain.Identity

	limiter                  RateLimiter
	transferLimitPerMinute   int
	withdrawalLimitPerMinute int
}

// NewService creates a new settlement service instance. The treasury account
// receives the platform fee withheld at transfer confirmation.
func NewService(repo store.Repository, tokens ledger.TokenLedger, events rabbitmq.Publisher, treasury domain.Identity) *Service {
	return &Service{
		repo:     repo,
		tokens:   tokens,
		events:   events,
		treasury: treasury,
	}
}

// SetRateLimiter wires the distributed rate limiter.
func (s *Service) SetRateLimiter(limiter RateLimiter) {
	s.limiter = limiter
}

// ConfigureRateLimits sets the per-authority per-minute budgets for the
// request-creating operations. Zero disables the corresponding limit.
func (s *Service) ConfigureRateLimits(transferPerMinute, withdrawalPerMinute int) {
	s.transferLimitPerMinute = transferPerMinute
	s.withdrawalLimitPerMinute = withdrawalPerMinute
}

func (s *Service) consumeRateLimit(ctx context.Context, scope string, authority domain.Identity, limit int) error {
	if s.limiter == nil || limit <= 0 {
		return nil
	}
	count, _, err := s.limiter.ConsumeRateLimit(ctx, scope, string(authority), limit, time.Minute)
	if err != nil {
		// Limiter outages must not block settlement; log and continue.
		log.Printf("level=warn component=app scope=%s msg=\"rate limiter unavailable\" err=%v", scope, err)
		return nil
	}
	if count > limit {
		return ErrRateLimited
	}
	return nil
}

// publish sends a settlement event best-effort; publish failures never fail
// the operation that produced them.
func (s *Service) publish(ctx context.Context, routingKey string, body interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, EventsExchange, routingKey, body); err != nil {
		log.Printf("level=warn component=app msg=\"event publish failed\" routing_key=%s err=%v", routingKey, err)
	}
}

// InitializeUser creates the profile record for the calling authority at its
// derived address. Counters start at zero and KYC starts unverified.
func (s *Service) InitializeUser(ctx context.Context, authority domain.Identity, role domain.UserRole, countryCode string) (*domain.UserProfile, error) {
	if authority == "" {
		return nil, domain.ErrUnauthorized
	}
	if !domain.ValidRole(role) {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidRole, role)
	}
	countryCode = strings.ToUpper(strings.TrimSpace(countryCode))
	if !domain.ValidCountryCode(countryCode) {
		return nil, domain.ErrInvalidCountryCode
	}

	profile := &domain.UserProfile{
		Address:     addressing.ForUserProfile(string(authority)),
		Authority:   authority,
		Role:        role,
		CountryCode: countryCode,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.CreateUserProfile(ctx, profile); err != nil {
		return nil, err
	}

	log.Printf("level=info component=app op=initialize_user authority=%s role=%s country=%s", authority, role, countryCode)
	s.publish(ctx, "user.registered", domain.UserRegisteredEvent{
		EventID:     uuid.New(),
		Authority:   authority,
		Role:        role,
		CountryCode: countryCode,
		Timestamp:   profile.CreatedAt,
	})
	return profile, nil
}

// GetUserProfile returns the profile owned by the calling authority.
func (s *Service) GetUserProfile(ctx context.Context, authority domain.Identity) (*domain.UserProfile, error) {
	return s.repo.GetUserProfile(ctx, addressing.ForUserProfile(string(authority)))
}

// UpdateKycStatus overwrites the KYC verification fields of the caller's own
// profile. The hash's provenance is the identity verifier's concern; it is
// recorded as supplied.
func (s *Service) UpdateKycStatus(ctx context.Context, authority domain.Identity, verified bool, hash [domain.KycHashLen]byte) error {
	address := addressing.ForUserProfile(string(authority))
	profile, err := s.repo.GetUserProfile(ctx, address)
	if err != nil {
		return err
	}
	if profile.Authority != authority {
		return domain.ErrUnauthorized
	}
	if err := s.repo.UpdateKycStatus(ctx, address, verified, hash); err != nil {
		return err
	}
	log.Printf("level=info component=app op=update_kyc_status authority=%s verified=%t", authority, verified)
	return nil
}
