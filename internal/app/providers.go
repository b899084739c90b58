/**
 * @description
 * Liquidity provider registry operations. Providers register at a derived
 * address with a starting trust score, then toggle their availability and
 * posted liquidity. Registration leaves the provider inactive until an
 * explicit availability update.
 */

package app

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/crosspay/settlement-service/internal/addressing"
	"github.com/crosspay/settlement-service/internal/domain"
)

// RegisterLiquidityProviderParams carries the registration inputs.
type RegisterLiquidityProviderParams struct {
	Location string
	FxRate   uint64
}

// RegisterLiquidityProvider creates the provider record for the calling
// authority. Providers start inactive with zero liquidity; selection is only
// possible after the provider activates itself and posts liquidity.
func (s *Service) RegisterLiquidityProvider(ctx context.Context, authority domain.Identity, params RegisterLiquidityProviderParams) (*domain.LiquidityProvider, error) {
	if authority == "" {
		return nil, domain.ErrUnauthorized
	}
	if !domain.ValidLocation(params.Location) {
		return nil, domain.ErrInvalidLocation
	}
	if params.FxRate == 0 {
		return nil, domain.ErrInvalidRate
	}

	provider := &domain.LiquidityProvider{
		Address:    addressing.ForLiquidityProvider(string(authority)),
		Authority:  authority,
		Location:   params.Location,
		FxRate:     params.FxRate,
		TrustScore: domain.DefaultTrustScore,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.CreateLiquidityProvider(ctx, provider); err != nil {
		return nil, err
	}

	log.Printf("level=info component=app op=register_provider authority=%s location=%q fx_rate=%d", authority, params.Location, params.FxRate)
	s.publish(ctx, "provider.registered", domain.ProviderRegisteredEvent{
		EventID:   uuid.New(),
		Address:   provider.Address.String(),
		Authority: authority,
		Location:  params.Location,
		FxRate:    params.FxRate,
		Timestamp: provider.CreatedAt,
	})
	return provider, nil
}

// UpdateProviderAvailability overwrites the provider's active flag and posted
// liquidity. Only the owning authority may update its own record. The new
// liquidity replaces the old value outright; it is a declaration, not a
// delta.
func (s *Service) UpdateProviderAvailability(ctx context.Context, authority domain.Identity, isActive bool, availableLiquidity uint64) (*domain.LiquidityProvider, error) {
	address := addressing.ForLiquidityProvider(string(authority))
	provider, err := s.repo.GetLiquidityProvider(ctx, address)
	if err != nil {
		return nil, err
	}
	if provider.Authority != authority {
		return nil, domain.ErrUnauthorized
	}
	if err := s.repo.UpdateProviderAvailability(ctx, address, availableLiquidity, isActive); err != nil {
		return nil, err
	}
	provider.IsActive = isActive
	provider.AvailableLiquidity = availableLiquidity
	log.Printf("level=info component=app op=update_provider_availability authority=%s active=%t liquidity=%d", authority, isActive, availableLiquidity)
	return provider, nil
}

// GetLiquidityProvider returns the provider record owned by an authority.
func (s *Service) GetLiquidityProvider(ctx context.Context, authority domain.Identity) (*domain.LiquidityProvider, error) {
	return s.repo.GetLiquidityProvider(ctx, addressing.ForLiquidityProvider(string(authority)))
}

// GetLiquidityProviderByAddress returns the provider record at an address.
func (s *Service) GetLiquidityProviderByAddress(ctx context.Context, address addressing.Address) (*domain.LiquidityProvider, error) {
	return s.repo.GetLiquidityProvider(ctx, address)
}
