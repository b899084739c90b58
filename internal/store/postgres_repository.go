/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. Records are keyed by their hex-encoded derived address. State
 * transitions are conditional UPDATEs (`WHERE status = ...`); zero affected
 * rows is classified into the matching domain error. Multi-row operations
 * (request creation with counter bump, withdrawal finalization with provider
 * statistics) run inside a single transaction.
 *
 * @dependencies
 * - context, errors, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/addressing, internal/domain: Address and record types.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crosspay/settlement-service/internal/addressing"
	"github.com/crosspay/settlement-service/internal/domain"
)

// PostgresRepository is a concrete implementation of the Repository
// interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// CreateUserProfile allocates the profile row at its derived address.
func (r *PostgresRepository) CreateUserProfile(ctx context.Context, profile *domain.UserProfile) error {
	query := `
		INSERT INTO user_profiles (address, authority, role, country_code, kyc_verified, kyc_hash, total_sent, total_received, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(ctx, query,
		profile.Address.String(),
		string(profile.Authority),
		string(profile.Role),
		profile.CountryCode,
		profile.KycVerified,
		profile.KycHash[:],
		int64(profile.TotalSent),
		int64(profile.TotalReceived),
		profile.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrProfileExists
		}
		return err
	}
	return nil
}

func (r *PostgresRepository) scanUserProfile(row pgx.Row) (*domain.UserProfile, error) {
	var (
		profile       domain.UserProfile
		address       string
		authority     string
		role          string
		kycHash       []byte
		totalSent     int64
		totalReceived int64
	)
	err := row.Scan(&address, &authority, &role, &profile.CountryCode, &profile.KycVerified, &kycHash, &totalSent, &totalReceived, &profile.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	addr, err := addressing.Parse(address)
	if err != nil {
		return nil, fmt.Errorf("corrupt profile address %q: %w", address, err)
	}
	profile.Address = addr
	profile.Authority = domain.Identity(authority)
	profile.Role = domain.UserRole(role)
	copy(profile.KycHash[:], kycHash)
	profile.TotalSent = uint64(totalSent)
	profile.TotalReceived = uint64(totalReceived)
	return &profile, nil
}

// GetUserProfile retrieves the profile at the given address.
func (r *PostgresRepository) GetUserProfile(ctx context.Context, address addressing.Address) (*domain.UserProfile, error) {
	query := `
		SELECT address, authority, role, country_code, kyc_verified, kyc_hash, total_sent, total_received, created_at
		FROM user_profiles WHERE address = $1
	`
	return r.scanUserProfile(r.db.QueryRow(ctx, query, address.String()))
}

// UpdateKycStatus overwrites the KYC fields of the profile.
func (r *PostgresRepository) UpdateKycStatus(ctx context.Context, address addressing.Address, verified bool, hash [domain.KycHashLen]byte) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE user_profiles SET kyc_verified = $2, kyc_hash = $3 WHERE address = $1`,
		address.String(), verified, hash[:],
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// CreateTransferRequest inserts the pending request and increments the
// sender's total_sent in one transaction. The counter guard keeps a
// concurrent initiate from producing a second request under the same nonce.
func (r *PostgresRepository) CreateTransferRequest(ctx context.Context, req *domain.TransferRequest, senderProfile addressing.Address) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE user_profiles SET total_sent = total_sent + 1 WHERE address = $1 AND total_sent = $2`,
		senderProfile.String(), int64(req.Nonce),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Either the profile is gone or its counter moved past the nonce the
		// supplied address was derived from.
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM user_profiles WHERE address = $1)`, senderProfile.String()).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrProfileNotFound
		}
		return domain.ErrAddressMismatch
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO transfer_requests (address, sender, receiver, amount, status, nonce, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		req.Address.String(), string(req.Sender), string(req.Receiver), int64(req.Amount), string(req.Status), int64(req.Nonce), req.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAddressMismatch
		}
		return err
	}

	return tx.Commit(ctx)
}

func (r *PostgresRepository) scanTransferRequest(row pgx.Row) (*domain.TransferRequest, error) {
	var (
		req      domain.TransferRequest
		address  string
		sender   string
		receiver string
		amount   int64
		status   string
		nonce    int64
	)
	err := row.Scan(&address, &sender, &receiver, &amount, &status, &nonce, &req.CreatedAt, &req.CompletedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTransferNotFound
		}
		return nil, err
	}
	addr, err := addressing.Parse(address)
	if err != nil {
		return nil, fmt.Errorf("corrupt transfer address %q: %w", address, err)
	}
	req.Address = addr
	req.Sender = domain.Identity(sender)
	req.Receiver = domain.Identity(receiver)
	req.Amount = uint64(amount)
	req.Status = domain.TransferStatus(status)
	req.Nonce = uint64(nonce)
	return &req, nil
}

// GetTransferRequest retrieves the transfer request at the given address.
func (r *PostgresRepository) GetTransferRequest(ctx context.Context, address addressing.Address) (*domain.TransferRequest, error) {
	query := `
		SELECT address, sender, receiver, amount, status, nonce, created_at, completed_at
		FROM transfer_requests WHERE address = $1
	`
	return r.scanTransferRequest(r.db.QueryRow(ctx, query, address.String()))
}

func (r *PostgresRepository) transitionTransfer(ctx context.Context, address addressing.Address, to domain.TransferStatus, completedAt *time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE transfer_requests SET status = $2, completed_at = $3 WHERE address = $1 AND status = $4`,
		address.String(), string(to), completedAt, string(domain.TransferPending),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM transfer_requests WHERE address = $1)`, address.String()).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrTransferNotFound
		}
		return domain.ErrInvalidTransferStatus
	}
	return nil
}

// CompleteTransfer moves a pending request to completed.
func (r *PostgresRepository) CompleteTransfer(ctx context.Context, address addressing.Address, completedAt time.Time) error {
	return r.transitionTransfer(ctx, address, domain.TransferCompleted, &completedAt)
}

// CancelTransfer moves a pending request to cancelled.
func (r *PostgresRepository) CancelTransfer(ctx context.Context, address addressing.Address) error {
	return r.transitionTransfer(ctx, address, domain.TransferCancelled, nil)
}

// CreateLiquidityProvider allocates the provider row.
func (r *PostgresRepository) CreateLiquidityProvider(ctx context.Context, provider *domain.LiquidityProvider) error {
	query := `
		INSERT INTO liquidity_providers (address, authority, location, fx_rate, trust_score, available_liquidity, is_active, completed_transactions, total_volume, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.Exec(ctx, query,
		provider.Address.String(),
		string(provider.Authority),
		provider.Location,
		int64(provider.FxRate),
		int32(provider.TrustScore),
		int64(provider.AvailableLiquidity),
		provider.IsActive,
		int64(provider.CompletedTransactions),
		int64(provider.TotalVolume),
		provider.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrProviderExists
		}
		return err
	}
	return nil
}

func (r *PostgresRepository) scanLiquidityProvider(row pgx.Row) (*domain.LiquidityProvider, error) {
	var (
		provider   domain.LiquidityProvider
		address    string
		authority  string
		fxRate     int64
		trustScore int32
		liquidity  int64
		completed  int64
		volume     int64
	)
	err := row.Scan(&address, &authority, &provider.Location, &fxRate, &trustScore, &liquidity, &provider.IsActive, &completed, &volume, &provider.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}
	addr, err := addressing.Parse(address)
	if err != nil {
		return nil, fmt.Errorf("corrupt provider address %q: %w", address, err)
	}
	provider.Address = addr
	provider.Authority = domain.Identity(authority)
	provider.FxRate = uint64(fxRate)
	provider.TrustScore = uint16(trustScore)
	provider.AvailableLiquidity = uint64(liquidity)
	provider.CompletedTransactions = uint64(completed)
	provider.TotalVolume = uint64(volume)
	return &provider, nil
}

// GetLiquidityProvider retrieves the provider record at the given address.
func (r *PostgresRepository) GetLiquidityProvider(ctx context.Context, address addressing.Address) (*domain.LiquidityProvider, error) {
	query := `
		SELECT address, authority, location, fx_rate, trust_score, available_liquidity, is_active, completed_transactions, total_volume, created_at
		FROM liquidity_providers WHERE address = $1
	`
	return r.scanLiquidityProvider(r.db.QueryRow(ctx, query, address.String()))
}

// UpdateProviderAvailability overwrites liquidity and active flag
// unconditionally; there is no reservation against outstanding withdrawals.
func (r *PostgresRepository) UpdateProviderAvailability(ctx context.Context, address addressing.Address, liquidity uint64, active bool) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE liquidity_providers SET available_liquidity = $2, is_active = $3 WHERE address = $1`,
		address.String(), int64(liquidity), active,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProviderNotFound
	}
	return nil
}

// CreateWithdrawalRequest inserts the pending request and increments the
// freelancer's total_received in one transaction.
func (r *PostgresRepository) CreateWithdrawalRequest(ctx context.Context, req *domain.WithdrawalRequest, freelancerProfile addressing.Address) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE user_profiles SET total_received = total_received + 1 WHERE address = $1 AND total_received = $2`,
		freelancerProfile.String(), int64(req.Nonce),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM user_profiles WHERE address = $1)`, freelancerProfile.String()).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrProfileNotFound
		}
		return domain.ErrAddressMismatch
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO withdrawal_requests (address, freelancer, amount, method, status, nonce, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		req.Address.String(), string(req.Freelancer), int64(req.Amount), string(req.Method), string(req.Status), int64(req.Nonce), req.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAddressMismatch
		}
		return err
	}

	return tx.Commit(ctx)
}

func (r *PostgresRepository) scanWithdrawalRequest(row pgx.Row) (*domain.WithdrawalRequest, error) {
	var (
		req        domain.WithdrawalRequest
		address    string
		freelancer string
		amount     int64
		method     string
		status     string
		provider   *string
		nonce      int64
	)
	err := row.Scan(&address, &freelancer, &amount, &method, &status, &provider, &nonce, &req.CreatedAt, &req.CompletedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrWithdrawalNotFound
		}
		return nil, err
	}
	addr, err := addressing.Parse(address)
	if err != nil {
		return nil, fmt.Errorf("corrupt withdrawal address %q: %w", address, err)
	}
	req.Address = addr
	req.Freelancer = domain.Identity(freelancer)
	req.Amount = uint64(amount)
	req.Method = domain.PayoutMethod(method)
	req.Status = domain.WithdrawalStatus(status)
	if provider != nil {
		id := domain.Identity(*provider)
		req.SelectedProvider = &id
	}
	req.Nonce = uint64(nonce)
	return &req, nil
}

// GetWithdrawalRequest retrieves the withdrawal request at the given address.
func (r *PostgresRepository) GetWithdrawalRequest(ctx context.Context, address addressing.Address) (*domain.WithdrawalRequest, error) {
	query := `
		SELECT address, freelancer, amount, method, status, selected_provider, nonce, created_at, completed_at
		FROM withdrawal_requests WHERE address = $1
	`
	return r.scanWithdrawalRequest(r.db.QueryRow(ctx, query, address.String()))
}

// SelectWithdrawalProvider sets the provider slot exactly once on a pending
// request and advances it to provider_selected.
func (r *PostgresRepository) SelectWithdrawalProvider(ctx context.Context, address addressing.Address, provider domain.Identity) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE withdrawal_requests SET selected_provider = $2, status = $3
		 WHERE address = $1 AND status = $4 AND selected_provider IS NULL`,
		address.String(), string(provider), string(domain.WithdrawalProviderSelected), string(domain.WithdrawalPending),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetWithdrawalRequest(ctx, address); err != nil {
			return err
		}
		return domain.ErrInvalidWithdrawalStatus
	}
	return nil
}

// FinalizeWithdrawal completes the request and updates the provider
// statistics in one transaction.
func (r *PostgresRepository) FinalizeWithdrawal(ctx context.Context, address addressing.Address, providerAddress addressing.Address, amount uint64, completedAt time.Time) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE withdrawal_requests SET status = $2, completed_at = $3 WHERE address = $1 AND status = $4`,
		address.String(), string(domain.WithdrawalCompleted), completedAt, string(domain.WithdrawalProviderSelected),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM withdrawal_requests WHERE address = $1)`, address.String()).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrWithdrawalNotFound
		}
		return domain.ErrInvalidWithdrawalStatus
	}

	tag, err = tx.Exec(ctx,
		`UPDATE liquidity_providers SET
			completed_transactions = completed_transactions + 1,
			total_volume = total_volume + $2,
			available_liquidity = GREATEST(available_liquidity - $2, 0)
		 WHERE address = $1`,
		providerAddress.String(), int64(amount),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProviderNotFound
	}

	return tx.Commit(ctx)
}

// CancelWithdrawal moves a pending or provider_selected request to cancelled.
func (r *PostgresRepository) CancelWithdrawal(ctx context.Context, address addressing.Address) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE withdrawal_requests SET status = $2 WHERE address = $1 AND status = ANY($3)`,
		address.String(), string(domain.WithdrawalCancelled),
		[]string{string(domain.WithdrawalPending), string(domain.WithdrawalProviderSelected)},
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM withdrawal_requests WHERE address = $1)`, address.String()).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrWithdrawalNotFound
		}
		return domain.ErrInvalidWithdrawalStatus
	}
	return nil
}
