/**
 * @description
 * This package defines the contract with the Token Ledger collaborator: the
 * external balance-holding system that performs atomic debits and credits
 * between token accounts. The settlement core only decides how much moves
 * between which accounts and under what preconditions; the ledger guarantees
 * that a batch of movements either fully applies or fully fails.
 *
 * @dependencies
 * - context, errors: Standard Go libraries.
 * - internal/domain: Identity type.
 */

package ledger

import (
	"context"
	"errors"

	"github.com/crosspay/settlement-service/internal/domain"
)

// ErrInsufficientFunds is surfaced by the ledger when a debit would overdraw
// an account. The core propagates it unchanged, aborting the operation.
var ErrInsufficientFunds = errors.New("insufficient token balance")

// Movement is one debit/credit leg inside an atomic batch. Reference is an
// opaque correlation id recorded by the ledger.
type Movement struct {
	From      domain.Identity `json:"from"`
	To        domain.Identity `json:"to"`
	Amount    uint64          `json:"amount"`
	Reference string          `json:"reference"`
}

// TokenLedger moves tokens between accounts. Execute applies the whole batch
// atomically: no movement is visible unless all of them are.
type TokenLedger interface {
	Execute(ctx context.Context, movements []Movement) error
	Balance(ctx context.Context, account domain.Identity) (uint64, error)
}
