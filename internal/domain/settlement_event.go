/**
 * @description
 * Event payloads published to the message broker after each successful
 * settlement operation. Publishing is best-effort; downstream consumers
 * (notification, analytics) must treat these as at-most-once.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// UserRegisteredEvent is published after a profile is initialized.
type UserRegisteredEvent struct {
	EventID     uuid.UUID `json:"event_id"`
	Authority   Identity  `json:"authority"`
	Role        UserRole  `json:"role"`
	CountryCode string    `json:"country_code"`
	Timestamp   time.Time `json:"timestamp"`
}

// TransferEvent is published on transfer initiation, confirmation, and
// cancellation; RoutingKey distinguishes the transition.
type TransferEvent struct {
	EventID   uuid.UUID      `json:"event_id"`
	Address   string         `json:"address"`
	Sender    Identity       `json:"sender"`
	Receiver  Identity       `json:"receiver"`
	Amount    uint64         `json:"amount"`
	Fee       uint64         `json:"fee"`
	Status    TransferStatus `json:"status"`
	Nonce     uint64         `json:"nonce"`
	Timestamp time.Time      `json:"timestamp"`
}

// ProviderRegisteredEvent is published after a liquidity provider registers.
type ProviderRegisteredEvent struct {
	EventID   uuid.UUID `json:"event_id"`
	Address   string    `json:"address"`
	Authority Identity  `json:"authority"`
	Location  string    `json:"location"`
	FxRate    uint64    `json:"fx_rate"`
	Timestamp time.Time `json:"timestamp"`
}

// WithdrawalEvent is published on each withdrawal state transition.
type WithdrawalEvent struct {
	EventID    uuid.UUID        `json:"event_id"`
	Address    string           `json:"address"`
	Freelancer Identity         `json:"freelancer"`
	Provider   *Identity        `json:"provider,omitempty"`
	Amount     uint64           `json:"amount"`
	Method     PayoutMethod     `json:"method"`
	Status     WithdrawalStatus `json:"status"`
	Nonce      uint64           `json:"nonce"`
	Timestamp  time.Time        `json:"timestamp"`
}
