// Package engine orchestrates multi-account coin operations: partner coin
// purchases, reward grants, catalog redemptions, and the redemption
// approval workflow. It is the only component that calls account store
// mutators for business transactions, and every operation it performs
// leaves a matching entry in the append-only ledger.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/loyaltyworks/coin-engine/ledger"
)

// =============================================================================
// REDEMPTION - Member exchanges coins for a catalog reward
// =============================================================================

type RedemptionStatus string

const (
	RedemptionPending   RedemptionStatus = "pending"
	RedemptionApproved  RedemptionStatus = "approved"
	RedemptionCompleted RedemptionStatus = "completed"
	RedemptionRejected  RedemptionStatus = "rejected"
)

// Terminal reports whether no further transitions are allowed.
func (s RedemptionStatus) Terminal() bool {
	return s == RedemptionCompleted || s == RedemptionRejected
}

// Redemption tracks a member's request to exchange coins for a catalog
// item. Coins are debited eagerly at request time; rejection issues a
// compensating credit.
type Redemption struct {
	ID          ledger.RedemptionID
	MemberID    ledger.AccountID
	ItemID      string
	CoinsCost   ledger.Amount
	Status      RedemptionStatus
	CreatedAt   time.Time
	ProcessedAt *time.Time
	ProcessedBy string
}

func NewRedemptionID() ledger.RedemptionID {
	return ledger.RedemptionID("red-" + uuid.NewString())
}

// RedemptionStore persists redemptions. Unlike the ledger, redemptions are
// mutable: their status advances through the approval workflow.
type RedemptionStore interface {
	SaveRedemption(ctx context.Context, r Redemption) error
	GetRedemption(ctx context.Context, id ledger.RedemptionID) (*Redemption, error)
	// ListRedemptions returns redemptions, optionally filtered by status
	// ("" = all) and member ("" = all), newest first.
	ListRedemptions(ctx context.Context, status RedemptionStatus, memberID ledger.AccountID) ([]Redemption, error)
}

// =============================================================================
// REWARD CATALOG - Items members spend coins on
// =============================================================================

type ItemCategory string

const (
	ItemCashback ItemCategory = "cashback"
	ItemTrip     ItemCategory = "trip"
	ItemGift     ItemCategory = "gift"
	ItemVoucher  ItemCategory = "voucher"
)

func (c ItemCategory) Valid() bool {
	switch c {
	case ItemCashback, ItemTrip, ItemGift, ItemVoucher:
		return true
	}
	return false
}

// RewardItem is a catalog entry a member can redeem coins against.
type RewardItem struct {
	ID          string
	Title       string
	Description string
	CoinsCost   ledger.Amount
	Category    ItemCategory
	Active      bool
	ImageURL    string
	CreatedAt   time.Time
}

func NewRewardItemID() string {
	return "item-" + uuid.NewString()
}

// CatalogStore persists reward catalog items.
type CatalogStore interface {
	SaveRewardItem(ctx context.Context, item RewardItem) error
	GetRewardItem(ctx context.Context, id string) (*RewardItem, error)
	ListRewardItems(ctx context.Context, activeOnly bool) ([]RewardItem, error)
	DeleteRewardItem(ctx context.Context, id string) error
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// ReconcileReport compares an account's stored balance with the balance
// derived by replaying its transaction history.
type ReconcileReport struct {
	AccountID     ledger.AccountID
	StoredBalance ledger.Amount
	LedgerBalance ledger.Amount
	Consistent    bool
}
