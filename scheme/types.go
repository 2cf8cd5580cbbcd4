// Package scheme implements partner-defined reward schemes: the rule sets
// that determine how many coins a member earns and under which conditions.
// It layers scheme CRUD and usage accounting over a persistence interface,
// the same way the ledger package layers the transaction log over its Store.
package scheme

import (
	"time"

	"github.com/google/uuid"

	"github.com/loyaltyworks/coin-engine/ledger"
)

// =============================================================================
// REWARD SCHEME
// =============================================================================

type Category string

const (
	CategoryPurchase Category = "purchase"
	CategoryVolume   Category = "volume"
	CategoryLoyalty  Category = "loyalty"
	CategorySpecial  Category = "special"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryPurchase, CategoryVolume, CategoryLoyalty, CategorySpecial:
		return true
	}
	return false
}

// RewardScheme is a partner-owned rule set for granting coins.
//
// UsageCount is mutated only by the registry's usage accounting;
// MaxUsage == 0 means unlimited.
type RewardScheme struct {
	ID              ledger.SchemeID
	PartnerID       ledger.AccountID
	Name            string
	Description     string
	Conditions      string
	Category        Category
	CoinReward      ledger.Amount
	MinimumPurchase ledger.Amount
	StartDate       time.Time
	EndDate         time.Time
	UsageCount      int
	MaxUsage        int
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// UsableAt reports whether the scheme can grant rewards at the given time:
// active flag set and validity window containing t.
func (s *RewardScheme) UsableAt(t time.Time) bool {
	if !s.Active {
		return false
	}
	if t.Before(s.StartDate) || t.After(s.EndDate) {
		return false
	}
	return true
}

// Exhausted reports whether the usage cap has been reached.
func (s *RewardScheme) Exhausted() bool {
	return s.MaxUsage > 0 && s.UsageCount >= s.MaxUsage
}

// NewSchemeID returns a fresh scheme identifier.
func NewSchemeID() ledger.SchemeID {
	return ledger.SchemeID("scheme-" + uuid.NewString())
}

// =============================================================================
// PATCH - Partial update of mutable fields
// =============================================================================

// Patch carries the fields a partner may change after creation. Identifier,
// owner, usage counter, and creation time are immutable.
type Patch struct {
	Name            *string
	Description     *string
	Conditions      *string
	Category        *Category
	CoinReward      *ledger.Amount
	MinimumPurchase *ledger.Amount
	StartDate       *time.Time
	EndDate         *time.Time
	MaxUsage        *int
}
