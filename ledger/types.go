/*
Package ledger provides the core coin accounting engine.

PURPOSE:
  This package contains the foundational types for the loyalty coin
  platform: accounts holding coin balances, the append-only transaction
  log, and the persistence interfaces both are built on. Higher layers
  (scheme registry, redemption engine, HTTP API) are composed on top.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A coin quantity (whole, non-negative on input; signed as a delta)
  - Account: A partner wallet or member coin account
  - Transaction: An immutable ledger entry recording a coin movement
  - Role: Closed admin/partner/member variant

DESIGN PRINCIPLES:
  1. Immutability: Transactions are never modified, only compensated
  2. Precision: Uses decimal.Decimal so arithmetic never drifts
  3. Type Safety: Strong typing for IDs prevents mixing account/scheme IDs
  4. Auditability: Every transaction carries description, references,
     and an idempotency key

SEE ALSO:
  - ledger.go: Transaction log interface and default implementation
  - store.go: Persistence interfaces
  - errors.go: Error taxonomy
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Coin quantity
// =============================================================================

// Amount is a quantity of coins. Ledger deltas may be negative; all
// caller-supplied amounts must be positive whole numbers.
type Amount struct {
	Value decimal.Decimal
}

func NewAmount(value int64) Amount {
	return Amount{Value: decimal.NewFromInt(value)}
}

func MustParseAmount(s string) Amount {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{Value: decimal.Zero}
	}
	return Amount{Value: d}
}

func (a Amount) Zero() Amount              { return Amount{Value: decimal.Zero} }
func (a Amount) Add(b Amount) Amount       { return Amount{Value: a.Value.Add(b.Value)} }
func (a Amount) Sub(b Amount) Amount       { return Amount{Value: a.Value.Sub(b.Value)} }
func (a Amount) Neg() Amount               { return Amount{Value: a.Value.Neg()} }
func (a Amount) IsNegative() bool          { return a.Value.IsNegative() }
func (a Amount) IsZero() bool              { return a.Value.IsZero() }
func (a Amount) IsPositive() bool          { return a.Value.IsPositive() }
func (a Amount) GreaterThan(b Amount) bool { return a.Value.GreaterThan(b.Value) }
func (a Amount) LessThan(b Amount) bool    { return a.Value.LessThan(b.Value) }
func (a Amount) Equal(b Amount) bool       { return a.Value.Equal(b.Value) }
func (a Amount) Int64() int64              { return a.Value.IntPart() }

// IsWholeCoins reports whether the amount is a whole number of coins.
// Fractional coins are rejected at every mutation boundary.
func (a Amount) IsWholeCoins() bool { return a.Value.IsInteger() }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type AccountID string
type SchemeID string
type TransactionID string
type RedemptionID string

// =============================================================================
// ROLE - Closed variant, no stringly-typed dispatch
// =============================================================================

type Role string

const (
	RoleAdmin   Role = "admin"
	RolePartner Role = "partner"
	RoleMember  Role = "member"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RolePartner, RoleMember:
		return true
	}
	return false
}

// =============================================================================
// ACCOUNT - Partner wallet or member coin account
// =============================================================================

// Account is the balance-bearing entity. Accounts are created when a user
// is provisioned into a role and are soft-disabled, never deleted.
//
// For members, TotalEarned/TotalRedeemed are lifetime coins received and
// spent. For partners the same pair tracks coins purchased and distributed.
type Account struct {
	ID            AccountID
	UserID        string
	Role          Role
	Balance       Amount
	TotalEarned   Amount
	TotalRedeemed Amount
	Active        bool
	CreatedAt     time.Time
}

// =============================================================================
// TRANSACTION - Atomic coin movement
// =============================================================================

type TransactionType string

const (
	TxEarn     TransactionType = "earn"     // External credit to a member (incl. redemption refunds)
	TxRedeem   TransactionType = "redeem"   // Member spends coins on a catalog item
	TxPurchase TransactionType = "purchase" // Partner mints coins via payment
	TxReward   TransactionType = "reward"   // Partner-to-member transfer
)

// Transaction is one immutable ledger entry. Amount is always positive;
// direction is carried by From/To. From is empty when the counterpart is
// external (purchase mint, redemption spend, compensating earn).
type Transaction struct {
	ID             TransactionID
	From           AccountID // optional
	To             AccountID // optional, but From and To are never both empty
	Amount         Amount
	Type           TransactionType
	Description    string
	SchemeID       SchemeID  // optional, set on scheme-based rewards
	PartnerID      AccountID // optional, originating partner for member-visible history
	RedemptionID   RedemptionID
	IdempotencyKey string
	CreatedAt      time.Time
}

// Delta returns the signed effect of the transaction on the given account:
// +Amount when the account is the destination, -Amount when the source,
// zero when untouched.
func (t Transaction) Delta(id AccountID) Amount {
	switch id {
	case "":
		return NewAmount(0)
	case t.To:
		return t.Amount
	case t.From:
		return t.Amount.Neg()
	}
	return NewAmount(0)
}

// Touches reports whether the transaction credits or debits the account.
func (t Transaction) Touches(id AccountID) bool {
	return id != "" && (t.From == id || t.To == id)
}
