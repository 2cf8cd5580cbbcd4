/*
engine.go - The coin ledger engine

PURPOSE:
  Validates and applies coin transfers between partner wallets and member
  accounts, consults the scheme registry for reward constraints, and
  appends immutable transaction records for every movement.

OPERATIONS:
  PurchaseCoins      Partner mints coins after a verified payment
  RewardMember       Partner grants coins to a member (scheme or explicit)
  RedeemCatalogItem  Member spends coins on a catalog reward (eager debit)
  ResolveRedemption  Admin advances the redemption workflow

REDEMPTION STATE MACHINE:
  pending -> approved -> completed
  pending -> rejected            (compensating credit)
  approved -> rejected           (compensating credit)
  completed, rejected            terminal

ATOMICITY:
  Operations against the same account are serialized via per-account
  locks, so a balance check followed by a debit cannot interleave with
  another operation on that account. Each operation either applies every
  sub-step or compensates the ones already applied; a failed compensation
  is surfaced as CompensationError, never as success.

ORDERING DECISION:
  For scheme rewards the partner balance is validated BEFORE the usage
  counter is incremented, so the common failure (insufficient funds)
  needs no rollback. The rollback path still exists for failures between
  the usage increment and the ledger append.
*/
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/loyaltyworks/coin-engine/ledger"
	"github.com/loyaltyworks/coin-engine/scheme"
)

type Engine struct {
	Accounts    ledger.AccountStore
	Ledger      ledger.Ledger
	Schemes     *scheme.Registry
	Redemptions RedemptionStore
	Catalog     CatalogStore

	log   *logrus.Logger
	locks *accountLocks
	otp   *otpIssuer
	now   func() time.Time
}

func New(accounts ledger.AccountStore, lg ledger.Ledger, registry *scheme.Registry,
	redemptions RedemptionStore, catalog CatalogStore, log *logrus.Logger) *Engine {
	if log == nil {
		log = logrus.New()
	}
	return &Engine{
		Accounts:    accounts,
		Ledger:      lg,
		Schemes:     registry,
		Redemptions: redemptions,
		Catalog:     catalog,
		log:         log,
		locks:       newAccountLocks(),
		otp:         newOTPIssuer(otpTTL),
		now:         time.Now,
	}
}

// =============================================================================
// PURCHASE - Partner mints coins
// =============================================================================

// PurchaseCoins credits the partner wallet and records a purchase
// transaction. It must be called only after the payment collaborator has
// verified the payment; paymentRef ties the ledger entry to the order.
func (e *Engine) PurchaseCoins(ctx context.Context, partnerID ledger.AccountID, amount ledger.Amount, paymentRef, idempotencyKey string) (*ledger.Transaction, error) {
	if err := ledger.ValidateAmount(amount); err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(partnerID)
	defer unlock()

	partner, err := e.activeAccount(ctx, partnerID, ledger.RolePartner)
	if err != nil {
		return nil, err
	}

	if err := e.alreadyApplied(ctx, idempotencyKey); err != nil {
		return nil, err
	}

	if err := e.Accounts.Credit(ctx, partner.ID, amount); err != nil {
		return nil, fmt.Errorf("credit partner: %w", err)
	}

	tx := ledger.Transaction{
		ID:             ledger.NewTransactionID(),
		To:             partner.ID,
		Amount:         amount,
		Type:           ledger.TxPurchase,
		Description:    fmt.Sprintf("Coin purchase (payment %s)", paymentRef),
		PartnerID:      partner.ID,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      e.now(),
	}
	if err := e.Ledger.Append(ctx, tx); err != nil {
		if rbErr := e.Accounts.Debit(ctx, partner.ID, amount); rbErr != nil {
			return nil, &ledger.CompensationError{Op: "purchase", Original: err, Rollback: rbErr}
		}
		return nil, fmt.Errorf("append purchase transaction: %w", err)
	}

	e.log.WithFields(logrus.Fields{
		"op":      "purchase",
		"partner": partner.ID,
		"amount":  amount.Int64(),
	}).Info("coins purchased")
	return &tx, nil
}

// =============================================================================
// REWARD - Partner grants coins to a member
// =============================================================================

// RewardSpec describes a reward grant. Either SchemeID or Amount must be
// set; with a scheme, the reward amount comes from the scheme and its
// usage is recorded.
type RewardSpec struct {
	PartnerID      ledger.AccountID
	MemberID       ledger.AccountID
	SchemeID       ledger.SchemeID
	Amount         ledger.Amount
	Description    string
	IdempotencyKey string
}

// RewardMember debits the partner wallet and credits the member account.
// On a scheme grant the usage counter is checked and incremented first
// (fail-fast, no balance change on failure) after the balance itself has
// been validated.
func (e *Engine) RewardMember(ctx context.Context, spec RewardSpec) (*ledger.Transaction, error) {
	unlock := e.locks.Lock(spec.PartnerID, spec.MemberID)
	defer unlock()

	partner, err := e.activeAccount(ctx, spec.PartnerID, ledger.RolePartner)
	if err != nil {
		return nil, err
	}
	member, err := e.activeAccount(ctx, spec.MemberID, ledger.RoleMember)
	if err != nil {
		return nil, err
	}

	if err := e.alreadyApplied(ctx, spec.IdempotencyKey); err != nil {
		return nil, err
	}

	// Resolve the reward amount
	amount := spec.Amount
	var sch *scheme.RewardScheme
	if spec.SchemeID != "" {
		sch, err = e.Schemes.Get(ctx, spec.SchemeID)
		if err != nil {
			return nil, err
		}
		if sch.PartnerID != partner.ID {
			return nil, &ledger.ValidationError{Field: "scheme_id", Message: "scheme is not owned by this partner"}
		}
		amount = sch.CoinReward
	}
	if err := ledger.ValidateAmount(amount); err != nil {
		return nil, err
	}

	// Partner cannot go negative: validate before touching the usage counter.
	if partner.Balance.LessThan(amount) {
		return nil, &ledger.InsufficientFundsError{
			AccountID: partner.ID,
			Available: partner.Balance,
			Requested: amount,
		}
	}

	if sch != nil {
		if _, err := e.Schemes.RecordUsage(ctx, sch.ID); err != nil {
			return nil, err
		}
	}

	releaseUsage := func(original error) error {
		if sch == nil {
			return nil
		}
		if rbErr := e.Schemes.ReleaseUsage(ctx, sch.ID); rbErr != nil {
			return &ledger.CompensationError{Op: "reward", Original: original, Rollback: rbErr}
		}
		return nil
	}

	if err := e.Accounts.Debit(ctx, partner.ID, amount); err != nil {
		if compErr := releaseUsage(err); compErr != nil {
			return nil, compErr
		}
		return nil, fmt.Errorf("debit partner: %w", err)
	}
	if err := e.Accounts.Credit(ctx, member.ID, amount); err != nil {
		if rbErr := e.Accounts.Credit(ctx, partner.ID, amount); rbErr != nil {
			return nil, &ledger.CompensationError{Op: "reward", Original: err, Rollback: rbErr}
		}
		if compErr := releaseUsage(err); compErr != nil {
			return nil, compErr
		}
		return nil, fmt.Errorf("credit member: %w", err)
	}

	description := spec.Description
	if description == "" {
		if sch != nil {
			description = fmt.Sprintf("Reward via scheme %q", sch.Name)
		} else {
			description = "Direct reward"
		}
	}

	tx := ledger.Transaction{
		ID:             ledger.NewTransactionID(),
		From:           partner.ID,
		To:             member.ID,
		Amount:         amount,
		Type:           ledger.TxReward,
		Description:    description,
		PartnerID:      partner.ID,
		IdempotencyKey: spec.IdempotencyKey,
		CreatedAt:      e.now(),
	}
	if sch != nil {
		tx.SchemeID = sch.ID
	}
	if err := e.Ledger.Append(ctx, tx); err != nil {
		// Undo both balance moves, then the usage increment.
		if rbErr := e.Accounts.Debit(ctx, member.ID, amount); rbErr != nil {
			return nil, &ledger.CompensationError{Op: "reward", Original: err, Rollback: rbErr}
		}
		if rbErr := e.Accounts.Credit(ctx, partner.ID, amount); rbErr != nil {
			return nil, &ledger.CompensationError{Op: "reward", Original: err, Rollback: rbErr}
		}
		if compErr := releaseUsage(err); compErr != nil {
			return nil, compErr
		}
		return nil, fmt.Errorf("append reward transaction: %w", err)
	}

	e.log.WithFields(logrus.Fields{
		"op":      "reward",
		"partner": partner.ID,
		"member":  member.ID,
		"amount":  amount.Int64(),
		"scheme":  string(tx.SchemeID),
	}).Info("reward granted")
	return &tx, nil
}

// =============================================================================
// REDEMPTION - Member spends coins on a catalog item
// =============================================================================

// RedeemCatalogItem debits the member's balance by the item's coin cost
// immediately, creates a pending redemption, and appends a redeem
// transaction.
func (e *Engine) RedeemCatalogItem(ctx context.Context, memberID ledger.AccountID, itemID, idempotencyKey string) (*Redemption, error) {
	item, err := e.Catalog.GetRewardItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if !item.Active {
		return nil, &ledger.ValidationError{Field: "item_id", Message: "reward item is not active"}
	}

	unlock := e.locks.Lock(memberID)
	defer unlock()

	member, err := e.activeAccount(ctx, memberID, ledger.RoleMember)
	if err != nil {
		return nil, err
	}

	if err := e.alreadyApplied(ctx, idempotencyKey); err != nil {
		return nil, err
	}

	if err := e.Accounts.Debit(ctx, member.ID, item.CoinsCost); err != nil {
		return nil, err
	}

	red := Redemption{
		ID:        NewRedemptionID(),
		MemberID:  member.ID,
		ItemID:    item.ID,
		CoinsCost: item.CoinsCost,
		Status:    RedemptionPending,
		CreatedAt: e.now(),
	}
	if err := e.Redemptions.SaveRedemption(ctx, red); err != nil {
		if rbErr := e.Accounts.Credit(ctx, member.ID, item.CoinsCost); rbErr != nil {
			return nil, &ledger.CompensationError{Op: "redeem", Original: err, Rollback: rbErr}
		}
		return nil, fmt.Errorf("save redemption: %w", err)
	}

	tx := ledger.Transaction{
		ID:             ledger.NewTransactionID(),
		From:           member.ID,
		Amount:         item.CoinsCost,
		Type:           ledger.TxRedeem,
		Description:    fmt.Sprintf("Redeemed %q", item.Title),
		RedemptionID:   red.ID,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      e.now(),
	}
	if err := e.Ledger.Append(ctx, tx); err != nil {
		if rbErr := e.Accounts.Credit(ctx, member.ID, item.CoinsCost); rbErr != nil {
			return nil, &ledger.CompensationError{Op: "redeem", Original: err, Rollback: rbErr}
		}
		return nil, fmt.Errorf("append redeem transaction: %w", err)
	}

	e.log.WithFields(logrus.Fields{
		"op":         "redeem",
		"member":     member.ID,
		"item":       item.ID,
		"cost":       item.CoinsCost.Int64(),
		"redemption": red.ID,
	}).Info("catalog item redeemed")
	return &red, nil
}

// ResolveRedemption transitions a redemption through the approval
// workflow. Rejection from pending or approved issues a compensating
// credit returning the coins to the member; approval and completion have
// no balance effect since the debit happened at request time.
func (e *Engine) ResolveRedemption(ctx context.Context, id ledger.RedemptionID, outcome RedemptionStatus, actorID string) (*Redemption, error) {
	red, err := e.Redemptions.GetRedemption(ctx, id)
	if err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(red.MemberID)
	defer unlock()

	// Re-read under the lock: a concurrent resolve may have advanced it.
	red, err = e.Redemptions.GetRedemption(ctx, id)
	if err != nil {
		return nil, err
	}

	allowed := false
	switch outcome {
	case RedemptionApproved:
		allowed = red.Status == RedemptionPending
	case RedemptionCompleted:
		allowed = red.Status == RedemptionApproved
	case RedemptionRejected:
		allowed = red.Status == RedemptionPending || red.Status == RedemptionApproved
	}
	if !allowed {
		return nil, &ledger.TransitionError{
			RedemptionID: id,
			From:         string(red.Status),
			To:           string(outcome),
		}
	}

	if outcome == RedemptionRejected {
		if err := e.refundRedemption(ctx, red); err != nil {
			return nil, err
		}
	}

	now := e.now()
	red.Status = outcome
	red.ProcessedAt = &now
	red.ProcessedBy = actorID
	if err := e.Redemptions.SaveRedemption(ctx, *red); err != nil {
		return nil, fmt.Errorf("save redemption: %w", err)
	}

	e.log.WithFields(logrus.Fields{
		"op":         "resolve_redemption",
		"redemption": red.ID,
		"outcome":    string(outcome),
		"actor":      actorID,
	}).Info("redemption resolved")
	return red, nil
}

// refundRedemption issues the compensating credit for a rejection.
func (e *Engine) refundRedemption(ctx context.Context, red *Redemption) error {
	if err := e.Accounts.Credit(ctx, red.MemberID, red.CoinsCost); err != nil {
		return fmt.Errorf("refund member: %w", err)
	}

	tx := ledger.Transaction{
		ID:             ledger.NewTransactionID(),
		To:             red.MemberID,
		Amount:         red.CoinsCost,
		Type:           ledger.TxEarn,
		Description:    "Redemption rejected, coins returned",
		RedemptionID:   red.ID,
		IdempotencyKey: fmt.Sprintf("%s-refund", red.ID),
		CreatedAt:      e.now(),
	}
	if err := e.Ledger.Append(ctx, tx); err != nil {
		if rbErr := e.Accounts.Debit(ctx, red.MemberID, red.CoinsCost); rbErr != nil {
			return &ledger.CompensationError{Op: "reject_redemption", Original: err, Rollback: rbErr}
		}
		return fmt.Errorf("append refund transaction: %w", err)
	}
	return nil
}

// =============================================================================
// QUERIES
// =============================================================================

// Balance returns the account with its current stored balance.
func (e *Engine) Balance(ctx context.Context, id ledger.AccountID) (*ledger.Account, error) {
	return e.Accounts.GetAccount(ctx, id)
}

// History returns the account's transactions, chronologically.
func (e *Engine) History(ctx context.Context, id ledger.AccountID) ([]ledger.Transaction, error) {
	if _, err := e.Accounts.GetAccount(ctx, id); err != nil {
		return nil, err
	}
	return e.Ledger.History(ctx, id)
}

// Reconcile audits the stored balance against the ledger replay.
func (e *Engine) Reconcile(ctx context.Context, id ledger.AccountID) (*ReconcileReport, error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	account, err := e.Accounts.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	replayed, err := e.Ledger.ReplayBalance(ctx, id)
	if err != nil {
		return nil, err
	}

	report := &ReconcileReport{
		AccountID:     id,
		StoredBalance: account.Balance,
		LedgerBalance: replayed,
		Consistent:    account.Balance.Equal(replayed),
	}
	if !report.Consistent {
		e.log.WithFields(logrus.Fields{
			"op":      "reconcile",
			"account": id,
			"stored":  account.Balance.Int64(),
			"ledger":  replayed.Int64(),
		}).Warn("stored balance diverges from ledger")
	}
	return report, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (e *Engine) activeAccount(ctx context.Context, id ledger.AccountID, role ledger.Role) (*ledger.Account, error) {
	a, err := e.Accounts.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Role != role {
		return nil, &ledger.ValidationError{Field: "account", Message: fmt.Sprintf("account %s is not a %s account", id, role)}
	}
	if !a.Active {
		return nil, fmt.Errorf("account %s: %w", id, ledger.ErrAccountDisabled)
	}
	return a, nil
}

// alreadyApplied returns ErrDuplicateIdempotencyKey when the key was used
// before, so a retried operation never double-credits.
func (e *Engine) alreadyApplied(ctx context.Context, idempotencyKey string) error {
	if idempotencyKey == "" {
		return nil
	}
	exists, err := e.Ledger.Exists(ctx, idempotencyKey)
	if err != nil {
		return err
	}
	if exists {
		return ledger.ErrDuplicateIdempotencyKey
	}
	return nil
}
