/*
ledger.go - Append-only coin transaction log

PURPOSE:
  The Ledger is the immutable audit trail for every coin movement:
  purchases, rewards, redemptions, and compensating credits. Stored
  account balances are the operational source of truth; the ledger is
  the basis for reconciling them.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete. EVER.
  2. IMMUTABLE: Once written, transactions cannot be modified
  3. AUDITABLE: Every balance change is traceable with full context
  4. IDEMPOTENT: Same idempotency key = same transaction (no duplicates)

CORRECTIONS:
  Mistakes are never edited away. A compensating transaction with the
  opposite effect is appended instead (e.g., the earn credit issued when
  a redemption is rejected), so history is preserved.

SEE ALSO:
  - store.go: Low-level persistence interface
  - engine package: The only writer of business transactions
*/
package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Ledger is the append-only transaction log.
type Ledger interface {
	// Append adds a transaction. Fails if its idempotency key exists.
	Append(ctx context.Context, tx Transaction) error

	// AppendBatch adds multiple transactions atomically.
	AppendBatch(ctx context.Context, txs []Transaction) error

	// History returns all transactions touching the account, chronologically.
	History(ctx context.Context, accountID AccountID) ([]Transaction, error)

	// Recent returns the newest transactions across all accounts.
	Recent(ctx context.Context, limit int) ([]Transaction, error)

	// Exists reports whether an idempotency key has been used.
	Exists(ctx context.Context, idempotencyKey string) (bool, error)

	// ReplayBalance computes an account's balance purely from its
	// transaction history. Used to audit the stored balance.
	ReplayBalance(ctx context.Context, accountID AccountID) (Amount, error)
}

// =============================================================================
// DEFAULT LEDGER - Implementation using Store
// =============================================================================

type DefaultLedger struct {
	Store Store
}

func NewLedger(store Store) *DefaultLedger {
	return &DefaultLedger{Store: store}
}

func (l *DefaultLedger) Append(ctx context.Context, tx Transaction) error {
	if err := validateTransaction(tx); err != nil {
		return err
	}
	if tx.IdempotencyKey != "" {
		exists, err := l.Store.Exists(ctx, tx.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateIdempotencyKey
		}
	}
	return l.Store.Append(ctx, tx)
}

func (l *DefaultLedger) AppendBatch(ctx context.Context, txs []Transaction) error {
	// Check all idempotency keys first (atomic check)
	for _, tx := range txs {
		if err := validateTransaction(tx); err != nil {
			return err
		}
		if tx.IdempotencyKey != "" {
			exists, err := l.Store.Exists(ctx, tx.IdempotencyKey)
			if err != nil {
				return err
			}
			if exists {
				return ErrDuplicateIdempotencyKey
			}
		}
	}
	return l.Store.AppendBatch(ctx, txs)
}

func (l *DefaultLedger) History(ctx context.Context, accountID AccountID) ([]Transaction, error) {
	return l.Store.LoadByAccount(ctx, accountID)
}

func (l *DefaultLedger) Recent(ctx context.Context, limit int) ([]Transaction, error) {
	return l.Store.LoadAll(ctx, limit)
}

func (l *DefaultLedger) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	return l.Store.Exists(ctx, idempotencyKey)
}

func (l *DefaultLedger) ReplayBalance(ctx context.Context, accountID AccountID) (Amount, error) {
	txs, err := l.Store.LoadByAccount(ctx, accountID)
	if err != nil {
		return Amount{}, err
	}

	balance := NewAmount(0)
	for _, tx := range txs {
		balance = balance.Add(tx.Delta(accountID))
	}
	return balance, nil
}

func validateTransaction(tx Transaction) error {
	if err := ValidateAmount(tx.Amount); err != nil {
		return err
	}
	if tx.From == "" && tx.To == "" {
		return &ValidationError{Field: "from/to", Message: "transaction must touch at least one account"}
	}
	if tx.From != "" && tx.From == tx.To {
		return &ValidationError{Field: "from/to", Message: "source and destination must differ"}
	}
	switch tx.Type {
	case TxEarn, TxRedeem, TxPurchase, TxReward:
	default:
		return &ValidationError{Field: "type", Message: fmt.Sprintf("unknown transaction type %q", tx.Type)}
	}
	return nil
}

// NewTransactionID returns a fresh ledger entry identifier.
func NewTransactionID() TransactionID {
	return TransactionID("tx-" + uuid.NewString())
}

// NewAccountID returns a fresh account identifier.
func NewAccountID() AccountID {
	return AccountID("acct-" + uuid.NewString())
}
