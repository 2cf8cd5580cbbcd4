/*
store.go - Persistence interfaces for accounts and transactions

PURPOSE:
  Defines the boundary between the coin accounting logic and the database.
  Implementations exist for SQLite (production) and in-memory (tests/dev).

APPEND-ONLY CONTRACT:
  The transaction Store is append-only:
  - Append(): single transaction write
  - AppendBatch(): atomic multi-transaction write
  - NO Update() or Delete() methods exist
  Corrections are made via compensating transactions, never edits.

IDEMPOTENCY:
  Writes may carry an idempotency key. If the key already exists the write
  is rejected, which protects against network retries and double-clicks.

ACCOUNTS:
  AccountStore is the source of truth for balances. Credit and Debit are
  atomic read-modify-write operations per account; Debit enforces the
  non-negative balance invariant at the lowest level so no caller can
  bypass it.

SEE ALSO:
  - ledger.go: Higher-level transaction log using Store
  - store/memory.go: In-memory implementation
  - store/sqlite: SQLite implementation
*/
package ledger

import "context"

// =============================================================================
// STORE - Transaction persistence (append-only)
// =============================================================================

// Store handles persistence of transactions.
// IMPORTANT: Store is APPEND-ONLY. No Update, No Delete. Ever.
type Store interface {
	// Append persists a transaction. Returns ErrDuplicateIdempotencyKey if
	// the idempotency key exists. This is the ONLY write operation.
	Append(ctx context.Context, tx Transaction) error

	// AppendBatch persists multiple transactions atomically.
	// Either all succeed or none do.
	AppendBatch(ctx context.Context, txs []Transaction) error

	// LoadByAccount returns all transactions touching the account
	// (as source or destination), ordered by creation time.
	LoadByAccount(ctx context.Context, accountID AccountID) ([]Transaction, error)

	// LoadAll returns the most recent transactions, newest first.
	// limit <= 0 means no limit.
	LoadAll(ctx context.Context, limit int) ([]Transaction, error)

	// Exists checks if an idempotency key has already been used.
	Exists(ctx context.Context, idempotencyKey string) (bool, error)
}

// TxStore wraps Store with transaction support for atomic multi-write
// operations.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// ACCOUNT STORE - Source of truth for balances
// =============================================================================

// AccountStore holds partner wallets and member coin accounts.
// Balance mutations are atomic with respect to a single account.
type AccountStore interface {
	// CreateAccount provisions an account. Balance starts at zero unless
	// pre-seeded, Active starts true.
	CreateAccount(ctx context.Context, a Account) error

	// GetAccount returns the account or a NotFoundError.
	GetAccount(ctx context.Context, id AccountID) (*Account, error)

	// GetAccountByUser returns the account owned by userID with the given
	// role, or a NotFoundError.
	GetAccountByUser(ctx context.Context, userID string, role Role) (*Account, error)

	// ListAccounts returns accounts, optionally filtered by role ("" = all).
	ListAccounts(ctx context.Context, role Role) ([]Account, error)

	// Credit increases the balance by amount (positive whole coins) and
	// bumps TotalEarned.
	Credit(ctx context.Context, id AccountID, amount Amount) error

	// Debit decreases the balance by amount (positive whole coins) and
	// bumps TotalRedeemed. Fails with InsufficientFundsError if the balance
	// would go negative.
	Debit(ctx context.Context, id AccountID, amount Amount) error

	// SetAccountActive toggles the soft-disable flag.
	SetAccountActive(ctx context.Context, id AccountID, active bool) error
}

// ValidateAmount rejects amounts that are not positive whole coin counts.
// Every balance-changing entry point calls this before touching state.
func ValidateAmount(a Amount) error {
	if !a.IsPositive() {
		return &ValidationError{Field: "amount", Message: "must be positive"}
	}
	if !a.IsWholeCoins() {
		return &ValidationError{Field: "amount", Message: "must be a whole number of coins"}
	}
	return nil
}
