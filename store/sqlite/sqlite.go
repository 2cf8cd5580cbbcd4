/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

INTERFACES IMPLEMENTED:
  ledger.Store:        Transaction persistence (append-only)
  ledger.TxStore:      Atomic multi-write operations
  ledger.AccountStore: Balances and lifetime totals
  scheme.SchemeStore:  Reward scheme records
  engine.RedemptionStore, engine.CatalogStore

APPEND-ONLY ENFORCEMENT:
  No UPDATE or DELETE statements exist for the transactions table.
  Corrections are made via compensating transactions only.

BALANCE ATOMICITY:
  Credit/Debit are single UPDATE statements with the balance guard in the
  WHERE clause, so the non-negative invariant holds at the database level
  even without the engine's per-account locks.

WAL MODE:
  SQLite is opened with WAL for better concurrency: multiple readers
  don't block and crash recovery is cleaner.

USAGE:
  store, err := sqlite.New("./data/coins.db")   // or ":memory:"
  defer store.Close()
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/loyaltyworks/coin-engine/engine"
	"github.com/loyaltyworks/coin-engine/ledger"
	"github.com/loyaltyworks/coin-engine/scheme"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex // serializes multi-statement writes (AppendBatch, WithTx)
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Accounts (partner wallets and member coin accounts)
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		role TEXT NOT NULL,
		balance INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0),
		total_earned INTEGER NOT NULL DEFAULT 0,
		total_redeemed INTEGER NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_user_role
		ON accounts(user_id, role);
	CREATE INDEX IF NOT EXISTS idx_accounts_role
		ON accounts(role);

	-- Transactions (append-only ledger)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		from_account TEXT,
		to_account TEXT,
		amount INTEGER NOT NULL CHECK (amount > 0),
		tx_type TEXT NOT NULL,
		description TEXT,
		scheme_id TEXT,
		partner_id TEXT,
		redemption_id TEXT,
		idempotency_key TEXT UNIQUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_from
		ON transactions(from_account) WHERE from_account IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_transactions_to
		ON transactions(to_account) WHERE to_account IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_transactions_created_at
		ON transactions(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_transactions_idempotency
		ON transactions(idempotency_key) WHERE idempotency_key IS NOT NULL;

	-- Reward schemes
	CREATE TABLE IF NOT EXISTS schemes (
		id TEXT PRIMARY KEY,
		partner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		conditions TEXT,
		category TEXT NOT NULL,
		coin_reward INTEGER NOT NULL,
		minimum_purchase INTEGER NOT NULL DEFAULT 0,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		usage_count INTEGER NOT NULL DEFAULT 0,
		max_usage INTEGER NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_schemes_partner
		ON schemes(partner_id);

	-- Redemptions (approval workflow; mutable status)
	CREATE TABLE IF NOT EXISTS redemptions (
		id TEXT PRIMARY KEY,
		member_id TEXT NOT NULL,
		item_id TEXT NOT NULL,
		coins_cost INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TEXT NOT NULL,
		processed_at TEXT,
		processed_by TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_redemptions_status
		ON redemptions(status);
	CREATE INDEX IF NOT EXISTS idx_redemptions_member
		ON redemptions(member_id);

	-- Reward catalog
	CREATE TABLE IF NOT EXISTS reward_items (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT,
		coins_cost INTEGER NOT NULL,
		category TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		image_url TEXT,
		created_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

const timeLayout = time.RFC3339Nano

// =============================================================================
// LEDGER STORE (append-only)
// =============================================================================

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) Append(ctx context.Context, tx ledger.Transaction) error {
	return appendTx(ctx, s.db, tx)
}

func (s *Store) AppendBatch(ctx context.Context, txs []ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	for _, tx := range txs {
		if err := appendTx(ctx, dbTx, tx); err != nil {
			dbTx.Rollback()
			return err
		}
	}
	return dbTx.Commit()
}

func appendTx(ctx context.Context, db execer, tx ledger.Transaction) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO transactions
			(id, from_account, to_account, amount, tx_type, description,
			 scheme_id, partner_id, redemption_id, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(tx.ID),
		nullString(string(tx.From)),
		nullString(string(tx.To)),
		tx.Amount.Int64(),
		string(tx.Type),
		tx.Description,
		nullString(string(tx.SchemeID)),
		nullString(string(tx.PartnerID)),
		nullString(string(tx.RedemptionID)),
		nullString(tx.IdempotencyKey),
		tx.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ledger.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("append transaction: %w", err)
	}
	return nil
}

func (s *Store) LoadByAccount(ctx context.Context, accountID ledger.AccountID) ([]ledger.Transaction, error) {
	return s.queryTransactions(ctx, `
		SELECT id, from_account, to_account, amount, tx_type, description,
		       scheme_id, partner_id, redemption_id, idempotency_key, created_at
		FROM transactions
		WHERE from_account = ? OR to_account = ?
		ORDER BY created_at ASC`,
		string(accountID), string(accountID))
}

func (s *Store) LoadAll(ctx context.Context, limit int) ([]ledger.Transaction, error) {
	if limit <= 0 {
		limit = -1 // SQLite treats negative LIMIT as unlimited
	}
	return s.queryTransactions(ctx, `
		SELECT id, from_account, to_account, amount, tx_type, description,
		       scheme_id, partner_id, redemption_id, idempotency_key, created_at
		FROM transactions
		ORDER BY created_at DESC
		LIMIT ?`, limit)
}

func (s *Store) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM transactions WHERE idempotency_key = ?`,
		idempotencyKey).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check idempotency key: %w", err)
	}
	return count > 0, nil
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]ledger.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var txs []ledger.Transaction
	for rows.Next() {
		var (
			tx                                        ledger.Transaction
			from, to, schemeID, partnerID, redID, key sql.NullString
			description                               sql.NullString
			amount                                    int64
			createdAt                                 string
		)
		if err := rows.Scan(&tx.ID, &from, &to, &amount, &tx.Type, &description,
			&schemeID, &partnerID, &redID, &key, &createdAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.From = ledger.AccountID(from.String)
		tx.To = ledger.AccountID(to.String)
		tx.Amount = ledger.NewAmount(amount)
		tx.Description = description.String
		tx.SchemeID = ledger.SchemeID(schemeID.String)
		tx.PartnerID = ledger.AccountID(partnerID.String)
		tx.RedemptionID = ledger.RedemptionID(redID.String)
		tx.IdempotencyKey = key.String
		tx.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// WithTx executes fn within a database transaction. Only the ledger Store
// surface is exposed to fn.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	view := &txView{parent: s, tx: dbTx}
	if err := fn(view); err != nil {
		dbTx.Rollback()
		return err
	}
	return dbTx.Commit()
}

type txView struct {
	parent *Store
	tx     *sql.Tx
}

func (v *txView) Append(ctx context.Context, tx ledger.Transaction) error {
	return appendTx(ctx, v.tx, tx)
}

func (v *txView) AppendBatch(ctx context.Context, txs []ledger.Transaction) error {
	for _, tx := range txs {
		if err := appendTx(ctx, v.tx, tx); err != nil {
			return err
		}
	}
	return nil
}

func (v *txView) LoadByAccount(ctx context.Context, accountID ledger.AccountID) ([]ledger.Transaction, error) {
	return v.parent.LoadByAccount(ctx, accountID)
}

func (v *txView) LoadAll(ctx context.Context, limit int) ([]ledger.Transaction, error) {
	return v.parent.LoadAll(ctx, limit)
}

func (v *txView) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	var count int
	err := v.tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM transactions WHERE idempotency_key = ?`,
		idempotencyKey).Scan(&count)
	return count > 0, err
}

// =============================================================================
// ACCOUNT STORE
// =============================================================================

func (s *Store) CreateAccount(ctx context.Context, a ledger.Account) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, user_id, role, balance, total_earned, total_redeemed, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(a.ID), a.UserID, string(a.Role),
		a.Balance.Int64(), a.TotalEarned.Int64(), a.TotalRedeemed.Int64(),
		a.Active, a.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		if isUniqueViolation(err) {
			return &ledger.ValidationError{Field: "id", Message: "account already exists"}
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, id ledger.AccountID) (*ledger.Account, error) {
	return scanAccount(s.db.QueryRowContext(ctx, `
		SELECT id, user_id, role, balance, total_earned, total_redeemed, active, created_at
		FROM accounts WHERE id = ?`, string(id)), string(id))
}

func (s *Store) GetAccountByUser(ctx context.Context, userID string, role ledger.Role) (*ledger.Account, error) {
	return scanAccount(s.db.QueryRowContext(ctx, `
		SELECT id, user_id, role, balance, total_earned, total_redeemed, active, created_at
		FROM accounts WHERE user_id = ? AND role = ?`, userID, string(role)), userID)
}

func scanAccount(row *sql.Row, id string) (*ledger.Account, error) {
	var (
		a                         ledger.Account
		balance, earned, redeemed int64
		createdAt                 string
	)
	err := row.Scan(&a.ID, &a.UserID, &a.Role, &balance, &earned, &redeemed, &a.Active, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ledger.NotFoundError{Kind: "account", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	a.Balance = ledger.NewAmount(balance)
	a.TotalEarned = ledger.NewAmount(earned)
	a.TotalRedeemed = ledger.NewAmount(redeemed)
	a.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	return &a, nil
}

func (s *Store) ListAccounts(ctx context.Context, role ledger.Role) ([]ledger.Account, error) {
	query := `
		SELECT id, user_id, role, balance, total_earned, total_redeemed, active, created_at
		FROM accounts`
	var args []any
	if role != "" {
		query += ` WHERE role = ?`
		args = append(args, string(role))
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []ledger.Account
	for rows.Next() {
		var (
			a                         ledger.Account
			balance, earned, redeemed int64
			createdAt                 string
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.Role, &balance, &earned, &redeemed, &a.Active, &createdAt); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		a.Balance = ledger.NewAmount(balance)
		a.TotalEarned = ledger.NewAmount(earned)
		a.TotalRedeemed = ledger.NewAmount(redeemed)
		a.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (s *Store) Credit(ctx context.Context, id ledger.AccountID, amount ledger.Amount) error {
	if err := ledger.ValidateAmount(amount); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE accounts
		SET balance = balance + ?, total_earned = total_earned + ?
		WHERE id = ?`,
		amount.Int64(), amount.Int64(), string(id))
	if err != nil {
		return fmt.Errorf("credit account: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return &ledger.NotFoundError{Kind: "account", ID: string(id)}
	}
	return nil
}

func (s *Store) Debit(ctx context.Context, id ledger.AccountID, amount ledger.Amount) error {
	if err := ledger.ValidateAmount(amount); err != nil {
		return err
	}
	// Balance guard in the WHERE clause makes the check-and-debit atomic.
	res, err := s.db.ExecContext(ctx, `
		UPDATE accounts
		SET balance = balance - ?, total_redeemed = total_redeemed + ?
		WHERE id = ? AND balance >= ?`,
		amount.Int64(), amount.Int64(), string(id), amount.Int64())
	if err != nil {
		return fmt.Errorf("debit account: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 1 {
		return nil
	}

	account, getErr := s.GetAccount(ctx, id)
	if getErr != nil {
		return getErr
	}
	return &ledger.InsufficientFundsError{
		AccountID: id,
		Available: account.Balance,
		Requested: amount,
	}
}

func (s *Store) SetAccountActive(ctx context.Context, id ledger.AccountID, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET active = ? WHERE id = ?`, active, string(id))
	if err != nil {
		return fmt.Errorf("set account active: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return &ledger.NotFoundError{Kind: "account", ID: string(id)}
	}
	return nil
}

// =============================================================================
// SCHEME STORE
// =============================================================================

func (s *Store) SaveScheme(ctx context.Context, sc scheme.RewardScheme) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO schemes
			(id, partner_id, name, description, conditions, category, coin_reward,
			 minimum_purchase, start_date, end_date, usage_count, max_usage, active,
			 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			conditions = excluded.conditions,
			category = excluded.category,
			coin_reward = excluded.coin_reward,
			minimum_purchase = excluded.minimum_purchase,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			usage_count = excluded.usage_count,
			max_usage = excluded.max_usage,
			active = excluded.active,
			updated_at = excluded.updated_at`,
		string(sc.ID), string(sc.PartnerID), sc.Name, sc.Description, sc.Conditions,
		string(sc.Category), sc.CoinReward.Int64(), sc.MinimumPurchase.Int64(),
		sc.StartDate.UTC().Format(timeLayout), sc.EndDate.UTC().Format(timeLayout),
		sc.UsageCount, sc.MaxUsage, sc.Active,
		sc.CreatedAt.UTC().Format(timeLayout), sc.UpdatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("save scheme: %w", err)
	}
	return nil
}

func (s *Store) GetScheme(ctx context.Context, id ledger.SchemeID) (*scheme.RewardScheme, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, partner_id, name, description, conditions, category, coin_reward,
		       minimum_purchase, start_date, end_date, usage_count, max_usage, active,
		       created_at, updated_at
		FROM schemes WHERE id = ?`, string(id))

	sc, err := scanScheme(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ledger.NotFoundError{Kind: "scheme", ID: string(id)}
	}
	return sc, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScheme(row rowScanner) (*scheme.RewardScheme, error) {
	var (
		sc                       scheme.RewardScheme
		description, conditions  sql.NullString
		reward, minPurchase      int64
		start, end, crt, upd     string
	)
	err := row.Scan(&sc.ID, &sc.PartnerID, &sc.Name, &description, &conditions,
		&sc.Category, &reward, &minPurchase, &start, &end,
		&sc.UsageCount, &sc.MaxUsage, &sc.Active, &crt, &upd)
	if err != nil {
		return nil, err
	}
	sc.Description = description.String
	sc.Conditions = conditions.String
	sc.CoinReward = ledger.NewAmount(reward)
	sc.MinimumPurchase = ledger.NewAmount(minPurchase)
	sc.StartDate, _ = time.Parse(timeLayout, start)
	sc.EndDate, _ = time.Parse(timeLayout, end)
	sc.CreatedAt, _ = time.Parse(timeLayout, crt)
	sc.UpdatedAt, _ = time.Parse(timeLayout, upd)
	return &sc, nil
}

func (s *Store) ListSchemesByPartner(ctx context.Context, partnerID ledger.AccountID) ([]scheme.RewardScheme, error) {
	return s.querySchemes(ctx, `
		SELECT id, partner_id, name, description, conditions, category, coin_reward,
		       minimum_purchase, start_date, end_date, usage_count, max_usage, active,
		       created_at, updated_at
		FROM schemes WHERE partner_id = ? ORDER BY created_at ASC`, string(partnerID))
}

func (s *Store) ListSchemes(ctx context.Context) ([]scheme.RewardScheme, error) {
	return s.querySchemes(ctx, `
		SELECT id, partner_id, name, description, conditions, category, coin_reward,
		       minimum_purchase, start_date, end_date, usage_count, max_usage, active,
		       created_at, updated_at
		FROM schemes ORDER BY created_at ASC`)
}

func (s *Store) querySchemes(ctx context.Context, query string, args ...any) ([]scheme.RewardScheme, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query schemes: %w", err)
	}
	defer rows.Close()

	var schemes []scheme.RewardScheme
	for rows.Next() {
		sc, err := scanScheme(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scheme: %w", err)
		}
		schemes = append(schemes, *sc)
	}
	return schemes, rows.Err()
}

func (s *Store) DeleteScheme(ctx context.Context, id ledger.SchemeID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM schemes WHERE id = ?`, string(id))
	if err != nil {
		return fmt.Errorf("delete scheme: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return &ledger.NotFoundError{Kind: "scheme", ID: string(id)}
	}
	return nil
}

// =============================================================================
// REDEMPTION STORE
// =============================================================================

func (s *Store) SaveRedemption(ctx context.Context, r engine.Redemption) error {
	var processedAt any
	if r.ProcessedAt != nil {
		processedAt = r.ProcessedAt.UTC().Format(timeLayout)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO redemptions (id, member_id, item_id, coins_cost, status, created_at, processed_at, processed_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			processed_at = excluded.processed_at,
			processed_by = excluded.processed_by`,
		string(r.ID), string(r.MemberID), r.ItemID, r.CoinsCost.Int64(),
		string(r.Status), r.CreatedAt.UTC().Format(timeLayout), processedAt, r.ProcessedBy)
	if err != nil {
		return fmt.Errorf("save redemption: %w", err)
	}
	return nil
}

func (s *Store) GetRedemption(ctx context.Context, id ledger.RedemptionID) (*engine.Redemption, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, member_id, item_id, coins_cost, status, created_at, processed_at, processed_by
		FROM redemptions WHERE id = ?`, string(id))

	r, err := scanRedemption(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ledger.NotFoundError{Kind: "redemption", ID: string(id)}
	}
	return r, err
}

func scanRedemption(row rowScanner) (*engine.Redemption, error) {
	var (
		r                        engine.Redemption
		cost                     int64
		createdAt                string
		processedAt, processedBy sql.NullString
	)
	err := row.Scan(&r.ID, &r.MemberID, &r.ItemID, &cost, &r.Status, &createdAt, &processedAt, &processedBy)
	if err != nil {
		return nil, err
	}
	r.CoinsCost = ledger.NewAmount(cost)
	r.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	if processedAt.Valid {
		t, _ := time.Parse(timeLayout, processedAt.String)
		r.ProcessedAt = &t
	}
	r.ProcessedBy = processedBy.String
	return &r, nil
}

func (s *Store) ListRedemptions(ctx context.Context, status engine.RedemptionStatus, memberID ledger.AccountID) ([]engine.Redemption, error) {
	query := `
		SELECT id, member_id, item_id, coins_cost, status, created_at, processed_at, processed_by
		FROM redemptions WHERE 1=1`
	var args []any
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	if memberID != "" {
		query += ` AND member_id = ?`
		args = append(args, string(memberID))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query redemptions: %w", err)
	}
	defer rows.Close()

	var reds []engine.Redemption
	for rows.Next() {
		r, err := scanRedemption(rows)
		if err != nil {
			return nil, fmt.Errorf("scan redemption: %w", err)
		}
		reds = append(reds, *r)
	}
	return reds, rows.Err()
}

// =============================================================================
// CATALOG STORE
// =============================================================================

func (s *Store) SaveRewardItem(ctx context.Context, item engine.RewardItem) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reward_items (id, title, description, coins_cost, category, active, image_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			coins_cost = excluded.coins_cost,
			category = excluded.category,
			active = excluded.active,
			image_url = excluded.image_url`,
		item.ID, item.Title, item.Description, item.CoinsCost.Int64(),
		string(item.Category), item.Active, item.ImageURL,
		item.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("save reward item: %w", err)
	}
	return nil
}

func (s *Store) GetRewardItem(ctx context.Context, id string) (*engine.RewardItem, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, coins_cost, category, active, image_url, created_at
		FROM reward_items WHERE id = ?`, id)

	item, err := scanRewardItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ledger.NotFoundError{Kind: "reward_item", ID: id}
	}
	return item, err
}

func scanRewardItem(row rowScanner) (*engine.RewardItem, error) {
	var (
		item                  engine.RewardItem
		description, imageURL sql.NullString
		cost                  int64
		createdAt             string
	)
	err := row.Scan(&item.ID, &item.Title, &description, &cost, &item.Category,
		&item.Active, &imageURL, &createdAt)
	if err != nil {
		return nil, err
	}
	item.Description = description.String
	item.ImageURL = imageURL.String
	item.CoinsCost = ledger.NewAmount(cost)
	item.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	return &item, nil
}

func (s *Store) ListRewardItems(ctx context.Context, activeOnly bool) ([]engine.RewardItem, error) {
	query := `
		SELECT id, title, description, coins_cost, category, active, image_url, created_at
		FROM reward_items`
	if activeOnly {
		query += ` WHERE active = TRUE`
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query reward items: %w", err)
	}
	defer rows.Close()

	var items []engine.RewardItem
	for rows.Next() {
		item, err := scanRewardItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reward item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (s *Store) DeleteRewardItem(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reward_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reward item: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return &ledger.NotFoundError{Kind: "reward_item", ID: id}
	}
	return nil
}

// =============================================================================
// DEV HELPERS
// =============================================================================

// Reset clears all tables. Dev/test only.
func (s *Store) Reset(ctx context.Context) error {
	for _, table := range []string{"transactions", "redemptions", "schemes", "reward_items", "accounts"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
