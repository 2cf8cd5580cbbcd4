// Package store provides in-memory ledger.Store and ledger.AccountStore
// implementations for tests and development.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/loyaltyworks/coin-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	transactions []ledger.Transaction
	idempotency  map[string]bool
	accounts     map[ledger.AccountID]ledger.Account
}

func NewMemory() *Memory {
	return &Memory{
		idempotency: make(map[string]bool),
		accounts:    make(map[ledger.AccountID]ledger.Account),
	}
}

// -----------------------------------------------------------------------------
// ledger.Store
// -----------------------------------------------------------------------------

// Append adds a single transaction. Append-only.
func (m *Memory) Append(_ context.Context, tx ledger.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(tx)
}

// AppendBatch adds multiple transactions atomically.
func (m *Memory) AppendBatch(_ context.Context, txs []ledger.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Check all idempotency keys first (atomic check)
	for _, tx := range txs {
		if tx.IdempotencyKey != "" && m.idempotency[tx.IdempotencyKey] {
			return ledger.ErrDuplicateIdempotencyKey
		}
	}

	for _, tx := range txs {
		if err := m.appendLocked(tx); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) appendLocked(tx ledger.Transaction) error {
	if tx.IdempotencyKey != "" {
		if m.idempotency[tx.IdempotencyKey] {
			return ledger.ErrDuplicateIdempotencyKey
		}
		m.idempotency[tx.IdempotencyKey] = true
	}
	m.transactions = append(m.transactions, tx)
	return nil
}

func (m *Memory) LoadByAccount(_ context.Context, accountID ledger.AccountID) ([]ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.Transaction
	for _, tx := range m.transactions {
		if tx.Touches(accountID) {
			result = append(result, tx)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (m *Memory) LoadAll(_ context.Context, limit int) ([]ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]ledger.Transaction, len(m.transactions))
	copy(result, m.transactions)
	// Newest first
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *Memory) Exists(_ context.Context, idempotencyKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idempotency[idempotencyKey], nil
}

// -----------------------------------------------------------------------------
// ledger.AccountStore
// -----------------------------------------------------------------------------

func (m *Memory) CreateAccount(_ context.Context, a ledger.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[a.ID]; ok {
		return &ledger.ValidationError{Field: "id", Message: "account already exists"}
	}
	m.accounts[a.ID] = a
	return nil
}

func (m *Memory) GetAccount(_ context.Context, id ledger.AccountID) (*ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.accounts[id]
	if !ok {
		return nil, &ledger.NotFoundError{Kind: "account", ID: string(id)}
	}
	copied := a
	return &copied, nil
}

func (m *Memory) GetAccountByUser(_ context.Context, userID string, role ledger.Role) (*ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, a := range m.accounts {
		if a.UserID == userID && a.Role == role {
			copied := a
			return &copied, nil
		}
	}
	return nil, &ledger.NotFoundError{Kind: "account", ID: userID}
}

func (m *Memory) ListAccounts(_ context.Context, role ledger.Role) ([]ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.Account
	for _, a := range m.accounts {
		if role == "" || a.Role == role {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *Memory) Credit(_ context.Context, id ledger.AccountID, amount ledger.Amount) error {
	if err := ledger.ValidateAmount(amount); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[id]
	if !ok {
		return &ledger.NotFoundError{Kind: "account", ID: string(id)}
	}
	a.Balance = a.Balance.Add(amount)
	a.TotalEarned = a.TotalEarned.Add(amount)
	m.accounts[id] = a
	return nil
}

func (m *Memory) Debit(_ context.Context, id ledger.AccountID, amount ledger.Amount) error {
	if err := ledger.ValidateAmount(amount); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[id]
	if !ok {
		return &ledger.NotFoundError{Kind: "account", ID: string(id)}
	}
	if a.Balance.LessThan(amount) {
		return &ledger.InsufficientFundsError{
			AccountID: id,
			Available: a.Balance,
			Requested: amount,
		}
	}
	a.Balance = a.Balance.Sub(amount)
	a.TotalRedeemed = a.TotalRedeemed.Add(amount)
	m.accounts[id] = a
	return nil
}

func (m *Memory) SetAccountActive(_ context.Context, id ledger.AccountID, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[id]
	if !ok {
		return &ledger.NotFoundError{Kind: "account", ID: string(id)}
	}
	a.Active = active
	m.accounts[id] = a
	return nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with snapshot/rollback transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn against a transactional view. On error the pre-call
// state is restored.
func (tm *TxMemory) WithTx(_ context.Context, fn func(ledger.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()

	if err := fn(&txMemoryView{parent: tm.Memory}); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	transactions []ledger.Transaction
	idempotency  map[string]bool
}

func (tm *TxMemory) snapshot() memorySnapshot {
	txs := make([]ledger.Transaction, len(tm.transactions))
	copy(txs, tm.transactions)
	keys := make(map[string]bool, len(tm.idempotency))
	for k, v := range tm.idempotency {
		keys[k] = v
	}
	return memorySnapshot{transactions: txs, idempotency: keys}
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.transactions = s.transactions
	tm.idempotency = s.idempotency
}

type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) Append(_ context.Context, tx ledger.Transaction) error {
	return tv.parent.appendLocked(tx)
}

func (tv *txMemoryView) AppendBatch(_ context.Context, txs []ledger.Transaction) error {
	for _, tx := range txs {
		if err := tv.parent.appendLocked(tx); err != nil {
			return err
		}
	}
	return nil
}

func (tv *txMemoryView) LoadByAccount(_ context.Context, accountID ledger.AccountID) ([]ledger.Transaction, error) {
	var result []ledger.Transaction
	for _, tx := range tv.parent.transactions {
		if tx.Touches(accountID) {
			result = append(result, tx)
		}
	}
	return result, nil
}

func (tv *txMemoryView) LoadAll(_ context.Context, limit int) ([]ledger.Transaction, error) {
	result := make([]ledger.Transaction, len(tv.parent.transactions))
	copy(result, tv.parent.transactions)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (tv *txMemoryView) Exists(_ context.Context, idempotencyKey string) (bool, error) {
	return tv.parent.idempotency[idempotencyKey], nil
}
