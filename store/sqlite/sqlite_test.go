package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loyaltyworks/coin-engine/engine"
	"github.com/loyaltyworks/coin-engine/ledger"
	"github.com/loyaltyworks/coin-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testAccount(id string, role ledger.Role) ledger.Account {
	return ledger.Account{
		ID:        ledger.AccountID(id),
		UserID:    "user-" + id,
		Role:      role,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
}

func testTx(from, to string, amount int64, key string) ledger.Transaction {
	return ledger.Transaction{
		ID:             ledger.NewTransactionID(),
		From:           ledger.AccountID(from),
		To:             ledger.AccountID(to),
		Amount:         ledger.NewAmount(amount),
		Type:           ledger.TxReward,
		IdempotencyKey: key,
		CreatedAt:      time.Now().UTC(),
	}
}

// =============================================================================
// TRANSACTION PERSISTENCE
// =============================================================================

func TestAppend_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tx := testTx("partner-1", "member-1", 50, "key-1")
	tx.Description = "Reward via scheme"
	tx.SchemeID = "scheme-1"
	tx.PartnerID = "partner-1"
	require.NoError(t, store.Append(ctx, tx))

	loaded, err := store.LoadByAccount(ctx, "member-1")
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	got := loaded[0]
	assert.Equal(t, tx.ID, got.ID)
	assert.Equal(t, tx.From, got.From)
	assert.Equal(t, tx.To, got.To)
	assert.Equal(t, int64(50), got.Amount.Int64())
	assert.Equal(t, ledger.TxReward, got.Type)
	assert.Equal(t, ledger.SchemeID("scheme-1"), got.SchemeID)
	assert.Equal(t, "key-1", got.IdempotencyKey)
}

func TestAppend_DuplicateIdempotencyKey(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, testTx("a", "b", 10, "key-1")))

	err := store.Append(ctx, testTx("a", "b", 10, "key-1"))
	assert.ErrorIs(t, err, ledger.ErrDuplicateIdempotencyKey)

	exists, err := store.Exists(ctx, "key-1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestLoadByAccount_SeesBothDirections(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, testTx("partner-1", "member-1", 10, "k1")))
	require.NoError(t, store.Append(ctx, testTx("member-1", "", 5, "k2")))
	require.NoError(t, store.Append(ctx, testTx("partner-1", "member-2", 7, "k3")))

	txs, err := store.LoadByAccount(ctx, "member-1")
	require.NoError(t, err)
	assert.Len(t, txs, 2)

	txs, err = store.LoadByAccount(ctx, "partner-1")
	require.NoError(t, err)
	assert.Len(t, txs, 2)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	// GIVEN: A batch where the second entry reuses an idempotency key
	// WHEN: Writing through WithTx
	// THEN: Neither entry is persisted

	store := newTestStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(s ledger.Store) error {
		if err := s.Append(ctx, testTx("a", "b", 10, "key-1")); err != nil {
			return err
		}
		return s.Append(ctx, testTx("a", "b", 20, "key-1"))
	})
	require.ErrorIs(t, err, ledger.ErrDuplicateIdempotencyKey)

	exists, err := store.Exists(ctx, "key-1")
	require.NoError(t, err)
	assert.False(t, exists, "rolled-back writes must not be visible")
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func TestDebit_GuardsBalanceAtomically(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateAccount(ctx, testAccount("member-1", ledger.RoleMember)))
	require.NoError(t, store.Credit(ctx, "member-1", ledger.NewAmount(30)))

	err := store.Debit(ctx, "member-1", ledger.NewAmount(50))

	var insufficientErr *ledger.InsufficientFundsError
	require.ErrorAs(t, err, &insufficientErr)
	assert.Equal(t, int64(30), insufficientErr.Available.Int64())

	account, err := store.GetAccount(ctx, "member-1")
	require.NoError(t, err)
	assert.Equal(t, int64(30), account.Balance.Int64())
}

func TestDebit_UnknownAccount(t *testing.T) {
	store := newTestStore(t)

	err := store.Debit(context.Background(), "ghost", ledger.NewAmount(10))
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestCreateAccount_DuplicateUserRole(t *testing.T) {
	// One account per (user, role): the same user may hold a partner
	// wallet and a member account, but not two of either.

	store := newTestStore(t)
	ctx := context.Background()

	first := testAccount("acct-1", ledger.RoleMember)
	require.NoError(t, store.CreateAccount(ctx, first))

	dup := testAccount("acct-2", ledger.RoleMember)
	dup.UserID = first.UserID
	err := store.CreateAccount(ctx, dup)
	assert.ErrorIs(t, err, ledger.ErrValidation)

	other := testAccount("acct-3", ledger.RolePartner)
	other.UserID = first.UserID
	assert.NoError(t, store.CreateAccount(ctx, other))
}

func TestGetAccountByUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	account := testAccount("acct-1", ledger.RoleMember)
	require.NoError(t, store.CreateAccount(ctx, account))

	found, err := store.GetAccountByUser(ctx, account.UserID, ledger.RoleMember)
	require.NoError(t, err)
	assert.Equal(t, account.ID, found.ID)

	_, err = store.GetAccountByUser(ctx, account.UserID, ledger.RolePartner)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestListAccounts_RoleFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateAccount(ctx, testAccount("p1", ledger.RolePartner)))
	require.NoError(t, store.CreateAccount(ctx, testAccount("m1", ledger.RoleMember)))
	require.NoError(t, store.CreateAccount(ctx, testAccount("m2", ledger.RoleMember)))

	members, err := store.ListAccounts(ctx, ledger.RoleMember)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	all, err := store.ListAccounts(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

// =============================================================================
// REDEMPTIONS
// =============================================================================

func TestRedemption_UpsertAndFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	red := engine.Redemption{
		ID:        "red-1",
		MemberID:  "member-1",
		ItemID:    "item-1",
		CoinsCost: ledger.NewAmount(100),
		Status:    engine.RedemptionPending,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.SaveRedemption(ctx, red))

	// Advance the status via upsert
	now := time.Now().UTC()
	red.Status = engine.RedemptionApproved
	red.ProcessedAt = &now
	red.ProcessedBy = "admin-1"
	require.NoError(t, store.SaveRedemption(ctx, red))

	loaded, err := store.GetRedemption(ctx, "red-1")
	require.NoError(t, err)
	assert.Equal(t, engine.RedemptionApproved, loaded.Status)
	assert.Equal(t, "admin-1", loaded.ProcessedBy)
	require.NotNil(t, loaded.ProcessedAt)

	pending, err := store.ListRedemptions(ctx, engine.RedemptionPending, "")
	require.NoError(t, err)
	assert.Empty(t, pending)

	approved, err := store.ListRedemptions(ctx, engine.RedemptionApproved, "member-1")
	require.NoError(t, err)
	assert.Len(t, approved, 1)
}
