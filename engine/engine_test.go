package engine_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loyaltyworks/coin-engine/engine"
	"github.com/loyaltyworks/coin-engine/ledger"
	"github.com/loyaltyworks/coin-engine/scheme"
	"github.com/loyaltyworks/coin-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestEngine(t *testing.T) (*engine.Engine, *sqlite.Store) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)

	registry := scheme.NewRegistry(store)
	eng := engine.New(store, ledger.NewLedger(store), registry, store, store, log)
	return eng, store
}

func createAccount(t *testing.T, store *sqlite.Store, id string, role ledger.Role) ledger.AccountID {
	t.Helper()
	err := store.CreateAccount(context.Background(), ledger.Account{
		ID:        ledger.AccountID(id),
		UserID:    "user-" + id,
		Role:      role,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	return ledger.AccountID(id)
}

// fundedPartner creates a partner and buys coins through the normal
// purchase path so the ledger and stored balance agree.
func fundedPartner(t *testing.T, eng *engine.Engine, store *sqlite.Store, id string, coins int64) ledger.AccountID {
	t.Helper()
	partnerID := createAccount(t, store, id, ledger.RolePartner)
	_, err := eng.PurchaseCoins(context.Background(), partnerID,
		ledger.NewAmount(coins), "test-payment", "fund-"+id)
	require.NoError(t, err)
	return partnerID
}

func createScheme(t *testing.T, eng *engine.Engine, partnerID ledger.AccountID, reward int64, maxUsage int) *scheme.RewardScheme {
	t.Helper()
	now := time.Now().UTC()
	sc, err := eng.Schemes.Create(context.Background(), scheme.Spec{
		PartnerID:  partnerID,
		Name:       "Test scheme",
		Category:   scheme.CategoryPurchase,
		CoinReward: ledger.NewAmount(reward),
		StartDate:  now.AddDate(0, 0, -1),
		EndDate:    now.AddDate(0, 1, 0),
		MaxUsage:   maxUsage,
	})
	require.NoError(t, err)
	return sc
}

func createItem(t *testing.T, store *sqlite.Store, id string, cost int64) string {
	t.Helper()
	err := store.SaveRewardItem(context.Background(), engine.RewardItem{
		ID:        id,
		Title:     "Test item",
		CoinsCost: ledger.NewAmount(cost),
		Category:  engine.ItemVoucher,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	return id
}

func balance(t *testing.T, eng *engine.Engine, id ledger.AccountID) int64 {
	t.Helper()
	account, err := eng.Balance(context.Background(), id)
	require.NoError(t, err)
	return account.Balance.Int64()
}

// =============================================================================
// PURCHASE
// =============================================================================

func TestPurchaseCoins_CreditsWalletAndAppendsLedger(t *testing.T) {
	// GIVEN: A partner with an empty wallet
	// WHEN: Purchasing 1000 coins
	// THEN: The wallet holds 1000 and the ledger has a purchase entry

	eng, store := newTestEngine(t)
	ctx := context.Background()
	partnerID := createAccount(t, store, "partner-1", ledger.RolePartner)

	tx, err := eng.PurchaseCoins(ctx, partnerID, ledger.NewAmount(1000), "pay_123", "purchase-1")
	require.NoError(t, err)

	assert.Equal(t, ledger.TxPurchase, tx.Type)
	assert.Equal(t, partnerID, tx.To)
	assert.Empty(t, tx.From, "purchase mints coins from outside the system")
	assert.Equal(t, int64(1000), balance(t, eng, partnerID))

	history, err := eng.History(ctx, partnerID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "purchase-1", history[0].IdempotencyKey)
}

func TestPurchaseCoins_ReplayedKey_Rejected(t *testing.T) {
	// GIVEN: A completed purchase
	// WHEN: The same request is retried with the same idempotency key
	// THEN: The retry fails and the wallet is not double-credited

	eng, store := newTestEngine(t)
	ctx := context.Background()
	partnerID := createAccount(t, store, "partner-1", ledger.RolePartner)

	_, err := eng.PurchaseCoins(ctx, partnerID, ledger.NewAmount(500), "pay_123", "purchase-1")
	require.NoError(t, err)

	_, err = eng.PurchaseCoins(ctx, partnerID, ledger.NewAmount(500), "pay_123", "purchase-1")
	assert.ErrorIs(t, err, ledger.ErrDuplicateIdempotencyKey)
	assert.Equal(t, int64(500), balance(t, eng, partnerID))
}

func TestPurchaseCoins_WrongRole(t *testing.T) {
	eng, store := newTestEngine(t)
	memberID := createAccount(t, store, "member-1", ledger.RoleMember)

	_, err := eng.PurchaseCoins(context.Background(), memberID, ledger.NewAmount(100), "pay", "k")
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestPurchaseCoins_DisabledAccount(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()
	partnerID := createAccount(t, store, "partner-1", ledger.RolePartner)
	require.NoError(t, store.SetAccountActive(ctx, partnerID, false))

	_, err := eng.PurchaseCoins(ctx, partnerID, ledger.NewAmount(100), "pay", "k")
	assert.ErrorIs(t, err, ledger.ErrAccountDisabled)
}

// =============================================================================
// REWARD - Scenario: purchase then scheme-based grant
// =============================================================================

func TestRewardMember_SchemeGrant_MovesCoinsAndRecordsUsage(t *testing.T) {
	// GIVEN: A partner with 1000 coins and a scheme rewarding 50
	// WHEN: Rewarding a member via the scheme
	// THEN: 50 coins move partner->member and the usage counter increments

	eng, store := newTestEngine(t)
	ctx := context.Background()
	partnerID := fundedPartner(t, eng, store, "partner-1", 1000)
	memberID := createAccount(t, store, "member-1", ledger.RoleMember)
	sc := createScheme(t, eng, partnerID, 50, 10)

	tx, err := eng.RewardMember(ctx, engine.RewardSpec{
		PartnerID:      partnerID,
		MemberID:       memberID,
		SchemeID:       sc.ID,
		IdempotencyKey: "reward-1",
	})
	require.NoError(t, err)

	assert.Equal(t, ledger.TxReward, tx.Type)
	assert.Equal(t, int64(50), tx.Amount.Int64(), "amount comes from the scheme")
	assert.Equal(t, sc.ID, tx.SchemeID)

	assert.Equal(t, int64(950), balance(t, eng, partnerID))
	assert.Equal(t, int64(50), balance(t, eng, memberID))

	current, err := eng.Schemes.Get(ctx, sc.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, current.UsageCount)
}

func TestRewardMember_DirectGrant(t *testing.T) {
	eng, store := newTestEngine(t)
	partnerID := fundedPartner(t, eng, store, "partner-1", 300)
	memberID := createAccount(t, store, "member-1", ledger.RoleMember)

	tx, err := eng.RewardMember(context.Background(), engine.RewardSpec{
		PartnerID:      partnerID,
		MemberID:       memberID,
		Amount:         ledger.NewAmount(75),
		Description:    "Spot bonus",
		IdempotencyKey: "reward-direct",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(75), tx.Amount.Int64())
	assert.Empty(t, tx.SchemeID)
	assert.Equal(t, int64(225), balance(t, eng, partnerID))
	assert.Equal(t, int64(75), balance(t, eng, memberID))
}

func TestRewardMember_InsufficientPartnerFunds_NoUsageRecorded(t *testing.T) {
	// GIVEN: A partner with fewer coins than the scheme reward
	// WHEN: Attempting the grant
	// THEN: InsufficientFunds, no balance movement, usage counter untouched

	eng, store := newTestEngine(t)
	ctx := context.Background()
	partnerID := fundedPartner(t, eng, store, "partner-1", 100)
	memberID := createAccount(t, store, "member-1", ledger.RoleMember)
	sc := createScheme(t, eng, partnerID, 500, 10)

	_, err := eng.RewardMember(ctx, engine.RewardSpec{
		PartnerID:      partnerID,
		MemberID:       memberID,
		SchemeID:       sc.ID,
		IdempotencyKey: "reward-1",
	})

	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	assert.Equal(t, int64(100), balance(t, eng, partnerID))
	assert.Equal(t, int64(0), balance(t, eng, memberID))

	current, err := eng.Schemes.Get(ctx, sc.ID)
	require.NoError(t, err)
	assert.Zero(t, current.UsageCount, "failed grant must not consume usage")
}

func TestRewardMember_ExhaustedScheme(t *testing.T) {
	// GIVEN: A scheme with a usage cap of 1, already used once
	// WHEN: A second grant is attempted
	// THEN: SchemeExhausted and no coins move

	eng, store := newTestEngine(t)
	ctx := context.Background()
	partnerID := fundedPartner(t, eng, store, "partner-1", 1000)
	memberID := createAccount(t, store, "member-1", ledger.RoleMember)
	sc := createScheme(t, eng, partnerID, 50, 1)

	_, err := eng.RewardMember(ctx, engine.RewardSpec{
		PartnerID: partnerID, MemberID: memberID, SchemeID: sc.ID, IdempotencyKey: "reward-1",
	})
	require.NoError(t, err)

	_, err = eng.RewardMember(ctx, engine.RewardSpec{
		PartnerID: partnerID, MemberID: memberID, SchemeID: sc.ID, IdempotencyKey: "reward-2",
	})
	assert.ErrorIs(t, err, ledger.ErrSchemeExhausted)
	assert.Equal(t, int64(950), balance(t, eng, partnerID))
	assert.Equal(t, int64(50), balance(t, eng, memberID))
}

func TestRewardMember_ForeignScheme_Rejected(t *testing.T) {
	eng, store := newTestEngine(t)
	partnerA := fundedPartner(t, eng, store, "partner-a", 1000)
	partnerB := fundedPartner(t, eng, store, "partner-b", 1000)
	memberID := createAccount(t, store, "member-1", ledger.RoleMember)
	schemeOfA := createScheme(t, eng, partnerA, 50, 10)

	_, err := eng.RewardMember(context.Background(), engine.RewardSpec{
		PartnerID:      partnerB,
		MemberID:       memberID,
		SchemeID:       schemeOfA.ID,
		IdempotencyKey: "reward-1",
	})
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestRewardMember_InactiveScheme_Rejected(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()
	partnerID := fundedPartner(t, eng, store, "partner-1", 1000)
	memberID := createAccount(t, store, "member-1", ledger.RoleMember)
	sc := createScheme(t, eng, partnerID, 50, 10)
	require.NoError(t, eng.Schemes.Deactivate(ctx, sc.ID))

	_, err := eng.RewardMember(ctx, engine.RewardSpec{
		PartnerID: partnerID, MemberID: memberID, SchemeID: sc.ID, IdempotencyKey: "reward-1",
	})
	assert.ErrorIs(t, err, ledger.ErrSchemeNotActive)
	assert.Equal(t, int64(1000), balance(t, eng, partnerID))
}

// =============================================================================
// REDEMPTION - Scenario: redeem, approve, complete
// =============================================================================

func grantCoins(t *testing.T, eng *engine.Engine, store *sqlite.Store, memberID ledger.AccountID, coins int64) {
	t.Helper()
	partnerID := fundedPartner(t, eng, store, "funder-"+string(memberID), coins)
	_, err := eng.RewardMember(context.Background(), engine.RewardSpec{
		PartnerID:      partnerID,
		MemberID:       memberID,
		Amount:         ledger.NewAmount(coins),
		IdempotencyKey: "grant-" + string(memberID),
	})
	require.NoError(t, err)
}

func TestRedemption_ApproveThenComplete(t *testing.T) {
	// GIVEN: A member with 500 coins and a 200-coin catalog item
	// WHEN: Redeeming, approving, then completing
	// THEN: Coins are debited once at redemption time; later transitions
	//       change status only

	eng, store := newTestEngine(t)
	ctx := context.Background()
	memberID := createAccount(t, store, "member-1", ledger.RoleMember)
	grantCoins(t, eng, store, memberID, 500)
	itemID := createItem(t, store, "item-1", 200)

	red, err := eng.RedeemCatalogItem(ctx, memberID, itemID, "redeem-1")
	require.NoError(t, err)
	assert.Equal(t, engine.RedemptionPending, red.Status)
	assert.Equal(t, int64(300), balance(t, eng, memberID), "debit happens at request time")

	red, err = eng.ResolveRedemption(ctx, red.ID, engine.RedemptionApproved, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, engine.RedemptionApproved, red.Status)
	assert.Equal(t, "admin-1", red.ProcessedBy)
	require.NotNil(t, red.ProcessedAt)
	assert.Equal(t, int64(300), balance(t, eng, memberID), "approval has no balance effect")

	red, err = eng.ResolveRedemption(ctx, red.ID, engine.RedemptionCompleted, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, engine.RedemptionCompleted, red.Status)
	assert.Equal(t, int64(300), balance(t, eng, memberID))
}

func TestRedemption_RejectRefundsCoins(t *testing.T) {
	// GIVEN: A pending redemption that debited 200 coins
	// WHEN: Rejecting it
	// THEN: The member is refunded via a compensating earn transaction

	eng, store := newTestEngine(t)
	ctx := context.Background()
	memberID := createAccount(t, store, "member-1", ledger.RoleMember)
	grantCoins(t, eng, store, memberID, 500)
	itemID := createItem(t, store, "item-1", 200)

	red, err := eng.RedeemCatalogItem(ctx, memberID, itemID, "redeem-1")
	require.NoError(t, err)
	require.Equal(t, int64(300), balance(t, eng, memberID))

	red, err = eng.ResolveRedemption(ctx, red.ID, engine.RedemptionRejected, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, engine.RedemptionRejected, red.Status)
	assert.Equal(t, int64(500), balance(t, eng, memberID), "rejection restores the balance")

	// The refund is a new ledger entry, not a deletion of the debit
	history, err := eng.History(ctx, memberID)
	require.NoError(t, err)

	var refund *ledger.Transaction
	for i := range history {
		if history[i].Type == ledger.TxEarn && history[i].RedemptionID == red.ID {
			refund = &history[i]
		}
	}
	require.NotNil(t, refund, "refund transaction should reference the redemption")
	assert.Equal(t, int64(200), refund.Amount.Int64())
}

func TestRedemption_RejectAfterApproval(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()
	memberID := createAccount(t, store, "member-1", ledger.RoleMember)
	grantCoins(t, eng, store, memberID, 500)
	itemID := createItem(t, store, "item-1", 200)

	red, err := eng.RedeemCatalogItem(ctx, memberID, itemID, "redeem-1")
	require.NoError(t, err)
	_, err = eng.ResolveRedemption(ctx, red.ID, engine.RedemptionApproved, "admin-1")
	require.NoError(t, err)

	// Fulfillment fell through after approval
	_, err = eng.ResolveRedemption(ctx, red.ID, engine.RedemptionRejected, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, int64(500), balance(t, eng, memberID))
}

func TestRedemption_InsufficientFunds(t *testing.T) {
	eng, store := newTestEngine(t)
	memberID := createAccount(t, store, "member-1", ledger.RoleMember)
	grantCoins(t, eng, store, memberID, 100)
	itemID := createItem(t, store, "item-1", 200)

	_, err := eng.RedeemCatalogItem(context.Background(), memberID, itemID, "redeem-1")
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	assert.Equal(t, int64(100), balance(t, eng, memberID))

	reds, err := eng.Redemptions.ListRedemptions(context.Background(), "", memberID)
	require.NoError(t, err)
	assert.Empty(t, reds, "no redemption record on failure")
}

func TestRedemption_InactiveItem(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()
	memberID := createAccount(t, store, "member-1", ledger.RoleMember)
	grantCoins(t, eng, store, memberID, 500)

	require.NoError(t, store.SaveRewardItem(ctx, engine.RewardItem{
		ID:        "item-retired",
		Title:     "Retired item",
		CoinsCost: ledger.NewAmount(50),
		Category:  engine.ItemGift,
		Active:    false,
		CreatedAt: time.Now().UTC(),
	}))

	_, err := eng.RedeemCatalogItem(ctx, memberID, "item-retired", "redeem-1")
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

// =============================================================================
// STATE MACHINE - Invalid transitions
// =============================================================================

func TestResolveRedemption_InvalidTransitions(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()
	memberID := createAccount(t, store, "member-1", ledger.RoleMember)
	grantCoins(t, eng, store, memberID, 1000)
	itemID := createItem(t, store, "item-1", 100)

	// pending -> completed skips approval
	red, err := eng.RedeemCatalogItem(ctx, memberID, itemID, "redeem-1")
	require.NoError(t, err)
	_, err = eng.ResolveRedemption(ctx, red.ID, engine.RedemptionCompleted, "admin-1")
	assert.ErrorIs(t, err, ledger.ErrInvalidTransition)

	// completed is terminal
	_, err = eng.ResolveRedemption(ctx, red.ID, engine.RedemptionApproved, "admin-1")
	require.NoError(t, err)
	_, err = eng.ResolveRedemption(ctx, red.ID, engine.RedemptionCompleted, "admin-1")
	require.NoError(t, err)
	_, err = eng.ResolveRedemption(ctx, red.ID, engine.RedemptionRejected, "admin-1")
	assert.ErrorIs(t, err, ledger.ErrInvalidTransition)

	// rejected is terminal: no double refund
	red2, err := eng.RedeemCatalogItem(ctx, memberID, itemID, "redeem-2")
	require.NoError(t, err)
	_, err = eng.ResolveRedemption(ctx, red2.ID, engine.RedemptionRejected, "admin-1")
	require.NoError(t, err)
	balanceAfterRefund := balance(t, eng, memberID)

	_, err = eng.ResolveRedemption(ctx, red2.ID, engine.RedemptionRejected, "admin-1")
	assert.ErrorIs(t, err, ledger.ErrInvalidTransition)
	assert.Equal(t, balanceAfterRefund, balance(t, eng, memberID))
}

// =============================================================================
// OTP-GATED REWARDS
// =============================================================================

func TestOTPReward_ConfirmExecutesGrant(t *testing.T) {
	// GIVEN: A staged reward with an issued code
	// WHEN: Confirming with the right code
	// THEN: The grant executes; the code cannot be used again

	eng, store := newTestEngine(t)
	ctx := context.Background()
	partnerID := fundedPartner(t, eng, store, "partner-1", 1000)
	memberID := createAccount(t, store, "member-1", ledger.RoleMember)

	spec := engine.RewardSpec{
		PartnerID:      partnerID,
		MemberID:       memberID,
		Amount:         ledger.NewAmount(100),
		IdempotencyKey: "otp-reward-1",
	}
	grantID, code, err := eng.BeginReward(ctx, spec)
	require.NoError(t, err)
	require.NotEmpty(t, grantID)
	require.Len(t, code, 6)
	assert.Equal(t, int64(1000), balance(t, eng, partnerID), "staging moves no coins")

	tx, err := eng.ConfirmReward(ctx, grantID, code)
	require.NoError(t, err)
	assert.Equal(t, int64(100), tx.Amount.Int64())
	assert.Equal(t, int64(900), balance(t, eng, partnerID))
	assert.Equal(t, int64(100), balance(t, eng, memberID))

	// Grant is consumed
	_, err = eng.ConfirmReward(ctx, grantID, code)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestOTPReward_WrongCodeLeavesGrantUsable(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()
	partnerID := fundedPartner(t, eng, store, "partner-1", 1000)
	memberID := createAccount(t, store, "member-1", ledger.RoleMember)

	grantID, code, err := eng.BeginReward(ctx, engine.RewardSpec{
		PartnerID:      partnerID,
		MemberID:       memberID,
		Amount:         ledger.NewAmount(100),
		IdempotencyKey: "otp-reward-1",
	})
	require.NoError(t, err)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	_, err = eng.ConfirmReward(ctx, grantID, wrong)
	assert.ErrorIs(t, err, ledger.ErrValidation)
	assert.Equal(t, int64(1000), balance(t, eng, partnerID))

	// Right code still works after a failed attempt
	_, err = eng.ConfirmReward(ctx, grantID, code)
	assert.NoError(t, err)
}

func TestBeginReward_ValidatesUpFront(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()
	partnerID := fundedPartner(t, eng, store, "partner-1", 50)
	memberID := createAccount(t, store, "member-1", ledger.RoleMember)

	_, _, err := eng.BeginReward(ctx, engine.RewardSpec{
		PartnerID:      partnerID,
		MemberID:       memberID,
		Amount:         ledger.NewAmount(100),
		IdempotencyKey: "otp-reward-1",
	})
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds, "no code issued for an unfundable grant")
}

// =============================================================================
// RECONCILIATION
// =============================================================================

func TestReconcile_EngineOperationsStayConsistent(t *testing.T) {
	// GIVEN: A sequence of purchases, rewards, redemptions, and a rejection
	// WHEN: Reconciling each account
	// THEN: Stored balances match the ledger replay

	eng, store := newTestEngine(t)
	ctx := context.Background()
	partnerID := fundedPartner(t, eng, store, "partner-1", 1000)
	memberID := createAccount(t, store, "member-1", ledger.RoleMember)
	itemID := createItem(t, store, "item-1", 100)

	_, err := eng.RewardMember(ctx, engine.RewardSpec{
		PartnerID: partnerID, MemberID: memberID,
		Amount: ledger.NewAmount(300), IdempotencyKey: "reward-1",
	})
	require.NoError(t, err)

	red, err := eng.RedeemCatalogItem(ctx, memberID, itemID, "redeem-1")
	require.NoError(t, err)
	_, err = eng.ResolveRedemption(ctx, red.ID, engine.RedemptionRejected, "admin-1")
	require.NoError(t, err)

	for _, id := range []ledger.AccountID{partnerID, memberID} {
		report, err := eng.Reconcile(ctx, id)
		require.NoError(t, err)
		assert.True(t, report.Consistent, "account %s: stored %d, ledger %d",
			id, report.StoredBalance.Int64(), report.LedgerBalance.Int64())
	}
}

func TestReconcile_DetectsOutOfBandMutation(t *testing.T) {
	// GIVEN: A balance changed without a ledger entry
	// WHEN: Reconciling
	// THEN: The divergence is reported

	eng, store := newTestEngine(t)
	ctx := context.Background()
	memberID := createAccount(t, store, "member-1", ledger.RoleMember)
	grantCoins(t, eng, store, memberID, 500)

	require.NoError(t, store.Credit(ctx, memberID, ledger.NewAmount(42)))

	report, err := eng.Reconcile(ctx, memberID)
	require.NoError(t, err)
	assert.False(t, report.Consistent)
	assert.Equal(t, int64(542), report.StoredBalance.Int64())
	assert.Equal(t, int64(500), report.LedgerBalance.Int64())
}
