/*
dto.go - Request/response data structures for the HTTP API

PURPOSE:
  Decouples JSON wire format from domain types. Domain types use decimal
  amounts and typed identifiers; DTOs use int64 coin counts and plain
  strings, and format timestamps as RFC3339.

CONVENTIONS:
  - Amounts are whole coins (int64) on the wire
  - Optional timestamps are pointers, omitted when nil
  - Conversion helpers live next to the DTO they build
*/
package api

import (
	"time"

	"github.com/loyaltyworks/coin-engine/engine"
	"github.com/loyaltyworks/coin-engine/ledger"
	"github.com/loyaltyworks/coin-engine/scheme"
)

// =============================================================================
// ERROR RESPONSE
// =============================================================================

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// ACCOUNTS
// =============================================================================

type CreateAccountRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

type AccountDTO struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id"`
	Role          string `json:"role"`
	Balance       int64  `json:"balance"`
	TotalEarned   int64  `json:"total_earned"`
	TotalRedeemed int64  `json:"total_redeemed"`
	Active        bool   `json:"active"`
	CreatedAt     string `json:"created_at"`
}

func toAccountDTO(a *ledger.Account) AccountDTO {
	return AccountDTO{
		ID:            string(a.ID),
		UserID:        a.UserID,
		Role:          string(a.Role),
		Balance:       a.Balance.Int64(),
		TotalEarned:   a.TotalEarned.Int64(),
		TotalRedeemed: a.TotalRedeemed.Int64(),
		Active:        a.Active,
		CreatedAt:     a.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

type TransactionDTO struct {
	ID             string `json:"id"`
	From           string `json:"from,omitempty"`
	To             string `json:"to,omitempty"`
	Amount         int64  `json:"amount"`
	Type           string `json:"type"`
	Description    string `json:"description,omitempty"`
	SchemeID       string `json:"scheme_id,omitempty"`
	PartnerID      string `json:"partner_id,omitempty"`
	RedemptionID   string `json:"redemption_id,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
	CreatedAt      string `json:"created_at"`
}

func toTransactionDTO(tx ledger.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:             string(tx.ID),
		From:           string(tx.From),
		To:             string(tx.To),
		Amount:         tx.Amount.Int64(),
		Type:           string(tx.Type),
		Description:    tx.Description,
		SchemeID:       string(tx.SchemeID),
		PartnerID:      string(tx.PartnerID),
		RedemptionID:   string(tx.RedemptionID),
		IdempotencyKey: tx.IdempotencyKey,
		CreatedAt:      tx.CreatedAt.Format(time.RFC3339),
	}
}

func toTransactionDTOs(txs []ledger.Transaction) []TransactionDTO {
	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	return dtos
}

// =============================================================================
// SCHEMES
// =============================================================================

type CreateSchemeRequest struct {
	PartnerID       string `json:"partner_id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	Conditions      string `json:"conditions"`
	Category        string `json:"category"`
	CoinReward      int64  `json:"coin_reward"`
	MinimumPurchase int64  `json:"minimum_purchase"`
	StartDate       string `json:"start_date"` // YYYY-MM-DD
	EndDate         string `json:"end_date"`   // YYYY-MM-DD
	MaxUsage        int    `json:"max_usage"`
}

type UpdateSchemeRequest struct {
	Name            *string `json:"name"`
	Description     *string `json:"description"`
	Conditions      *string `json:"conditions"`
	Category        *string `json:"category"`
	CoinReward      *int64  `json:"coin_reward"`
	MinimumPurchase *int64  `json:"minimum_purchase"`
	StartDate       *string `json:"start_date"`
	EndDate         *string `json:"end_date"`
	MaxUsage        *int    `json:"max_usage"`
}

type SchemeDTO struct {
	ID              string `json:"id"`
	PartnerID       string `json:"partner_id"`
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	Conditions      string `json:"conditions,omitempty"`
	Category        string `json:"category"`
	CoinReward      int64  `json:"coin_reward"`
	MinimumPurchase int64  `json:"minimum_purchase"`
	StartDate       string `json:"start_date"`
	EndDate         string `json:"end_date"`
	UsageCount      int    `json:"usage_count"`
	MaxUsage        int    `json:"max_usage"`
	Active          bool   `json:"active"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

func toSchemeDTO(s *scheme.RewardScheme) SchemeDTO {
	return SchemeDTO{
		ID:              string(s.ID),
		PartnerID:       string(s.PartnerID),
		Name:            s.Name,
		Description:     s.Description,
		Conditions:      s.Conditions,
		Category:        string(s.Category),
		CoinReward:      s.CoinReward.Int64(),
		MinimumPurchase: s.MinimumPurchase.Int64(),
		StartDate:       s.StartDate.Format("2006-01-02"),
		EndDate:         s.EndDate.Format("2006-01-02"),
		UsageCount:      s.UsageCount,
		MaxUsage:        s.MaxUsage,
		Active:          s.Active,
		CreatedAt:       s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       s.UpdatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// CATALOG
// =============================================================================

type CreateRewardItemRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	CoinsCost   int64  `json:"coins_cost"`
	Category    string `json:"category"`
	ImageURL    string `json:"image_url"`
}

type RewardItemDTO struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	CoinsCost   int64  `json:"coins_cost"`
	Category    string `json:"category"`
	Active      bool   `json:"active"`
	ImageURL    string `json:"image_url,omitempty"`
	CreatedAt   string `json:"created_at"`
}

func toRewardItemDTO(item *engine.RewardItem) RewardItemDTO {
	return RewardItemDTO{
		ID:          item.ID,
		Title:       item.Title,
		Description: item.Description,
		CoinsCost:   item.CoinsCost.Int64(),
		Category:    string(item.Category),
		Active:      item.Active,
		ImageURL:    item.ImageURL,
		CreatedAt:   item.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// PURCHASES
// =============================================================================

type CreateOrderRequest struct {
	PartnerID string `json:"partner_id"`
	Coins     int64  `json:"coins"`
}

type OrderDTO struct {
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"` // smallest currency unit
	Coins    int64  `json:"coins"`
	Currency string `json:"currency"`
}

type VerifyPurchaseRequest struct {
	PartnerID string `json:"partner_id"`
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
}

// =============================================================================
// REWARDS
// =============================================================================

type RewardRequest struct {
	PartnerID      string `json:"partner_id"`
	MemberID       string `json:"member_id"`
	SchemeID       string `json:"scheme_id"`
	Amount         int64  `json:"amount"`
	Description    string `json:"description"`
	IdempotencyKey string `json:"idempotency_key"`
}

func (req RewardRequest) toSpec() engine.RewardSpec {
	return engine.RewardSpec{
		PartnerID:      ledger.AccountID(req.PartnerID),
		MemberID:       ledger.AccountID(req.MemberID),
		SchemeID:       ledger.SchemeID(req.SchemeID),
		Amount:         ledger.NewAmount(req.Amount),
		Description:    req.Description,
		IdempotencyKey: req.IdempotencyKey,
	}
}

type ConfirmRewardRequest struct {
	GrantID string `json:"grant_id"`
	Code    string `json:"code"`
}

// =============================================================================
// REDEMPTIONS
// =============================================================================

type CreateRedemptionRequest struct {
	MemberID       string `json:"member_id"`
	ItemID         string `json:"item_id"`
	IdempotencyKey string `json:"idempotency_key"`
}

type ResolveRedemptionRequest struct {
	Outcome string `json:"outcome"` // approved | completed | rejected
	ActorID string `json:"actor_id"`
}

type RedemptionDTO struct {
	ID          string  `json:"id"`
	MemberID    string  `json:"member_id"`
	ItemID      string  `json:"item_id"`
	CoinsCost   int64   `json:"coins_cost"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"created_at"`
	ProcessedAt *string `json:"processed_at,omitempty"`
	ProcessedBy string  `json:"processed_by,omitempty"`
}

func toRedemptionDTO(r *engine.Redemption) RedemptionDTO {
	dto := RedemptionDTO{
		ID:          string(r.ID),
		MemberID:    string(r.MemberID),
		ItemID:      r.ItemID,
		CoinsCost:   r.CoinsCost.Int64(),
		Status:      string(r.Status),
		CreatedAt:   r.CreatedAt.Format(time.RFC3339),
		ProcessedBy: r.ProcessedBy,
	}
	if r.ProcessedAt != nil {
		s := r.ProcessedAt.Format(time.RFC3339)
		dto.ProcessedAt = &s
	}
	return dto
}

// =============================================================================
// RECONCILIATION
// =============================================================================

type ReconcileDTO struct {
	AccountID     string `json:"account_id"`
	StoredBalance int64  `json:"stored_balance"`
	LedgerBalance int64  `json:"ledger_balance"`
	Consistent    bool   `json:"consistent"`
}

func toReconcileDTO(r *engine.ReconcileReport) ReconcileDTO {
	return ReconcileDTO{
		AccountID:     string(r.AccountID),
		StoredBalance: r.StoredBalance.Int64(),
		LedgerBalance: r.LedgerBalance.Int64(),
		Consistent:    r.Consistent,
	}
}
