/*
handlers.go - HTTP API handlers for the coin ledger service

PURPOSE:
  Exposes the coin engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Accounts:
    GET    /api/accounts                    List accounts (?role=)
    POST   /api/accounts                    Provision an account
    GET    /api/accounts/{id}               Account with balance
    GET    /api/accounts/{id}/transactions  Transaction history
    GET    /api/accounts/{id}/reconcile     Audit balance vs ledger replay
    POST   /api/accounts/{id}/deactivate    Soft-disable
    POST   /api/accounts/{id}/activate      Re-enable

  Purchases:
    POST   /api/purchases/orders            Create payment order
    POST   /api/purchases/verify            Verify payment, credit wallet

  Schemes:
    GET    /api/schemes                     List (?partner_id=)
    POST   /api/schemes                     Create
    GET    /api/schemes/{id}                Get
    PUT    /api/schemes/{id}                Update mutable fields
    DELETE /api/schemes/{id}                Delete
    POST   /api/schemes/{id}/activate
    POST   /api/schemes/{id}/deactivate

  Rewards:
    POST   /api/rewards                     Direct grant (server-to-server)
    POST   /api/rewards/begin               Stage grant, issue OTP
    POST   /api/rewards/confirm             Confirm OTP, execute grant

  Catalog:
    GET    /api/catalog                     List items (?active=true)
    POST   /api/catalog                     Create item
    GET    /api/catalog/{id}
    DELETE /api/catalog/{id}

  Redemptions:
    POST   /api/redemptions                 Member redeems an item
    GET    /api/redemptions                 List (?status=&member_id=)
    GET    /api/redemptions/{id}
    POST   /api/redemptions/{id}/resolve    approve | complete | reject

ERROR HANDLING:
  Domain errors map to HTTP status in writeDomainError:
  - 400: validation, insufficient funds, inactive/exhausted scheme
  - 404: unknown account/scheme/item/redemption/order
  - 409: duplicate idempotency key, invalid status transition
  - 500: internal and compensation failures

SECURITY NOTE:
  No authentication middleware. Role checks happen in the engine (an
  account can only act in its role); caller identity is trusted input.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/loyaltyworks/coin-engine/engine"
	"github.com/loyaltyworks/coin-engine/ledger"
	"github.com/loyaltyworks/coin-engine/payment"
	"github.com/loyaltyworks/coin-engine/scheme"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine   *engine.Engine
	Payments payment.Provider
	Log      *logrus.Logger
}

// NewHandler creates a new handler around the engine and payment provider.
func NewHandler(eng *engine.Engine, payments payment.Provider, log *logrus.Logger) *Handler {
	if log == nil {
		log = logrus.New()
	}
	return &Handler{Engine: eng, Payments: payments, Log: log}
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// ListAccounts returns all accounts, optionally filtered by role.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	role := ledger.Role(r.URL.Query().Get("role"))
	if role != "" && !role.Valid() {
		writeError(w, http.StatusBadRequest, "Unknown role", nil)
		return
	}

	accounts, err := h.Engine.Accounts.ListAccounts(r.Context(), role)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list accounts", err)
		return
	}

	dtos := make([]AccountDTO, len(accounts))
	for i := range accounts {
		dtos[i] = toAccountDTO(&accounts[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAccount provisions an account for a user in a role.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required", nil)
		return
	}
	role := ledger.Role(req.Role)
	if !role.Valid() {
		writeError(w, http.StatusBadRequest, "Unknown role", nil)
		return
	}

	account := ledger.Account{
		ID:        ledger.NewAccountID(),
		UserID:    req.UserID,
		Role:      role,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.Engine.Accounts.CreateAccount(r.Context(), account); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountDTO(&account))
}

// GetAccount returns a single account with its current balance.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id := ledger.AccountID(chi.URLParam(r, "id"))
	account, err := h.Engine.Balance(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(account))
}

// GetTransactions returns the account's ledger history, chronologically.
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	id := ledger.AccountID(chi.URLParam(r, "id"))
	txs, err := h.Engine.History(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": toTransactionDTOs(txs)})
}

// ReconcileAccount audits the stored balance against the ledger replay.
func (h *Handler) ReconcileAccount(w http.ResponseWriter, r *http.Request) {
	id := ledger.AccountID(chi.URLParam(r, "id"))
	report, err := h.Engine.Reconcile(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReconcileDTO(report))
}

// DeactivateAccount soft-disables an account. Balances and history remain.
func (h *Handler) DeactivateAccount(w http.ResponseWriter, r *http.Request) {
	h.setAccountActive(w, r, false)
}

// ActivateAccount re-enables a disabled account.
func (h *Handler) ActivateAccount(w http.ResponseWriter, r *http.Request) {
	h.setAccountActive(w, r, true)
}

func (h *Handler) setAccountActive(w http.ResponseWriter, r *http.Request, active bool) {
	id := ledger.AccountID(chi.URLParam(r, "id"))
	if err := h.Engine.Accounts.SetAccountActive(r.Context(), id, active); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": string(id), "active": active})
}

// =============================================================================
// PURCHASE HANDLERS
// =============================================================================

// CreateOrder registers a payment order for a coin purchase.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.PartnerID == "" {
		writeError(w, http.StatusBadRequest, "partner_id is required", nil)
		return
	}

	// Fail fast on unknown or disabled partners before touching the gateway.
	if _, err := h.Engine.Balance(r.Context(), ledger.AccountID(req.PartnerID)); err != nil {
		writeDomainError(w, err)
		return
	}

	order, err := h.Payments.CreateOrder(r.Context(), req.Coins)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, OrderDTO{
		OrderID:  order.ID,
		Amount:   order.Amount,
		Coins:    order.Coins,
		Currency: order.Currency,
	})
}

// VerifyPurchase validates the gateway signature and credits the partner
// wallet. The order ID doubles as the idempotency key, so a retried
// verification cannot double-credit.
func (h *Handler) VerifyPurchase(w http.ResponseWriter, r *http.Request) {
	var req VerifyPurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.Payments.VerifyPayment(r.Context(), req.OrderID, req.PaymentID, req.Signature); err != nil {
		recordOp("purchase", err)
		writeDomainError(w, err)
		return
	}

	order, err := h.Payments.Order(r.Context(), req.OrderID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	tx, err := h.Engine.PurchaseCoins(r.Context(),
		ledger.AccountID(req.PartnerID),
		ledger.NewAmount(order.Coins),
		req.PaymentID,
		req.OrderID)
	recordOp("purchase", err)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	coinsMoved.WithLabelValues(string(ledger.TxPurchase)).Add(float64(order.Coins))
	writeJSON(w, http.StatusCreated, toTransactionDTO(*tx))
}

// =============================================================================
// SCHEME HANDLERS
// =============================================================================

// ListSchemes returns schemes, optionally filtered by partner.
func (h *Handler) ListSchemes(w http.ResponseWriter, r *http.Request) {
	var (
		schemes []scheme.RewardScheme
		err     error
	)
	if partnerID := r.URL.Query().Get("partner_id"); partnerID != "" {
		schemes, err = h.Engine.Schemes.ListByPartner(r.Context(), ledger.AccountID(partnerID))
	} else {
		schemes, err = h.Engine.Schemes.List(r.Context())
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list schemes", err)
		return
	}

	dtos := make([]SchemeDTO, len(schemes))
	for i := range schemes {
		dtos[i] = toSchemeDTO(&schemes[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateScheme creates a reward scheme for a partner.
func (h *Handler) CreateScheme(w http.ResponseWriter, r *http.Request) {
	var req CreateSchemeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	start, err := parseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date (use YYYY-MM-DD)", err)
		return
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date (use YYYY-MM-DD)", err)
		return
	}

	created, err := h.Engine.Schemes.Create(r.Context(), scheme.Spec{
		PartnerID:       ledger.AccountID(req.PartnerID),
		Name:            req.Name,
		Description:     req.Description,
		Conditions:      req.Conditions,
		Category:        scheme.Category(req.Category),
		CoinReward:      ledger.NewAmount(req.CoinReward),
		MinimumPurchase: ledger.NewAmount(req.MinimumPurchase),
		StartDate:       start,
		EndDate:         end.Add(24*time.Hour - time.Nanosecond), // inclusive end day
		MaxUsage:        req.MaxUsage,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSchemeDTO(created))
}

// GetScheme returns a single scheme.
func (h *Handler) GetScheme(w http.ResponseWriter, r *http.Request) {
	id := ledger.SchemeID(chi.URLParam(r, "id"))
	sc, err := h.Engine.Schemes.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSchemeDTO(sc))
}

// UpdateScheme applies a partial update to a scheme's mutable fields.
func (h *Handler) UpdateScheme(w http.ResponseWriter, r *http.Request) {
	id := ledger.SchemeID(chi.URLParam(r, "id"))

	var req UpdateSchemeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	patch := scheme.Patch{
		Name:        req.Name,
		Description: req.Description,
		Conditions:  req.Conditions,
		MaxUsage:    req.MaxUsage,
	}
	if req.Category != nil {
		c := scheme.Category(*req.Category)
		patch.Category = &c
	}
	if req.CoinReward != nil {
		a := ledger.NewAmount(*req.CoinReward)
		patch.CoinReward = &a
	}
	if req.MinimumPurchase != nil {
		a := ledger.NewAmount(*req.MinimumPurchase)
		patch.MinimumPurchase = &a
	}
	if req.StartDate != nil {
		t, err := parseDate(*req.StartDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid start_date (use YYYY-MM-DD)", err)
			return
		}
		patch.StartDate = &t
	}
	if req.EndDate != nil {
		t, err := parseDate(*req.EndDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid end_date (use YYYY-MM-DD)", err)
			return
		}
		end := t.Add(24*time.Hour - time.Nanosecond)
		patch.EndDate = &end
	}

	updated, err := h.Engine.Schemes.Update(r.Context(), id, patch)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSchemeDTO(updated))
}

// DeleteScheme removes a scheme. Past grants keep their ledger entries.
func (h *Handler) DeleteScheme(w http.ResponseWriter, r *http.Request) {
	id := ledger.SchemeID(chi.URLParam(r, "id"))
	if err := h.Engine.Schemes.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

// ActivateScheme enables a scheme.
func (h *Handler) ActivateScheme(w http.ResponseWriter, r *http.Request) {
	id := ledger.SchemeID(chi.URLParam(r, "id"))
	if err := h.Engine.Schemes.Activate(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": string(id), "active": true})
}

// DeactivateScheme disables a scheme without deleting it.
func (h *Handler) DeactivateScheme(w http.ResponseWriter, r *http.Request) {
	id := ledger.SchemeID(chi.URLParam(r, "id"))
	if err := h.Engine.Schemes.Deactivate(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": string(id), "active": false})
}

// =============================================================================
// REWARD HANDLERS
// =============================================================================

// RewardMember executes a direct partner-to-member grant.
func (h *Handler) RewardMember(w http.ResponseWriter, r *http.Request) {
	var req RewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	tx, err := h.Engine.RewardMember(r.Context(), req.toSpec())
	recordOp("reward", err)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	coinsMoved.WithLabelValues(string(ledger.TxReward)).Add(float64(tx.Amount.Int64()))
	writeJSON(w, http.StatusCreated, toTransactionDTO(*tx))
}

// BeginReward stages a grant and issues a one-time code.
func (h *Handler) BeginReward(w http.ResponseWriter, r *http.Request) {
	var req RewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	grantID, code, err := h.Engine.BeginReward(r.Context(), req.toSpec())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	// The code is returned to the caller for delivery to the member. A
	// production deployment sends it out of band instead.
	writeJSON(w, http.StatusCreated, map[string]any{
		"grant_id": grantID,
		"code":     code,
	})
}

// ConfirmReward verifies the one-time code and executes the staged grant.
func (h *Handler) ConfirmReward(w http.ResponseWriter, r *http.Request) {
	var req ConfirmRewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	tx, err := h.Engine.ConfirmReward(r.Context(), req.GrantID, req.Code)
	recordOp("reward", err)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	coinsMoved.WithLabelValues(string(ledger.TxReward)).Add(float64(tx.Amount.Int64()))
	writeJSON(w, http.StatusCreated, toTransactionDTO(*tx))
}

// =============================================================================
// CATALOG HANDLERS
// =============================================================================

// ListCatalog returns reward items. ?active=true filters to redeemable ones.
func (h *Handler) ListCatalog(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	items, err := h.Engine.Catalog.ListRewardItems(r.Context(), activeOnly)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list catalog", err)
		return
	}

	dtos := make([]RewardItemDTO, len(items))
	for i := range items {
		dtos[i] = toRewardItemDTO(&items[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateRewardItem adds a catalog item.
func (h *Handler) CreateRewardItem(w http.ResponseWriter, r *http.Request) {
	var req CreateRewardItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required", nil)
		return
	}
	category := engine.ItemCategory(req.Category)
	if !category.Valid() {
		writeError(w, http.StatusBadRequest, "Unknown category", nil)
		return
	}
	cost := ledger.NewAmount(req.CoinsCost)
	if err := ledger.ValidateAmount(cost); err != nil {
		writeDomainError(w, err)
		return
	}

	item := engine.RewardItem{
		ID:          engine.NewRewardItemID(),
		Title:       req.Title,
		Description: req.Description,
		CoinsCost:   cost,
		Category:    category,
		Active:      true,
		ImageURL:    req.ImageURL,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.Engine.Catalog.SaveRewardItem(r.Context(), item); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create item", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRewardItemDTO(&item))
}

// GetRewardItem returns a single catalog item.
func (h *Handler) GetRewardItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.Engine.Catalog.GetRewardItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRewardItemDTO(item))
}

// DeleteRewardItem removes a catalog item. Existing redemptions keep their
// recorded cost.
func (h *Handler) DeleteRewardItem(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.Catalog.DeleteRewardItem(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

// =============================================================================
// REDEMPTION HANDLERS
// =============================================================================

// CreateRedemption debits the member and opens a pending redemption.
func (h *Handler) CreateRedemption(w http.ResponseWriter, r *http.Request) {
	var req CreateRedemptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	red, err := h.Engine.RedeemCatalogItem(r.Context(),
		ledger.AccountID(req.MemberID), req.ItemID, req.IdempotencyKey)
	recordOp("redeem", err)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	coinsMoved.WithLabelValues(string(ledger.TxRedeem)).Add(float64(red.CoinsCost.Int64()))
	writeJSON(w, http.StatusCreated, toRedemptionDTO(red))
}

// ListRedemptions returns redemptions filtered by status and/or member.
func (h *Handler) ListRedemptions(w http.ResponseWriter, r *http.Request) {
	status := engine.RedemptionStatus(r.URL.Query().Get("status"))
	memberID := ledger.AccountID(r.URL.Query().Get("member_id"))

	reds, err := h.Engine.Redemptions.ListRedemptions(r.Context(), status, memberID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list redemptions", err)
		return
	}

	dtos := make([]RedemptionDTO, len(reds))
	for i := range reds {
		dtos[i] = toRedemptionDTO(&reds[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"redemptions": dtos})
}

// GetRedemption returns a single redemption.
func (h *Handler) GetRedemption(w http.ResponseWriter, r *http.Request) {
	id := ledger.RedemptionID(chi.URLParam(r, "id"))
	red, err := h.Engine.Redemptions.GetRedemption(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRedemptionDTO(red))
}

// ResolveRedemption advances a redemption through the approval workflow.
func (h *Handler) ResolveRedemption(w http.ResponseWriter, r *http.Request) {
	id := ledger.RedemptionID(chi.URLParam(r, "id"))

	var req ResolveRedemptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	outcome := engine.RedemptionStatus(req.Outcome)
	switch outcome {
	case engine.RedemptionApproved, engine.RedemptionCompleted, engine.RedemptionRejected:
	default:
		writeError(w, http.StatusBadRequest, "outcome must be approved, completed, or rejected", nil)
		return
	}

	red, err := h.Engine.ResolveRedemption(r.Context(), id, outcome, req.ActorID)
	recordOp("resolve_redemption", err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRedemptionDTO(red))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case errors.Is(err, ledger.ErrDuplicateIdempotencyKey):
		writeError(w, http.StatusConflict, "Operation already applied", err)
	case errors.Is(err, ledger.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "Invalid status transition", err)
	case errors.Is(err, ledger.ErrInsufficientFunds):
		writeError(w, http.StatusBadRequest, "Insufficient funds", err)
	case errors.Is(err, ledger.ErrSchemeNotActive):
		writeError(w, http.StatusBadRequest, "Scheme is not active", err)
	case errors.Is(err, ledger.ErrSchemeExhausted):
		writeError(w, http.StatusBadRequest, "Scheme usage cap reached", err)
	case errors.Is(err, ledger.ErrAccountDisabled):
		writeError(w, http.StatusBadRequest, "Account is disabled", err)
	case errors.Is(err, ledger.ErrValidation), errors.Is(err, payment.ErrSignatureMismatch):
		writeError(w, http.StatusBadRequest, "Invalid request", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}
