/*
registry.go - Reward scheme CRUD and usage accounting

PURPOSE:
  The Registry owns the lifecycle of reward schemes. CRUD operations are
  straightforward persistence; the interesting part is usage accounting:
  RecordUsage enforces the validity window, active flag, and usage cap
  under a single lock so two concurrent grants cannot both consume the
  last slot of a capped scheme.

COMPENSATION:
  ReleaseUsage is the rollback path for the engine. When a reward fails
  after its usage was recorded (e.g., the ledger append fails), the
  engine decrements the counter again so no grant is counted that never
  moved coins.
*/
package scheme

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/loyaltyworks/coin-engine/ledger"
)

// SchemeStore is the persistence boundary for reward schemes.
type SchemeStore interface {
	SaveScheme(ctx context.Context, s RewardScheme) error
	GetScheme(ctx context.Context, id ledger.SchemeID) (*RewardScheme, error)
	ListSchemesByPartner(ctx context.Context, partnerID ledger.AccountID) ([]RewardScheme, error)
	ListSchemes(ctx context.Context) ([]RewardScheme, error)
	DeleteScheme(ctx context.Context, id ledger.SchemeID) error
}

// Registry manages reward schemes over a SchemeStore.
type Registry struct {
	store SchemeStore

	// Serializes usage-counter read-modify-write cycles. Balances have
	// per-account locks in the engine; scheme counters are rare enough
	// that a single lock is sufficient.
	usageMu sync.Mutex

	now func() time.Time
}

func NewRegistry(store SchemeStore) *Registry {
	return &Registry{store: store, now: time.Now}
}

// Spec carries the caller-supplied fields for a new scheme.
type Spec struct {
	PartnerID       ledger.AccountID
	Name            string
	Description     string
	Conditions      string
	Category        Category
	CoinReward      ledger.Amount
	MinimumPurchase ledger.Amount
	StartDate       time.Time
	EndDate         time.Time
	MaxUsage        int
}

// Create validates and persists a new scheme with a zero usage counter.
func (r *Registry) Create(ctx context.Context, spec Spec) (*RewardScheme, error) {
	if spec.PartnerID == "" {
		return nil, &ledger.ValidationError{Field: "partner_id", Message: "is required"}
	}
	if spec.Name == "" {
		return nil, &ledger.ValidationError{Field: "name", Message: "is required"}
	}
	if !spec.Category.Valid() {
		return nil, &ledger.ValidationError{Field: "category", Message: fmt.Sprintf("unknown category %q", spec.Category)}
	}
	if err := ledger.ValidateAmount(spec.CoinReward); err != nil {
		return nil, err
	}
	if spec.MinimumPurchase.IsNegative() || !spec.MinimumPurchase.IsWholeCoins() {
		return nil, &ledger.ValidationError{Field: "minimum_purchase", Message: "must be a non-negative whole amount"}
	}
	if !spec.StartDate.Before(spec.EndDate) {
		return nil, &ledger.ValidationError{Field: "validity", Message: "start date must be before end date"}
	}
	if spec.MaxUsage < 0 {
		return nil, &ledger.ValidationError{Field: "max_usage", Message: "must be zero (unlimited) or positive"}
	}

	now := r.now()
	s := RewardScheme{
		ID:              NewSchemeID(),
		PartnerID:       spec.PartnerID,
		Name:            spec.Name,
		Description:     spec.Description,
		Conditions:      spec.Conditions,
		Category:        spec.Category,
		CoinReward:      spec.CoinReward,
		MinimumPurchase: spec.MinimumPurchase,
		StartDate:       spec.StartDate,
		EndDate:         spec.EndDate,
		UsageCount:      0,
		MaxUsage:        spec.MaxUsage,
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := r.store.SaveScheme(ctx, s); err != nil {
		return nil, fmt.Errorf("save scheme: %w", err)
	}
	return &s, nil
}

// Get returns the scheme or a NotFoundError.
func (r *Registry) Get(ctx context.Context, id ledger.SchemeID) (*RewardScheme, error) {
	return r.store.GetScheme(ctx, id)
}

// ListByPartner returns all schemes owned by the partner.
func (r *Registry) ListByPartner(ctx context.Context, partnerID ledger.AccountID) ([]RewardScheme, error) {
	return r.store.ListSchemesByPartner(ctx, partnerID)
}

// List returns all schemes.
func (r *Registry) List(ctx context.Context) ([]RewardScheme, error) {
	return r.store.ListSchemes(ctx)
}

// Update applies a partial update to the mutable fields.
func (r *Registry) Update(ctx context.Context, id ledger.SchemeID, patch Patch) (*RewardScheme, error) {
	s, err := r.store.GetScheme(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		if *patch.Name == "" {
			return nil, &ledger.ValidationError{Field: "name", Message: "is required"}
		}
		s.Name = *patch.Name
	}
	if patch.Description != nil {
		s.Description = *patch.Description
	}
	if patch.Conditions != nil {
		s.Conditions = *patch.Conditions
	}
	if patch.Category != nil {
		if !patch.Category.Valid() {
			return nil, &ledger.ValidationError{Field: "category", Message: fmt.Sprintf("unknown category %q", *patch.Category)}
		}
		s.Category = *patch.Category
	}
	if patch.CoinReward != nil {
		if err := ledger.ValidateAmount(*patch.CoinReward); err != nil {
			return nil, err
		}
		s.CoinReward = *patch.CoinReward
	}
	if patch.MinimumPurchase != nil {
		if patch.MinimumPurchase.IsNegative() || !patch.MinimumPurchase.IsWholeCoins() {
			return nil, &ledger.ValidationError{Field: "minimum_purchase", Message: "must be a non-negative whole amount"}
		}
		s.MinimumPurchase = *patch.MinimumPurchase
	}
	if patch.StartDate != nil {
		s.StartDate = *patch.StartDate
	}
	if patch.EndDate != nil {
		s.EndDate = *patch.EndDate
	}
	if !s.StartDate.Before(s.EndDate) {
		return nil, &ledger.ValidationError{Field: "validity", Message: "start date must be before end date"}
	}
	if patch.MaxUsage != nil {
		if *patch.MaxUsage < 0 {
			return nil, &ledger.ValidationError{Field: "max_usage", Message: "must be zero (unlimited) or positive"}
		}
		s.MaxUsage = *patch.MaxUsage
	}

	s.UpdatedAt = r.now()
	if err := r.store.SaveScheme(ctx, *s); err != nil {
		return nil, fmt.Errorf("save scheme: %w", err)
	}
	return s, nil
}

// Activate enables the scheme. The usage counter is not reset.
func (r *Registry) Activate(ctx context.Context, id ledger.SchemeID) error {
	return r.setActive(ctx, id, true)
}

// Deactivate disables the scheme. The usage counter is not reset.
func (r *Registry) Deactivate(ctx context.Context, id ledger.SchemeID) error {
	return r.setActive(ctx, id, false)
}

func (r *Registry) setActive(ctx context.Context, id ledger.SchemeID, active bool) error {
	s, err := r.store.GetScheme(ctx, id)
	if err != nil {
		return err
	}
	s.Active = active
	s.UpdatedAt = r.now()
	return r.store.SaveScheme(ctx, *s)
}

// RecordUsage increments the usage counter and returns the new count.
// Fails with ErrSchemeNotActive if the scheme is disabled or outside its
// validity window, and with ErrSchemeExhausted if the cap is reached.
func (r *Registry) RecordUsage(ctx context.Context, id ledger.SchemeID) (int, error) {
	r.usageMu.Lock()
	defer r.usageMu.Unlock()

	s, err := r.store.GetScheme(ctx, id)
	if err != nil {
		return 0, err
	}
	if !s.UsableAt(r.now()) {
		return 0, fmt.Errorf("scheme %s: %w", id, ledger.ErrSchemeNotActive)
	}
	if s.Exhausted() {
		return 0, fmt.Errorf("scheme %s: usage %d of %d: %w", id, s.UsageCount, s.MaxUsage, ledger.ErrSchemeExhausted)
	}

	s.UsageCount++
	s.UpdatedAt = r.now()
	if err := r.store.SaveScheme(ctx, *s); err != nil {
		return 0, fmt.Errorf("save scheme: %w", err)
	}
	return s.UsageCount, nil
}

// ReleaseUsage decrements the usage counter. Compensating action for a
// reward that failed after RecordUsage succeeded.
func (r *Registry) ReleaseUsage(ctx context.Context, id ledger.SchemeID) error {
	r.usageMu.Lock()
	defer r.usageMu.Unlock()

	s, err := r.store.GetScheme(ctx, id)
	if err != nil {
		return err
	}
	if s.UsageCount == 0 {
		return &ledger.ValidationError{Field: "usage_count", Message: "already zero"}
	}
	s.UsageCount--
	s.UpdatedAt = r.now()
	return r.store.SaveScheme(ctx, *s)
}

// Delete removes the scheme. Past transactions referencing it remain valid.
func (r *Registry) Delete(ctx context.Context, id ledger.SchemeID) error {
	if _, err := r.store.GetScheme(ctx, id); err != nil {
		return err
	}
	return r.store.DeleteScheme(ctx, id)
}
