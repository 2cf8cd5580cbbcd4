/*
otp.go - OTP-gated reward distribution

PURPOSE:
  A partner initiating an in-person reward does not move coins directly.
  BeginReward stages the grant and issues a short-lived one-time code
  (delivered to the member out of band); ConfirmReward verifies the code
  and only then executes the transfer. Codes are single use and expire.

  Delivery of the code (SMS/email) is an external concern; the engine
  returns it to the caller, who hands it to the notification channel.
*/
package engine

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/loyaltyworks/coin-engine/ledger"
)

const (
	otpTTL    = 5 * time.Minute
	otpDigits = 6
)

// PendingGrant is a staged reward awaiting OTP confirmation.
type PendingGrant struct {
	ID        string
	Spec      RewardSpec
	code      string
	ExpiresAt time.Time
}

type otpIssuer struct {
	mu     sync.Mutex
	grants map[string]*PendingGrant
	ttl    time.Duration
	now    func() time.Time
}

func newOTPIssuer(ttl time.Duration) *otpIssuer {
	return &otpIssuer{
		grants: make(map[string]*PendingGrant),
		ttl:    ttl,
		now:    time.Now,
	}
}

func generateCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < otpDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", otpDigits, n), nil
}

func (o *otpIssuer) issue(spec RewardSpec) (*PendingGrant, string, error) {
	code, err := generateCode()
	if err != nil {
		return nil, "", err
	}

	grant := &PendingGrant{
		ID:        "grant-" + uuid.NewString(),
		Spec:      spec,
		code:      code,
		ExpiresAt: o.now().Add(o.ttl),
	}

	o.mu.Lock()
	o.grants[grant.ID] = grant
	o.mu.Unlock()
	return grant, code, nil
}

// take validates and consumes the grant. A wrong code leaves the grant in
// place so the partner can re-enter it; expiry removes it.
func (o *otpIssuer) take(grantID, code string) (*PendingGrant, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	grant, ok := o.grants[grantID]
	if !ok {
		return nil, &ledger.NotFoundError{Kind: "reward_grant", ID: grantID}
	}
	if o.now().After(grant.ExpiresAt) {
		delete(o.grants, grantID)
		return nil, &ledger.ValidationError{Field: "otp", Message: "code expired"}
	}
	if grant.code != code {
		return nil, &ledger.ValidationError{Field: "otp", Message: "invalid code"}
	}
	delete(o.grants, grantID)
	return grant, nil
}

// =============================================================================
// ENGINE OPERATIONS
// =============================================================================

// BeginReward validates a reward grant, stages it, and issues an OTP.
// No balances or usage counters are touched until confirmation.
func (e *Engine) BeginReward(ctx context.Context, spec RewardSpec) (grantID, code string, err error) {
	partner, err := e.activeAccount(ctx, spec.PartnerID, ledger.RolePartner)
	if err != nil {
		return "", "", err
	}
	if _, err := e.activeAccount(ctx, spec.MemberID, ledger.RoleMember); err != nil {
		return "", "", err
	}

	// Resolve the amount for early feedback; the authoritative checks run
	// again at confirmation time.
	amount := spec.Amount
	if spec.SchemeID != "" {
		sch, err := e.Schemes.Get(ctx, spec.SchemeID)
		if err != nil {
			return "", "", err
		}
		if sch.PartnerID != partner.ID {
			return "", "", &ledger.ValidationError{Field: "scheme_id", Message: "scheme is not owned by this partner"}
		}
		if !sch.UsableAt(e.now()) {
			return "", "", fmt.Errorf("scheme %s: %w", sch.ID, ledger.ErrSchemeNotActive)
		}
		amount = sch.CoinReward
	}
	if err := ledger.ValidateAmount(amount); err != nil {
		return "", "", err
	}
	if partner.Balance.LessThan(amount) {
		return "", "", &ledger.InsufficientFundsError{
			AccountID: partner.ID,
			Available: partner.Balance,
			Requested: amount,
		}
	}

	grant, code, err := e.otp.issue(spec)
	if err != nil {
		return "", "", err
	}

	e.log.WithFields(logrus.Fields{
		"op":      "begin_reward",
		"partner": partner.ID,
		"member":  spec.MemberID,
		"grant":   grant.ID,
	}).Info("reward staged, otp issued")
	return grant.ID, code, nil
}

// ConfirmReward verifies the OTP and executes the staged grant.
func (e *Engine) ConfirmReward(ctx context.Context, grantID, code string) (*ledger.Transaction, error) {
	grant, err := e.otp.take(grantID, code)
	if err != nil {
		return nil, err
	}
	return e.RewardMember(ctx, grant.Spec)
}
