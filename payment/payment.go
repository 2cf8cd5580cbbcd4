/*
Package payment defines the external payment collaborator used to mint
coins, and a fake in-process provider for development and tests.

CONTRACT:
  CreateOrder(amount)  -> order the client pays against (1 rupee = 1 coin,
                          minimum order 100)
  VerifyPayment(...)   -> validates the gateway's HMAC-SHA256 signature
                          over "orderID|paymentID"

The engine's PurchaseCoins is invoked only after VerifyPayment succeeds;
payment capture, refunds, and webhooks are out of scope.
*/
package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/loyaltyworks/coin-engine/ledger"
)

// MinOrderAmount is the smallest coin purchase accepted.
const MinOrderAmount = 100

// ErrSignatureMismatch is returned when the payment signature does not
// verify against the shared secret.
var ErrSignatureMismatch = errors.New("payment signature mismatch")

// Order is the provider-side order a client pays against.
type Order struct {
	ID       string
	Amount   int64 // in the provider's smallest unit (paise)
	Coins    int64
	Currency string
}

// Provider is the payment collaborator interface.
type Provider interface {
	// CreateOrder registers an order for the given coin amount.
	CreateOrder(ctx context.Context, coins int64) (*Order, error)

	// VerifyPayment checks the gateway signature for a completed payment.
	// A nil return means the payment is genuine and the order may be
	// fulfilled exactly once.
	VerifyPayment(ctx context.Context, orderID, paymentID, signature string) error

	// Order returns a previously created order so the caller can resolve
	// the coin amount after verification.
	Order(ctx context.Context, orderID string) (*Order, error)
}

// Signature computes the gateway signature for an order/payment pair.
// Exposed so tests and the fake provider share one definition.
func Signature(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s|%s", orderID, paymentID)
	return hex.EncodeToString(mac.Sum(nil))
}

// =============================================================================
// FAKE PROVIDER - In-process stand-in for the real gateway
// =============================================================================

// Fake implements Provider with in-memory orders and real signature
// verification against a configured secret.
type Fake struct {
	secret string

	mu     sync.Mutex
	orders map[string]*Order
	used   map[string]bool // order IDs already fulfilled
}

func NewFake(secret string) *Fake {
	return &Fake{
		secret: secret,
		orders: make(map[string]*Order),
		used:   make(map[string]bool),
	}
}

func (f *Fake) CreateOrder(_ context.Context, coins int64) (*Order, error) {
	if coins < MinOrderAmount {
		return nil, &ledger.ValidationError{
			Field:   "amount",
			Message: fmt.Sprintf("minimum purchase is %d", MinOrderAmount),
		}
	}

	order := &Order{
		ID:       "order_" + uuid.NewString(),
		Amount:   coins * 100, // rupees to paise, 1 rupee = 1 coin
		Coins:    coins,
		Currency: "INR",
	}

	f.mu.Lock()
	f.orders[order.ID] = order
	f.mu.Unlock()
	return order, nil
}

func (f *Fake) VerifyPayment(_ context.Context, orderID, paymentID, signature string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.orders[orderID]; !ok {
		return &ledger.NotFoundError{Kind: "order", ID: orderID}
	}
	if f.used[orderID] {
		return &ledger.ValidationError{Field: "order_id", Message: "order already fulfilled"}
	}

	expected := Signature(f.secret, orderID, paymentID)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) != 1 {
		return ErrSignatureMismatch
	}

	f.used[orderID] = true
	return nil
}

func (f *Fake) Order(_ context.Context, orderID string) (*Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return nil, &ledger.NotFoundError{Kind: "order", ID: orderID}
	}
	return o, nil
}
