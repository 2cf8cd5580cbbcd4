package engine

import (
	"sort"
	"sync"

	"github.com/loyaltyworks/coin-engine/ledger"
)

// accountLocks serializes operations per account. Operations against the
// same account take the same mutex; disjoint accounts proceed in parallel.
// Multi-account operations acquire locks in sorted ID order so two
// concurrent transfers between the same pair cannot deadlock.
type accountLocks struct {
	mu    sync.Mutex
	locks map[ledger.AccountID]*sync.Mutex
}

func newAccountLocks() *accountLocks {
	return &accountLocks{locks: make(map[ledger.AccountID]*sync.Mutex)}
}

func (al *accountLocks) lockFor(id ledger.AccountID) *sync.Mutex {
	al.mu.Lock()
	defer al.mu.Unlock()

	l, ok := al.locks[id]
	if !ok {
		l = &sync.Mutex{}
		al.locks[id] = l
	}
	return l
}

// Lock acquires the mutexes for the given accounts (duplicates ignored)
// and returns an unlock function.
func (al *accountLocks) Lock(ids ...ledger.AccountID) func() {
	seen := make(map[ledger.AccountID]bool, len(ids))
	var ordered []ledger.AccountID
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ordered = append(ordered, id)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	locked := make([]*sync.Mutex, 0, len(ordered))
	for _, id := range ordered {
		l := al.lockFor(id)
		l.Lock()
		locked = append(locked, l)
	}

	return func() {
		// Release in reverse acquisition order
		for i := len(locked) - 1; i >= 0; i-- {
			locked[i].Unlock()
		}
	}
}
