package vrf

import (
	"math/big"
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

// defaultFulfilledIDsCapacity bounds the dedup set's memory use. It must
// exceed the 50-block overlap window times the expected per-block request
// rate; this default assumes a generous ceiling
// for any chain this engine targets.
const defaultFulfilledIDsCapacity = 200_000

// FulfilledIDs is the unordered, monotone-growing set of request ids the
// engine has already acted on or observed fulfilled,
// bounded by an LRU the way common/cache.go wraps hashicorp/golang-lru.
// Insertion and membership testing are linearizable with each other, so a
// request seen twice across overlapping scan windows is dispatched exactly
// once.
type FulfilledIDs struct {
	mu    sync.Mutex
	cache *lru.Cache
}

// NewFulfilledIDs builds a dedup set with the given capacity, or the
// default capacity if capacity <= 0.
func NewFulfilledIDs(capacity int) *FulfilledIDs {
	if capacity <= 0 {
		capacity = defaultFulfilledIDsCapacity
	}
	c, _ := lru.New(capacity)
	return &FulfilledIDs{cache: c}
}

// Contains reports whether id has already been acted on or observed
// fulfilled.
func (f *FulfilledIDs) Contains(id *big.Int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cache.Contains(id.String())
}

// InsertIfAbsent atomically checks membership and inserts id, returning
// true if it was newly inserted (i.e. this caller "won" the right to
// dispatch). This is the linearizable test-and-set the overlap-window
// dedup needs: insert a request id before dispatching it, to prevent
// duplicate submission across overlapping scan windows.
func (f *FulfilledIDs) InsertIfAbsent(id *big.Int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := id.String()
	if f.cache.Contains(key) {
		return false
	}
	f.cache.Add(key, struct{}{})
	return true
}

// Insert unconditionally records id as fulfilled (used for ids observed via
// a FulfilledEvent rather than dispatched by this engine).
func (f *FulfilledIDs) Insert(id *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cache.Add(id.String(), struct{}{})
}

// Len returns the current number of tracked ids, for tests and metrics.
func (f *FulfilledIDs) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cache.Len()
}
