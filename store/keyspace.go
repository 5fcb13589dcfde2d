package store

import (
	"strconv"
	"sync"
	"time"
)

// nowMS returns the current wall-clock time in unix milliseconds. It is a
// variable so tests can substitute a deterministic clock.
var nowMS = func() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}

// Keyspace is the typed key/value store described in spec.md §3/§4.2: one
// coarse mutex guards the map, the waiter table, and (via the lock embedded
// in each waiter's sync.Cond) all blocking suspension.
type Keyspace struct {
	mu      sync.Mutex
	data    map[string]*Value
	waiters map[string]*waiter
}

// New returns an empty Keyspace.
func New() *Keyspace {
	return &Keyspace{
		data:    map[string]*Value{},
		waiters: map[string]*waiter{},
	}
}

// getLocked returns the Value for key, or nil if absent. A string Value
// whose expiry has passed is lazily deleted and reported absent, per
// spec.md invariant 3. ks.mu must be held.
func (ks *Keyspace) getLocked(key string) *Value {
	v, ok := ks.data[key]
	if !ok {
		return nil
	}
	if v.Kind == KindString && v.ExpireAt != 0 && nowMS() >= v.ExpireAt {
		delete(ks.data, key)
		return nil
	}
	return v
}

// NowMS returns the current wall-clock time in unix milliseconds, using the
// same (test-substitutable) clock Keyspace uses internally for expiry and
// XADD's "*" auto-id case. Callers computing an absolute expiry for Set
// should use this rather than time.Now directly, so tests can fix the clock.
func NowMS() int64 {
	return nowMS()
}

// Atomic runs fn with the keyspace mutex held for its entire duration,
// giving fn a Tx through which it can issue a sequence of operations that
// are indivisible with respect to every other connection -- the mechanism
// spec.md §5 requires for MULTI/EXEC ("the mutex is held across the entire
// queued sequence during EXEC").
func (ks *Keyspace) Atomic(fn func(tx *Tx)) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	fn(&Tx{ks: ks})
}

// Tx is a Keyspace already locked by an enclosing Atomic call. Its methods
// mirror Keyspace's own, minus the locking, plus BLPop/XRead variants that
// never suspend -- a blocking command that would have to wait instead
// reports "nothing popped"/"nothing read" immediately, matching real Redis's
// rule that blocking commands never block inside a transaction.
type Tx struct {
	ks *Keyspace
}

func (tx *Tx) Type(key string) Kind {
	if v := tx.ks.getLocked(key); v != nil {
		return v.Kind
	}
	return KindNone
}

func (tx *Tx) Get(key string) ([]byte, bool, error) {
	v := tx.ks.getLocked(key)
	if v == nil {
		return nil, false, nil
	}
	if v.Kind != KindString {
		return nil, false, WrongTypeError{}
	}
	return v.Str, true, nil
}

func (tx *Tx) Set(key string, val []byte, expireAtMS int64) {
	tx.ks.data[key] = &Value{Kind: KindString, Str: val, ExpireAt: expireAtMS}
}

func (tx *Tx) Delete(key string) bool {
	if tx.ks.getLocked(key) == nil {
		return false
	}
	delete(tx.ks.data, key)
	return true
}

func (tx *Tx) Incr(key string) (int64, error) {
	return tx.ks.incrLocked(key)
}

// Type returns the Kind stored at key, or KindNone if absent.
func (ks *Keyspace) Type(key string) Kind {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	if v := ks.getLocked(key); v != nil {
		return v.Kind
	}
	return KindNone
}

// Get returns the string stored at key. ok is false if the key is absent or
// expired; err is WrongTypeError if the key holds a non-string Value.
func (ks *Keyspace) Get(key string) (val []byte, ok bool, err error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	v := ks.getLocked(key)
	if v == nil {
		return nil, false, nil
	}
	if v.Kind != KindString {
		return nil, false, WrongTypeError{}
	}
	return v.Str, true, nil
}

// Set stores val as a string at key, with an optional absolute expiry in
// unix milliseconds (0 meaning no expiry). Set always succeeds regardless of
// the key's previous Kind.
func (ks *Keyspace) Set(key string, val []byte, expireAtMS int64) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.data[key] = &Value{Kind: KindString, Str: val, ExpireAt: expireAtMS}
}

// Delete removes key unconditionally. It returns whether the key was
// present (and not already lazily-expired).
func (ks *Keyspace) Delete(key string) bool {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	if ks.getLocked(key) == nil {
		return false
	}
	delete(ks.data, key)
	return true
}

// Incr parses the string at key as a signed base-10 int64, increments it by
// one, and stores the result, preserving the key's TTL. A previously-absent
// key is treated as 0. It returns RangeError if the stored value isn't a
// valid integer or the increment would overflow, and WrongTypeError if key
// holds a non-string Value.
func (ks *Keyspace) Incr(key string) (int64, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	return ks.incrLocked(key)
}

func (ks *Keyspace) incrLocked(key string) (int64, error) {
	v := ks.getLocked(key)
	if v == nil {
		ks.data[key] = &Value{Kind: KindString, Str: []byte("1")}
		return 1, nil
	}
	if v.Kind != KindString {
		return 0, WrongTypeError{}
	}

	n, err := parseInt(v.Str)
	if err != nil {
		return 0, err
	}
	if n == (1<<63 - 1) {
		return 0, RangeError{}
	}
	n++

	v.Str = []byte(strconv.FormatInt(n, 10))
	return n, nil
}
