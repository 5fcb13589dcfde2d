package store

import "time"

// LPush prepends elems, in the order given, to the list at key (so the last
// element of elems ends up at the head), creating the list if absent. It
// returns the list's length after the push, or WrongTypeError if key holds a
// non-list Value. One waiter for key is woken, sufficient since BLPOP
// consumes a single element per wake.
func (ks *Keyspace) LPush(key string, elems ...[]byte) (int, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	return ks.pushLocked(key, elems, true)
}

// RPush appends elems, in the order given, to the list at key, creating the
// list if absent. See LPush for the rest of the contract.
func (ks *Keyspace) RPush(key string, elems ...[]byte) (int, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	return ks.pushLocked(key, elems, false)
}

func (ks *Keyspace) pushLocked(key string, elems [][]byte, head bool) (int, error) {
	v := ks.getLocked(key)
	if v == nil {
		v = &Value{Kind: KindList}
		ks.data[key] = v
	} else if v.Kind != KindList {
		return 0, WrongTypeError{}
	}

	if head {
		// elems are pushed one at a time, each landing at the new head -- the
		// net effect is that the list ends up reversed relative to elems.
		newList := make([][]byte, 0, len(v.List)+len(elems))
		for i := len(elems) - 1; i >= 0; i-- {
			newList = append(newList, elems[i])
		}
		v.List = append(newList, v.List...)
	} else {
		v.List = append(v.List, elems...)
	}

	ks.notify(key, false)
	return len(v.List), nil
}

// LLen returns the length of the list at key, or 0 if key is absent. It
// returns WrongTypeError if key holds a non-list Value.
func (ks *Keyspace) LLen(key string) (int, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	return ks.llenLocked(key)
}

func (ks *Keyspace) llenLocked(key string) (int, error) {
	v := ks.getLocked(key)
	if v == nil {
		return 0, nil
	} else if v.Kind != KindList {
		return 0, WrongTypeError{}
	}
	return len(v.List), nil
}

// LRange returns the elements of the list at key between start and end
// inclusive, zero-based, with -1 meaning the last element. An out-of-range
// slice yields an empty (not nil) result and is not an error.
func (ks *Keyspace) LRange(key string, start, end int) ([][]byte, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	return ks.lrangeLocked(key, start, end)
}

func (ks *Keyspace) lrangeLocked(key string, start, end int) ([][]byte, error) {
	v := ks.getLocked(key)
	if v == nil {
		return [][]byte{}, nil
	} else if v.Kind != KindList {
		return nil, WrongTypeError{}
	}
	return sliceRange(v.List, start, end), nil
}

func sliceRange(list [][]byte, start, end int) [][]byte {
	l := len(list)
	if start < 0 {
		start += l
	}
	if end < 0 {
		end += l
	}
	if start < 0 {
		start = 0
	}
	if end >= l {
		end = l - 1
	}
	if start > end || start >= l {
		return [][]byte{}
	}
	out := make([][]byte, end-start+1)
	copy(out, list[start:end+1])
	return out
}

// tryLPop attempts a non-blocking pop of the list's head. ks.mu must be
// held. popped is false (with no error) if the list is absent or empty.
func (ks *Keyspace) tryLPop(key string) (val []byte, popped bool, err error) {
	v := ks.getLocked(key)
	if v == nil {
		return nil, false, nil
	} else if v.Kind != KindList {
		return nil, false, WrongTypeError{}
	} else if len(v.List) == 0 {
		return nil, false, nil
	}

	val = v.List[0]
	v.List = v.List[1:]
	return val, true, nil
}

// LPop removes and returns the head of the list at key. With count < 0 (no
// count given), it returns the single head element as-is, and (nil, false)
// if the list is absent or empty. With count >= 0, it returns up to count
// elements (possibly an empty, non-nil slice), never (nil, false).
func (ks *Keyspace) LPop(key string, count int) (vals [][]byte, ok bool, err error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	return ks.lpopLocked(key, count)
}

func (ks *Keyspace) lpopLocked(key string, count int) (vals [][]byte, ok bool, err error) {
	v := ks.getLocked(key)
	if v == nil || v.Kind != KindList {
		if v != nil {
			return nil, false, WrongTypeError{}
		}
		if count < 0 {
			return nil, false, nil
		}
		return [][]byte{}, true, nil
	}

	if count < 0 {
		if len(v.List) == 0 {
			return nil, false, nil
		}
		val := v.List[0]
		v.List = v.List[1:]
		return [][]byte{val}, true, nil
	}

	n := count
	if n > len(v.List) {
		n = len(v.List)
	}
	out := make([][]byte, n)
	copy(out, v.List[:n])
	v.List = v.List[n:]
	return out, true, nil
}

// BLPop attempts to pop the head of the list at key, blocking until an
// element is available or timeout elapses (timeout == 0 meaning block
// forever). It returns (nil, false, nil) if the timeout elapsed with nothing
// to pop. onPopped, if non-nil, is called with the keyspace mutex still held,
// immediately after a successful pop and before BLPop returns -- callers use
// it to propagate the pop to replicas from inside the same critical section
// that ordered it relative to every other connection's writes, rather than
// after the mutex has already been released.
func (ks *Keyspace) BLPop(key string, timeout time.Duration, onPopped func()) ([]byte, bool, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		val, popped, err := ks.tryLPop(key)
		if err != nil {
			return nil, false, err
		}
		if popped {
			if onPopped != nil {
				onPopped()
			}
			return val, true, nil
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return nil, false, nil
		}
		ks.wait(key, deadline)
	}
}

// LPush is the Tx (already-locked) equivalent of Keyspace.LPush.
func (tx *Tx) LPush(key string, elems ...[]byte) (int, error) {
	return tx.ks.pushLocked(key, elems, true)
}

// RPush is the Tx (already-locked) equivalent of Keyspace.RPush.
func (tx *Tx) RPush(key string, elems ...[]byte) (int, error) {
	return tx.ks.pushLocked(key, elems, false)
}

// LLen is the Tx (already-locked) equivalent of Keyspace.LLen.
func (tx *Tx) LLen(key string) (int, error) {
	return tx.ks.llenLocked(key)
}

// LRange is the Tx (already-locked) equivalent of Keyspace.LRange.
func (tx *Tx) LRange(key string, start, end int) ([][]byte, error) {
	return tx.ks.lrangeLocked(key, start, end)
}

// LPop is the Tx (already-locked) equivalent of Keyspace.LPop.
func (tx *Tx) LPop(key string, count int) ([][]byte, bool, error) {
	return tx.ks.lpopLocked(key, count)
}

// BLPop is the non-blocking, transaction-safe variant of Keyspace.BLPop: it
// attempts a single pop and returns immediately, popped false meaning
// nothing was available, rather than suspending (real Redis never blocks a
// command queued inside MULTI/EXEC).
func (tx *Tx) BLPop(key string) (val []byte, popped bool, err error) {
	return tx.ks.tryLPop(key)
}
