package store

import (
	"strconv"
	"time"
)

// NotifyFunc is called once, under the Store lock, immediately after a
// push mutates key. It must decide which (if any) blocked BLPOP waiter to
// wake and return a closure that performs the actual wake-up; that closure
// is invoked only after the Store lock has been released, so the waiter
// never observes a signal before the pushed element is visible in the
// list and the pusher never blocks on waiter-side work while holding the
// keyspace lock.
type NotifyFunc func(key string) func()

// pushLocked appends values to key's list, creating it if absent. Caller
// holds s.mu. left selects LPUSH (head) vs RPUSH (tail) semantics.
func (s *Store) pushLocked(key string, left bool, values []string) int {
	e := s.getLocked(key)
	if e == nil || e.kind != KindList {
		e = &entry{kind: KindList}
		s.data[key] = e
	}

	if left {
		// Each argument is inserted at the head in turn, so the final
		// order is the argument list reversed at the front of the list.
		newList := make([]string, 0, len(values)+len(e.list))
		for i := len(values) - 1; i >= 0; i-- {
			newList = append(newList, values[i])
		}
		newList = append(newList, e.list...)
		e.list = newList
	} else {
		e.list = append(e.list, values...)
	}

	return len(e.list)
}

// Push implements LPUSH/RPUSH, including the BLPOP handoff: notify is
// invoked under the Store lock to claim a waiter before the lock is
// released, and the resulting wake-up closure runs only afterward.
func (s *Store) Push(key string, left bool, values []string, notify NotifyFunc) (int, error) {
	s.mu.Lock()

	if e, ok := s.data[key]; ok && !e.expired(time.Now()) && e.kind != KindList {
		s.mu.Unlock()
		return 0, ErrWrongType{}
	}

	length := s.pushLocked(key, left, values)

	var wake func()
	if notify != nil {
		wake = notify(key)
	}
	s.mu.Unlock()

	if wake != nil {
		wake()
	}
	return length, nil
}

// LLen implements LLEN: length of the list, 0 if absent or expired.
// Non-list values report 0 as well (no LLEN-specific type error is
// specified).
func (s *Store) LLen(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.getLocked(key)
	if e == nil || e.kind != KindList {
		return 0
	}
	return len(e.list)
}

// LRange implements LRANGE key start end. Negative indices count from the
// tail; out-of-range indices are clamped per spec. A non-list value is a
// WRONGTYPE error (see DESIGN.md's Open Question resolution).
func (s *Store) LRange(key string, start, end int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.getLocked(key)
	if e == nil {
		return []string{}, nil
	}
	if e.kind != KindList {
		return nil, ErrWrongType{}
	}

	length := len(e.list)
	if length == 0 {
		return []string{}, nil
	}

	if start < 0 {
		start = length + start
	}
	if end < 0 {
		end = length + end
	}
	if start < 0 {
		start = 0
	}
	if start >= length {
		return []string{}, nil
	}
	if end >= length {
		end = length - 1
	}
	if end < start {
		return []string{}, nil
	}

	out := make([]string, end-start+1)
	copy(out, e.list[start:end+1])
	return out, nil
}

// Pop removes up to count elements from the head (left) or tail (right)
// of key's list. count == nil means "exactly one, returned as *string
// (nil if none)"; count != nil means "up to *count, returned as
// []string (possibly empty)".
func (s *Store) Pop(key string, left bool, count *int) (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.popLocked(key, left, count)
}

func (s *Store) popLocked(key string, left bool, count *int) (interface{}, error) {
	e := s.getLocked(key)
	if e == nil {
		if count == nil {
			return nil, nil
		}
		return []string{}, nil
	}
	if e.kind != KindList {
		return nil, ErrWrongType{}
	}
	if len(e.list) == 0 {
		if count == nil {
			return nil, nil
		}
		return []string{}, nil
	}

	if count == nil {
		var v string
		if left {
			v = e.list[0]
			e.list = e.list[1:]
		} else {
			v = e.list[len(e.list)-1]
			e.list = e.list[:len(e.list)-1]
		}
		return &v, nil
	}

	n := *count
	if n <= 0 {
		return []string{}, nil
	}
	if n > len(e.list) {
		n = len(e.list)
	}

	var popped []string
	if left {
		popped = append(popped, e.list[:n]...)
		e.list = e.list[n:]
	} else {
		tail := e.list[len(e.list)-n:]
		popped = make([]string, n)
		for i, v := range tail {
			popped[n-1-i] = v
		}
		e.list = e.list[:len(e.list)-n]
	}
	return popped, nil
}

// ParseCount parses an optional LPOP/RPOP count argument, mapping a
// malformed value to the same "not an integer" error INCR uses rather
// than panicking on an unchecked conversion.
func ParseCount(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, ErrNotInteger{}
	}
	return n, nil
}
