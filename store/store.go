// Package store implements the in-memory keyspace: a mapping from string
// keys to tagged value entries (string, list or stream) with
// millisecond-granularity, lazily-enforced expiration.
package store

import (
	"strconv"
	"sync"
	"time"
)

// Kind identifies which variant a value entry holds.
type Kind string

const (
	KindNone   Kind = "none"
	KindString Kind = "string"
	KindList   Kind = "list"
	KindStream Kind = "stream"
)

// entry is the single record held per key. Exactly one of str/list/stream
// is meaningful, selected by kind.
type entry struct {
	kind     Kind
	str      string
	list     []string
	stream   *Stream
	expireAt *time.Time
}

func (e *entry) expired(now time.Time) bool {
	return e.expireAt != nil && e.expireAt.Before(now)
}

// Store is the process-wide keyspace. All access is serialized by a single
// exclusive mutex, per the concurrency model: acquisitions are meant to be
// short, and callers must never hold it across unrelated I/O.
type Store struct {
	mu   sync.Mutex
	data map[string]*entry
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{data: make(map[string]*entry)}
}

// getLocked returns the live entry for key, deleting and returning nil if
// it has expired. Caller must hold s.mu.
func (s *Store) getLocked(key string) *entry {
	e, ok := s.data[key]
	if !ok {
		return nil
	}
	if e.expired(time.Now()) {
		delete(s.data, key)
		return nil
	}
	return e
}

// Get implements GET: returns the string value, or nil if absent, expired,
// or not a string.
func (s *Store) Get(key string) *string {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.getLocked(key)
	if e == nil || e.kind != KindString {
		return nil
	}
	v := e.str
	return &v
}

// Set implements SET key value [PX ms]. Replaces any previous entry for
// key unconditionally.
func (s *Store) Set(key, value string, pxMs *int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := &entry{kind: KindString, str: value}
	if pxMs != nil {
		deadline := time.Now().Add(time.Duration(*pxMs) * time.Millisecond)
		e.expireAt = &deadline
	}
	s.data[key] = e
}

// Del removes keys, returning how many existed (and were not already
// expired).
func (s *Store) Del(keys []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, key := range keys {
		if s.getLocked(key) != nil {
			delete(s.data, key)
			count++
		}
	}
	return count
}

// Exists returns how many of keys are present (after lazy expiry).
func (s *Store) Exists(keys []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, key := range keys {
		if s.getLocked(key) != nil {
			count++
		}
	}
	return count
}

// ErrNotInteger is returned by Incr when the stored value cannot be
// parsed as a signed 64-bit integer.
type ErrNotInteger struct{}

func (ErrNotInteger) Error() string { return "ERR value is not an integer or out of range" }

// ErrWrongType is returned whenever a command observes a key holding a
// value of the wrong kind.
type ErrWrongType struct{}

func (ErrWrongType) Error() string {
	return "WRONGTYPE Operation against a key holding the wrong kind of value"
}

// Incr implements INCR: creates "1" if absent, otherwise parses the
// existing string as a signed 64-bit integer and stores v+1.
func (s *Store) Incr(key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.getLocked(key)
	if e == nil {
		s.data[key] = &entry{kind: KindString, str: "1"}
		return 1, nil
	}
	if e.kind != KindString {
		return 0, ErrWrongType{}
	}

	n, err := strconv.ParseInt(e.str, 10, 64)
	if err != nil {
		return 0, ErrNotInteger{}
	}
	n++
	e.str = strconv.FormatInt(n, 10)
	return n, nil
}

// Type implements TYPE: "string"|"list"|"stream"|"none".
func (s *Store) Type(key string) Kind {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.getLocked(key)
	if e == nil {
		return KindNone
	}
	return e.kind
}
