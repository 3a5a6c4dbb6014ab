package goSession

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goSession/storage"
)

type subscription struct {
	id     uint64
	mask   Field
	fn     func(Change)
	active atomic.Bool
}

// Store owns the session: the current user, the auth token and the derived
// authentication flag. It is the only mutation surface for that state and
// the persistence boundary for the token.
//
// Mutations are synchronous and never fail. Each one schedules change
// notifications on the store's [Scheduler] and hands the current token to a
// background writer; a failed write is reported on the event channel and
// leaves the in-memory change in place.
//
// Store methods are safe for concurrent use.
type Store struct {
	cfg Config

	mu            sync.RWMutex
	user          User
	token         string
	hasToken      bool
	authenticated bool
	seq           uint64
	subs          []*subscription
	nextSubID     uint64

	scheduler Scheduler
	ownedLoop *Loop
	writer    *tokenWriter
	events    *eventDispatcher
	metrics   *Metrics
	logger    *slog.Logger
	closed    atomic.Bool
}

/*
====================================
READS
====================================
*/

// User returns a copy of the current user record, or nil when absent.
func (s *Store) User() User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.Clone()
}

// Token returns the current token and whether one is present.
func (s *Store) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.hasToken
}

// IsAuthenticated reports whether a user record is present.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

// Snapshot returns all session fields read under one lock.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		User:            s.user.Clone(),
		Token:           s.token,
		HasToken:        s.hasToken,
		IsAuthenticated: s.authenticated,
	}
}

/*
====================================
MUTATIONS
====================================
*/

// SetUser replaces the user record. A nil user clears it. The token is not
// touched.
func (s *Store) SetUser(user User) {
	s.mu.Lock()
	var changed Field
	if s.user != nil || user != nil {
		changed |= FieldUser
	}
	s.user = user.Clone()
	changed |= s.syncAuthenticatedLocked()
	s.commitLocked(changed)
	s.mu.Unlock()

	s.metrics.Inc(MetricSetUser)
}

// SetToken replaces the token. A nil token clears it. The user is not
// touched.
func (s *Store) SetToken(token *string) {
	if token == nil {
		s.ClearToken()
		return
	}

	s.mu.Lock()
	changed := s.setTokenLocked(*token, true)
	s.commitLocked(changed)
	s.mu.Unlock()

	s.metrics.Inc(MetricSetToken)
}

// ClearToken removes the token. The user is not touched.
func (s *Store) ClearToken() {
	s.mu.Lock()
	changed := s.setTokenLocked("", false)
	s.commitLocked(changed)
	s.mu.Unlock()

	s.metrics.Inc(MetricSetToken)
}

// Login records a successful authentication: user, token and the
// authentication flag change together in one notification. Credentials must
// already have been verified by the caller. A nil user is stored as an empty
// record so the session still reads as authenticated.
func (s *Store) Login(user User, token string) {
	if user == nil {
		user = User{}
	}

	s.mu.Lock()
	changed := FieldUser
	s.user = user.Clone()
	changed |= s.setTokenLocked(token, true)
	changed |= s.syncAuthenticatedLocked()
	s.commitLocked(changed)
	s.mu.Unlock()

	s.metrics.Inc(MetricLogin)
	s.emit(EventSessionLogin, true, nil)
}

// Logout clears user and token together in one notification.
func (s *Store) Logout() {
	s.mu.Lock()
	var changed Field
	if s.user != nil {
		changed |= FieldUser
	}
	s.user = nil
	changed |= s.setTokenLocked("", false)
	changed |= s.syncAuthenticatedLocked()
	s.commitLocked(changed)
	s.mu.Unlock()

	s.metrics.Inc(MetricLogout)
	s.emit(EventSessionLogout, true, nil)
}

// UpdateUser shallow-merges partial into the current user record and
// reports whether it did. With no user present it does nothing: a profile
// edit must not turn an anonymous session into an authenticated one.
func (s *Store) UpdateUser(partial User) bool {
	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		s.metrics.Inc(MetricUpdateUserNoop)
		return false
	}
	s.user = s.user.Merge(partial)
	s.commitLocked(FieldUser)
	s.mu.Unlock()

	s.metrics.Inc(MetricUpdateUser)
	return true
}

func (s *Store) setTokenLocked(token string, has bool) Field {
	if !has {
		token = ""
	}
	if s.hasToken == has && s.token == token {
		return 0
	}
	s.token = token
	s.hasToken = has
	return FieldToken
}

func (s *Store) syncAuthenticatedLocked() Field {
	auth := s.user != nil
	if auth == s.authenticated {
		return 0
	}
	s.authenticated = auth
	return FieldAuthenticated
}

// commitLocked finishes a mutation: it schedules notifications for the
// changed fields and submits the token to the writer. Both are non-blocking,
// and doing them under the lock keeps their order equal to mutation order.
func (s *Store) commitLocked(changed Field) {
	s.seq++
	if changed != 0 {
		s.notifyLocked(Change{Seq: s.seq, Fields: changed, Snapshot: s.snapshotLocked()})
	}

	if s.writer == nil {
		return
	}
	if !s.writer.submit(pendingToken{seq: s.seq, token: s.token, hasToken: s.hasToken}) {
		s.logger.Warn("session mutation after close not persisted",
			"slot", s.cfg.Persistence.Slot,
			"seq", s.seq,
			"error", ErrStoreClosed,
		)
	}
}

/*
====================================
SUBSCRIPTIONS
====================================
*/

// Subscribe registers fn for changes touching any field in mask. fn runs on
// the store's scheduler after the mutation has returned, never inline. The
// returned cancel function is idempotent; after it returns, fn is not called
// again, including for notifications already scheduled.
func (s *Store) Subscribe(mask Field, fn func(Change)) (cancel func()) {
	if fn == nil || mask&FieldAll == 0 {
		return func() {}
	}

	sub := &subscription{mask: mask, fn: fn}
	sub.active.Store(true)

	s.mu.Lock()
	s.nextSubID++
	sub.id = s.nextSubID
	s.subs = append(s.subs, sub)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.active.Store(false)
			s.mu.Lock()
			for i, cur := range s.subs {
				if cur.id == sub.id {
					s.subs = append(s.subs[:i], s.subs[i+1:]...)
					break
				}
			}
			s.mu.Unlock()
		})
	}
}

func (s *Store) notifyLocked(change Change) {
	for _, sub := range s.subs {
		if sub.mask&change.Fields == 0 {
			continue
		}
		c := change
		c.Snapshot.User = change.Snapshot.User.Clone()
		s.scheduler.Schedule(func() {
			if sub.active.Load() {
				sub.fn(c)
			}
		})
	}
}

/*
====================================
PERSISTENCE
====================================
*/

func (s *Store) restore(ctx context.Context, backend storage.Storage) {
	slot := s.cfg.Persistence.Slot
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Persistence.ReadTimeout)
	defer cancel()

	data, err := backend.Load(ctx, slot)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return
		}
		s.readFailed(errors.Join(ErrPersistenceRead, err))
		return
	}

	token, ok, err := decodeSnapshot(data)
	if err != nil {
		s.readFailed(errors.Join(ErrPersistenceRead, err))
		return
	}
	if !ok {
		return
	}

	s.mu.Lock()
	s.token = token
	s.hasToken = true
	s.mu.Unlock()

	s.metrics.Inc(MetricTokenRestored)
	s.logger.Debug("session token restored", "slot", slot)
	s.emit(EventSessionRestored, true, nil)
}

func (s *Store) readFailed(err error) {
	s.metrics.Inc(MetricPersistReadFailure)
	s.logger.Warn("session restore failed, starting empty",
		"slot", s.cfg.Persistence.Slot,
		"error", err,
	)
	s.emit(EventPersistenceReadFailure, false, err)
}

func (s *Store) writeDone(p pendingToken, err error, took time.Duration) {
	if err == nil {
		s.metrics.Inc(MetricPersistWriteSuccess)
		s.metrics.Observe(MetricPersistWriteLatency, took)
		return
	}

	s.metrics.Inc(MetricPersistWriteFailure)
	s.logger.Warn("session snapshot write failed",
		"slot", s.cfg.Persistence.Slot,
		"seq", p.seq,
		"error", err,
	)
	s.emit(EventPersistenceWriteFailure, false, err, "seq", strconv.FormatUint(p.seq, 10))
}

// Flush blocks until every token snapshot submitted so far has been written
// (or has failed and been reported), or ctx ends.
func (s *Store) Flush(ctx context.Context) error {
	if s.writer == nil {
		return nil
	}
	return s.writer.flush(ctx)
}

/*
====================================
EVENTS AND METRICS
====================================
*/

func (s *Store) emit(typ EventType, success bool, err error, kv ...string) {
	if s.events == nil {
		return
	}
	event := Event{
		Type:    typ,
		Success: success,
	}
	if err != nil {
		event.Error = err.Error()
	}
	if len(kv) > 1 {
		event.Metadata = make(map[string]string, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			event.Metadata[kv[i]] = kv[i+1]
		}
	}
	s.events.Emit(context.Background(), event)
}

// Metrics returns the store's counters. Collaborators such as the auth gate
// record into the same instance.
func (s *Store) Metrics() *Metrics {
	return s.metrics
}

// MetricsSnapshot returns a copy of the store's counters.
func (s *Store) MetricsSnapshot() MetricsSnapshot {
	return s.metrics.Snapshot()
}

// EventsDropped returns the number of events dropped by a full dispatcher.
func (s *Store) EventsDropped() uint64 {
	return s.events.Dropped()
}

// Close waits for pending snapshot writes, delivers buffered events and
// stops background goroutines. The in-memory session stays readable and
// mutable; later mutations are no longer persisted.
func (s *Store) Close() {
	if s == nil || !s.closed.CompareAndSwap(false, true) {
		return
	}
	if s.writer != nil {
		s.writer.close()
	}
	if s.events != nil {
		s.events.Close()
	}
	if s.ownedLoop != nil {
		s.ownedLoop.Close()
	}
}
