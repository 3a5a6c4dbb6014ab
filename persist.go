package goSession

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/MrEthical07/goSession/storage"
)

// tokenSnapshot is the persisted form of the session. Only the token is
// stored; a nil Token encodes as {"token":null}.
type tokenSnapshot struct {
	Token *string `json:"token"`
}

func encodeSnapshot(token string, hasToken bool) ([]byte, error) {
	snap := tokenSnapshot{}
	if hasToken {
		snap.Token = &token
	}
	return json.Marshal(snap)
}

func decodeSnapshot(data []byte) (string, bool, error) {
	var snap tokenSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrSnapshotCorrupt, err)
	}
	if snap.Token == nil {
		return "", false, nil
	}
	return *snap.Token, true, nil
}

type pendingToken struct {
	seq      uint64
	token    string
	hasToken bool
}

// tokenWriter persists token snapshots on its own goroutine. Only the newest
// pending snapshot is kept, so a burst of mutations costs one write and the
// slot always converges on the latest in-memory token.
type tokenWriter struct {
	storage storage.Storage
	slot    string
	timeout time.Duration
	report  func(p pendingToken, err error, took time.Duration)

	mu       sync.Mutex
	pending  *pendingToken
	inflight bool
	drained  chan struct{}

	signal    chan struct{}
	done      chan struct{}
	wg        sync.WaitGroup
	closed    bool
	closeOnce sync.Once
}

func newTokenWriter(
	store storage.Storage,
	slot string,
	timeout time.Duration,
	report func(p pendingToken, err error, took time.Duration),
) *tokenWriter {
	w := &tokenWriter{
		storage: store,
		slot:    slot,
		timeout: timeout,
		report:  report,
		signal:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	w.wg.Add(1)
	go w.run()
	return w
}

func (w *tokenWriter) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.signal:
			w.drain()
		case <-w.done:
			w.drain()
			return
		}
	}
}

func (w *tokenWriter) drain() {
	for {
		w.mu.Lock()
		p := w.pending
		if p == nil {
			w.inflight = false
			if w.drained != nil {
				close(w.drained)
				w.drained = nil
			}
			w.mu.Unlock()
			return
		}
		w.pending = nil
		w.inflight = true
		w.mu.Unlock()

		w.write(*p)
	}
}

func (w *tokenWriter) write(p pendingToken) {
	start := time.Now()
	data, err := encodeSnapshot(p.token, p.hasToken)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		err = w.storage.Save(ctx, w.slot, data)
		cancel()
	}
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrPersistenceWrite, err)
	}
	if w.report != nil {
		w.report(p, err, time.Since(start))
	}
}

// submit replaces the pending snapshot and wakes the writer. It never blocks
// on storage and returns false once the writer is closed.
func (w *tokenWriter) submit(p pendingToken) bool {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return false
	}
	w.pending = &p
	w.mu.Unlock()

	select {
	case w.signal <- struct{}{}:
	default:
	}
	return true
}

// flush waits until every submitted snapshot has been written or ctx ends.
func (w *tokenWriter) flush(ctx context.Context) error {
	w.mu.Lock()
	if w.pending == nil && !w.inflight {
		w.mu.Unlock()
		return nil
	}
	if w.drained == nil {
		w.drained = make(chan struct{})
	}
	drained := w.drained
	w.mu.Unlock()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *tokenWriter) close() {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		w.mu.Unlock()
		close(w.done)
		w.wg.Wait()
	})
}
