package tokenstore

import (
	"io"
	"log/slog"
	"sync"

	"github.com/alexjbarnes/dashboard-bff/internal/models"
)

// writeQueueSize bounds pending durable writes. Callers block only when
// the durable tier falls this far behind.
const writeQueueSize = 16

type writeKind int

const (
	writeSave writeKind = iota
	writeClear
	writeFlush
)

type writeOp struct {
	kind writeKind
	rec  models.TokenRecord
	done chan struct{}
}

// Layered is a memory cache in front of an optional durable tier. Memory
// is authoritative once it has been written or loaded; durable writes run
// on a single background goroutine in submission order and their failures
// are logged, not returned.
type Layered struct {
	memory  *Memory
	durable Durable
	runtime Runtime
	logger  *slog.Logger

	// mu serializes mutations so the write queue sees them in the same
	// order memory does, and guards loaded and closed.
	mu     sync.Mutex
	loaded bool
	closed bool

	writes chan writeOp
	done   chan struct{}
}

// NewLayered creates a layered store. durable may be nil for memory-only
// operation.
func NewLayered(durable Durable, runtime Runtime, logger *slog.Logger) *Layered {
	l := &Layered{
		memory:  NewMemory(),
		durable: durable,
		runtime: runtime,
		logger:  logger,
		writes:  make(chan writeOp, writeQueueSize),
		done:    make(chan struct{}),
	}

	if durable == nil {
		l.loaded = true
	}

	go l.writeLoop()

	return l
}

// Runtime returns the environment kind the store was selected for.
func (l *Layered) Runtime() Runtime {
	return l.runtime
}

// Backend names the durable tier, or "memory" when there is none.
func (l *Layered) Backend() string {
	if l.durable == nil {
		return "memory"
	}

	return l.durable.Name()
}

// Location is the durable tier's on-disk path, or "" when it has none.
func (l *Layered) Location() string {
	if loc, ok := l.durable.(interface{ Location() string }); ok {
		return loc.Location()
	}

	return ""
}

// Get returns the memory record, reading through to the durable tier on
// the first miss. Durable read failures are logged and reported as absent.
func (l *Layered) Get() (*models.TokenRecord, error) {
	rec, _ := l.memory.Get()
	if rec != nil {
		return rec, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.loaded {
		return l.memory.Get()
	}

	stored, err := l.durable.Load()
	if err != nil {
		l.logger.Warn("reading durable token store",
			slog.String("backend", l.durable.Name()),
			slog.String("error", err.Error()),
		)

		return nil, nil
	}

	l.loaded = true

	if stored == nil {
		return nil, nil
	}

	l.memory.seed(*stored)
	l.logger.Debug("token record loaded from durable store",
		slog.String("backend", l.durable.Name()),
	)

	return l.memory.Get()
}

// Put stores rec in memory and queues a durable write.
func (l *Layered) Put(rec models.TokenRecord) (models.TokenRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	stamped, _ := l.memory.Put(rec)
	l.loaded = true
	l.enqueue(writeOp{kind: writeSave, rec: stamped})

	return stamped, nil
}

// Update merges patch into the current record, loading it from the
// durable tier first if memory has not been populated yet.
func (l *Layered) Update(patch models.TokenPatch) (models.TokenRecord, error) {
	if _, err := l.Get(); err != nil {
		return models.TokenRecord{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	merged, err := l.memory.Update(patch)
	if err != nil {
		return models.TokenRecord{}, err
	}

	l.loaded = true
	l.enqueue(writeOp{kind: writeSave, rec: merged})

	return merged, nil
}

// Clear drops the record from memory and queues a durable delete.
func (l *Layered) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_ = l.memory.Clear()
	l.loaded = true
	l.enqueue(writeOp{kind: writeClear})

	return nil
}

// Flush blocks until every durable write queued so far has been applied.
func (l *Layered) Flush() {
	done := make(chan struct{})

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.writes <- writeOp{kind: writeFlush, done: done}
	l.mu.Unlock()

	<-done
}

// Close drains pending writes, stops the writer and releases the durable
// tier.
func (l *Layered) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.writes)
	l.mu.Unlock()

	<-l.done

	if c, ok := l.durable.(io.Closer); ok {
		return c.Close()
	}

	return nil
}

// enqueue must be called with l.mu held. After Close the write is applied
// inline so nothing is silently dropped.
func (l *Layered) enqueue(op writeOp) {
	if l.durable == nil {
		return
	}

	if l.closed {
		l.apply(op)
		return
	}

	l.writes <- op
}

func (l *Layered) writeLoop() {
	defer close(l.done)

	for op := range l.writes {
		l.apply(op)
	}
}

func (l *Layered) apply(op writeOp) {
	var err error

	switch op.kind {
	case writeSave:
		err = l.durable.Save(op.rec)
	case writeClear:
		err = l.durable.Clear()
	case writeFlush:
		close(op.done)
		return
	}

	if err != nil {
		l.logger.Warn("durable token write failed, memory copy remains authoritative",
			slog.String("backend", l.durable.Name()),
			slog.String("error", err.Error()),
		)
	}
}
