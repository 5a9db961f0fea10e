package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var ErrPersisterStopped = errors.New("persister stopped")

// MessageRecord is the durable form of a realtime message.
type MessageRecord struct {
	RealtimeID string
	ChatID     ChatID
	SenderID   UserID
	Content    string
	CreatedAt  time.Time
}

// MessageStore writes message records.
type MessageStore interface {
	SaveMessage(ctx context.Context, rec MessageRecord) error
}

// StoreFunc adapts a function to MessageStore.
type StoreFunc func(ctx context.Context, rec MessageRecord) error

func (f StoreFunc) SaveMessage(ctx context.Context, rec MessageRecord) error {
	return f(ctx, rec)
}

// PersistFailure reports a write that failed after the message was delivered.
type PersistFailure struct {
	Record  MessageRecord
	Err     error
	Origin  Handle
	EventID string
}

type persistJob struct {
	record  MessageRecord
	origin  Handle
	eventID string
}

// Persister writes messages off the read path. Failures are never retried;
// they surface on Failures.
type Persister struct {
	store    MessageStore
	timeout  time.Duration
	metrics  *Metrics
	jobs     chan persistJob
	failures chan PersistFailure

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

func NewPersister(store MessageStore, workers, queueSize int, metrics *Metrics) *Persister {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	p := &Persister{
		store:    store,
		timeout:  10 * time.Second,
		metrics:  metrics,
		jobs:     make(chan persistJob, queueSize),
		failures: make(chan PersistFailure, 64),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.work()
	}
	return p
}

// Enqueue schedules a write. It blocks only while the queue is full.
func (p *Persister) Enqueue(ctx context.Context, rec MessageRecord, origin Handle, eventID string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrPersisterStopped
	}

	select {
	case p.jobs <- persistJob{record: rec, origin: origin, eventID: eventID}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Failures is closed after Stop returns.
func (p *Persister) Failures() <-chan PersistFailure {
	return p.failures
}

// Stop refuses new jobs and waits for queued ones to finish.
func (p *Persister) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
	close(p.failures)
}

func (p *Persister) work() {
	defer p.wg.Done()
	for job := range p.jobs {
		err := p.save(job.record)
		if p.metrics != nil {
			p.metrics.RecordPersist(err)
		}
		if err == nil {
			continue
		}

		failure := PersistFailure{Record: job.record, Err: err, Origin: job.origin, EventID: job.eventID}
		select {
		case p.failures <- failure:
		default:
			slog.Error("Failed to persist message", "chatID", job.record.ChatID, "userID", job.record.SenderID, "error", err)
		}
	}
}

func (p *Persister) save(rec MessageRecord) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("message store panicked: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	return p.store.SaveMessage(ctx, rec)
}
