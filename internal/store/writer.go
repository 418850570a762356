package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/verte-zerg/typex/internal/model"
)

var (
	// ErrWriterClosed is returned when enqueueing after Close.
	ErrWriterClosed = errors.New("writer closed")
	// ErrQueueFull is returned when the save queue has no free slot.
	ErrQueueFull = errors.New("save queue full")
)

const queueSize = 64

type job struct {
	name string
	run  func(context.Context) error
}

// Writer applies saves in the background, one at a time, in the order they
// were enqueued. Failures are logged and never reach the caller. Enqueueing
// never blocks; a full queue drops the job.
type Writer struct {
	profiles ProfileStore
	board    LeaderboardStore
	logger   *slog.Logger
	timeout  time.Duration

	mu     sync.Mutex
	closed bool
	jobs   chan job
	done   chan struct{}
}

// NewWriter starts the background goroutine. timeout bounds each job; zero
// uses DefaultTimeout.
func NewWriter(profiles ProfileStore, board LeaderboardStore, logger *slog.Logger, timeout time.Duration) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	w := &Writer{
		profiles: profiles,
		board:    board,
		logger:   logger,
		timeout:  timeout,
		jobs:     make(chan job, queueSize),
		done:     make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *Writer) loop() {
	defer close(w.done)
	for j := range w.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		if err := j.run(ctx); err != nil {
			w.logger.Error("save_failed", "job", j.name, "error", err.Error())
		} else {
			w.logger.Debug("save_done", "job", j.name)
		}
		cancel()
	}
}

func (w *Writer) enqueue(j job) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		w.logger.Warn("save_dropped", "job", j.name, "reason", "closed")
		return ErrWriterClosed
	}
	select {
	case w.jobs <- j:
		return nil
	default:
		w.logger.Warn("save_dropped", "job", j.name, "reason", "queue_full")
		return ErrQueueFull
	}
}

// SaveProfile queues a profile save.
func (w *Writer) SaveProfile(p model.UserProfile) error {
	p = p.Clone()
	return w.enqueue(job{name: "save_profile", run: func(ctx context.Context) error {
		return w.profiles.Save(ctx, p)
	}})
}

// AppendEntry queues a leaderboard append.
func (w *Writer) AppendEntry(e model.LeaderboardEntry) error {
	return w.enqueue(job{name: "append_entry", run: func(ctx context.Context) error {
		return w.board.Append(ctx, e)
	}})
}

// Commit queues the profile save followed by the leaderboard append.
func (w *Writer) Commit(p model.UserProfile, e model.LeaderboardEntry) {
	if w.SaveProfile(p) != nil {
		return
	}
	_ = w.AppendEntry(e)
}

// Close stops accepting jobs and waits until queued jobs finish or ctx ends.
func (w *Writer) Close(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.jobs)
	}
	w.mu.Unlock()
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
