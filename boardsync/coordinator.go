// Package boardsync reconciles the in-memory board with its backing
// file: client writes are debounced and coalesced into atomic file
// replaces, while a poll loop watches the file's modification time
// for edits made outside the process (Obsidian, any text editor).
package boardsync

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"meticulous-api/domain"
)

// Gateway is the persistence surface the coordinator drives. ModTime
// doubles as the external-change watcher: the coordinator compares it
// against its own baseline instead of binding to a platform file
// event API.
type Gateway interface {
	Read(ctx context.Context) (domain.Board, time.Time, error)
	Write(ctx context.Context, board domain.Board) (time.Time, error)
	ModTime() (time.Time, error)
	Exists() bool
	Path() string
}

// State is the coordinator's write-path phase.
type State int32

const (
	StateIdle State = iota
	StatePendingWrite
	StateWriting
	StateExternalChange
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePendingWrite:
		return "pending-write"
	case StateWriting:
		return "writing"
	case StateExternalChange:
		return "external-change"
	}
	return "unknown"
}

const (
	DefaultDebounce     = 300 * time.Millisecond
	DefaultPollInterval = 2 * time.Second

	writeTimeout = 10 * time.Second
)

// ErrClosed is returned by Put after Close has begun.
var ErrClosed = errors.New("sync coordinator closed")

// Config tunes the coordinator's timers. Zero values take defaults.
type Config struct {
	Debounce     time.Duration
	PollInterval time.Duration
}

type writeResult struct {
	mtime time.Time
	err   error
}

// pendingWrite is the coalescing point: every Put inside the debounce
// window replaces the board and joins the waiter list, and the single
// flush answers them all with the same mtime.
type pendingWrite struct {
	board   domain.Board
	timer   *time.Timer
	waiters []chan writeResult
}

// Coordinator owns the board session between the browser client and
// the file. Conflict policy is last-writer-wins on whole-file
// replaces: a client write racing an external edit overwrites it, by
// design for a single-user tool.
type Coordinator struct {
	gw       Gateway
	logger   *log.Logger
	debounce time.Duration
	pollEvry time.Duration

	mu            sync.Mutex
	state         State
	cached        *domain.Board
	cachedMtime   time.Time
	lastSelfWrite time.Time
	lastObserved  time.Time
	pending       *pendingWrite
	closed        bool

	stopCh chan struct{}
	doneCh chan struct{}
}

// New starts a coordinator and its poll loop.
func New(gw Gateway, logger *log.Logger, cfg Config) *Coordinator {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	c := &Coordinator{
		gw:       gw,
		logger:   logger,
		debounce: cfg.Debounce,
		pollEvry: cfg.PollInterval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go c.poll()
	return c
}

// Get returns the current board and its modification time. The cached
// board is served only while the file's mtime still matches it; any
// mismatch (external edit, deleted file) forces a re-read. A missing
// file bootstraps the seeded default board.
func (c *Coordinator) Get(ctx context.Context) (domain.Board, time.Time, error) {
	c.mu.Lock()
	if c.cached != nil {
		if mt, err := c.gw.ModTime(); err == nil && mt.Equal(c.cachedMtime) {
			board, mtime := *c.cached, c.cachedMtime
			c.mu.Unlock()
			return board, mtime, nil
		}
	}
	c.mu.Unlock()

	board, mtime, err := c.gw.Read(ctx)
	if errors.Is(err, os.ErrNotExist) {
		board, mtime, err = c.bootstrap(ctx)
	}
	if err != nil {
		return domain.Board{}, time.Time{}, err
	}

	c.mu.Lock()
	c.cached = &board
	c.cachedMtime = mtime
	c.lastObserved = mtime
	if c.state == StateExternalChange {
		c.state = StateIdle
	}
	c.mu.Unlock()
	return board, mtime, nil
}

func (c *Coordinator) bootstrap(ctx context.Context) (domain.Board, time.Time, error) {
	if _, err := c.gw.Write(ctx, domain.Default()); err != nil {
		return domain.Board{}, time.Time{}, err
	}
	c.logger.WithField("path", c.gw.Path()).Info("board file missing, seeded default board")
	// Read back so cards carry their ephemeral IDs.
	return c.gw.Read(ctx)
}

// Put records the desired board and (re)starts the debounce timer. It
// blocks until the coalesced write commits; every caller in the same
// window receives the mtime of that one write. If ctx expires first
// the write still lands when the timer fires.
func (c *Coordinator) Put(ctx context.Context, board domain.Board) (time.Time, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return time.Time{}, ErrClosed
	}
	ch := make(chan writeResult, 1)
	if c.pending == nil {
		c.pending = &pendingWrite{board: board, waiters: []chan writeResult{ch}}
		c.pending.timer = time.AfterFunc(c.debounce, c.flushPending)
	} else {
		c.pending.board = board
		c.pending.waiters = append(c.pending.waiters, ch)
		c.pending.timer.Reset(c.debounce)
	}
	c.state = StatePendingWrite
	c.mu.Unlock()

	select {
	case res := <-ch:
		return res.mtime, res.err
	case <-ctx.Done():
		return time.Time{}, ctx.Err()
	}
}

func (c *Coordinator) flushPending() {
	c.mu.Lock()
	p := c.pending
	if p == nil {
		c.mu.Unlock()
		return
	}
	c.pending = nil
	c.state = StateWriting
	c.mu.Unlock()

	c.write(p)
}

// write commits a taken pendingWrite and answers its waiters.
func (c *Coordinator) write(p *pendingWrite) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	mtime, err := c.gw.Write(ctx, p.board)
	cancel()

	c.mu.Lock()
	if err != nil {
		c.logger.WithError(err).Error("board write failed")
	} else {
		board := p.board
		c.cached = &board
		c.cachedMtime = mtime
		c.lastSelfWrite = mtime
		c.lastObserved = mtime
	}
	if c.state == StateWriting {
		c.state = StateIdle
	}
	c.mu.Unlock()

	for _, w := range p.waiters {
		w <- writeResult{mtime: mtime, err: err}
	}
}

// FileExists reports whether the backing file is present.
func (c *Coordinator) FileExists() bool { return c.gw.Exists() }

// State returns the current write-path phase.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) poll() {
	defer close(c.doneCh)
	ticker := time.NewTicker(c.pollEvry)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.checkExternal()
		case <-c.stopCh:
			return
		}
	}
}

// checkExternal compares the file's mtime against the coordinator's
// baseline. The last self-write time is excluded explicitly so the
// loop never flags the coordinator's own just-completed write.
func (c *Coordinator) checkExternal() {
	mt, err := c.gw.ModTime()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && c.cached != nil {
			c.logger.WithField("path", c.gw.Path()).Warn("board file removed externally")
			c.cached = nil
			c.lastObserved = time.Time{}
			if c.state == StateIdle {
				c.state = StateExternalChange
			}
		}
		return
	}
	if mt.Equal(c.lastObserved) || mt.Equal(c.lastSelfWrite) {
		c.lastObserved = mt
		return
	}

	c.lastObserved = mt
	c.cached = nil
	if c.pending != nil {
		// Last-writer-wins: the pending client write will replace the
		// external edit when the debounce fires.
		c.logger.WithField("path", c.gw.Path()).Warn("external edit raced a pending write; client write wins")
	} else {
		c.logger.WithField("path", c.gw.Path()).Info("external edit detected, board will be re-read")
	}
	if c.state == StateIdle {
		c.state = StateExternalChange
	}
}

// Close stops the poll loop and completes any pending debounced write
// before returning, so shutdown never drops a mutation.
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		<-c.doneCh
		return nil
	}
	c.closed = true
	close(c.stopCh)
	p := c.pending
	c.pending = nil
	if p != nil {
		p.timer.Stop()
	}
	c.mu.Unlock()

	<-c.doneCh
	if p != nil {
		c.write(p)
	}
	return ctx.Err()
}
