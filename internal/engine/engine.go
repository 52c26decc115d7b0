package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/flowgrid/internal/catalog"
	"github.com/roach88/flowgrid/internal/game"
	"github.com/roach88/flowgrid/internal/ir"
	"github.com/roach88/flowgrid/internal/store"
	"github.com/roach88/flowgrid/internal/view"
)

// DefaultAutosaveEvery is the number of accepted edits between save
// document rewrites.
const DefaultAutosaveEvery = 32

// Engine is a single-writer game session.
//
// Thread-safety model:
//   - Submit, View, Save, Version and Watch: safe from any goroutine
//   - Run: must be called from exactly one goroutine
//   - Apply, Flush, Game and Info: only from the goroutine that owns the
//     game, which is Run's goroutine once Run has started
type Engine struct {
	store   *store.Store
	catalog *catalog.Catalog
	logger  *slog.Logger

	info       store.SaveInfo
	game       *game.Game
	gameOpts   []game.Option
	journalSeq int64

	autosaveEvery int
	unsaved       int

	queue *eventQueue
	clock *Clock

	mu       sync.Mutex
	watchers map[chan int64]struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the session logger. It is also handed to the game.
// Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithAutosaveEvery sets how many accepted edits pass between save
// document rewrites. Zero disables autosave; the document is then written
// only by Flush, Save and when Run stops.
func WithAutosaveEvery(n int) Option {
	return func(e *Engine) {
		e.autosaveEvery = n
	}
}

// WithGameOptions passes options to the game the session creates or
// restores.
func WithGameOptions(opts ...game.Option) Option {
	return func(e *Engine) {
		e.gameOpts = append(e.gameOpts, opts...)
	}
}

func newEngine(s *store.Store, c *catalog.Catalog, opts []Option) *Engine {
	e := &Engine{
		store:         s,
		catalog:       c,
		logger:        slog.Default(),
		autosaveEvery: DefaultAutosaveEvery,
		queue:         newEventQueue(),
		clock:         NewClock(),
		watchers:      make(map[chan int64]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) allGameOptions() []game.Option {
	return append([]game.Option{game.WithLogger(e.logger)}, e.gameOpts...)
}

// Create starts a session on a new empty game stored under name.
func Create(ctx context.Context, s *store.Store, c *catalog.Catalog, name string, ids IDGenerator, opts ...Option) (*Engine, error) {
	e := newEngine(s, c, opts)
	e.game = game.New(c, e.allGameOptions()...)

	doc, err := store.NewDocument(e.game)
	if err != nil {
		return nil, fmt.Errorf("create %q: %w", name, err)
	}
	info, err := s.CreateSave(ctx, ids.Generate(), name, doc)
	if err != nil {
		return nil, err
	}
	e.info = info

	e.logger.Info("save created", "save", info.ID, "name", info.Name)
	return e, nil
}

// Load starts a session on a stored game, replaying journaled edits the
// save document does not yet reflect.
func Load(ctx context.Context, s *store.Store, c *catalog.Catalog, idOrName string, opts ...Option) (*Engine, error) {
	e := newEngine(s, c, opts)
	g, res, err := Replay(ctx, s, c, idOrName, e.allGameOptions()...)
	if err != nil {
		return nil, err
	}
	e.game = g
	e.info = res.Save
	e.info.Digest = res.Digest
	e.journalSeq = res.LastSeq
	e.unsaved = res.Applied

	e.logger.Info("save loaded",
		"save", e.info.ID,
		"name", e.info.Name,
		"revision", e.info.Revision,
		"replayed", res.Applied,
	)
	return e, nil
}

// Apply performs an edit, journals it and autosaves when due.
//
// A rejected edit returns the game's error and leaves both the game and
// the journal unchanged.
func (e *Engine) Apply(ctx context.Context, edit game.Edit) error {
	before := e.game.State()
	if err := e.game.Apply(edit); err != nil {
		e.logger.Debug("edit rejected", "save", e.info.ID, "edit", edit.String(), "error", err)
		return err
	}

	digest, err := ir.GameDigest(e.game.State())
	if err == nil {
		var seq int64
		seq, err = e.store.AppendEdit(ctx, e.info.ID, edit, digest)
		if err == nil {
			e.journalSeq = seq
		}
	}
	if err != nil {
		// an edit that is not journaled must not stay applied
		if restored, rerr := game.Restore(e.catalog, before, e.allGameOptions()...); rerr == nil {
			e.game = restored
		} else {
			err = errors.Join(err, rerr)
		}
		return fmt.Errorf("journal edit: %w", err)
	}

	e.info.Digest = digest
	e.unsaved++
	version := e.clock.Next()

	e.logger.Debug("edit journaled",
		"save", e.info.ID,
		"seq", e.journalSeq,
		"version", version,
		"edit", edit.String(),
	)

	if e.autosaveEvery > 0 && e.unsaved >= e.autosaveEvery {
		if err := e.Flush(ctx); err != nil {
			// the edit is journaled; the next load replays it
			e.logger.Error("autosave failed", "save", e.info.ID, "error", err)
		}
	}

	e.notify(version)
	return nil
}

// Flush rewrites the save document if any journaled edit is not yet in it.
func (e *Engine) Flush(ctx context.Context) error {
	if e.unsaved == 0 {
		return nil
	}
	doc, err := store.NewDocument(e.game)
	if err != nil {
		return err
	}
	if err := e.store.PutSave(ctx, e.info.ID, doc, e.journalSeq); err != nil {
		return err
	}
	e.info.Revision++
	e.info.JournalSeq = e.journalSeq
	e.unsaved = 0

	e.logger.Info("save written", "save", e.info.ID, "revision", e.info.Revision, "seq", e.journalSeq)
	return nil
}

// Game returns the session's game. Owner goroutine only.
func (e *Engine) Game() *game.Game {
	return e.game
}

// Info describes the session's save. Owner goroutine only.
func (e *Engine) Info() store.SaveInfo {
	return e.info
}

// Version counts edits accepted by this session.
func (e *Engine) Version() int64 {
	return e.clock.Current()
}

// QueueLen returns the number of events waiting for the Run loop.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// Submit queues an edit and waits for the Run loop to apply it.
func (e *Engine) Submit(ctx context.Context, edit game.Edit) error {
	return e.send(ctx, Event{Type: EventTypeEdit, Edit: edit})
}

// View runs fn against the game inside the Run loop. fn must not retain
// the view after returning.
func (e *Engine) View(ctx context.Context, fn func(*view.View) error) error {
	return e.send(ctx, Event{Type: EventTypeView, View: fn})
}

// Save asks the Run loop to rewrite the save document now.
func (e *Engine) Save(ctx context.Context) error {
	return e.send(ctx, Event{Type: EventTypeSave})
}

func (e *Engine) send(ctx context.Context, ev Event) error {
	ev.Reply = make(chan error, 1)
	if !e.queue.Enqueue(ev) {
		return ErrStopped
	}
	select {
	case err := <-ev.Reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Watch returns a channel that receives the session version after each
// accepted edit. Only the latest version is buffered. Call cancel to stop
// watching.
func (e *Engine) Watch() (versions <-chan int64, cancel func()) {
	ch := make(chan int64, 1)
	e.mu.Lock()
	e.watchers[ch] = struct{}{}
	e.mu.Unlock()
	return ch, func() {
		e.mu.Lock()
		delete(e.watchers, ch)
		e.mu.Unlock()
	}
}

func (e *Engine) notify(version int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for ch := range e.watchers {
		select {
		case ch <- version:
		default:
			// replace the stale version
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- version:
			default:
			}
		}
	}
}

// Run starts the single-writer loop. It blocks until ctx is cancelled or
// Stop is called, then answers any queued events with ErrStopped and
// writes the save document.
//
// Must be called from exactly one goroutine.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("session starting", "save", e.info.ID, "name", e.info.Name)

	for {
		if ev, ok := e.queue.TryDequeue(); ok {
			e.process(ctx, ev)
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("session stopping: context cancelled", "save", e.info.ID)
			e.shutdown(context.WithoutCancel(ctx))
			return ctx.Err()

		case <-e.queue.Wait():
			if e.queue.Len() == 0 && e.queue.Closed() {
				e.logger.Info("session stopping: queue closed", "save", e.info.ID)
				e.shutdown(ctx)
				return nil
			}
		}
	}
}

// Stop closes the queue. Run finishes the events already queued before
// it returns.
func (e *Engine) Stop() {
	e.queue.Close()
}

func (e *Engine) shutdown(ctx context.Context) {
	e.queue.Close()
	for _, ev := range e.queue.Drain() {
		ev.Reply <- ErrStopped
	}
	if err := e.Flush(ctx); err != nil {
		e.logger.Error("final save failed", "save", e.info.ID, "error", err)
	}
}

// process handles one event. Called only from the Run goroutine.
func (e *Engine) process(ctx context.Context, ev Event) {
	var err error
	switch ev.Type {
	case EventTypeEdit:
		err = e.Apply(ctx, ev.Edit)
	case EventTypeView:
		err = ev.View(view.New(e.game))
	case EventTypeSave:
		err = e.Flush(ctx)
	default:
		err = fmt.Errorf("unknown event type: %d", ev.Type)
	}
	if ev.Reply != nil {
		ev.Reply <- err
	}
}
