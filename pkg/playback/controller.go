// Package playback plays deck items one after another: the foreign clip, a
// rehearsal pause proportional to its length, then the native clip.
package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultPauseFactor scales the foreign clip's duration into the pause
// before the native clip.
const DefaultPauseFactor = 1.5

var (
	// ErrNoAudio is reported for an item without a foreign clip.
	ErrNoAudio = errors.New("item has no audio")
	// ErrNestedSequence is reported when PlaySequence is called from inside
	// one of the same controller's OnPlayed hooks.
	ErrNestedSequence = errors.New("sequence started from inside its own hook")
)

type sequenceKey struct{}

// Player plays encoded audio and reports how long playback took.
type Player interface {
	Play(ctx context.Context, audio []byte) (time.Duration, error)
}

// Fetcher loads the audio behind a URL or path.
type Fetcher interface {
	Fetch(ctx context.Context, path string) ([]byte, error)
}

// Item is one step of a sequence. An empty NativeURL plays the foreign clip
// alone.
type Item struct {
	ID         string
	ForeignURL string
	NativeURL  string
}

// Result reports how one item went. Err is set when the item did not play to
// the end; HookErr when it played but OnPlayed failed.
type Result struct {
	ItemID          string
	Played          bool
	ForeignDuration time.Duration
	Pause           time.Duration
	Err             error
	HookErr         error
}

// Option configures a Controller.
type Option func(*Controller)

// WithPauseFactor overrides DefaultPauseFactor. Non-positive values are
// ignored.
func WithPauseFactor(f float64) Option {
	return func(c *Controller) {
		if f > 0 {
			c.pauseFactor = f
		}
	}
}

// WithOnPlayed registers a hook that runs after each fully played item. The
// hook runs on the sequence's goroutine: PlaySequence called with the hook's
// ctx fails with ErrNestedSequence, and Stop must not be called from it.
func WithOnPlayed(fn func(ctx context.Context, item Item) error) Option {
	return func(c *Controller) { c.onPlayed = fn }
}

// Controller runs at most one sequence at a time. Starting a sequence
// cancels the active one and waits for it to release the player.
type Controller struct {
	player      Player
	fetcher     Fetcher
	pauseFactor float64
	onPlayed    func(ctx context.Context, item Item) error
	sleep       func(ctx context.Context, d time.Duration) error

	startMu sync.Mutex
	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewController(player Player, fetcher Fetcher, opts ...Option) *Controller {
	c := &Controller{
		player:      player,
		fetcher:     fetcher,
		pauseFactor: DefaultPauseFactor,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PlaySequence plays items strictly in order and returns one Result per
// item. Failures stay in their item's Result and the sequence moves on. When
// the sequence is cancelled, by ctx or by a newer sequence, the remaining
// items are reported with the cancellation error.
func (c *Controller) PlaySequence(ctx context.Context, items []Item) []Result {
	if owner, _ := ctx.Value(sequenceKey{}).(*Controller); owner == c {
		results := make([]Result, len(items))
		for i, item := range items {
			results[i] = Result{ItemID: item.ID, Err: ErrNestedSequence}
		}
		return results
	}
	seqCtx, cancel, done := c.begin(ctx)
	defer c.finish(cancel, done)

	results := make([]Result, len(items))
	for i, item := range items {
		results[i].ItemID = item.ID
		if err := seqCtx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		results[i] = c.playItem(seqCtx, item)
	}
	return results
}

// Stop cancels the active sequence, if any, and waits for it to end.
func (c *Controller) Stop() {
	c.startMu.Lock()
	defer c.startMu.Unlock()
	c.stopActive()
}

func (c *Controller) begin(ctx context.Context) (context.Context, context.CancelFunc, chan struct{}) {
	c.startMu.Lock()
	defer c.startMu.Unlock()
	c.stopActive()

	seqCtx, cancel := context.WithCancel(context.WithValue(ctx, sequenceKey{}, c))
	done := make(chan struct{})
	c.mu.Lock()
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()
	return seqCtx, cancel, done
}

func (c *Controller) finish(cancel context.CancelFunc, done chan struct{}) {
	cancel()
	c.mu.Lock()
	if c.done == done {
		c.cancel = nil
		c.done = nil
	}
	c.mu.Unlock()
	close(done)
}

func (c *Controller) stopActive() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (c *Controller) playItem(ctx context.Context, item Item) Result {
	res := Result{ItemID: item.ID}
	if item.ForeignURL == "" {
		res.Err = ErrNoAudio
		return res
	}
	foreign, err := c.fetcher.Fetch(ctx, item.ForeignURL)
	if err != nil {
		res.Err = fmt.Errorf("fetch foreign clip: %w", err)
		return res
	}
	// Both clips are fetched before the foreign one starts. A native clip
	// that fails to load still leaves the foreign one to play.
	var native []byte
	var nativeErr error
	if item.NativeURL != "" {
		native, err = c.fetcher.Fetch(ctx, item.NativeURL)
		if err != nil {
			nativeErr = fmt.Errorf("fetch native clip: %w", err)
		}
	}

	res.ForeignDuration, err = c.player.Play(ctx, foreign)
	if err != nil {
		res.Err = fmt.Errorf("play foreign clip: %w", err)
		return res
	}
	if nativeErr != nil {
		res.Err = nativeErr
		return res
	}
	if native != nil {
		res.Pause = time.Duration(float64(res.ForeignDuration) * c.pauseFactor)
		if err := c.sleep(ctx, res.Pause); err != nil {
			res.Err = err
			return res
		}
		if _, err := c.player.Play(ctx, native); err != nil {
			res.Err = fmt.Errorf("play native clip: %w", err)
			return res
		}
	}
	res.Played = true
	if c.onPlayed != nil {
		res.HookErr = c.onPlayed(ctx, item)
	}
	return res
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
