// Package playback bridges playback-time signals to lyric line lookups
// and produces render instructions for a presentation layer.
package playback

import (
	"context"
	"html"
	"strings"
	"sync"
	"time"

	"github.com/sneakwind/lyra/internal/lyrics"
)

// State describes what a Frame represents.
type State int

const (
	// StateLoading means a lyric fetch for the current track is still in
	// flight.
	StateLoading State = iota
	// StateLyrics means Previous/Current/Next carry timed lines.
	StateLyrics
	// StateNoLyrics is the terminal state for a track without usable
	// lyrics (fetch failed or nothing was time-tagged).
	StateNoLyrics
)

// RenderedLine is one display-ready lyric line. Text is HTML-escaped and,
// when the translation toggle is on, has the translation appended.
type RenderedLine struct {
	Time time.Duration
	Text string
}

// Frame is a minimal render instruction: the line around the playback
// position, each nil when out of range.
type Frame struct {
	State    State
	Previous *RenderedLine
	Current  *RenderedLine
	Next     *RenderedLine
}

// Fetcher retrieves raw lyric text for a track. It is expected to be slow
// (network or disk) and is always called off the caller's goroutine.
type Fetcher interface {
	FetchLyrics(ctx context.Context, folder, song string) (string, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, folder, song string) (string, error)

// FetchLyrics implements Fetcher.
func (f FetcherFunc) FetchLyrics(ctx context.Context, folder, song string) (string, error) {
	return f(ctx, folder, song)
}

// Controller translates playback-time signals into Frames.
//
// Every call to Advance recomputes the active line with a binary search
// instead of tracking deltas; that keeps arbitrary seeks correct with no
// special-casing and is cheap enough for per-frame time updates.
type Controller struct {
	fetcher Fetcher

	mu              sync.Mutex
	lyrics          *lyrics.Lyrics
	state           State
	generation      uint64
	cancel          context.CancelFunc
	showTranslation bool
	lastIndex       int
	lastState       State
	rendered        bool
}

// NewController creates a controller that loads lyrics through fetcher.
func NewController(fetcher Fetcher) *Controller {
	return &Controller{
		fetcher:   fetcher,
		state:     StateNoLyrics,
		lastIndex: -1,
	}
}

// SetTrack switches the controller to a new track and starts an
// asynchronous lyric fetch. Any in-flight fetch for a previous track is
// cancelled, and a completion that lost the race to a newer SetTrack is
// discarded rather than overwriting the newer track's lyrics.
func (c *Controller) SetTrack(ctx context.Context, folder, song string) {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	if c.cancel != nil {
		c.cancel()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.lyrics = nil
	c.state = StateLoading
	c.lastIndex = -1
	c.rendered = false
	c.mu.Unlock()

	go c.fetch(fetchCtx, gen, folder, song)
}

func (c *Controller) fetch(ctx context.Context, gen uint64, folder, song string) {
	raw, err := c.fetcher.FetchLyrics(ctx, folder, song)

	var parsed *lyrics.Lyrics
	if err == nil {
		parsed, err = lyrics.Parse(strings.NewReader(raw))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		// A newer track superseded this fetch.
		return
	}
	if err != nil || len(parsed.Lines) == 0 {
		c.state = StateNoLyrics
		c.lyrics = nil
		return
	}
	c.lyrics = parsed
	c.state = StateLyrics
}

// SetShowTranslation toggles whether translations are appended to the
// rendered text.
func (c *Controller) SetShowTranslation(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.showTranslation != enabled {
		c.showTranslation = enabled
		c.rendered = false
	}
}

// Advance computes the frame for the given playback position. The second
// return value is false when the frame is identical to the last one
// emitted, letting callers skip a redundant re-render.
func (c *Controller) Advance(pos time.Duration) (Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateLyrics {
		frame := Frame{State: c.state}
		changed := !c.rendered || c.lastState != c.state
		c.lastState = c.state
		c.rendered = true
		return frame, changed
	}

	idx := c.lyrics.LineAt(pos)

	frame := Frame{State: StateLyrics}
	if idx == -1 {
		// Pre-show the first lines before playback reaches them.
		frame.Current = c.render(c.lyrics.At(0))
		frame.Next = c.render(c.lyrics.At(1))
	} else {
		frame.Previous = c.render(c.lyrics.At(idx - 1))
		frame.Current = c.render(c.lyrics.At(idx))
		frame.Next = c.render(c.lyrics.At(idx + 1))
	}

	changed := !c.rendered || c.lastState != StateLyrics || c.lastIndex != idx
	c.lastIndex = idx
	c.lastState = StateLyrics
	c.rendered = true
	return frame, changed
}

// render escapes a line's user-originating text for HTML presentation.
func (c *Controller) render(line *lyrics.Line) *RenderedLine {
	if line == nil {
		return nil
	}
	text := html.EscapeString(line.Text)
	if c.showTranslation && line.Translation != "" {
		text += " / " + html.EscapeString(line.Translation)
	}
	return &RenderedLine{Time: line.Time, Text: text}
}

// Close cancels any in-flight fetch.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}
