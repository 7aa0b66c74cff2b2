package loadcontrol

import (
	"sync"
	"time"

	"github.com/anisan-cli/reelplay/log"
)

// LoadControl arbitrates loading across every loader feeding one playback.
//
// Loaders call Update on every change of their own state, including when they do not intend to load,
// because each loader's state affects whether its siblings are admitted.
type LoadControl interface {
	// Register adds a loader that will hold up to bufferSizeContribution bytes.
	Register(loader any, bufferSizeContribution int)
	// Unregister removes a loader.
	Unregister(loader any)
	// TrimAllocator releases pooled memory above the current target buffer size.
	TrimAllocator()
	// Allocator returns the allocator loaders load into.
	Allocator() Allocator
	// Update records a loader's state and reports whether it may start loading from
	// nextLoadPositionUs. nextLoadPositionUs is -1 when the loader has nothing left to load.
	Update(loader any, playbackPositionUs, nextLoadPositionUs int64, loading bool) bool
}

// Watermark classifies how much media a loader, or the allocator, holds. Higher values are worse.
type Watermark int

const (
	AboveHighWatermark Watermark = iota
	BetweenWatermarks
	BelowLowWatermark
)

func (w Watermark) String() string {
	switch w {
	case AboveHighWatermark:
		return "above high"
	case BetweenWatermarks:
		return "between"
	case BelowLowWatermark:
		return "below low"
	default:
		return "unknown"
	}
}

// Options configures a DefaultLoadControl.
type Options struct {
	// LowWatermark and HighWatermark bound the media buffered ahead of playback by each loader.
	LowWatermark  time.Duration
	HighWatermark time.Duration

	// LowBufferLoad and HighBufferLoad bound the fraction of the target buffer size in use.
	LowBufferLoad  float64
	HighBufferLoad float64

	// OnLoadingChanged, if set, is called whenever filling starts or stops. It must not block.
	OnLoadingChanged func(loading bool)

	// Lock receives the streaming priority while buffers fill. Defaults to NetworkLock.
	Lock *PriorityLock
}

// DefaultOptions returns the standard watermarks.
func DefaultOptions() Options {
	return Options{
		LowWatermark:   15 * time.Second,
		HighWatermark:  30 * time.Second,
		LowBufferLoad:  0.2,
		HighBufferLoad: 0.8,
	}
}

type loaderState struct {
	bufferSizeContribution int
	watermark              Watermark
	loading                bool
	nextLoadPositionUs     int64
}

// DefaultLoadControl fills buffers while any loader or the allocator is below its low watermark and
// keeps filling until everything is above the low watermark again.
type DefaultLoadControl struct {
	allocator Allocator
	opts      Options

	lowWatermarkUs  int64
	highWatermarkUs int64

	mu                     sync.Mutex
	loaders                []any
	states                 map[any]*loaderState
	targetBufferSize       int
	maxLoadStartPositionUs int64
	bufferWatermark        Watermark
	filling                bool
	streamingPrioritySet   bool
}

// NewDefault returns a load control over allocator.
func NewDefault(allocator Allocator, opts Options) *DefaultLoadControl {
	if opts.Lock == nil {
		opts.Lock = NetworkLock
	}
	return &DefaultLoadControl{
		allocator:              allocator,
		opts:                   opts,
		lowWatermarkUs:         opts.LowWatermark.Microseconds(),
		highWatermarkUs:        opts.HighWatermark.Microseconds(),
		states:                 make(map[any]*loaderState),
		maxLoadStartPositionUs: -1,
	}
}

func (c *DefaultLoadControl) Register(loader any, bufferSizeContribution int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.states[loader]; ok {
		panic("loadcontrol: loader registered twice")
	}
	c.loaders = append(c.loaders, loader)
	c.states[loader] = &loaderState{
		bufferSizeContribution: bufferSizeContribution,
		nextLoadPositionUs:     -1,
	}
	c.targetBufferSize += bufferSizeContribution
}

func (c *DefaultLoadControl) Unregister(loader any) {
	c.mu.Lock()
	state, ok := c.states[loader]
	if !ok {
		c.mu.Unlock()
		return
	}

	for i, l := range c.loaders {
		if l == loader {
			c.loaders = append(c.loaders[:i], c.loaders[i+1:]...)
			break
		}
	}
	delete(c.states, loader)
	c.targetBufferSize -= state.bufferSizeContribution
	notify := c.updateControlState()
	c.mu.Unlock()

	notify()
}

func (c *DefaultLoadControl) Allocator() Allocator {
	return c.allocator
}

func (c *DefaultLoadControl) TrimAllocator() {
	c.mu.Lock()
	target := c.targetBufferSize
	c.mu.Unlock()

	c.allocator.Trim(target)
}

// TargetBufferSize returns the sum of the registered loaders' contributions.
func (c *DefaultLoadControl) TargetBufferSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.targetBufferSize
}

// Filling reports whether buffers are currently being filled.
func (c *DefaultLoadControl) Filling() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filling
}

// MaxLoadStartPositionUs returns the furthest position any loader may start loading from, or -1
// while buffers are not filling.
func (c *DefaultLoadControl) MaxLoadStartPositionUs() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxLoadStartPositionUs
}

func (c *DefaultLoadControl) Update(loader any, playbackPositionUs, nextLoadPositionUs int64, loading bool) bool {
	c.mu.Lock()

	state, ok := c.states[loader]
	if !ok {
		c.mu.Unlock()
		panic("loadcontrol: update from unregistered loader")
	}

	watermark := c.LoaderWatermark(playbackPositionUs, nextLoadPositionUs)
	loaderChanged := state.watermark != watermark ||
		state.nextLoadPositionUs != nextLoadPositionUs ||
		state.loading != loading
	if loaderChanged {
		state.watermark = watermark
		state.nextLoadPositionUs = nextLoadPositionUs
		state.loading = loading
	}

	allocatedSize := c.allocator.TotalBytesAllocated()
	bufferWatermark := c.bufferWatermarkFor(allocatedSize)
	bufferChanged := c.bufferWatermark != bufferWatermark
	if bufferChanged {
		c.bufferWatermark = bufferWatermark
	}

	notify := func() {}
	if loaderChanged || bufferChanged {
		notify = c.updateControlState()
	}

	admitted := allocatedSize < c.targetBufferSize &&
		nextLoadPositionUs != -1 &&
		nextLoadPositionUs <= c.maxLoadStartPositionUs
	c.mu.Unlock()

	notify()
	return admitted
}

// LoaderWatermark classifies a loader by how far ahead of playback its next load starts.
func (c *DefaultLoadControl) LoaderWatermark(playbackPositionUs, nextLoadPositionUs int64) Watermark {
	if nextLoadPositionUs == -1 {
		return AboveHighWatermark
	}

	ahead := nextLoadPositionUs - playbackPositionUs
	switch {
	case ahead > c.highWatermarkUs:
		return AboveHighWatermark
	case ahead < c.lowWatermarkUs:
		return BelowLowWatermark
	default:
		return BetweenWatermarks
	}
}

func (c *DefaultLoadControl) bufferWatermarkFor(allocatedSize int) Watermark {
	if c.targetBufferSize <= 0 {
		return AboveHighWatermark
	}

	load := float64(allocatedSize) / float64(c.targetBufferSize)
	switch {
	case load > c.opts.HighBufferLoad:
		return AboveHighWatermark
	case load < c.opts.LowBufferLoad:
		return BelowLowWatermark
	default:
		return BetweenWatermarks
	}
}

// updateControlState recomputes the filling decision. It must be called with c.mu held and returns
// the listener notification to run once the lock is released.
func (c *DefaultLoadControl) updateControlState() func() {
	loading := false
	haveNextLoadPosition := false
	worst := c.bufferWatermark
	for _, loader := range c.loaders {
		state := c.states[loader]
		loading = loading || state.loading
		haveNextLoadPosition = haveNextLoadPosition || state.nextLoadPositionUs != -1
		worst = max(worst, state.watermark)
	}

	c.filling = len(c.loaders) > 0 &&
		(loading || haveNextLoadPosition) &&
		(worst == BelowLowWatermark || (worst == BetweenWatermarks && c.filling))

	notify := func() {}
	switch {
	case c.filling && !c.streamingPrioritySet:
		c.opts.Lock.Add(StreamingPriority)
		c.streamingPrioritySet = true
		notify = c.loadingChanged(true)
	case !c.filling && c.streamingPrioritySet && !loading:
		c.opts.Lock.Remove(StreamingPriority)
		c.streamingPrioritySet = false
		notify = c.loadingChanged(false)
	}

	c.maxLoadStartPositionUs = -1
	if c.filling {
		for _, loader := range c.loaders {
			next := c.states[loader].nextLoadPositionUs
			if next != -1 && (c.maxLoadStartPositionUs == -1 || next < c.maxLoadStartPositionUs) {
				c.maxLoadStartPositionUs = next
			}
		}
	}

	return notify
}

func (c *DefaultLoadControl) loadingChanged(loading bool) func() {
	log.Component("loadcontrol").WithFields(map[string]any{
		"loading":  loading,
		"loaders":  len(c.loaders),
		"target":   c.targetBufferSize,
		"buffered": c.bufferWatermark.String(),
	}).Debug("load control filling changed")

	listener := c.opts.OnLoadingChanged
	if listener == nil {
		return func() {}
	}
	return func() { listener(loading) }
}
