package fakehost

import (
	"context"
	"sync"

	"github.com/Godeaux/Godot-AI-Bridge/enginehost"
)

// Clock is a manually-driven enginehost.Clock: tests and the demo loop
// advance it explicitly (Tick, Advance) rather than wall-clock time
// advancing it implicitly, so engine-clock waits are deterministic.
type Clock struct {
	mu sync.Mutex

	frame     uint64
	fps       float64
	elapsed   float64
	paused    bool
	timeScale float64

	frameWaiters []chan struct{}
	timeWaiters  []timeWaiter
}

type timeWaiter struct {
	deadline float64
	ch       chan struct{}
	done     bool
}

// NewClock creates a clock at frame 0, time 0, running at fps, unpaused,
// at normal time scale.
func NewClock(fps float64) *Clock {
	return &Clock{fps: fps, timeScale: 1.0}
}

func (c *Clock) Frame() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frame
}

func (c *Clock) FPS() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

func (c *Clock) Time() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsed
}

func (c *Clock) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

func (c *Clock) SetPaused(paused bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = paused
}

func (c *Clock) TimeScale() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timeScale
}

// SetTimeScale clamps and stores the time scale per spec.md §6 (0.01-10).
func (c *Clock) SetTimeScale(scale float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if scale < 0.01 {
		scale = 0.01
	}
	if scale > 10 {
		scale = 10
	}
	c.timeScale = scale
	return scale
}

func (c *Clock) NextFrame() <-chan struct{} {
	ch := make(chan struct{})
	c.mu.Lock()
	c.frameWaiters = append(c.frameWaiters, ch)
	c.mu.Unlock()
	return ch
}

func (c *Clock) After(ctx context.Context, seconds float64) <-chan struct{} {
	ch := make(chan struct{})
	c.mu.Lock()
	deadline := c.elapsed + seconds
	if seconds <= 0 {
		c.mu.Unlock()
		close(ch)
		return ch
	}
	c.timeWaiters = append(c.timeWaiters, timeWaiter{deadline: deadline, ch: ch})
	c.mu.Unlock()

	if ctx != nil {
		go func() {
			<-ctx.Done()
		}()
	}
	return ch
}

// Tick advances the frame counter by one and fires every pending
// NextFrame() waiter. It does not advance engine-clock time; call Advance
// for that (mirroring that a frame and its delta are distinct concerns).
func (c *Clock) Tick() {
	c.mu.Lock()
	c.frame++
	waiters := c.frameWaiters
	c.frameWaiters = nil
	c.mu.Unlock()
	for _, ch := range waiters {
		close(ch)
	}
}

// Advance moves engine-clock time forward by dt seconds, scaled by
// TimeScale, unless paused — and fires any timer whose deadline has been
// reached. This is the only way engine-clock waits make progress, which is
// how pause-and-inspect workflows hold waiters open (spec.md §5).
func (c *Clock) Advance(dt float64) {
	c.mu.Lock()
	if c.paused || dt <= 0 {
		c.mu.Unlock()
		return
	}
	c.elapsed += dt * c.timeScale

	var fired []chan struct{}
	remaining := c.timeWaiters[:0]
	for _, w := range c.timeWaiters {
		if !w.done && c.elapsed >= w.deadline {
			fired = append(fired, w.ch)
			w.done = true
			continue
		}
		remaining = append(remaining, w)
	}
	c.timeWaiters = remaining
	c.mu.Unlock()

	for _, ch := range fired {
		close(ch)
	}
}

var _ enginehost.Clock = (*Clock)(nil)
