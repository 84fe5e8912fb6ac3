package prism

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// FrameSink receives finished screen frames. DeliverScreen is called from
// the capture goroutine, never from the render goroutine.
type FrameSink interface {
	DeliverScreen(id ScreenID, f *Frame)
}

// FrameSinkFunc adapts a function to FrameSink.
type FrameSinkFunc func(id ScreenID, f *Frame)

// DeliverScreen calls f.
func (f FrameSinkFunc) DeliverScreen(id ScreenID, fr *Frame) { f(id, fr) }

// Options supplies the collaborators of an Engine. Nil fields get defaults:
// a software backend, the built-in effects, generator and still providers,
// an empty model of the configured size.
type Options struct {
	Backend  Backend
	Registry *EffectRegistry
	Provider MediaProvider
	Sink     FrameSink
	Events   EventSink
	Model    *Model
}

// Engine owns the model and drives one composite and output pass per tick.
// Tick, Step, Run, SetDebugMode, Ticks and Close belong to the render
// goroutine; every other method is safe for concurrent use.
type Engine struct {
	cfg      Config
	registry *EffectRegistry
	backend  Backend
	queue    *CommandQueue
	sink     FrameSink
	events   EventSink

	// mu guards model. Only the render goroutine writes it.
	mu    sync.RWMutex
	model *Model

	clock   *Clock
	ramps   rampSet
	rt      *runtimeTables
	tick    uint64
	pending []Event
	debug   bool

	ctx      context.Context
	cancel   context.CancelFunc
	inflight *semaphore.Weighted
	passes   chan *capturePass
	done     chan struct{}
	closed   atomic.Bool

	lastMu sync.Mutex
	last   map[ScreenID]*Frame
}

type captureItem struct {
	screen  ScreenID
	delay   int
	capture Capture
}

type capturePass struct {
	tick  uint64
	items []captureItem
}

// NewEngine validates cfg and starts the capture goroutine.
func NewEngine(cfg Config, opts Options) (*Engine, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	model := opts.Model
	if model == nil {
		model = NewModel(cfg.Width, cfg.Height)
	} else if err := model.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:      cfg,
		registry: opts.Registry,
		backend:  opts.Backend,
		queue:    NewCommandQueue(cfg.QueueCapacity),
		sink:     opts.Sink,
		events:   opts.Events,
		model:    model,
		clock:    NewClock(cfg.Tempo, cfg.AudioSmoothing),
		inflight: semaphore.NewWeighted(int64(cfg.MaxInFlight)),
		passes:   make(chan *capturePass, cfg.MaxInFlight),
		done:     make(chan struct{}),
		last:     make(map[ScreenID]*Frame),
	}
	if e.registry == nil {
		e.registry = NewDefaultRegistry()
	}
	if e.backend == nil {
		e.backend = NewSoftwareBackend(cfg.MaxSurfaceSize)
	}
	provider := opts.Provider
	if provider == nil {
		provider = NewProviderMux(model.Environment.Width, model.Environment.Height)
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.rt = newRuntimeTables(e.ctx, e.backend, provider)
	go e.captureLoop()

	logFn("NewEngine").WithFields(logrus.Fields{
		"backend": e.backend.Name(),
		"width":   model.Environment.Width,
		"height":  model.Environment.Height,
		"fps":     cfg.TargetFPS,
	}).Info("engine started")
	return e, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// Backend returns the rendering backend.
func (e *Engine) Backend() Backend { return e.backend }

// Registry returns the effect registry.
func (e *Engine) Registry() *EffectRegistry { return e.registry }

// Clock returns the tempo clock. Only SetAudioLevels may be called on it
// from other goroutines.
func (e *Engine) Clock() *Clock { return e.clock }

// SetDebugMode enables per-tick timing logs at debug level.
func (e *Engine) SetDebugMode(enabled bool) { e.debug = enabled }

// Ticks returns the number of completed ticks.
func (e *Engine) Ticks() uint64 { return e.tick }

// Submit queues cmd for the next tick.
func (e *Engine) Submit(cmd Command) <-chan Result { return e.queue.Submit(cmd) }

// Do queues cmd and waits for it to be applied. Some other goroutine must
// be running the engine.
func (e *Engine) Do(ctx context.Context, cmd Command) (Result, error) {
	return e.queue.Do(ctx, cmd)
}

// Model returns a deep copy of the current model.
func (e *Engine) Model() *Model {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.model.Clone()
}

// Snapshot encodes the current model.
func (e *Engine) Snapshot() ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.model.Snapshot()
}

// SetAudioLevels forwards band energies to the clock.
func (e *Engine) SetAudioLevels(levels []float64) { e.clock.SetAudioLevels(levels) }

// LastFrame returns the most recent frame delivered for a screen.
func (e *Engine) LastFrame(id ScreenID) *Frame {
	e.lastMu.Lock()
	defer e.lastMu.Unlock()
	return e.last[id]
}

// Tick runs one pass with a step of 1/TargetFPS seconds.
func (e *Engine) Tick(ctx context.Context) error {
	return e.Step(ctx, 1/float64(e.cfg.TargetFPS))
}

// Step runs one pass advancing time by dt seconds:
//
//	drain commands -> advance clock -> reconcile runtime -> advance
//	transitions and ramps -> upload frames -> composite -> render screens
//	-> hand captures to the capture goroutine
//
// Resource failures disable the affected screen and are returned; the rest
// of the pass completes.
func (e *Engine) Step(ctx context.Context, dt float64) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	var stats debugStats
	e.tick++

	e.mu.Lock()
	t := time.Now()
	stats.commandCount = e.drain()
	stats.drainTime = time.Since(t)

	e.clock.Advance(dt)
	t = time.Now()
	e.rt.reconcile(e.model.Environment)
	stats.reconcileTime = time.Since(t)
	e.advance(dt)
	plan := e.plan()
	e.mu.Unlock()
	e.flushEvents()

	t = time.Now()
	stats.uploadCount, stats.deferredCount = e.rt.upload(e.cfg.MaxUploadsPerTick)
	stats.uploadTime = time.Since(t)

	t = time.Now()
	if err := e.backend.Composite(plan); err != nil {
		return fmt.Errorf("composite: %w", err)
	}
	stats.compositeTime = time.Since(t)

	t = time.Now()
	results := e.backend.RenderScreens(plan)
	pass := &capturePass{tick: e.tick}
	var errs []error
	for i, r := range results {
		if r.Err != nil {
			e.disableScreen(r.Screen, r.Err)
			errs = append(errs, r.Err)
			continue
		}
		if r.Capture == nil {
			continue
		}
		pass.items = append(pass.items, captureItem{screen: r.Screen, delay: plan.Screens[i].Delay, capture: r.Capture})
	}
	e.flushEvents()
	if err := e.inflight.Acquire(ctx, 1); err != nil {
		return errors.Join(append(errs, err)...)
	}
	e.passes <- pass
	stats.outputTime = time.Since(t)
	stats.layerCount = len(plan.Layers)
	stats.screenCount = len(plan.Screens)
	e.debugLog(stats)
	return errors.Join(errs...)
}

// drain applies every queued command in order.
func (e *Engine) drain() int {
	queued := e.queue.drain()
	for _, q := range queued {
		cc := commandContext{model: e.model, registry: e.registry, clock: e.clock, ramps: &e.ramps}
		err := q.cmd.apply(&cc)
		if err != nil {
			logFn("Engine.drain").WithFields(logrus.Fields{
				"command": fmt.Sprintf("%T", q.cmd),
				"error":   err,
			}).Warn("command rejected")
			e.emit(Event{Kind: EventCommandRejected, Err: err})
		} else {
			for _, ev := range cc.events {
				e.emit(ev)
			}
			if cc.reloaded {
				// Restored slot tokens may collide with live ones.
				e.rt.close()
			}
		}
		q.done <- Result{ID: cc.id, Err: err}
	}
	return len(queued)
}

// advance moves transitions and ramps forward.
func (e *Engine) advance(dt float64) {
	for _, l := range e.model.Environment.Layers {
		if !l.Playback.Advance(dt) {
			continue
		}
		if l.Playback.Active == nil {
			e.emit(Event{Kind: EventLayerStopped, Layer: l.ID})
		} else {
			e.emit(Event{Kind: EventTransitionComplete, Layer: l.ID, Cell: l.Playback.Active.Cell})
		}
	}
	e.ramps.update(dt, e.applyRamp)
}

func (e *Engine) applyRamp(t RampTarget, v float64) bool {
	l, err := e.model.Layer(t.Layer)
	if err != nil {
		return false
	}
	if t.Effect == 0 {
		l.Opacity = clamp01(v)
		return true
	}
	inst, ok := l.Effects.Find(t.Effect)
	if !ok {
		return false
	}
	p, ok := inst.Params.Find(t.Param)
	if !ok {
		return false
	}
	return p.Set(FloatValue(p.Spec.Range().Clamp(v))) == nil
}

// plan snapshots what the backend needs for this tick.
func (e *Engine) plan() *FramePlan {
	env := e.model.Environment
	p := &FramePlan{
		Tick:   e.tick,
		Time:   time.Duration(e.clock.Time * float64(time.Second)),
		Width:  env.Width,
		Height: env.Height,
	}
	sampled := make(map[LayerID]bool)
	for _, sc := range e.model.Outputs.Screens {
		if !sc.Enabled {
			continue
		}
		p.Screens = append(p.Screens, sc)
		for _, s := range sc.Slices {
			if s.Enabled && s.Input.Kind == InputLayer {
				sampled[s.Input.Layer] = true
			}
		}
	}
	p.Layers = make([]LayerPlan, 0, len(env.Layers))
	for _, l := range env.Layers {
		lp := LayerPlan{
			ID:        l.ID,
			Tiling:    l.Tiling,
			Opacity:   l.Opacity,
			Blend:     l.Blend,
			Composite: l.Renders(),
			Sampled:   sampled[l.ID],
		}
		wa, wp := l.Playback.Weights()
		if s := l.Playback.Active; s != nil && wa > 0 {
			lp.Clips = append(lp.Clips, ClipDraw{Texture: TextureKey{l.ID, s.Token}, Weight: wa, Fallback: e.rt.fallback(l.ID)})
		}
		if s := l.Playback.Pending; s != nil && wp > 0 {
			lp.Clips = append(lp.Clips, ClipDraw{Texture: TextureKey{l.ID, s.Token}, Weight: wp})
		}
		t := l.Transform
		for _, pass := range resolveChain(&l.Effects, e.registry, e.clock) {
			if pass.Host != nil {
				t = t.Combine(pass.Host.Transform(pass.Values, e.clock))
				continue
			}
			lp.Passes = append(lp.Passes, pass)
		}
		lp.Transform = t
		p.Layers = append(p.Layers, lp)
	}
	return p
}

func (e *Engine) disableScreen(id ScreenID, cause error) {
	e.mu.Lock()
	if sc, err := e.model.Outputs.Screen(id); err == nil {
		sc.Enabled = false
	}
	e.mu.Unlock()
	logFn("Engine.Step").WithFields(logrus.Fields{
		"screen": id,
		"error":  cause,
	}).Error("screen disabled")
	e.emit(Event{Kind: EventScreenDisabled, Screen: id, Err: cause})
}

func (e *Engine) emit(ev Event) {
	ev.Tick = e.tick
	e.pending = append(e.pending, ev)
}

// flushEvents delivers queued events outside the model lock.
func (e *Engine) flushEvents() {
	if e.events != nil {
		for _, ev := range e.pending {
			e.events.HandleEvent(ev)
		}
	}
	clear(e.pending)
	e.pending = e.pending[:0]
}

// captureLoop reads back screens in pass order, applies output delay and
// delivers frames.
func (e *Engine) captureLoop() {
	defer close(e.done)
	delayed := make(map[ScreenID][]*Frame)
	for pass := range e.passes {
		seen := make(map[ScreenID]bool, len(pass.items))
		for _, it := range pass.items {
			seen[it.screen] = true
			f, err := it.capture.Read()
			if err != nil {
				logFn("Engine.captureLoop").WithFields(logrus.Fields{
					"screen": it.screen,
					"tick":   pass.tick,
					"error":  err,
				}).Warn("capture failed")
				continue
			}
			q := append(delayed[it.screen], f)
			for len(q) > it.delay {
				e.deliver(it.screen, q[0])
				q[0] = nil
				q = q[1:]
			}
			delayed[it.screen] = q
		}
		for id := range delayed {
			if !seen[id] {
				delete(delayed, id)
			}
		}
		e.inflight.Release(1)
	}
}

func (e *Engine) deliver(id ScreenID, f *Frame) {
	e.lastMu.Lock()
	e.last[id] = f
	e.lastMu.Unlock()
	if e.sink != nil {
		e.sink.DeliverScreen(id, f)
	}
}

// Flush waits until every pass handed to the capture goroutine has been
// delivered.
func (e *Engine) Flush(ctx context.Context) error {
	n := int64(e.cfg.MaxInFlight)
	if err := e.inflight.Acquire(ctx, n); err != nil {
		return err
	}
	e.inflight.Release(n)
	return nil
}

// Run ticks at TargetFPS until ctx is done. Tick errors are logged; the
// loop continues with the screens that still render.
func (e *Engine) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(e.cfg.TargetFPS)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			if err := e.Step(ctx, dt); err != nil {
				if errors.Is(err, ErrEngineClosed) || ctx.Err() != nil {
					return err
				}
				logFn("Engine.Run").WithError(err).Warn("tick failed")
			}
		}
	}
}

// Close stops the engine after the current pass. Pending commands are
// rejected, sources are canceled and in-flight captures are delivered. It
// must not run concurrently with Step.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.queue.close()
	e.cancel()
	close(e.passes)
	<-e.done
	e.rt.close()
	logFn("Engine.Close").WithField("ticks", e.tick).Info("engine stopped")
	return e.backend.Close()
}
