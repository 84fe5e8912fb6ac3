package prism

import (
	"context"
	"slices"

	"github.com/sirupsen/logrus"
)

// slotRuntime holds the resources of one playback slot. The model only
// knows the slot token; everything here is keyed by it.
type slotRuntime struct {
	source  string
	held    bool
	frozen  bool
	mailbox *Mailbox
	cancel  context.CancelFunc
	frames  uint64
}

// textured reports whether the backend holds an image for the slot.
func (sr *slotRuntime) textured() bool { return sr.frames > 0 || sr.frozen }

// waiting reports whether the slot has a live source that has not delivered
// its first frame yet.
func (sr *slotRuntime) waiting() bool {
	return !sr.held && sr.mailbox != nil && !sr.mailbox.Closed() && sr.frames == 0
}

// runtimeTables is the side table of runtime resources, reconciled against
// the model once per tick on the render goroutine.
type runtimeTables struct {
	ctx      context.Context
	backend  Backend
	provider MediaProvider

	slots  map[TextureKey]*slotRuntime
	layers map[LayerID]struct{}

	// retiring keeps the texture of a replaced active slot per layer until
	// the layer's new active slot has uploaded a frame.
	retiring map[LayerID]TextureKey
	// order is the round-robin upload order; cursor is the next key to
	// service.
	order  []TextureKey
	cursor int
}

func newRuntimeTables(ctx context.Context, b Backend, p MediaProvider) *runtimeTables {
	return &runtimeTables{
		ctx:      ctx,
		backend:  b,
		provider: p,
		slots:    make(map[TextureKey]*slotRuntime),
		layers:   make(map[LayerID]struct{}),
		retiring: make(map[LayerID]TextureKey),
	}
}

// reconcile opens resources for new slots, freezes new held slots and
// releases everything the model no longer references. A slot whose source
// no longer matches the model is reopened.
func (rt *runtimeTables) reconcile(env *Environment) {
	live := make(map[TextureKey]*Slot)
	layers := make(map[LayerID]struct{}, len(env.Layers))
	active := make(map[LayerID]TextureKey, len(env.Layers))
	var order []TextureKey
	for _, l := range env.Layers {
		layers[l.ID] = struct{}{}
		if a := l.Playback.Active; a != nil {
			active[l.ID] = TextureKey{Layer: l.ID, Token: a.Token}
		}
		for _, s := range l.Playback.Slots() {
			k := TextureKey{Layer: l.ID, Token: s.Token}
			live[k] = s
			order = append(order, k)
		}
	}

	var replaced []TextureKey
	for _, k := range rt.order {
		sr, ok := rt.slots[k]
		if !ok {
			continue
		}
		s, ok := live[k]
		switch {
		case !ok && sr.textured():
			rt.stop(sr)
			delete(rt.slots, k)
			replaced = append(replaced, k)
		case !ok:
			rt.release(k, sr)
		case sr.source != s.Source.Key() || sr.held != s.Held:
			logFn("reconcile").WithFields(logrus.Fields{
				"layer": k.Layer,
				"token": k.Token,
				"was":   sr.source,
				"now":   s.Source.Key(),
			}).Debug("slot source changed")
			rt.release(k, sr)
		}
	}
	for id := range rt.layers {
		if _, ok := layers[id]; !ok {
			rt.backend.ReleaseLayer(id)
			delete(rt.retiring, id)
			logFn("reconcile").WithField("layer", id).Debug("released layer resources")
		}
	}
	rt.layers = layers

	for k, s := range live {
		if _, ok := rt.slots[k]; ok {
			continue
		}
		rt.slots[k] = rt.open(k, s)
	}

	// The first replaced texture of a layer stands in for its new active
	// slot until that slot uploads.
	claimed := make(map[LayerID]bool)
	for _, k := range replaced {
		if !claimed[k.Layer] && rt.waiting(active[k.Layer]) {
			if r, ok := rt.retiring[k.Layer]; ok {
				rt.backend.Release(r)
			}
			rt.retiring[k.Layer] = k
			claimed[k.Layer] = true
			continue
		}
		rt.backend.Release(k)
	}
	for id, r := range rt.retiring {
		if !rt.waiting(active[id]) {
			rt.backend.Release(r)
			delete(rt.retiring, id)
		}
	}

	if len(order) != len(rt.order) || !slices.Equal(order, rt.order) {
		var next TextureKey
		if len(rt.order) > 0 {
			next = rt.order[rt.cursor%len(rt.order)]
		}
		rt.order = order
		rt.cursor = max(slices.Index(order, next), 0)
	}
}

func (rt *runtimeTables) waiting(k TextureKey) bool {
	sr := rt.slots[k]
	return sr != nil && sr.waiting()
}

// fallback returns the texture to draw while the active slot of layer has
// no frame, or the zero key.
func (rt *runtimeTables) fallback(layer LayerID) TextureKey {
	return rt.retiring[layer]
}

func (rt *runtimeTables) open(k TextureKey, s *Slot) *slotRuntime {
	sr := &slotRuntime{source: s.Source.Key(), held: s.Held}
	log := logFn("reconcile").WithFields(logrus.Fields{
		"layer": k.Layer,
		"token": k.Token,
	})
	if s.Held {
		sr.frozen = rt.backend.Freeze(k.Layer, k)
		if !sr.frozen {
			log.Debug("held slot has no mix to freeze")
		}
		return sr
	}
	if s.Source.Kind == SourceNone || s.Source.Kind == "" || rt.provider == nil {
		return sr
	}
	ctx, cancel := context.WithCancel(rt.ctx)
	mb := NewMailbox()
	if err := rt.provider.Open(ctx, s.Source, mb); err != nil {
		cancel()
		mb.Close()
		log.WithFields(logrus.Fields{
			"source": sr.source,
			"error":  err,
		}).Warn("clip source unavailable")
		return sr
	}
	sr.mailbox, sr.cancel = mb, cancel
	log.WithField("source", sr.source).Debug("opened clip source")
	return sr
}

// stop cancels the slot's source and closes its mailbox.
func (rt *runtimeTables) stop(sr *slotRuntime) {
	if sr.cancel != nil {
		sr.cancel()
	}
	if sr.mailbox != nil {
		sr.mailbox.Close()
	}
}

func (rt *runtimeTables) release(k TextureKey, sr *slotRuntime) {
	rt.stop(sr)
	rt.backend.Release(k)
	delete(rt.slots, k)
}

// upload moves at most limit pending frames into the backend, continuing
// round-robin from where the previous tick stopped.
func (rt *runtimeTables) upload(limit int) (uploaded, deferred int) {
	n := len(rt.order)
	last := -1
	for i := 0; i < n; i++ {
		idx := (rt.cursor + i) % n
		k := rt.order[idx]
		sr := rt.slots[k]
		if sr == nil || sr.mailbox == nil || !sr.mailbox.Pending() {
			continue
		}
		if uploaded == limit {
			deferred++
			continue
		}
		f := sr.mailbox.Take()
		if f == nil {
			continue
		}
		if err := rt.backend.Upload(k, f); err != nil {
			logFn("upload").WithFields(logrus.Fields{
				"layer": k.Layer,
				"token": k.Token,
				"error": err,
			}).Warn("frame rejected")
		} else {
			sr.frames++
		}
		uploaded++
		last = idx
	}
	if last >= 0 {
		rt.cursor = (last + 1) % n
	}
	return uploaded, deferred
}

// close releases every slot.
func (rt *runtimeTables) close() {
	for k, sr := range rt.slots {
		rt.release(k, sr)
	}
	for _, k := range rt.retiring {
		rt.backend.Release(k)
	}
	clear(rt.retiring)
	for id := range rt.layers {
		rt.backend.ReleaseLayer(id)
	}
	clear(rt.layers)
	rt.order = nil
	rt.cursor = 0
}
