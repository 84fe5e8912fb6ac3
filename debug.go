package prism

import (
	"time"

	"github.com/sirupsen/logrus"
)

// debugStats holds per-tick timing and counts.
// Only populated when Engine.debug is true.
type debugStats struct {
	drainTime     time.Duration
	reconcileTime time.Duration
	uploadTime    time.Duration
	compositeTime time.Duration
	outputTime    time.Duration
	commandCount  int
	uploadCount   int
	deferredCount int
	layerCount    int
	screenCount   int
}

// debugLog writes timing stats at debug level.
func (e *Engine) debugLog(stats debugStats) {
	if !e.debug {
		return
	}
	total := stats.drainTime + stats.reconcileTime + stats.uploadTime + stats.compositeTime + stats.outputTime
	logFn("Engine.Tick").WithFields(logrus.Fields{
		"tick":      e.tick,
		"drain":     stats.drainTime,
		"reconcile": stats.reconcileTime,
		"upload":    stats.uploadTime,
		"composite": stats.compositeTime,
		"output":    stats.outputTime,
		"total":     total,
		"commands":  stats.commandCount,
		"uploads":   stats.uploadCount,
		"deferred":  stats.deferredCount,
		"layers":    stats.layerCount,
		"screens":   stats.screenCount,
	}).Debug("tick")
	debugCheckLayerCount(stats.layerCount)
}

// debugMaxLayers is the layer count above which a tick is likely to miss
// its deadline on the software backend.
const debugMaxLayers = 64

func debugCheckLayerCount(n int) {
	if n > debugMaxLayers {
		logFn("Engine.Tick").WithFields(logrus.Fields{
			"layers":    n,
			"threshold": debugMaxLayers,
		}).Warn("layer count exceeds threshold")
	}
}
