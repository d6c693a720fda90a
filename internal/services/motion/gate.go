package motion

import (
	"sync"

	"argus-worker-go/internal/models"
)

// GateDecision explains why a frame passed or skipped the gate
type GateDecision struct {
	Forward bool
	Forced  bool
	Reason  string
}

// Gate decides whether a frame is worth a detector pass. Quiet frames are
// skipped, but never more than PeriodicInterval in a row, and never while
// a tracked object is waiting for detector corroboration.
type Gate struct {
	thresholdPct float64
	interval     int

	mu                sync.Mutex
	framesSinceFwd    int
	skipped, fwd, frc int64
}

// NewGate creates a detection gate
func NewGate(thresholdPct float64, periodicInterval int) *Gate {
	return &Gate{
		thresholdPct: thresholdPct,
		interval:     periodicInterval,
	}
}

// Evaluate returns the forwarding decision for one frame.
// uncorroborated is true when a Tracked object exists whose box the last
// detector pass did not confirm.
func (g *Gate) Evaluate(motionPct float64, uncorroborated bool) GateDecision {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch {
	case uncorroborated:
		g.framesSinceFwd = 0
		g.fwd++
		return GateDecision{Forward: true, Reason: "uncorroborated_track"}
	case motionPct >= g.thresholdPct:
		g.framesSinceFwd = 0
		g.fwd++
		return GateDecision{Forward: true, Reason: "motion"}
	case g.framesSinceFwd+1 >= g.interval:
		g.framesSinceFwd = 0
		g.fwd++
		g.frc++
		return GateDecision{Forward: true, Forced: true, Reason: "periodic"}
	default:
		g.framesSinceFwd++
		g.skipped++
		return GateDecision{Forward: false, Reason: "quiet"}
	}
}

// Stats returns the gate counters
func (g *Gate) Stats() models.GateStats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return models.GateStats{Skipped: g.skipped, Forwarded: g.fwd, Forced: g.frc}
}
