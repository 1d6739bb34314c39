package health

import (
	"log/slog"
	"sync"
	"time"
)

// ConnectionMonitor tracks lost-connection screens per kingdom and decides when the
// game app has to be restarted.
type ConnectionMonitor struct {
	Threshold int           // Losses inside Window that trigger a refresh
	Window    time.Duration // How far back losses are counted
	Logger    *slog.Logger

	mu     sync.Mutex
	losses map[string][]time.Time
	now    func() time.Time
}

func NewConnectionMonitor(logger *slog.Logger, threshold int, window time.Duration) *ConnectionMonitor {
	return &ConnectionMonitor{
		Threshold: threshold,
		Window:    window,
		Logger:    logger,
		losses:    make(map[string][]time.Time),
		now:       time.Now,
	}
}

// RecordLoss registers one lost connection for kingdom. It returns true when the
// threshold was reached, in which case the history for that kingdom is cleared.
func (cm *ConnectionMonitor) RecordLoss(kingdom string) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	now := cm.now()
	kept := cm.losses[kingdom][:0]
	for _, t := range cm.losses[kingdom] {
		if now.Sub(t) < cm.Window {
			kept = append(kept, t)
		}
	}
	kept = append(kept, now)
	cm.losses[kingdom] = kept

	if len(kept) >= cm.Threshold {
		cm.Logger.Error("Repeated connection loss detected, app refresh required",
			slog.String("kingdom", kingdom),
			slog.Int("losses", len(kept)),
			slog.Duration("window", cm.Window))
		delete(cm.losses, kingdom)
		return true
	}

	cm.Logger.Warn("Connection loss detected",
		slog.String("kingdom", kingdom),
		slog.Int("losses", len(kept)),
		slog.Int("threshold", cm.Threshold))
	return false
}

// Reset clears a kingdom's history, typically after a successful request.
func (cm *ConnectionMonitor) Reset(kingdom string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	delete(cm.losses, kingdom)
}
