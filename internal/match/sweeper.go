package match

import (
	"context"
	"time"

	"github.com/park285/cheese-match-server/internal/obslog"
	"go.uber.org/zap"
)

// Sweeper periodically reclaims idle rooms.
type Sweeper struct {
	m        *Manager
	interval time.Duration
	maxIdle  time.Duration
}

func NewSweeper(m *Manager, interval, maxIdle time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if maxIdle <= 0 {
		maxIdle = 30 * time.Minute
	}
	return &Sweeper{m: m, interval: interval, maxIdle: maxIdle}
}

// Run blocks until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *Sweeper) Sweep() []string {
	removed := s.m.ReclaimIdle(s.m.now(), s.maxIdle)
	if len(removed) > 0 {
		obslog.L().Info("room_sweep", zap.Int("removed", len(removed)), zap.Int("remaining", s.m.ActiveRooms()))
	}
	return removed
}
