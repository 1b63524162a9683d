package system

import (
	"time"

	"go.uber.org/zap"

	coresys "github.com/yardsim/yard/internal/core/system"
	"github.com/yardsim/yard/internal/world"
)

// SnapshotSystem builds the frame at the end of each tick and hands it to
// publish. Every digestEvery ticks the frame digest is logged at debug level.
// Phase 4 (Output).
type SnapshotSystem struct {
	world       *world.State
	publish     func(*world.Frame)
	digestEvery uint64
	log         *zap.Logger
}

func NewSnapshotSystem(ws *world.State, publish func(*world.Frame), digestEvery int, log *zap.Logger) *SnapshotSystem {
	if digestEvery <= 0 {
		digestEvery = 100
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SnapshotSystem{world: ws, publish: publish, digestEvery: uint64(digestEvery), log: log}
}

func (s *SnapshotSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *SnapshotSystem) Update(_ time.Duration) {
	f := s.world.Snapshot()
	s.publish(f)
	if f.Tick%s.digestEvery == 0 {
		s.log.Debug("frame",
			zap.Uint64("tick", f.Tick),
			zap.Float64("time", f.Time),
			zap.String("digest", f.DigestHex()))
	}
}
