package world

import (
	"encoding/binary"
	"encoding/hex"
	"math"

	"golang.org/x/crypto/blake2b"

	"github.com/yardsim/yard/internal/geom"
)

// ActorSnapshot is the read-only view of one actor after a tick.
// TransitionProgress is set only while Transitioning.
type ActorSnapshot struct {
	ID                 string
	Kind               string
	Mode               string
	Position           geom.Point
	Rotation           float64
	TransitionProgress *float64
	Exited             bool
	TaskID             string
	// Slot is the slot the actor holds. A destination slot is claimed when
	// the actor sets off toward it, so a transitioning actor already reports
	// its target here.
	Slot string
}

// Frame is the published result of one tick. Frames are immutable once
// built and may be shared across goroutines.
type Frame struct {
	Tick   uint64
	Time   float64
	Actors []ActorSnapshot
	Digest [blake2b.Size256]byte
}

// DigestHex returns the digest as lowercase hex.
func (f *Frame) DigestHex() string {
	return hex.EncodeToString(f.Digest[:])
}

// Actor returns the snapshot of the given actor, or nil.
func (f *Frame) Actor(id string) *ActorSnapshot {
	for i := range f.Actors {
		if f.Actors[i].ID == id {
			return &f.Actors[i]
		}
	}
	return nil
}

// Snapshot captures every actor in creation order.
func (s *State) Snapshot() *Frame {
	f := &Frame{
		Tick:   s.Tick,
		Time:   s.Now,
		Actors: make([]ActorSnapshot, len(s.actors)),
	}
	for i, a := range s.actors {
		pos, rot := a.Pose(s.Routes)
		snap := ActorSnapshot{
			ID:       a.ID,
			Kind:     a.Kind,
			Position: pos,
			Rotation: rot,
			Exited:   a.Exited,
			TaskID:   a.TaskID,
		}
		if a.Mode != nil {
			snap.Mode = a.Mode.Name()
		}
		if t, ok := a.Mode.(*Transitioning); ok {
			p := t.Progress()
			snap.TransitionProgress = &p
		}
		if sl := s.Pool.Slot(a.HeldSlot()); sl != nil {
			snap.Slot = sl.ID
		}
		f.Actors[i] = snap
	}
	f.Digest = digest(f)
	return f
}

// digest hashes everything in the frame except the digest itself. Two runs
// with identical inputs produce identical digests.
func digest(f *Frame) [blake2b.Size256]byte {
	buf := make([]byte, 0, 64+len(f.Actors)*96)
	buf = binary.LittleEndian.AppendUint64(buf, f.Tick)
	buf = appendFloat(buf, f.Time)
	for i := range f.Actors {
		a := &f.Actors[i]
		buf = appendString(buf, a.ID)
		buf = appendString(buf, a.Mode)
		buf = appendFloat(buf, a.Position.X)
		buf = appendFloat(buf, a.Position.Y)
		buf = appendFloat(buf, a.Rotation)
		if a.TransitionProgress != nil {
			buf = appendFloat(buf, *a.TransitionProgress)
		}
		if a.Exited {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
		buf = appendString(buf, a.TaskID)
		buf = appendString(buf, a.Slot)
	}
	return blake2b.Sum256(buf)
}

func appendFloat(b []byte, v float64) []byte {
	return binary.LittleEndian.AppendUint64(b, math.Float64bits(v))
}

func appendString(b []byte, s string) []byte {
	b = binary.LittleEndian.AppendUint32(b, uint32(len(s)))
	return append(b, s...)
}
