package world

import "errors"

// None of these stop the tick loop. They are wrapped, logged with the actor
// and task ids, and the engine carries on.
var (
	ErrConfiguration     = errors.New("configuration error")
	ErrResourceExhausted = errors.New("no free slot")
	ErrSlotOccupied      = errors.New("slot occupied")
	ErrUnknownSlot       = errors.New("unknown slot")
	ErrUnknownActor      = errors.New("unknown actor")
	ErrDuplicateActor    = errors.New("duplicate actor id")
)
