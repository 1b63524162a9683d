package world

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/yardsim/yard/internal/data"
	"github.com/yardsim/yard/internal/task"
)

// Command is an external change applied between ticks by the input phase.
type Command interface {
	Apply(s *State) error
}

// CreateTask appends a task. Set Options.ID to know the id in advance.
type CreateTask struct {
	ActorID string
	Kind    task.Kind
	Payload task.Payload
	Options task.Options
}

func (c CreateTask) Apply(s *State) error {
	_, err := s.CreateTask(c.ActorID, c.Kind, c.Payload, c.Options)
	return err
}

// CancelTask withdraws a pending task and the pending tasks depending on it.
type CancelTask struct {
	TaskID string
}

func (c CancelTask) Apply(s *State) error {
	cascaded, err := s.Tasks.Cancel(c.TaskID, s.Now)
	if err != nil {
		return err
	}
	if len(cascaded) > 0 {
		s.log.Warn("cancelled dependent tasks",
			zap.String("task", c.TaskID),
			zap.Strings("dependents", cascaded))
	}
	return nil
}

// AddObstacle validates and adds an obstacle. It affects paths computed from
// the next tick on.
type AddObstacle struct {
	Entry data.ObstacleEntry
}

func (c AddObstacle) Apply(s *State) error {
	o, _, err := data.BuildObstacle(c.Entry)
	if err != nil {
		return fmt.Errorf("add obstacle %s: %w", c.Entry.ID, err)
	}
	return s.AddObstacle(o)
}

// AddActor creates an actor and places it.
type AddActor struct {
	Spec data.ActorSpec
}

func (c AddActor) Apply(s *State) error {
	_, err := s.AddActor(c.Spec.WithDefaults())
	return err
}
