// Package motion drives a CiA402 servo drive in profile position mode
// with the immediate-update set-point handshake, using SDO transfers for
// every step.
package motion

import (
	"errors"
	"fmt"
	"time"

	"github.com/erobman/canopen-pp/internal/poll"
	"github.com/erobman/canopen-pp/pkg/od"
	"github.com/erobman/canopen-pp/pkg/sdo"
	log "github.com/sirupsen/logrus"
)

// ErrOutOfRange is returned before any frame is sent when the requested
// target position lies outside the configured symmetric bound
var ErrOutOfRange = errors.New("target position outside configured bounds")

// ErrStepTimeout is returned when the status word did not show the
// expected bit state within the step deadline
var ErrStepTimeout = errors.New("timed out waiting for status word")

// Command holds the parameters of one profile position move.
// It is owned by the controller for the duration of that move and
// superseded by the next command.
type Command struct {
	TargetPosition      int32
	ProfileVelocity     uint32
	ProfileAcceleration uint32
	ProfileDeceleration uint32
}

// Result reports the outcome of a completed move
type Result struct {
	Phase Phase
	Delta int32 // measured position change in encoder counts
	Ready bool  // handshake returned to idle, drive accepts a next set-point
	Moved bool  // delta is above the minimum motion threshold
}

// Controller drives one node through the profile position handshake.
// All tunables are exported with defaults matching the eRob drive :
// 524288 counts per revolution, a two revolution travel bound, 100 ms
// status polls bounded by a 5 s step deadline.
type Controller struct {
	client *sdo.Client
	nodeId uint8
	phase  Phase
	stop   <-chan struct{}

	CountsPerRev    uint32
	RevolutionLimit uint32
	PollInterval    time.Duration
	StepTimeout     time.Duration
	MinMotion       int32
	EnableSettle    time.Duration
	ReadbackDelay   time.Duration
}

func NewController(client *sdo.Client, nodeId uint8) *Controller {
	return &Controller{
		client:          client,
		nodeId:          nodeId,
		CountsPerRev:    524288,
		RevolutionLimit: 2,
		PollInterval:    100 * time.Millisecond,
		StepTimeout:     5 * time.Second,
		MinMotion:       100,
		EnableSettle:    200 * time.Millisecond,
		ReadbackDelay:   1 * time.Second,
	}
}

// SetStop installs a channel checked during every wait.
// Closing it aborts the remaining wait cycles promptly.
func (controller *Controller) SetStop(stop <-chan struct{}) {
	controller.stop = stop
}

// Phase returns the phase of the current or last motion command
func (controller *Controller) Phase() Phase {
	return controller.phase
}

// Enable switches the drive into profile position mode and walks the
// CiA402 power state machine : fault reset, shutdown, switch on, enable
// operation. Every write must be acknowledged before the next command is
// sent, a failed step aborts the sequence.
func (controller *Controller) Enable() error {
	steps := []struct {
		index uint16
		value uint32
		what  string
	}{
		{od.EntryModesOfOperation, modeProfilePosition, "set profile position mode"},
		{od.EntryControlWord, ControlFaultReset, "fault reset"},
		{od.EntryControlWord, ControlShutdown, "shutdown"},
		{od.EntryControlWord, ControlSwitchOn, "switch on"},
		{od.EntryControlWord, ControlEnableOperation, "enable operation"},
	}
	for _, step := range steps {
		log.Infof("[MOTION][x%x] %v", controller.nodeId, step.what)
		err := controller.client.WriteUint32(controller.nodeId, step.index, 0, step.value)
		if err != nil {
			return fmt.Errorf("%v : %w", step.what, err)
		}
		err = controller.settle(controller.EnableSettle)
		if err != nil {
			return err
		}
	}
	return nil
}

// Shutdown drops the drive back to the switched-on-disabled state.
// Used as the safe stop on operator interrupt.
func (controller *Controller) Shutdown() error {
	return controller.client.WriteUint32(controller.nodeId, od.EntryControlWord, 0, ControlShutdown)
}

// Move drives one profile position command through the immediate-update
// handshake. The sequence always restarts from PhaseIdle, a previous run
// never resumes. On success the returned result carries the measured
// position delta, a delta below MinMotion is flagged but not an error as
// the motor may already sit at the target.
func (controller *Controller) Move(command Command) (*Result, error) {
	controller.phase = PhaseIdle

	// Validate range before any frame reaches the bus
	bound := int64(controller.CountsPerRev) * int64(controller.RevolutionLimit)
	if int64(command.TargetPosition) > bound || int64(command.TargetPosition) < -bound {
		return nil, fmt.Errorf("%w : %v exceeds +/-%v", ErrOutOfRange, command.TargetPosition, bound)
	}

	// Pre-move position, used for the delta report. Best effort.
	before, err := controller.client.ReadUint32(controller.nodeId, od.EntryPositionActual, 0)
	if err != nil {
		log.Warnf("[MOTION][x%x] could not read pre-move position : %v", controller.nodeId, err)
	}

	parameters := []struct {
		index uint16
		value uint32
		what  string
	}{
		{od.EntryProfileVelocity, command.ProfileVelocity, "profile velocity"},
		{od.EntryProfileAcceleration, command.ProfileAcceleration, "profile acceleration"},
		{od.EntryProfileDeceleration, command.ProfileDeceleration, "profile deceleration"},
		{od.EntryTargetPosition, uint32(command.TargetPosition), "target position"},
	}
	for _, parameter := range parameters {
		err = controller.client.WriteUint32(controller.nodeId, parameter.index, 0, parameter.value)
		if err != nil {
			controller.phase = PhaseFailed
			return nil, fmt.Errorf("write %v : %w", parameter.what, err)
		}
	}
	controller.phase = PhaseParametersSent

	// Assert the new set-point bit on top of the current control word
	controlWord, err := controller.client.ReadUint32(controller.nodeId, od.EntryControlWord, 0)
	if err != nil {
		controller.phase = PhaseFailed
		return nil, fmt.Errorf("read control word : %w", err)
	}
	asserted := controlWord | controlNewSetPoint
	err = controller.client.WriteUint32(controller.nodeId, od.EntryControlWord, 0, asserted)
	if err != nil {
		controller.phase = PhaseFailed
		return nil, fmt.Errorf("assert new set-point : %w", err)
	}
	controller.phase = PhaseCommandAsserted

	// Wait for the set-point acknowledge bit
	controller.phase = PhaseAwaitingAck
	err = controller.waitStatus(statusSetPointAck, true)
	if err != nil {
		// Leaving bit 4 asserted can block the next command on some
		// firmwares, clear it before reporting the failure
		clearErr := controller.client.WriteUint32(controller.nodeId, od.EntryControlWord, 0, asserted&^controlNewSetPoint)
		if clearErr != nil {
			log.Warnf("[MOTION][x%x] could not clear set-point bit after timeout : %v", controller.nodeId, clearErr)
		}
		controller.phase = PhaseFailed
		return nil, fmt.Errorf("set-point acknowledge : %w", err)
	}
	controller.phase = PhaseAckReceived

	// Release the set-point so the drive can accept a subsequent command
	err = controller.client.WriteUint32(controller.nodeId, od.EntryControlWord, 0, asserted&^controlNewSetPoint)
	if err != nil {
		controller.phase = PhaseFailed
		return nil, fmt.Errorf("clear new set-point : %w", err)
	}
	controller.phase = PhaseCommandCleared

	// Wait for the acknowledge bit to drop again. The move is already
	// committed at this point : a timeout here is partial success, the
	// drive just has not confirmed being ready for the next set-point.
	controller.phase = PhaseAwaitingReady
	ready := true
	err = controller.waitStatus(statusSetPointAck, false)
	if err != nil {
		log.Warnf("[MOTION][x%x] set-point acknowledge still set : %v", controller.nodeId, err)
		ready = false
	}

	// Read back the actual position and report the delta
	err = controller.settle(controller.ReadbackDelay)
	if err != nil {
		controller.phase = PhaseFailed
		return nil, err
	}
	after, err := controller.client.ReadUint32(controller.nodeId, od.EntryPositionActual, 0)
	if err != nil {
		controller.phase = PhaseFailed
		return nil, fmt.Errorf("read post-move position : %w", err)
	}
	delta := int32(after) - int32(before)
	moved := delta >= controller.MinMotion || delta <= -controller.MinMotion
	if !moved {
		log.Warnf("[MOTION][x%x] position changed by only %v counts, motor may already be at target", controller.nodeId, delta)
	}
	controller.phase = PhaseComplete
	return &Result{Phase: PhaseComplete, Delta: delta, Ready: ready, Moved: moved}, nil
}

// waitStatus polls the status word at PollInterval until the masked bits
// match the wanted state, bounded by StepTimeout. A lost poll is not
// fatal, polling continues until the deadline.
func (controller *Controller) waitStatus(mask uint32, set bool) error {
	err := poll.Until(controller.StepTimeout, controller.PollInterval, controller.stop, func() (bool, error) {
		status, err := controller.client.ReadUint32(controller.nodeId, od.EntryStatusWord, 0)
		if err != nil {
			log.Debugf("[MOTION][x%x] status word poll failed : %v", controller.nodeId, err)
			return false, nil
		}
		return (status&mask != 0) == set, nil
	})
	if err == poll.ErrDeadline {
		return ErrStepTimeout
	}
	return err
}

func (controller *Controller) settle(delay time.Duration) error {
	select {
	case <-controller.stop:
		return poll.ErrStopped
	case <-time.After(delay):
		return nil
	}
}
