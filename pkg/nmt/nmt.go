// Package nmt implements the master side of the CANopen network
// management service : the lifecycle commands that move a node between
// stopped, pre-operational and operational states.
package nmt

import (
	"errors"
	"time"

	"github.com/erobman/canopen-pp/pkg/can"
	log "github.com/sirupsen/logrus"
)

// NMT service COB-ID
const ServiceId uint32 = 0

// Broadcast addresses every node on the network
const Broadcast uint8 = 0

var ErrIllegalArgument = errors.New("error in function arguments")

// ErrStopped is returned when a settle wait was aborted by a stop request
var ErrStopped = errors.New("startup aborted by stop request")

// Available NMT commands
// They can be broadcasted to all nodes or sent to individual nodes
type Command uint8

const (
	CommandEnterOperational    Command = 1
	CommandEnterStopped        Command = 2
	CommandEnterPreOperational Command = 128
	CommandResetNode           Command = 129
	CommandResetCommunication  Command = 130
)

var commandDescription = map[Command]string{
	CommandEnterOperational:    "ENTER-OPERATIONAL",
	CommandEnterStopped:        "ENTER-STOPPED",
	CommandEnterPreOperational: "ENTER-PREOPERATIONAL",
	CommandResetNode:           "RESET-NODE",
	CommandResetCommunication:  "RESET-COMMUNICATION",
}

// Controller sends lifecycle commands on the reserved NMT COB-ID.
// The settle delays are exported so callers (and tests) can tune them :
// device firmware needs a bounded but non zero time to re-enter an
// addressable state after each command.
type Controller struct {
	bus  can.Bus
	stop <-chan struct{}

	StopSettle  time.Duration
	ResetSettle time.Duration
	StartSettle time.Duration
}

func NewController(bus can.Bus) *Controller {
	return &Controller{
		bus:         bus,
		StopSettle:  200 * time.Millisecond,
		ResetSettle: 1 * time.Second,
		StartSettle: 1 * time.Second,
	}
}

// SetStop installs a channel checked during settle waits
func (controller *Controller) SetStop(stop <-chan struct{}) {
	controller.stop = stop
}

// Send transmits an NMT command, nodeId 0 addresses all nodes.
// Fire and forget : the NMT service has no response on the wire.
func (controller *Controller) Send(command Command, nodeId uint8) error {
	if nodeId > 127 || (command != CommandEnterOperational &&
		command != CommandEnterPreOperational &&
		command != CommandEnterStopped &&
		command != CommandResetCommunication &&
		command != CommandResetNode) {
		return ErrIllegalArgument
	}
	frame := can.NewFrame(ServiceId, 0, 2)
	frame.Data[0] = uint8(command)
	frame.Data[1] = nodeId
	log.Debugf("[NMT] sending nmt command : %v to node(s) %v (x%x)", commandDescription[command], nodeId, nodeId)
	return controller.bus.Send(frame)
}

// Startup runs the lifecycle sequence required before any SDO traffic :
// stop, reset, start, with a settle delay after each command
func (controller *Controller) Startup(nodeId uint8) error {
	err := controller.Send(CommandEnterStopped, nodeId)
	if err != nil {
		return err
	}
	err = controller.settle(controller.StopSettle)
	if err != nil {
		return err
	}
	err = controller.Send(CommandResetNode, nodeId)
	if err != nil {
		return err
	}
	err = controller.settle(controller.ResetSettle)
	if err != nil {
		return err
	}
	err = controller.Send(CommandEnterOperational, nodeId)
	if err != nil {
		return err
	}
	return controller.settle(controller.StartSettle)
}

func (controller *Controller) settle(delay time.Duration) error {
	select {
	case <-controller.stop:
		return ErrStopped
	case <-time.After(delay):
		return nil
	}
}
