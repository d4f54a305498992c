package can

import (
	"errors"
	"fmt"
	"time"
)

const CanSffMask uint32 = 0x000007FF

// ErrRecvTimeout is returned by Recv when no frame arrived within the
// given timeout. This is not a failure : a quiet bus is a normal state
// and the protocol layers keep polling until their own deadline.
var ErrRecvTimeout = errors.New("no frame received within timeout")

// A CAN frame
type Frame struct {
	ID    uint32
	Flags uint8
	DLC   uint8
	Data  [8]byte
}

func NewFrame(id uint32, flags uint8, dlc uint8) Frame {
	return Frame{ID: id, Flags: flags, DLC: dlc}
}

// A CAN Bus interface.
// Reception is synchronous : Recv blocks for at most timeout and returns
// ErrRecvTimeout when nothing was received. The protocol layers share a
// single bus handle and never have more than one transaction outstanding,
// so there is no subscription or dispatching machinery.
type Bus interface {
	Connect(...any) error                       // Connect to the CAN bus
	Disconnect() error                          // Disconnect from CAN bus
	Send(frame Frame) error                     // Send a frame on the bus
	Recv(timeout time.Duration) (*Frame, error) // Receive next frame, bounded wait
}

type NewDriverFunc func(channel string) (Bus, error)

var driverRegistry = make(map[string]NewDriverFunc)

// Register a new CAN bus driver type
// This should be called inside an init() function of plugin
func RegisterDriver(driverType string, newDriver NewDriverFunc) {
	driverRegistry[driverType] = newDriver
}

// Create a new CAN bus with given driver
// Currently supported : socketcan, virtual
func NewBus(driver string, channel string) (Bus, error) {
	createDriver, ok := driverRegistry[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported driver : %v", driver)
	}
	return createDriver(channel)
}
