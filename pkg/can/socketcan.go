package can

import (
	"time"

	"github.com/brutella/can"
)

// Basic wrapper for socketcan (this is the implementation used by brutella/can)
// brutella/can pushes received frames through a callback, so incoming
// traffic is buffered into a channel to provide the synchronous Recv
// used by the protocol layers.

const socketcanRxQueueSize = 128

type SocketcanBus struct {
	bus *can.Bus
	rx  chan Frame
}

// "Connect" implementation of Bus interface
func (socketcan *SocketcanBus) Connect(...any) error {
	socketcan.bus.Subscribe(socketcan)
	go socketcan.bus.ConnectAndPublish()
	return nil
}

// "Disconnect" implementation of Bus interface
func (socketcan *SocketcanBus) Disconnect() error {
	return socketcan.bus.Disconnect()
}

// "Send" implementation of Bus interface
func (socketcan *SocketcanBus) Send(frame Frame) error {
	return socketcan.bus.Publish(
		can.Frame{
			ID:     frame.ID,
			Length: frame.DLC,
			Flags:  frame.Flags,
			Res0:   0,
			Res1:   0,
			Data:   frame.Data,
		})
}

// "Recv" implementation of Bus interface
func (socketcan *SocketcanBus) Recv(timeout time.Duration) (*Frame, error) {
	select {
	case frame := <-socketcan.rx:
		return &frame, nil
	case <-time.After(timeout):
		return nil, ErrRecvTimeout
	}
}

// brutella/can specific "Handle" implementation
func (socketcan *SocketcanBus) Handle(frame can.Frame) {
	// Convert brutella frame to local format, drop the frame if the queue
	// is full rather than blocking the receive goroutine
	select {
	case socketcan.rx <- Frame{ID: frame.ID & CanSffMask, DLC: frame.Length, Flags: frame.Flags, Data: frame.Data}:
	default:
	}
}

func NewSocketcanBus(channel string) (Bus, error) {
	bus, err := can.NewBusForInterfaceWithName(channel)
	if err != nil {
		return nil, err
	}
	return &SocketcanBus{bus: bus, rx: make(chan Frame, socketcanRxQueueSize)}, nil
}

func init() {
	RegisterDriver("socketcan", NewSocketcanBus)
}
