// Package fakemotor provides an in-memory CAN bus with a single emulated
// CiA402 drive behind it, used by the package tests. The emulation
// answers expedited SDO requests against an object map and models the
// set-point acknowledge handshake : asserting bit 4 of the control word
// latches bit 12 of the status word and jumps the actual position to the
// target, clearing bit 4 releases bit 12 again. Fault behaviour (silence,
// aborts, noise frames) is scriptable per test.
package fakemotor

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/erobman/canopen-pp/pkg/can"
)

type objectKey struct {
	index    uint16
	subindex uint8
}

type Bus struct {
	mu      sync.Mutex
	nodeId  uint8
	objects map[objectKey]uint32
	rx      []can.Frame
	sent    []can.Frame

	silent        bool
	neverAck      bool
	holdAck       bool
	dropControl   uint32
	dropControlOn bool
	abortOn       map[objectKey]uint32
	controlWrites []uint32
}

// New creates a bus with one emulated drive at nodeId, pre-populated
// with the identity of a standard CiA402 servo
func New(nodeId uint8) *Bus {
	bus := &Bus{
		nodeId:  nodeId,
		objects: make(map[objectKey]uint32),
		abortOn: make(map[objectKey]uint32),
	}
	bus.objects[objectKey{0x1000, 0}] = 0x00020192
	bus.objects[objectKey{0x1001, 0}] = 0
	bus.objects[objectKey{0x1018, 1}] = 0x5A65726F
	bus.objects[objectKey{0x1018, 2}] = 0x00000015
	bus.objects[objectKey{0x1018, 3}] = 0x00010000
	bus.objects[objectKey{0x1018, 4}] = 0x00004242
	bus.objects[objectKey{0x6040, 0}] = 0
	bus.objects[objectKey{0x6041, 0}] = 0
	bus.objects[objectKey{0x6060, 0}] = 0
	bus.objects[objectKey{0x6064, 0}] = 0
	bus.objects[objectKey{0x607A, 0}] = 0
	bus.objects[objectKey{0x6081, 0}] = 0
	bus.objects[objectKey{0x6083, 0}] = 0
	bus.objects[objectKey{0x6084, 0}] = 0
	return bus
}

func (bus *Bus) Connect(...any) error { return nil }
func (bus *Bus) Disconnect() error    { return nil }

// Send handles a frame from the master. Frames addressed to the drive's
// SDO receive COB-ID produce a queued response unless scripted otherwise.
func (bus *Bus) Send(frame can.Frame) error {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.sent = append(bus.sent, frame)
	if frame.ID != 0x600+uint32(bus.nodeId) {
		return nil
	}
	if bus.silent {
		return nil
	}
	index := binary.LittleEndian.Uint16(frame.Data[1:3])
	subindex := frame.Data[3]
	key := objectKey{index, subindex}

	response := can.NewFrame(0x580+uint32(bus.nodeId), 0, 8)
	binary.LittleEndian.PutUint16(response.Data[1:3], index)
	response.Data[3] = subindex

	if code, ok := bus.abortOn[key]; ok {
		response.Data[0] = 0x80
		binary.LittleEndian.PutUint32(response.Data[4:8], code)
		bus.rx = append(bus.rx, response)
		return nil
	}

	switch frame.Data[0] & 0xE0 {
	case 0x40: // upload request
		value, ok := bus.objects[key]
		if !ok {
			response.Data[0] = 0x80
			binary.LittleEndian.PutUint32(response.Data[4:8], 0x06020000)
			break
		}
		response.Data[0] = 0x43
		binary.LittleEndian.PutUint32(response.Data[4:8], value)
	case 0x20: // expedited download
		value := binary.LittleEndian.Uint32(frame.Data[4:8])
		if index == 0x6040 {
			bus.controlWrites = append(bus.controlWrites, value)
			if bus.dropControlOn && value == bus.dropControl {
				return nil
			}
		}
		bus.write(key, value)
		response.Data[0] = 0x60
	default:
		return nil
	}
	bus.rx = append(bus.rx, response)
	return nil
}

func (bus *Bus) write(key objectKey, value uint32) {
	bus.objects[key] = value
	if key.index != 0x6040 {
		return
	}
	statusKey := objectKey{0x6041, 0}
	if value&0x10 != 0 {
		// New set-point latched : acknowledge and jump to the target
		if !bus.neverAck {
			bus.objects[statusKey] |= 0x1000
			bus.objects[objectKey{0x6064, 0}] = bus.objects[objectKey{0x607A, 0}]
		}
	} else if !bus.holdAck {
		bus.objects[statusKey] &^= 0x1000
	}
}

// Recv hands the master the next queued response, or sleeps the slice
// and reports an empty bus
func (bus *Bus) Recv(timeout time.Duration) (*can.Frame, error) {
	bus.mu.Lock()
	if len(bus.rx) > 0 {
		frame := bus.rx[0]
		bus.rx = bus.rx[1:]
		bus.mu.Unlock()
		return &frame, nil
	}
	bus.mu.Unlock()
	time.Sleep(timeout)
	return nil, can.ErrRecvTimeout
}

// Object returns the current value of an emulated dictionary entry
func (bus *Bus) Object(index uint16, subindex uint8) uint32 {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	return bus.objects[objectKey{index, subindex}]
}

// SetObject overrides an emulated dictionary entry
func (bus *Bus) SetObject(index uint16, subindex uint8, value uint32) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.objects[objectKey{index, subindex}] = value
}

// SetSilent makes the drive drop all requests without responding
func (bus *Bus) SetSilent(silent bool) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.silent = silent
}

// SetNeverAck keeps status bit 12 low even when a set-point is asserted
func (bus *Bus) SetNeverAck(neverAck bool) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.neverAck = neverAck
}

// SetHoldAck keeps status bit 12 high after the set-point bit clears
func (bus *Bus) SetHoldAck(holdAck bool) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.holdAck = holdAck
}

// DropControlWrite makes the drive swallow control word writes carrying
// value, without acknowledging them
func (bus *Bus) DropControlWrite(value uint32) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.dropControl = value
	bus.dropControlOn = true
}

// AbortOn makes any access to (index, subindex) answer with an SDO abort
// carrying code
func (bus *Bus) AbortOn(index uint16, subindex uint8, code uint32) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.abortOn[objectKey{index, subindex}] = code
}

// Inject queues an arbitrary frame for the master to receive
func (bus *Bus) Inject(frame can.Frame) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.rx = append(bus.rx, frame)
}

// Sent returns a copy of every frame the master transmitted
func (bus *Bus) Sent() []can.Frame {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	sent := make([]can.Frame, len(bus.sent))
	copy(sent, bus.sent)
	return sent
}

// ControlWrites returns the control word values written so far, in order
func (bus *Bus) ControlWrites() []uint32 {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	writes := make([]uint32, len(bus.controlWrites))
	copy(writes, bus.controlWrites)
	return writes
}
