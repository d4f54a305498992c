package can

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSerializeFrameRoundTrip(t *testing.T) {
	frame := NewFrame(0x602, 0, 8)
	copy(frame.Data[:], []byte{0x40, 0x00, 0x10, 0x00, 0x11, 0x22, 0x33, 0x44})
	serialized, err := serializeFrame(frame)
	assert.Nil(t, err)
	// 4 byte length header followed by the fixed size frame
	assert.Equal(t, 4+14, len(serialized))
	decoded, err := deserializeFrame(serialized[4:])
	assert.Nil(t, err)
	assert.Equal(t, frame, *decoded)
}

func TestNewBusUnknownDriver(t *testing.T) {
	_, err := NewBus("bogus", "can0")
	assert.NotNil(t, err)
}

func TestNewBusVirtual(t *testing.T) {
	bus, err := NewBus("virtual", "localhost:18888")
	assert.Nil(t, err)
	assert.IsType(t, &VirtualCanBus{}, bus)
}

func TestVirtualLoopback(t *testing.T) {
	bus := &VirtualCanBus{}
	bus.SetReceiveOwn(true)
	frame := NewFrame(0x77, 0, 2)
	frame.Data[0] = 0xAB
	err := bus.Send(frame)
	assert.Nil(t, err)
	received, err := bus.Recv(10 * time.Millisecond)
	assert.Nil(t, err)
	assert.Equal(t, frame, *received)
	// Queue drained and no connection behind it
	_, err = bus.Recv(10 * time.Millisecond)
	assert.NotNil(t, err)
}
