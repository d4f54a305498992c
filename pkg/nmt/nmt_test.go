package nmt_test

import (
	"testing"
	"time"

	"github.com/erobman/canopen-pp/internal/fakemotor"
	"github.com/erobman/canopen-pp/pkg/nmt"
	"github.com/stretchr/testify/assert"
)

func createControllerTest() (*nmt.Controller, *fakemotor.Bus) {
	bus := fakemotor.New(2)
	controller := nmt.NewController(bus)
	controller.StopSettle = time.Millisecond
	controller.ResetSettle = time.Millisecond
	controller.StartSettle = time.Millisecond
	return controller, bus
}

func TestSendCommand(t *testing.T) {
	controller, bus := createControllerTest()
	err := controller.Send(nmt.CommandResetNode, 12)
	assert.Nil(t, err)
	sent := bus.Sent()
	assert.Len(t, sent, 1)
	assert.Equal(t, nmt.ServiceId, sent[0].ID)
	assert.Equal(t, uint8(2), sent[0].DLC)
	assert.Equal(t, uint8(nmt.CommandResetNode), sent[0].Data[0])
	assert.Equal(t, uint8(12), sent[0].Data[1])
}

func TestSendRejectsBadArguments(t *testing.T) {
	controller, bus := createControllerTest()
	err := controller.Send(nmt.Command(99), 1)
	assert.ErrorIs(t, err, nmt.ErrIllegalArgument)
	err = controller.Send(nmt.CommandEnterOperational, 200)
	assert.ErrorIs(t, err, nmt.ErrIllegalArgument)
	assert.Len(t, bus.Sent(), 0)
}

func TestStartupSequence(t *testing.T) {
	controller, bus := createControllerTest()
	err := controller.Startup(nmt.Broadcast)
	assert.Nil(t, err)
	sent := bus.Sent()
	assert.Len(t, sent, 3)
	// Stop, reset, start, all broadcast
	assert.Equal(t, uint8(nmt.CommandEnterStopped), sent[0].Data[0])
	assert.Equal(t, uint8(nmt.CommandResetNode), sent[1].Data[0])
	assert.Equal(t, uint8(nmt.CommandEnterOperational), sent[2].Data[0])
	for _, frame := range sent {
		assert.Equal(t, nmt.ServiceId, frame.ID)
		assert.Equal(t, nmt.Broadcast, frame.Data[1])
	}
}

func TestStartupAbortedByStop(t *testing.T) {
	controller, bus := createControllerTest()
	controller.ResetSettle = time.Second
	stop := make(chan struct{})
	controller.SetStop(stop)
	close(stop)
	err := controller.Startup(5)
	assert.ErrorIs(t, err, nmt.ErrStopped)
	// Sequence stops at the first settle wait
	assert.Len(t, bus.Sent(), 1)
}
