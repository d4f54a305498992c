package motion_test

import (
	"testing"
	"time"

	"github.com/erobman/canopen-pp/internal/fakemotor"
	"github.com/erobman/canopen-pp/internal/poll"
	"github.com/erobman/canopen-pp/pkg/motion"
	"github.com/erobman/canopen-pp/pkg/od"
	"github.com/erobman/canopen-pp/pkg/sdo"
	"github.com/stretchr/testify/assert"
)

const nodeIdTest uint8 = 2

func createControllerTest() (*motion.Controller, *fakemotor.Bus) {
	bus := fakemotor.New(nodeIdTest)
	client := sdo.NewClient(bus, od.NewCatalog())
	client.SetTimeout(100 * time.Millisecond)
	controller := motion.NewController(client, nodeIdTest)
	controller.EnableSettle = 0
	controller.ReadbackDelay = 0
	controller.PollInterval = time.Millisecond
	controller.StepTimeout = 100 * time.Millisecond
	return controller, bus
}

func TestEnableSequence(t *testing.T) {
	controller, bus := createControllerTest()
	err := controller.Enable()
	assert.Nil(t, err)
	assert.Equal(t, uint32(1), bus.Object(od.EntryModesOfOperation, 0))
	assert.Equal(t, []uint32{
		motion.ControlFaultReset,
		motion.ControlShutdown,
		motion.ControlSwitchOn,
		motion.ControlEnableOperation,
	}, bus.ControlWrites())
}

func TestEnableStopsAfterLostWrite(t *testing.T) {
	controller, bus := createControllerTest()
	bus.DropControlWrite(motion.ControlShutdown)
	err := controller.Enable()
	assert.ErrorIs(t, err, sdo.ErrTimeout)
	// The sequence must not run past the unacknowledged step
	assert.Equal(t, []uint32{
		motion.ControlFaultReset,
		motion.ControlShutdown,
	}, bus.ControlWrites())
}

func TestMoveCompletes(t *testing.T) {
	controller, bus := createControllerTest()
	result, err := controller.Move(motion.Command{
		TargetPosition:      5000,
		ProfileVelocity:     5566,
		ProfileAcceleration: 5566,
		ProfileDeceleration: 5566,
	})
	assert.Nil(t, err)
	assert.Equal(t, motion.PhaseComplete, result.Phase)
	assert.Equal(t, motion.PhaseComplete, controller.Phase())
	assert.True(t, result.Ready)
	assert.True(t, result.Moved)
	assert.Equal(t, int32(5000), result.Delta)
	assert.Equal(t, uint32(5000), bus.Object(od.EntryTargetPosition, 0))
	assert.Equal(t, uint32(5566), bus.Object(od.EntryProfileVelocity, 0))
	// Set-point bit asserted then released
	assert.Equal(t, []uint32{0x0010, 0x0000}, bus.ControlWrites())
}

func TestMoveRejectsOutOfRange(t *testing.T) {
	controller, bus := createControllerTest()
	// Two revolutions at 524288 counts each
	_, err := controller.Move(motion.Command{TargetPosition: 1048577})
	assert.ErrorIs(t, err, motion.ErrOutOfRange)
	_, err = controller.Move(motion.Command{TargetPosition: -1048577})
	assert.ErrorIs(t, err, motion.ErrOutOfRange)
	// Rejection happens before anything reaches the bus
	assert.Len(t, bus.Sent(), 0)

	result, err := controller.Move(motion.Command{TargetPosition: 1048576})
	assert.Nil(t, err)
	assert.True(t, result.Moved)
}

func TestMoveAckTimeout(t *testing.T) {
	controller, bus := createControllerTest()
	bus.SetNeverAck(true)
	_, err := controller.Move(motion.Command{TargetPosition: 5000})
	assert.ErrorIs(t, err, motion.ErrStepTimeout)
	assert.Equal(t, motion.PhaseFailed, controller.Phase())
	// The set-point bit is released again after the failed wait
	writes := bus.ControlWrites()
	assert.Len(t, writes, 2)
	assert.Equal(t, uint32(0), writes[len(writes)-1]&0x0010)
}

func TestMoveReadyTimeout(t *testing.T) {
	controller, bus := createControllerTest()
	bus.SetHoldAck(true)
	result, err := controller.Move(motion.Command{TargetPosition: 5000})
	// The move itself is committed, only the readiness confirmation is lost
	assert.Nil(t, err)
	assert.False(t, result.Ready)
	assert.True(t, result.Moved)
	assert.Equal(t, motion.PhaseComplete, result.Phase)
}

func TestMoveTwiceRestartsSequence(t *testing.T) {
	controller, bus := createControllerTest()
	bus.SetNeverAck(true)
	_, err := controller.Move(motion.Command{TargetPosition: 5000})
	assert.ErrorIs(t, err, motion.ErrStepTimeout)

	bus.SetNeverAck(false)
	result, err := controller.Move(motion.Command{TargetPosition: 10000})
	assert.Nil(t, err)
	assert.Equal(t, motion.PhaseComplete, result.Phase)
	assert.Equal(t, uint32(10000), bus.Object(od.EntryPositionActual, 0))
}

func TestMoveSmallDelta(t *testing.T) {
	controller, _ := createControllerTest()
	result, err := controller.Move(motion.Command{TargetPosition: 50})
	assert.Nil(t, err)
	assert.True(t, result.Ready)
	assert.False(t, result.Moved)
	assert.Equal(t, int32(50), result.Delta)
}

func TestMoveAbortedByStop(t *testing.T) {
	controller, bus := createControllerTest()
	bus.SetNeverAck(true)
	controller.StepTimeout = 5 * time.Second
	stop := make(chan struct{})
	controller.SetStop(stop)
	close(stop)
	start := time.Now()
	_, err := controller.Move(motion.Command{TargetPosition: 5000})
	assert.ErrorIs(t, err, poll.ErrStopped)
	assert.Less(t, time.Since(start), 1*time.Second)
}

func TestShutdown(t *testing.T) {
	controller, bus := createControllerTest()
	err := controller.Shutdown()
	assert.Nil(t, err)
	assert.Equal(t, uint32(motion.ControlShutdown), bus.Object(od.EntryControlWord, 0))
}
