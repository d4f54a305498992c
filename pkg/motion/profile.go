package motion

// CiA402 control word command values for the power state machine
const (
	ControlShutdown        uint32 = 0x06
	ControlSwitchOn        uint32 = 0x07
	ControlEnableOperation uint32 = 0x0F
	ControlFaultReset      uint32 = 0x80
)

// Control word bit 4 : new set-point
const controlNewSetPoint uint32 = 0x0010

// Status word bits
const (
	statusSetPointAck   uint32 = 0x1000 // bit 12, set-point acknowledged
	StatusTargetReached uint32 = 0x0400 // bit 10
)

// Modes of operation (object 0x6060)
const modeProfilePosition uint32 = 1
