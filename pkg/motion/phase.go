package motion

// Phase of the immediate-update handshake for one motion command.
// Exactly one phase value is live per command, owned by the Controller.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseParametersSent
	PhaseCommandAsserted
	PhaseAwaitingAck
	PhaseAckReceived
	PhaseCommandCleared
	PhaseAwaitingReady
	PhaseComplete
	PhaseFailed
)

var phaseDescription = map[Phase]string{
	PhaseIdle:            "IDLE",
	PhaseParametersSent:  "PARAMETERS-SENT",
	PhaseCommandAsserted: "COMMAND-ASSERTED",
	PhaseAwaitingAck:     "AWAITING-ACK",
	PhaseAckReceived:     "ACK-RECEIVED",
	PhaseCommandCleared:  "COMMAND-CLEARED",
	PhaseAwaitingReady:   "AWAITING-READY",
	PhaseComplete:        "COMPLETE",
	PhaseFailed:          "FAILED",
}

func (phase Phase) String() string {
	description, ok := phaseDescription[phase]
	if !ok {
		return "UNKNOWN"
	}
	return description
}
