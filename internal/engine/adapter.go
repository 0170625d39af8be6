package engine

import (
	"github.com/SchweizerischeBundesbahnen/sbb-rasta-stack-sub000/internal/diag"
	"github.com/SchweizerischeBundesbahnen/sbb-rasta-stack-sub000/internal/statemachine"
)

// RedundancyAdapter is the lossy, duplicating lower channel the core
// engine treats the redundancy layer as, per spec §6.
type RedundancyAdapter interface {
	OpenRedundancyChannel(channelID uint32)
	CloseRedundancyChannel(channelID uint32)
	SendMessage(channelID uint32, bytes []byte)
	ReadMessage(channelID uint32) ([]byte, bool)
}

// SystemAdapter is the monotonic-timer / randomness / fatal-error
// collaborator the engine consumes, per spec §6.
type SystemAdapter interface {
	GetTimerValue() uint32
	GetTimerGranularity() uint32
	GetRandomU32() uint32
	FatalError(kind string)
}

// RedDiagnosticData is the verbatim pass-through payload spec §4.G
// describes for diagnostic_notification → red_diagnostic_notification.
type RedDiagnosticData struct {
	RedChannelID    uint32
	TrChannelID     uint32
	TrDiagData      []byte
}

// ApplicationNotifier receives the four outbound notifications of
// spec §4.G.
type ApplicationNotifier interface {
	MessageReceived(cid int)
	ConnectionStateNotification(cid int, state statemachine.State, bufferUtil, oppositeBufferSize int, discReason statemachine.DisconnectReason, detailedReason uint16)
	SrDiagnosticNotification(data diag.ConnectionDiagnosticData)
	RedDiagnosticNotification(data RedDiagnosticData)
}
