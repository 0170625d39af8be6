package demo

import (
	"github.com/sirupsen/logrus"

	"github.com/SchweizerischeBundesbahnen/sbb-rasta-stack-sub000/internal/diag"
	"github.com/SchweizerischeBundesbahnen/sbb-rasta-stack-sub000/internal/engine"
	"github.com/SchweizerischeBundesbahnen/sbb-rasta-stack-sub000/internal/statemachine"
)

// LoggingNotifier implements rasta.ApplicationNotifier by logging each
// notification through a tagged logrus.Entry, standing in for a real
// embedder's event handling.
type LoggingNotifier struct {
	log *logrus.Entry
}

// NewLoggingNotifier tags every log line with name, e.g. "client" or
// "server", so the two demo stacks' output is distinguishable.
func NewLoggingNotifier(log *logrus.Entry, name string) *LoggingNotifier {
	return &LoggingNotifier{log: log.WithField("side", name)}
}

func (n *LoggingNotifier) MessageReceived(cid int) {
	n.log.WithField("connection_id", cid).Info("message received")
}

func (n *LoggingNotifier) ConnectionStateNotification(cid int, state statemachine.State, bufferUtil, oppositeBufferSize int, discReason statemachine.DisconnectReason, detailedReason uint16) {
	n.log.WithFields(logrus.Fields{
		"connection_id":     cid,
		"state":             state,
		"buffer_util":       bufferUtil,
		"opposite_buf_size": oppositeBufferSize,
		"disc_reason":       discReason,
		"detailed_reason":   detailedReason,
	}).Info("connection state changed")
}

func (n *LoggingNotifier) SrDiagnosticNotification(data diag.ConnectionDiagnosticData) {
	n.log.WithFields(logrus.Fields{
		"connection_id": data.ConnectionID,
		"counters":      data.Counters,
	}).Info("diagnostic window closed")
}

func (n *LoggingNotifier) RedDiagnosticNotification(data engine.RedDiagnosticData) {
	n.log.WithFields(logrus.Fields{
		"red_channel_id": data.RedChannelID,
		"tr_channel_id":  data.TrChannelID,
	}).Debug("redundancy diagnostic notification")
}
