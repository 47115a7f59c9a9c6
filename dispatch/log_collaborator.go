package dispatch

import (
	"github.com/cyberinferno/telemetry-gateway/logger"
	"github.com/cyberinferno/telemetry-gateway/protocol"
)

// LogCollaborator is a Collaborator that structured-logs every notification.
// It is the default downstream when no persistence or alerting collaborator
// is configured, and a useful companion to them in any deployment.
type LogCollaborator struct {
	Log logger.Logger
}

// NewLogCollaborator creates a collaborator that logs all notifications
// through the given logger.
//
// Parameters:
//   - log: The logger to write notifications to
//
// Returns:
//   - A new LogCollaborator
func NewLogCollaborator(log logger.Logger) *LogCollaborator {
	return &LogCollaborator{Log: log}
}

// DeviceIdentified implements Collaborator.
func (l *LogCollaborator) DeviceIdentified(identity DeviceIdentity) error {
	l.Log.Info("device identified",
		logger.Field{Key: "conn_id", Value: identity.ConnectionID},
		logger.Field{Key: "device_id", Value: identity.DeviceID},
		logger.Field{Key: "device_name", Value: identity.DeviceName})
	return nil
}

// FrameReceived implements Collaborator.
func (l *LogCollaborator) FrameReceived(identity DeviceIdentity, category Category, frame protocol.Frame) error {
	l.Log.Debug("frame received",
		logger.Field{Key: "conn_id", Value: identity.ConnectionID},
		logger.Field{Key: "device_id", Value: identity.DeviceID},
		logger.Field{Key: "category", Value: category.String()},
		logger.Field{Key: "command", Value: frame.CommandWord},
		logger.Field{Key: "seq", Value: frame.SequenceNumber})
	return nil
}

// Disconnected implements Collaborator.
func (l *LogCollaborator) Disconnected(identity DeviceIdentity, stats DisconnectStats) error {
	l.Log.Info("device disconnected",
		logger.Field{Key: "conn_id", Value: identity.ConnectionID},
		logger.Field{Key: "device_id", Value: identity.DeviceID},
		logger.Field{Key: "messages", Value: stats.MessageCount},
		logger.Field{Key: "duration", Value: stats.Duration.String()})
	return nil
}
