package audit

import (
	"context"

	"github.com/weiawesome/wes-io-channels/pkg/log"
)

// Audit actions for channel-service.
const (
	ActionJoinRoom       = "channel.join_room"
	ActionCreateRoom     = "channel.create_room"
	ActionTokenIssued    = "stream.token_issued"
	ActionPublishAllowed = "stream.publish_allowed"
	ActionPublishDenied  = "stream.publish_denied"
	ActionStreamStopped  = "stream.stopped"
	ActionStopByMember   = "stream.stop_by_member"
)

// Field constants for audit entries.
const (
	FieldAction = "action"
	FieldDetail = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action string, userID string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Msg(msg)
}

// LogWithDetail emits an audit log with extra detail field.
func LogWithDetail(ctx context.Context, action string, userID string, detail string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Str(FieldDetail, detail).
		Msg(msg)
}
