package logsvc

import (
	"fmt"
	"msgqueue/internal/kernel"
	"msgqueue/internal/logger"
	"msgqueue/internal/msgq"
	"msgqueue/internal/svc"
)

var Operations = kernel.Ops(
	svc.LogConfigure{},
	svc.LogfMessage{},
	svc.LogMessage{},
)

// LogService writes log lines on behalf of other services, so their output
// shares one level and one sink.
type LogService struct {
	log *logger.Logger
}

func NewLogService(level logger.Level) *LogService {
	return &LogService{log: logger.NewLogger("service", level)}
}

func (l *LogService) Handler(ctx *kernel.ActCtx, msg msgq.Inbound) kernel.HandlerSignal {
	switch payload := msg.Payload.(type) {
	case svc.LogConfigure:
		l.log.SetLevel(payload.Level)
		ctx.Reply(msg, nil)
	case svc.LogfMessage:
		l.log.Log(payload.Level, fmt.Sprintf(payload.Message, payload.Args...), "source", source(payload.Source, msg))
		ctx.Reply(msg, nil)
	case svc.LogMessage:
		l.log.Log(payload.Level, payload.Message, "source", source(payload.Source, msg))
		ctx.Reply(msg, nil)
	default:
		ctx.Reject(msg)
	}
	return kernel.Continue{}
}

func (l *LogService) Level() logger.Level {
	return l.log.Level()
}

func source(declared msgq.ServiceID, msg msgq.Inbound) string {
	if declared != 0 {
		return declared.String()
	}
	return msg.From.String()
}
