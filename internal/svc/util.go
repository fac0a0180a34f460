package svc

import (
	"fmt"
	"msgqueue/internal/kernel"
	"msgqueue/internal/logger"
	"msgqueue/internal/msgq"
)

// BlockingSend resolves serviceName and waits for its reply.
func BlockingSend(ctx *kernel.ActCtx, serviceName string, message any) (any, error) {
	id, ok := ctx.K.ServiceByName(serviceName)
	if !ok {
		return nil, fmt.Errorf("service not found: %s: %w", serviceName, msgq.ErrNoSuchService)
	}
	return ctx.SendSync(id, message)
}

// Send posts message to serviceName without waiting. Unknown names are
// ignored.
func Send(ctx *kernel.ActCtx, serviceName string, message any) {
	if id, ok := ctx.K.ServiceByName(serviceName); ok {
		_ = ctx.SendAsync(id, message)
	}
}

func SendStdOut(ctx *kernel.ActCtx, str string, args ...any) error {
	_, err := BlockingSend(ctx, SOutService, SOutPrintln{Str: str, Args: args})
	return err
}

// Logf forwards a formatted line to the log service on behalf of the caller.
func Logf(ctx *kernel.ActCtx, level logger.Level, format string, args ...any) {
	Send(ctx, LogService, LogfMessage{Source: ctx.Self.ID(), Level: level, Message: format, Args: args})
}
