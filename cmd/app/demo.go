package main

import (
	"context"
	"fmt"
	"io"
	"msgqueue/internal/kernel"
	"msgqueue/internal/logger"
	"msgqueue/internal/msgq"
	"msgqueue/internal/svc"
	"msgqueue/internal/svc/logsvc"
	"msgqueue/internal/svc/sout"
	"msgqueue/internal/svc/sqlstore"
	"msgqueue/internal/util"
	"msgqueue/internal/util/future"
	"msgqueue/internal/widget"
	"time"
)

const ButtonService = "button"

var pongOperations = kernel.Ops(svc.Ping{})

func pongHandler(ctx *kernel.ActCtx, msg msgq.Inbound) kernel.HandlerSignal {
	ping := msg.Payload.(svc.Ping)
	svc.Logf(ctx, logger.DEBUG, "ping %d from %v", ping.Seq, msg.From)
	ctx.Reply(msg, svc.Pong{Seq: ping.Seq, From: ctx.Self.ID()})
	return kernel.Continue{}
}

// system is everything the binary registers on one kernel.
type system struct {
	k      *kernel.Kernel
	store  *sqlstore.Service
	button widget.ButtonID
}

func boot(cfg util.Configuration, out io.Writer) (*system, error) {
	k := kernel.NewKernel(nil)
	k.StatusInterval = cfg.StatusInterval
	s := &system{k: k}

	// system out service
	so := &sout.SOut{Out: out}
	if _, err := k.RegisterService(svc.SOutService, sout.Operations, so.Handler); err != nil {
		return s.fail(err)
	}

	// log service
	ls := logsvc.NewLogService(logger.ParseLevel(cfg.LogLevel))
	if _, err := k.RegisterService(svc.LogService, logsvc.Operations, ls.Handler); err != nil {
		return s.fail(err)
	}

	if _, err := k.RegisterService(svc.PongService, pongOperations, pongHandler); err != nil {
		return s.fail(err)
	}

	// sql store, only when configured
	if cfg.Sql.Driver != "" {
		store, err := sqlstore.Open(cfg.Sql.Driver, cfg.Sql.DSN)
		if err != nil {
			return s.fail(err)
		}
		s.store = store
		id, err := k.RegisterService(svc.SqlService, sqlstore.Operations, store.Handler)
		if err != nil {
			return s.fail(err)
		}
		// roll back an open transaction while the service and its state
		// still exist; Run shuts the kernel down on its own
		if h, ok := k.Handle(id); ok {
			k.BeforeShutdown(func() { sqlstore.Release(h) })
		}
	}

	button, err := widget.RegisterButton(k, ButtonService, cfg.Widget.ButtonLabel)
	if err != nil {
		return s.fail(err)
	}
	s.button = button
	return s, nil
}

func (s *system) fail(err error) (*system, error) {
	s.close()
	return nil, err
}

func (s *system) close() {
	s.k.Shutdown()
	if s.store != nil {
		_ = s.store.Close()
	}
}

// demo runs one exchange against every registered service through a
// temporary client service and prints what came back.
func (s *system) demo(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client, err := msgq.Register(s.k.Registry())
	if err != nil {
		return err
	}
	defer client.Close()
	h := client.Handle()

	byName := func(name string) msgq.ServiceID {
		id, _ := s.k.ServiceByName(name)
		return id
	}
	printf := func(format string, args ...any) error {
		resp, err := msgq.Call[svc.SOutResp](ctx, h, byName(svc.SOutService), svc.SOutPrintln{Str: format, Args: args})
		if err != nil {
			return err
		}
		return resp.Err
	}

	// a burst of pings in flight at once, answered in any order
	pings := make([]*future.Future[any], 3)
	for i := range pings {
		pings[i] = h.Post(byName(svc.PongService), svc.Ping{Seq: i + 1}).Future(ctx)
	}
	pongs, err := future.All(pings...).AwaitContext(ctx)
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	for _, p := range pongs {
		pong, ok := p.(svc.Pong)
		if !ok {
			return fmt.Errorf("ping: %w: %T", msgq.ErrUnexpectedResponse, p)
		}
		if err := printf("pong %d from %v", pong.Seq, pong.From); err != nil {
			return err
		}
	}

	state, err := msgq.Call[widget.ButtonState](ctx, h, s.button.ID(), widget.Press{})
	if err != nil {
		return fmt.Errorf("press: %w", err)
	}
	label, _ := s.button.Label()
	if err := printf("button %q touched=%t", label, state.Touched); err != nil {
		return err
	}

	if s.store != nil {
		res, err := msgq.Call[svc.QueryResult](ctx, h, byName(svc.SqlService), svc.SqlQuery{Sql: "SELECT 1 AS one"})
		if err != nil {
			return fmt.Errorf("sql: %w", err)
		}
		if err := printf("sql %s store: %d row(s)", s.store.Driver(), len(res.Rows)); err != nil {
			return err
		}
	}

	views, err := msgq.Call[[]kernel.ServiceView](ctx, h, byName(kernel.KernelService), kernel.Status{})
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	return printf("%d services running", len(views))
}
