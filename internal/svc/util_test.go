package svc_test

import (
	"bytes"
	"testing"

	"msgqueue/internal/kernel"
	"msgqueue/internal/logger"
	"msgqueue/internal/msgq"
	"msgqueue/internal/svc"
	"msgqueue/internal/svc/sout"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHelpersResolveByName(t *testing.T) {
	k := kernel.NewKernel(nil)
	t.Cleanup(k.Shutdown)

	var buf bytes.Buffer
	out := &sout.SOut{Out: &buf}
	_, err := k.RegisterService(svc.SOutService, sout.Operations, out.Handler)
	require.NoError(t, err)

	logged := make(chan svc.LogfMessage, 1)
	_, err = k.RegisterService(svc.LogService, kernel.Ops(svc.LogfMessage{}), func(ctx *kernel.ActCtx, msg msgq.Inbound) kernel.HandlerSignal {
		logged <- msg.Payload.(svc.LogfMessage)
		ctx.Reply(msg, nil)
		return kernel.Continue{}
	})
	require.NoError(t, err)

	results := make(chan error, 2)
	caller, err := k.RegisterActor("caller", func(ctx *kernel.ActCtx, msg msgq.Inbound) kernel.HandlerSignal {
		results <- svc.SendStdOut(ctx, "hi %s", "there")
		_, err := svc.BlockingSend(ctx, "nobody", "x")
		results <- err
		svc.Send(ctx, "nobody", "dropped")
		svc.Logf(ctx, logger.INFO, "done %d", 1)
		ctx.Reply(msg, nil)
		return kernel.Continue{}
	})
	require.NoError(t, err)

	client, err := msgq.Register(k.Registry())
	require.NoError(t, err)
	defer client.Close()
	_, err = client.Handle().Post(caller, "go").Await(t.Context())
	require.NoError(t, err)

	assert.NoError(t, <-results)
	assert.ErrorIs(t, <-results, msgq.ErrNoSuchService)
	assert.Equal(t, "hi there\n", buf.String())

	entry := <-logged
	assert.Equal(t, caller, entry.Source)
	assert.Equal(t, logger.INFO, entry.Level)
	assert.Equal(t, "done %d", entry.Message)
}
