package sout

import (
	"fmt"
	"io"
	"msgqueue/internal/kernel"
	"msgqueue/internal/msgq"
	"msgqueue/internal/svc"
	"os"
	"sync"
)

var Operations = kernel.Ops(svc.SOutPrintln{})

// SOut prints lines to Out, or to stdout when Out is nil.
type SOut struct {
	mu  sync.Mutex
	Out io.Writer
}

func (s *SOut) Handler(ctx *kernel.ActCtx, msg msgq.Inbound) kernel.HandlerSignal {
	switch payload := msg.Payload.(type) {
	case svc.SOutPrintln:
		ctx.Reply(msg, s.println(payload))
	default:
		ctx.Reject(msg)
	}
	return kernel.Continue{}
}

func (s *SOut) println(p svc.SOutPrintln) svc.SOutResp {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.Out
	if out == nil {
		out = os.Stdout
	}
	n, err := fmt.Fprintf(out, p.Str+"\n", p.Args...)
	return svc.SOutResp{BytesWritten: n, Err: err}
}
