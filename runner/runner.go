package runner

import (
	"context"

	"vocalink/core"
)

const chanBuffer = 64

// Runner wires an ordered chain of handlers together with packet channels for
// one pipeline run. The last handler's output and all top-destined packets
// (stage failures) are exposed to the owner.
type Runner struct {
	handlers   []core.IHandler
	ctx        context.Context
	inputChan  chan *core.EventPacket
	outputChan chan *core.EventPacket
	topChan    chan *core.EventPacket
}

func NewRunner(handlers []core.IHandler) *Runner {
	return &Runner{
		handlers: handlers,
	}
}

// Start connects and starts every handler. ctx is the run context; cancelling
// it stops all handlers.
func (r *Runner) Start(ctx context.Context) error {
	r.ctx = ctx
	r.inputChan = make(chan *core.EventPacket, chanBuffer)
	r.outputChan = make(chan *core.EventPacket, chanBuffer)
	r.topChan = make(chan *core.EventPacket, chanBuffer)

	// Each handler's output feeds the next handler's input; the last one
	// feeds the capture channel.
	inputChans := make([]chan *core.EventPacket, len(r.handlers))
	inputChans[0] = r.inputChan
	for i := 1; i < len(r.handlers); i++ {
		inputChans[i] = make(chan *core.EventPacket, chanBuffer)
	}

	for i, handler := range r.handlers {
		var outputNextChan chan<- *core.EventPacket
		if i < len(r.handlers)-1 {
			outputNextChan = inputChans[i+1]
		} else {
			outputNextChan = r.outputChan
		}
		if err := handler.Initialize(inputChans[i], outputNextChan, r.topChan, ctx); err != nil {
			return err
		}
		if err := handler.Start(); err != nil {
			return err
		}
	}
	return nil
}

// Inject seeds the first handler with a packet.
func (r *Runner) Inject(packet *core.EventPacket) {
	select {
	case r.inputChan <- packet:
	case <-r.ctx.Done():
	}
}

// Output delivers every packet that traversed the whole chain, in order.
func (r *Runner) Output() <-chan *core.EventPacket {
	return r.outputChan
}

// Top delivers packets addressed to the pipeline owner, i.e. stage failures.
func (r *Runner) Top() <-chan *core.EventPacket {
	return r.topChan
}

// Stop cleans up all handlers. The run context must already be cancelled so
// handler loops have unblocked.
func (r *Runner) Stop() error {
	var firstErr error
	for _, handler := range r.handlers {
		if err := handler.Cleanup(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
