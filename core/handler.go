package core

import "context"

// IService is the lifecycle contract for external stage adapters (ASR, LLM,
// TTS, VAD back-ends).
type IService interface {
	Init(ctx context.Context) error
	Cleanup() error
}

// IHandler is one stage of a pipeline run. Handlers are connected in a chain
// by the runner: each consumes packets from its input channel and forwards
// packets (its own output plus everything it received) to the next handler.
type IHandler interface {
	Initialize(
		inputChan <-chan *EventPacket,
		outputNextChan chan<- *EventPacket,
		outputTopChan chan<- *EventPacket,
		ctx context.Context,
	) error
	Start() error
	HandleEvent(packet *EventPacket) error
	Cleanup() error
}

// BaseHandler carries the channel plumbing shared by every stage handler.
// The embedding handler sets Name and RunSeq at construction and implements
// Start/HandleEvent.
type BaseHandler struct {
	Name           string
	RunSeq         int64
	Ctx            context.Context
	Logger         *Logger
	InputChan      <-chan *EventPacket
	outputNextChan chan<- *EventPacket
	outputTopChan  chan<- *EventPacket
}

func NewBaseHandler(name string, runSeq int64, logger *Logger) BaseHandler {
	return BaseHandler{Name: name, RunSeq: runSeq, Logger: logger}
}

func (h *BaseHandler) Initialize(
	inputChan <-chan *EventPacket,
	outputNextChan chan<- *EventPacket,
	outputTopChan chan<- *EventPacket,
	ctx context.Context,
) error {
	h.InputChan = inputChan
	h.outputNextChan = outputNextChan
	h.outputTopChan = outputTopChan
	h.Ctx = ctx
	return nil
}

func (h *BaseHandler) Cleanup() error {
	return nil
}

// SendPacket forwards a packet according to its destination. It never blocks
// past run cancellation, so a cancelled run stops emitting within one packet.
func (h *BaseHandler) SendPacket(packet *EventPacket) {
	var out chan<- *EventPacket
	switch packet.Destination {
	case EventRelayDestinationTopService:
		out = h.outputTopChan
	default:
		out = h.outputNextChan
	}
	select {
	case out <- packet:
	case <-h.Ctx.Done():
	}
}

// Emit sends an event of this handler's own making down the chain, tagged
// with the run sequence.
func (h *BaseHandler) Emit(event IEvent) {
	packet := NewEventPacket(event, EventRelayDestinationNextService, h.Name)
	packet.RunSeq = h.RunSeq
	h.SendPacket(packet)
}

// EmitTop sends an event straight to the pipeline owner, bypassing the rest
// of the chain. Used for stage failures.
func (h *BaseHandler) EmitTop(event IEvent) {
	packet := NewEventPacket(event, EventRelayDestinationTopService, h.Name)
	packet.RunSeq = h.RunSeq
	h.SendPacket(packet)
}

// FailStage reports a stage adapter failure to the pipeline owner.
func (h *BaseHandler) FailStage(stage string, err error) {
	h.Logger.With(map[string]interface{}{"stage": stage, "error": err.Error()}).Error("pipeline stage failed")
	h.EmitTop(&StageErrorEvent{Stage: stage, Error: err.Error()})
}

// Cancelled reports whether the run this handler belongs to has been
// cancelled.
func (h *BaseHandler) Cancelled() bool {
	select {
	case <-h.Ctx.Done():
		return true
	default:
		return false
	}
}
