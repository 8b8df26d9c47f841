package llm

import (
	"context"

	"vocalink/core"
	asrevents "vocalink/events/asr"
	llmevents "vocalink/events/llm"
)

// LLMService is the external completion adapter boundary. RunCompletion
// streams tokens to outChan and returns the accumulated reply; it must stop
// within one token of ctx cancellation.
type LLMService interface {
	core.IService
	RunCompletion(ctx context.Context, convo core.LLMContext, outChan chan<- string) (string, error)
}

// LLMHandler turns the user's utterance into a streamed reply. Text runs seed
// it directly; audio runs reach it through the sealed ASR transcript.
type LLMHandler struct {
	core.BaseHandler
	Service     LLMService
	baseContext core.LLMContext
}

// NewLLMHandler creates an LLM stage for one run. baseContext carries the
// persona system message plus prior conversation turns; the run's user input
// is appended to a copy before completion.
func NewLLMHandler(service LLMService, baseContext core.LLMContext, runSeq int64, logger *core.Logger) *LLMHandler {
	return &LLMHandler{
		BaseHandler: core.NewBaseHandler("LLMHandler", runSeq, logger),
		Service:     service,
		baseContext: baseContext,
	}
}

func (h *LLMHandler) Start() error {
	go h.eventLoop()
	return nil
}

func (h *LLMHandler) eventLoop() {
	for {
		select {
		case packet := <-h.InputChan:
			if err := h.HandleEvent(packet); err != nil {
				h.FailStage(core.StageLLM, err)
			}
		case <-h.Ctx.Done():
			return
		}
	}
}

func (h *LLMHandler) HandleEvent(packet *core.EventPacket) error {
	switch event := packet.Event.(type) {
	case *llmevents.LLMGenerateRequestEvent:
		h.generate(event.Text)
		return nil
	case *asrevents.ASRFinalOutputEvent:
		// Forward first so the transcript reaches the client before tokens.
		h.SendPacket(packet)
		if event.Text != "" {
			h.generate(event.Text)
		}
		return nil
	default:
		h.SendPacket(packet)
	}
	return nil
}

type completionResult struct {
	full string
	err  error
}

// generate runs one completion synchronously within the handler loop. Nothing
// else arrives on the chain during generation, and cancellation is observed
// through the run context both here and inside the service.
func (h *LLMHandler) generate(userText string) {
	convo := h.baseContext.Clone()
	convo.AddUserMessage(userText)

	outChan := make(chan string, 16)
	resultChan := make(chan completionResult, 1)
	go func() {
		full, err := h.Service.RunCompletion(h.Ctx, convo, outChan)
		close(outChan)
		resultChan <- completionResult{full: full, err: err}
	}()

	for chunk := range outChan {
		h.Emit(&llmevents.LLMResponseChunkEvent{Chunk: chunk})
	}
	result := <-resultChan
	if result.err != nil {
		if h.Cancelled() {
			return
		}
		h.FailStage(core.StageLLM, result.err)
		return
	}
	h.Emit(&llmevents.LLMResponseCompletedEvent{FullText: result.full})
}
