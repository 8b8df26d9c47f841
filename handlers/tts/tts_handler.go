package tts

import (
	"context"

	"vocalink/core"
	llmevents "vocalink/events/llm"
	ttsevents "vocalink/events/tts"
)

// TTSService is the external synthesis adapter boundary.
type TTSService interface {
	core.IService
	Synthesize(ctx context.Context, text string) (core.AudioChunk, error)
}

// TTSHandler voices the completed reply sentence by sentence, so audio starts
// streaming before the longest replies are fully synthesized.
type TTSHandler struct {
	core.BaseHandler
	Service    TTSService
	config     Config
	sliceIndex int
}

func NewTTSHandler(service TTSService, config Config, runSeq int64, logger *core.Logger) *TTSHandler {
	return &TTSHandler{
		BaseHandler: core.NewBaseHandler("TTSHandler", runSeq, logger),
		Service:     service,
		config:      config,
	}
}

func (h *TTSHandler) Start() error {
	go h.eventLoop()
	return nil
}

func (h *TTSHandler) eventLoop() {
	for {
		select {
		case packet := <-h.InputChan:
			if err := h.HandleEvent(packet); err != nil {
				h.FailStage(core.StageTTS, err)
			}
		case <-h.Ctx.Done():
			return
		}
	}
}

func (h *TTSHandler) HandleEvent(packet *core.EventPacket) error {
	switch event := packet.Event.(type) {
	case *llmevents.LLMResponseCompletedEvent:
		// Forward first: the full reply text reaches the client (and history)
		// before its audio.
		h.SendPacket(packet)
		h.speak(event.FullText)
		return nil
	default:
		h.SendPacket(packet)
	}
	return nil
}

func (h *TTSHandler) speak(fullText string) {
	sentences := SplitSentences(fullText, h.config.MinSentenceLength)
	for _, sentence := range sentences {
		normalized := normalizeTextForTTS(sentence)
		if normalized == "" {
			continue
		}
		if h.Cancelled() {
			return
		}
		chunk, err := h.Service.Synthesize(h.Ctx, normalized)
		if err != nil {
			if h.Cancelled() {
				return
			}
			h.FailStage(core.StageTTS, err)
			return
		}
		h.Emit(&ttsevents.TTSOutputEvent{
			AudioChunk: chunk,
			Text:       sentence,
			SliceIndex: h.sliceIndex,
		})
		h.sliceIndex++
	}
	h.Emit(&ttsevents.TTSCompletedEvent{})
}
