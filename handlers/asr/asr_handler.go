package asr

import (
	"context"
	"strings"

	"vocalink/core"
	asrevents "vocalink/events/asr"
)

// ASRService is the external transcription adapter boundary.
type ASRService interface {
	core.IService
	Transcribe(ctx context.Context, chunk core.AudioChunk) (string, error)
}

// ASRHandler is the first stage of an audio run: it consumes the transcribe
// request seeded by the runner and emits a partial followed by the sealed
// final transcript.
type ASRHandler struct {
	core.BaseHandler
	Service ASRService
}

func NewASRHandler(service ASRService, runSeq int64, logger *core.Logger) *ASRHandler {
	return &ASRHandler{
		BaseHandler: core.NewBaseHandler("ASRHandler", runSeq, logger),
		Service:     service,
	}
}

func (h *ASRHandler) Start() error {
	go h.eventLoop()
	return nil
}

func (h *ASRHandler) eventLoop() {
	for {
		select {
		case packet := <-h.InputChan:
			if err := h.HandleEvent(packet); err != nil {
				h.FailStage(core.StageASR, err)
			}
		case <-h.Ctx.Done():
			return
		}
	}
}

func (h *ASRHandler) HandleEvent(packet *core.EventPacket) error {
	switch event := packet.Event.(type) {
	case *asrevents.ASRTranscribeRequestEvent:
		// Consumed here; the raw audio never travels further down the chain.
		text, err := h.Service.Transcribe(h.Ctx, event.Audio)
		if err != nil {
			if h.Cancelled() {
				return nil
			}
			h.FailStage(core.StageASR, err)
			return nil
		}
		text = strings.TrimSpace(text)
		if text != "" {
			// Whisper is request/response, so the only interim feedback we can
			// give is the final text arriving a beat before the run moves on.
			h.Emit(&asrevents.ASRPartialOutputEvent{Text: text})
		}
		h.Emit(&asrevents.ASRFinalOutputEvent{Text: text})
		return nil
	default:
		h.SendPacket(packet)
	}
	return nil
}
