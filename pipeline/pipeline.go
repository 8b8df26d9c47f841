// Package pipeline drives one utterance through its stage chain — ASR for
// audio runs, then LLM and TTS — emitting incremental events to a sink until
// the run reaches a terminal event: completed, errored, or cancelled.
package pipeline

import (
	"vocalink/core"
	asrevents "vocalink/events/asr"
	llmevents "vocalink/events/llm"
	sessionevents "vocalink/events/session"
	ttsevents "vocalink/events/tts"
	asrhandler "vocalink/handlers/asr"
	llmhandler "vocalink/handlers/llm"
	ttshandler "vocalink/handlers/tts"
	"vocalink/runner"
)

// Sink receives every event a run emits, in order. Implementations gate on
// run.Seq to drop stale output from cancelled runs.
type Sink func(run *Run, event core.IEvent)

// Pipeline builds and executes stage chains. The services are long-lived and
// shared across runs; handlers are constructed per run.
type Pipeline struct {
	asrService asrhandler.ASRService
	llmService llmhandler.LLMService
	ttsService ttshandler.TTSService
	ttsConfig  ttshandler.Config
	logger     *core.Logger
}

func New(
	asrService asrhandler.ASRService,
	llmService llmhandler.LLMService,
	ttsService ttshandler.TTSService,
	ttsConfig ttshandler.Config,
	logger *core.Logger,
) *Pipeline {
	return &Pipeline{
		asrService: asrService,
		llmService: llmService,
		ttsService: ttsService,
		ttsConfig:  ttsConfig,
		logger:     logger,
	}
}

// StartRun launches the run's stage chain and returns immediately. Events are
// delivered to sink from a dedicated goroutine; delivery stops within one
// event of cancellation.
func (p *Pipeline) StartRun(run *Run, baseContext core.LLMContext, sink Sink) error {
	logger := p.logger.With(map[string]interface{}{"run_id": run.ID, "kind": run.Kind.String()})

	llmHandler := llmhandler.NewLLMHandler(p.llmService, baseContext, run.Seq, logger)
	ttsHandler := ttshandler.NewTTSHandler(p.ttsService, p.ttsConfig, run.Seq, logger)

	var handlers []core.IHandler
	var seed core.IEvent
	switch run.Kind {
	case KindAudio:
		handlers = []core.IHandler{
			asrhandler.NewASRHandler(p.asrService, run.Seq, logger),
			llmHandler,
			ttsHandler,
		}
		seed = &asrevents.ASRTranscribeRequestEvent{Audio: run.Audio}
	default:
		handlers = []core.IHandler{llmHandler, ttsHandler}
		seed = &llmevents.LLMGenerateRequestEvent{Text: run.Text}
	}

	chain := runner.NewRunner(handlers)
	if err := chain.Start(run.Context()); err != nil {
		run.Cancel()
		return err
	}

	seedPacket := core.NewEventPacket(seed, core.EventRelayDestinationNextService, "Pipeline")
	seedPacket.RunSeq = run.Seq
	chain.Inject(seedPacket)

	go p.consume(run, chain, sink, logger)
	return nil
}

// consume forwards chain output to the sink and enforces the terminal-event
// guarantee: every run ends with a completed, no-op, or stage-error event, or
// is cancelled from outside.
func (p *Pipeline) consume(run *Run, chain *runner.Runner, sink Sink, logger *core.Logger) {
	defer func() {
		run.Cancel()
		if err := chain.Stop(); err != nil {
			logger.Warn("pipeline cleanup failed", "error", err.Error())
		}
	}()

	for {
		select {
		case packet := <-chain.Output():
			if p.forward(run, packet.Event, sink) {
				return
			}
		case packet := <-chain.Top():
			if stageErr, ok := packet.Event.(*core.StageErrorEvent); ok {
				logger.Error("run aborted", "stage", stageErr.Stage, "error", stageErr.Error)
				sink(run, stageErr)
			}
			return
		case <-run.Done():
			return
		}
	}
}

// forward delivers one event and reports whether it was terminal.
func (p *Pipeline) forward(run *Run, event core.IEvent, sink Sink) bool {
	switch e := event.(type) {
	case *asrevents.ASRFinalOutputEvent:
		run.Transcript = e.Text
		if e.Text == "" {
			// Silent or empty utterance: the turn is a no-op.
			sink(run, &sessionevents.NoOpTurnEvent{})
			return true
		}
		sink(run, event)
	case *llmevents.LLMResponseCompletedEvent:
		run.Reply = e.FullText
		sink(run, event)
	case *ttsevents.TTSCompletedEvent:
		sink(run, event)
		return true
	default:
		sink(run, event)
	}
	return false
}
