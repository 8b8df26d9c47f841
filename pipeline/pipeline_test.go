package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vocalink/core"
	asrevents "vocalink/events/asr"
	llmevents "vocalink/events/llm"
	sessionevents "vocalink/events/session"
	ttsevents "vocalink/events/tts"
	ttshandler "vocalink/handlers/tts"
)

type fakeASR struct {
	transcript string
	err        error
}

func (f *fakeASR) Init(ctx context.Context) error { return nil }
func (f *fakeASR) Cleanup() error                 { return nil }
func (f *fakeASR) Transcribe(ctx context.Context, chunk core.AudioChunk) (string, error) {
	return f.transcript, f.err
}

type fakeLLM struct {
	tokens []string
	err    error
	// hang keeps the completion open after the tokens until the run is
	// cancelled, simulating a long generation.
	hang bool
}

func (f *fakeLLM) Init(ctx context.Context) error { return nil }
func (f *fakeLLM) Cleanup() error                 { return nil }
func (f *fakeLLM) RunCompletion(ctx context.Context, convo core.LLMContext, outChan chan<- string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	var b strings.Builder
	for _, tok := range f.tokens {
		select {
		case outChan <- tok:
			b.WriteString(tok)
		case <-ctx.Done():
			return b.String(), ctx.Err()
		}
	}
	if f.hang {
		<-ctx.Done()
		return b.String(), ctx.Err()
	}
	return b.String(), nil
}

type fakeTTS struct {
	err error
}

func (f *fakeTTS) Init(ctx context.Context) error { return nil }
func (f *fakeTTS) Cleanup() error                 { return nil }
func (f *fakeTTS) Synthesize(ctx context.Context, text string) (core.AudioChunk, error) {
	if f.err != nil {
		return core.AudioChunk{}, f.err
	}
	return core.AudioChunk{
		Data:       make([]byte, 64),
		SampleRate: 24000,
		Channels:   1,
		Format:     core.PCM,
	}, nil
}

// collector gathers sink output and signals once a terminal event arrived.
type collector struct {
	mu       sync.Mutex
	events   []core.IEvent
	terminal chan struct{}
	once     sync.Once
	onEvent  func(core.IEvent)
}

func newCollector() *collector {
	return &collector{terminal: make(chan struct{})}
}

func (c *collector) sink(run *Run, event core.IEvent) {
	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()
	if c.onEvent != nil {
		c.onEvent(event)
	}
	switch event.(type) {
	case *ttsevents.TTSCompletedEvent, *sessionevents.NoOpTurnEvent, *core.StageErrorEvent:
		c.once.Do(func() { close(c.terminal) })
	}
}

func (c *collector) waitTerminal(t *testing.T) []core.IEvent {
	t.Helper()
	select {
	case <-c.terminal:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not reach a terminal event")
	}
	return c.snapshot()
}

func (c *collector) snapshot() []core.IEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]core.IEvent, len(c.events))
	copy(out, c.events)
	return out
}

func newTestPipeline(asr *fakeASR, llm *fakeLLM, tts *fakeTTS) *Pipeline {
	return New(asr, llm, tts, ttshandler.Config{MinSentenceLength: 1}, core.NewDevelopmentLogger())
}

func TestTextRunEventOrdering(t *testing.T) {
	pipe := newTestPipeline(&fakeASR{}, &fakeLLM{tokens: []string{"Hello ", "world."}}, &fakeTTS{})
	c := newCollector()

	run := NewRun(1, KindText)
	run.Text = "hi"
	require.NoError(t, pipe.StartRun(run, core.LLMContext{}, c.sink))

	events := c.waitTerminal(t)
	require.Len(t, events, 5)
	assert.IsType(t, &llmevents.LLMResponseChunkEvent{}, events[0])
	assert.IsType(t, &llmevents.LLMResponseChunkEvent{}, events[1])
	assert.IsType(t, &llmevents.LLMResponseCompletedEvent{}, events[2])
	assert.IsType(t, &ttsevents.TTSOutputEvent{}, events[3])
	assert.IsType(t, &ttsevents.TTSCompletedEvent{}, events[4])

	assert.Equal(t, "Hello world.", run.Reply)
	assert.Equal(t, "Hello world.", events[2].(*llmevents.LLMResponseCompletedEvent).FullText)
	assert.Equal(t, 0, events[3].(*ttsevents.TTSOutputEvent).SliceIndex)
}

func TestAudioRunTranscribesFirst(t *testing.T) {
	pipe := newTestPipeline(
		&fakeASR{transcript: "how are you"},
		&fakeLLM{tokens: []string{"Fine."}},
		&fakeTTS{},
	)
	c := newCollector()

	run := NewRun(1, KindAudio)
	run.Audio = core.AudioChunk{Data: make([]byte, 320), SampleRate: 16000, Channels: 1}
	require.NoError(t, pipe.StartRun(run, core.LLMContext{}, c.sink))

	events := c.waitTerminal(t)
	require.GreaterOrEqual(t, len(events), 5)
	assert.IsType(t, &asrevents.ASRPartialOutputEvent{}, events[0])
	final, ok := events[1].(*asrevents.ASRFinalOutputEvent)
	require.True(t, ok)
	assert.Equal(t, "how are you", final.Text)
	assert.Equal(t, "how are you", run.Transcript)
	assert.IsType(t, &ttsevents.TTSCompletedEvent{}, events[len(events)-1])
}

func TestEmptyTranscriptIsNoOpTurn(t *testing.T) {
	pipe := newTestPipeline(&fakeASR{transcript: "  "}, &fakeLLM{tokens: []string{"never"}}, &fakeTTS{})
	c := newCollector()

	run := NewRun(1, KindAudio)
	run.Audio = core.AudioChunk{Data: make([]byte, 320), SampleRate: 16000, Channels: 1}
	require.NoError(t, pipe.StartRun(run, core.LLMContext{}, c.sink))

	events := c.waitTerminal(t)
	require.Len(t, events, 1)
	assert.IsType(t, &sessionevents.NoOpTurnEvent{}, events[0])
	assert.Empty(t, run.Reply)
}

func TestLLMFailureEndsRunWithStageError(t *testing.T) {
	pipe := newTestPipeline(&fakeASR{}, &fakeLLM{err: errors.New("upstream 500")}, &fakeTTS{})
	c := newCollector()

	run := NewRun(1, KindText)
	run.Text = "hi"
	require.NoError(t, pipe.StartRun(run, core.LLMContext{}, c.sink))

	events := c.waitTerminal(t)
	require.Len(t, events, 1)
	stageErr, ok := events[0].(*core.StageErrorEvent)
	require.True(t, ok)
	assert.Equal(t, core.StageLLM, stageErr.Stage)
	assert.Contains(t, stageErr.Error, "upstream 500")
}

func TestTTSFailureEndsRunWithStageError(t *testing.T) {
	pipe := newTestPipeline(&fakeASR{}, &fakeLLM{tokens: []string{"Reply."}}, &fakeTTS{err: errors.New("voice down")})
	c := newCollector()

	run := NewRun(1, KindText)
	run.Text = "hi"
	require.NoError(t, pipe.StartRun(run, core.LLMContext{}, c.sink))

	events := c.waitTerminal(t)
	last, ok := events[len(events)-1].(*core.StageErrorEvent)
	require.True(t, ok)
	assert.Equal(t, core.StageTTS, last.Stage)
}

func TestCancellationStopsDelivery(t *testing.T) {
	pipe := newTestPipeline(&fakeASR{}, &fakeLLM{tokens: []string{"tok"}, hang: true}, &fakeTTS{})
	c := newCollector()

	firstChunk := make(chan struct{})
	var chunkOnce sync.Once
	c.onEvent = func(event core.IEvent) {
		if _, ok := event.(*llmevents.LLMResponseChunkEvent); ok {
			chunkOnce.Do(func() { close(firstChunk) })
		}
	}

	run := NewRun(1, KindText)
	run.Text = "hi"
	require.NoError(t, pipe.StartRun(run, core.LLMContext{}, c.sink))

	select {
	case <-firstChunk:
	case <-time.After(2 * time.Second):
		t.Fatal("no token arrived")
	}
	run.Cancel()
	time.Sleep(100 * time.Millisecond)

	for _, event := range c.snapshot() {
		switch event.(type) {
		case *llmevents.LLMResponseCompletedEvent, *ttsevents.TTSCompletedEvent, *core.StageErrorEvent:
			t.Fatalf("cancelled run still delivered %T", event)
		}
	}
}
