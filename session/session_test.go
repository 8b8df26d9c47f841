package session

import (
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vocalink/core"
	ttsevents "vocalink/events/tts"
	"vocalink/handlers/vad"
	"vocalink/pipeline"
	"vocalink/services/energy"
)

type fakeWriter struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func (w *fakeWriter) WriteFrame(frame []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.frames = append(w.frames, frame)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *fakeWriter) frameCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.frames)
}

type fakeDriver struct {
	mu   sync.Mutex
	runs []*pipeline.Run
	err  error
}

func (d *fakeDriver) StartRun(s *Session, run *pipeline.Run) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.runs = append(d.runs, run)
	return nil
}

func (d *fakeDriver) lastRun() *pipeline.Run {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.runs) == 0 {
		return nil
	}
	return d.runs[len(d.runs)-1]
}

func testSegmenter() *vad.Segmenter {
	return vad.NewSegmenter(
		energy.NewEnergyVADService(energy.Config{Threshold: 100, SmoothWindow: 1}),
		vad.Config{MinConfidence: 0.5, SilenceHangoverMs: 300, MinSpeechMs: 200, MaxUtteranceMs: 30000},
	)
}

func newTestSession(t *testing.T) (*Session, *fakeWriter, *fakeDriver) {
	t.Helper()
	writer := &fakeWriter{}
	driver := &fakeDriver{}
	s := New("client-1", writer, driver, testSegmenter(), 16000, core.NewDevelopmentLogger())
	t.Cleanup(s.Close)
	return s, writer, driver
}

// pcmChunk builds 100ms of 16kHz mono PCM at a fixed amplitude.
func pcmChunk(amplitude int16) []byte {
	out := make([]byte, 16000/10*2)
	for i := 0; i < len(out); i += 2 {
		binary.LittleEndian.PutUint16(out[i:], uint16(amplitude))
	}
	return out
}

func TestSubmitTextStartsRun(t *testing.T) {
	s, _, driver := newTestSession(t)

	require.NoError(t, s.SubmitText("hello"))
	assert.Equal(t, StateThinking, s.State())
	assert.Equal(t, int64(1), s.CurrentSeq())

	run := driver.lastRun()
	require.NotNil(t, run)
	assert.Equal(t, pipeline.KindText, run.Kind)
	assert.Equal(t, "hello", run.Text)
	assert.Equal(t, int64(1), run.Seq)
}

func TestNewRunCancelsPrevious(t *testing.T) {
	s, _, driver := newTestSession(t)

	require.NoError(t, s.SubmitText("first"))
	first := driver.lastRun()

	require.NoError(t, s.SubmitText("second"))
	second := driver.lastRun()

	select {
	case <-first.Done():
	default:
		t.Fatal("previous run was not cancelled")
	}
	assert.Equal(t, int64(2), second.Seq)
	assert.Equal(t, int64(2), s.CurrentSeq())
}

func TestInterruptIsIdempotent(t *testing.T) {
	s, _, driver := newTestSession(t)

	require.NoError(t, s.SubmitText("hello"))
	run := driver.lastRun()

	assert.True(t, s.Interrupt())
	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, int64(2), s.CurrentSeq())
	select {
	case <-run.Done():
	default:
		t.Fatal("interrupt did not cancel the run")
	}

	assert.False(t, s.Interrupt())
	assert.Equal(t, int64(2), s.CurrentSeq())
}

func TestDeliverRunEventTransitions(t *testing.T) {
	s, _, driver := newTestSession(t)

	require.NoError(t, s.SubmitText("hello"))
	run := driver.lastRun()

	assert.True(t, s.DeliverRunEvent(run, &ttsevents.TTSOutputEvent{}, nil))
	assert.Equal(t, StateSpeaking, s.State())

	assert.True(t, s.DeliverRunEvent(run, &ttsevents.TTSCompletedEvent{}, nil))
	assert.Equal(t, StateIdle, s.State())
}

func TestDeliverRunEventRejectsStaleRun(t *testing.T) {
	s, _, driver := newTestSession(t)

	require.NoError(t, s.SubmitText("hello"))
	stale := driver.lastRun()
	require.True(t, s.Interrupt())

	assert.False(t, s.DeliverRunEvent(stale, &ttsevents.TTSOutputEvent{}, nil))
	assert.Equal(t, StateIdle, s.State())
}

func TestDeliverRunEventDropsStaleFrame(t *testing.T) {
	s, writer, driver := newTestSession(t)
	s.Start()

	require.NoError(t, s.SubmitText("hello"))
	run := driver.lastRun()

	// A frame from the live run is queued and delivered.
	require.True(t, s.DeliverRunEvent(run, &ttsevents.TTSOutputEvent{}, []byte(`{"type":"tts-chunk"}`)))
	require.Eventually(t, func() bool { return writer.frameCount() == 1 }, time.Second, 5*time.Millisecond)

	// After an interrupt the same run's frames are refused in the same step
	// as the sequence check, so nothing stale can queue behind the
	// interrupted frame.
	require.True(t, s.Interrupt())
	assert.False(t, s.DeliverRunEvent(run, &ttsevents.TTSOutputEvent{}, []byte(`{"type":"tts-chunk"}`)))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, writer.frameCount())
}

func TestAudioChunksDroppedWhileThinking(t *testing.T) {
	s, _, _ := newTestSession(t)

	require.NoError(t, s.SubmitText("hello"))
	require.Equal(t, StateThinking, s.State())

	require.NoError(t, s.AcceptAudioChunk(pcmChunk(10000), 0))
	assert.Equal(t, int64(1), s.DroppedChunks())
}

func TestAudioEndpointSealsUtterance(t *testing.T) {
	s, _, driver := newTestSession(t)

	// 300ms of speech, then silence until the hangover elapses.
	for i := 0; i < 3; i++ {
		require.NoError(t, s.AcceptAudioChunk(pcmChunk(10000), 0))
	}
	assert.Equal(t, StateListening, s.State())
	for i := 0; i < 3; i++ {
		require.NoError(t, s.AcceptAudioChunk(pcmChunk(0), 0))
	}

	run := driver.lastRun()
	require.NotNil(t, run, "endpoint should have started a run")
	assert.Equal(t, pipeline.KindAudio, run.Kind)
	assert.Equal(t, StateThinking, s.State())
	// All six chunks belong to the sealed utterance.
	assert.Len(t, run.Audio.Data, 6*16000/10*2)
	assert.Equal(t, 16000, run.Audio.SampleRate)
}

func TestAudioChunkHonorsClientSampleRate(t *testing.T) {
	s, _, driver := newTestSession(t)

	// At a declared 8 kHz each pcmChunk is 200ms, so two speech chunks clear
	// the speech minimum and two silence chunks clear the hangover.
	for i := 0; i < 2; i++ {
		require.NoError(t, s.AcceptAudioChunk(pcmChunk(10000), 8000))
	}
	for i := 0; i < 2; i++ {
		require.NoError(t, s.AcceptAudioChunk(pcmChunk(0), 8000))
	}

	run := driver.lastRun()
	require.NotNil(t, run)
	assert.Equal(t, 8000, run.Audio.SampleRate)
}

func TestFinishAudioWithoutSpeechIsNoOp(t *testing.T) {
	s, _, driver := newTestSession(t)

	require.NoError(t, s.AcceptAudioChunk(pcmChunk(0), 0))
	require.Equal(t, StateListening, s.State())

	require.NoError(t, s.FinishAudio())
	assert.Equal(t, StateIdle, s.State())
	assert.Nil(t, driver.lastRun())
}

func TestSendDeliversThroughWriter(t *testing.T) {
	s, writer, _ := newTestSession(t)
	s.Start()

	s.Send([]byte(`{"type":"tts-done"}`))
	require.Eventually(t, func() bool { return writer.frameCount() == 1 }, time.Second, 5*time.Millisecond)
}

func TestSendNeverBlocksWhenQueueFull(t *testing.T) {
	s, _, _ := newTestSession(t)
	// Writer goroutine intentionally not started; the queue fills up.

	done := make(chan struct{})
	go func() {
		for i := 0; i < outboundQueueSize+10; i++ {
			s.Send([]byte("frame"))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Send blocked on a full queue")
	}
}

func TestProactiveSpeak(t *testing.T) {
	s, _, driver := newTestSession(t)

	require.NoError(t, s.ProactiveSpeak("greet the user"))
	run := driver.lastRun()
	require.NotNil(t, run)
	assert.Equal(t, pipeline.KindProactive, run.Kind)
	assert.Equal(t, "greet the user", run.Text)
}

func TestCloseCancelsRun(t *testing.T) {
	writer := &fakeWriter{}
	driver := &fakeDriver{}
	s := New("client-2", writer, driver, testSegmenter(), 16000, core.NewDevelopmentLogger())

	require.NoError(t, s.SubmitText("hello"))
	run := driver.lastRun()

	s.Close()
	select {
	case <-run.Done():
	default:
		t.Fatal("close did not cancel the run")
	}
	assert.True(t, s.Closed())
	assert.True(t, writer.closed)

	s.Close() // idempotent
}
