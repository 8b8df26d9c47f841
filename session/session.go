// Package session holds per-client conversational state: the Idle, Listening,
// Thinking and Speaking state machine, the monotonic run sequence that gates
// stale pipeline output, and the registry of live sessions and their groups.
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"vocalink/core"
	sessionevents "vocalink/events/session"
	ttsevents "vocalink/events/tts"
	"vocalink/handlers/vad"
	"vocalink/pipeline"
)

const outboundQueueSize = 256

// FrameWriter is the outbound half of a client connection. Implementations
// must serialize their own writes; the session calls WriteFrame from a single
// goroutine.
type FrameWriter interface {
	WriteFrame(frame []byte) error
	Close() error
}

// RunDriver launches pipeline runs on behalf of a session. The router
// implements it, which keeps this package free of protocol concerns.
type RunDriver interface {
	StartRun(s *Session, run *pipeline.Run) error
}

// Session is one connected client. All mutation of conversational state goes
// through its mutex; frame delivery is decoupled through a buffered queue so
// a slow client never stalls a pipeline run.
type Session struct {
	ID string

	writer FrameWriter
	driver RunDriver
	logger *core.Logger

	seq atomic.Int64 // bumped on every run start and interrupt

	mu            sync.Mutex
	state         State
	run           *pipeline.Run
	segmenter     *vad.Segmenter
	audioBuf      []byte
	sampleRate    int // configured default input rate
	utteranceRate int // rate of the utterance being accumulated
	group         string
	historyUID    string

	out     chan []byte
	closed  atomic.Bool
	done    chan struct{}
	onceEnd sync.Once

	droppedFrames atomic.Int64 // outbound frames dropped on a full queue
	droppedChunks atomic.Int64 // mic chunks dropped while not accepting audio

	lastActivity atomic.Int64 // unix nanos of the last inbound frame
}

func New(id string, writer FrameWriter, driver RunDriver, segmenter *vad.Segmenter, sampleRate int, logger *core.Logger) *Session {
	s := &Session{
		ID:         id,
		writer:     writer,
		driver:     driver,
		segmenter:  segmenter,
		sampleRate: sampleRate,
		logger:     logger.With(map[string]interface{}{"session_id": id}),
		state:      StateIdle,
		out:        make(chan []byte, outboundQueueSize),
		done:       make(chan struct{}),
	}
	s.Touch()
	return s
}

// Start launches the writer goroutine. Call exactly once.
func (s *Session) Start() {
	go s.writeLoop()
}

func (s *Session) writeLoop() {
	for {
		select {
		case frame := <-s.out:
			if err := s.writer.WriteFrame(frame); err != nil {
				s.logger.Warn("frame write failed", "error", err.Error())
				s.Close()
				return
			}
		case <-s.done:
			return
		}
	}
}

// Send queues a frame for delivery. It never blocks: when the queue is full
// the frame is dropped and counted, so one stuck client cannot back-pressure
// the pipeline.
func (s *Session) Send(frame []byte) {
	if s.closed.Load() {
		return
	}
	s.enqueue(frame)
}

func (s *Session) enqueue(frame []byte) {
	select {
	case s.out <- frame:
	default:
		s.droppedFrames.Add(1)
		s.logger.Warn("outbound queue full, dropping frame")
	}
}

// Touch records inbound activity, used for idle bookkeeping.
func (s *Session) Touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

// LastActivity is the time of the most recent inbound frame.
func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

// State returns the current conversational state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CurrentSeq is the session's live run sequence. Pipeline output carrying an
// older sequence is stale and must be discarded.
func (s *Session) CurrentSeq() int64 {
	return s.seq.Load()
}

// SetHistoryUID points the session at a conversation history.
func (s *Session) SetHistoryUID(uid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.historyUID = uid
}

func (s *Session) HistoryUID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.historyUID
}

// DroppedChunks reports how many mic chunks arrived while the session was not
// accepting audio.
func (s *Session) DroppedChunks() int64 {
	return s.droppedChunks.Load()
}

// AcceptAudioChunk buffers one microphone chunk. The first chunk moves an idle
// session to Listening; chunks arriving while a run is in flight are dropped
// and counted. When the segmenter detects the utterance end, the buffered
// audio is sealed into a run. sampleRate is the client-declared rate; zero
// falls back to the configured default, and the first chunk's rate holds for
// the whole utterance.
func (s *Session) AcceptAudioChunk(pcm []byte, sampleRate int) error {
	s.mu.Lock()

	switch s.state {
	case StateThinking, StateSpeaking:
		s.mu.Unlock()
		s.droppedChunks.Add(1)
		return nil
	case StateIdle:
		s.state = StateListening
		s.segmenter.Reset()
		s.audioBuf = s.audioBuf[:0]
		if sampleRate > 0 {
			s.utteranceRate = sampleRate
		} else {
			s.utteranceRate = s.sampleRate
		}
	}

	s.audioBuf = append(s.audioBuf, pcm...)
	chunk := core.AudioChunk{Data: pcm, SampleRate: s.utteranceRate, Channels: 1, Format: core.PCM}
	ended, err := s.segmenter.Feed(chunk)
	if err != nil {
		s.state = StateIdle
		s.mu.Unlock()
		return core.NewStageError(core.StageVAD, err)
	}
	if !ended {
		s.mu.Unlock()
		return nil
	}
	return s.sealUtteranceLocked()
}

// FinishAudio force-seals the current utterance, for clients that signal the
// end of speech themselves.
func (s *Session) FinishAudio() error {
	s.mu.Lock()
	if s.state != StateListening {
		s.mu.Unlock()
		return nil
	}
	return s.sealUtteranceLocked()
}

// sealUtteranceLocked starts an audio run from the buffered utterance. It is
// entered with the mutex held and releases it.
func (s *Session) sealUtteranceLocked() error {
	if !s.segmenter.SawSpeech() || len(s.audioBuf) == 0 {
		// Nothing worth transcribing.
		s.state = StateIdle
		s.audioBuf = s.audioBuf[:0]
		s.mu.Unlock()
		return nil
	}
	audio := make([]byte, len(s.audioBuf))
	copy(audio, s.audioBuf)
	s.audioBuf = s.audioBuf[:0]

	run := s.newRunLocked(pipeline.KindAudio)
	run.Audio = core.AudioChunk{Data: audio, SampleRate: s.utteranceRate, Channels: 1, Format: core.PCM}
	return s.startRunUnlocking(run)
}

// SubmitText starts a text run, interrupting any run in flight.
func (s *Session) SubmitText(text string) error {
	s.mu.Lock()
	run := s.newRunLocked(pipeline.KindText)
	run.Text = text
	return s.startRunUnlocking(run)
}

// ProactiveSpeak starts a server-initiated run. The prompt drives the LLM but
// is not recorded as a user message.
func (s *Session) ProactiveSpeak(prompt string) error {
	s.mu.Lock()
	run := s.newRunLocked(pipeline.KindProactive)
	run.Text = prompt
	return s.startRunUnlocking(run)
}

// newRunLocked cancels the previous run, bumps the sequence and binds a fresh
// run to the session. Caller holds the mutex.
func (s *Session) newRunLocked(kind pipeline.InputKind) *pipeline.Run {
	if s.run != nil {
		s.run.Cancel()
		s.run = nil
	}
	seq := s.seq.Add(1)
	run := pipeline.NewRun(seq, kind)
	s.run = run
	s.state = StateThinking
	return run
}

// startRunUnlocking hands the run to the driver. It is entered with the mutex
// held and releases it before calling out.
func (s *Session) startRunUnlocking(run *pipeline.Run) error {
	s.mu.Unlock()
	if err := s.driver.StartRun(s, run); err != nil {
		s.mu.Lock()
		if s.run == run {
			s.run = nil
			s.state = StateIdle
		}
		s.mu.Unlock()
		run.Cancel()
		return err
	}
	return nil
}

// Interrupt cancels the run in flight and returns the session to Idle. It
// reports whether there was anything to interrupt; a second interrupt for the
// same run is a no-op.
func (s *Session) Interrupt() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run == nil && s.state == StateIdle {
		return false
	}
	s.seq.Add(1) // anything still in flight is now stale
	if s.run != nil {
		s.run.Cancel()
		s.run = nil
	}
	s.state = StateIdle
	s.audioBuf = s.audioBuf[:0]
	return true
}

// DeliverRunEvent applies one run event's state transition and queues its
// frame in a single step. The sequence check, the transition, and the enqueue
// all happen under the session mutex, so an interrupt that bumps the sequence
// can never slip in between and leave a stale frame queued behind the
// interrupted frame. frame may be nil for events that produce no frame. It
// reports whether the event belonged to the live run.
func (s *Session) DeliverRunEvent(run *pipeline.Run, event core.IEvent, frame []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run.Seq != s.seq.Load() {
		return false
	}
	switch event.(type) {
	case *ttsevents.TTSOutputEvent:
		s.state = StateSpeaking
	case *ttsevents.TTSCompletedEvent, *sessionevents.NoOpTurnEvent, *core.StageErrorEvent:
		if s.run == run {
			s.run = nil
		}
		s.state = StateIdle
	}
	if frame != nil && !s.closed.Load() {
		s.enqueue(frame)
	}
	return true
}

// Group returns the session's group name, empty when ungrouped.
func (s *Session) Group() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.group
}

func (s *Session) setGroup(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.group = name
}

// Close cancels any run in flight and tears the connection down. Idempotent.
func (s *Session) Close() {
	s.onceEnd.Do(func() {
		s.closed.Store(true)
		s.mu.Lock()
		if s.run != nil {
			s.run.Cancel()
			s.run = nil
		}
		s.state = StateIdle
		s.mu.Unlock()
		close(s.done)
		if err := s.writer.Close(); err != nil {
			s.logger.Debug("connection close", "error", err.Error())
		}
	})
}

// Closed reports whether Close has run.
func (s *Session) Closed() bool {
	return s.closed.Load()
}
