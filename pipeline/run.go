package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"vocalink/core"
)

// InputKind distinguishes how a run was started.
type InputKind int

const (
	KindAudio     InputKind = iota + 1 // microphone utterance, goes through ASR
	KindText                           // typed input, starts at the LLM stage
	KindProactive                      // server-initiated speech, skips user history
)

func (k InputKind) String() string {
	switch k {
	case KindAudio:
		return "audio"
	case KindText:
		return "text"
	case KindProactive:
		return "proactive"
	default:
		return "unknown"
	}
}

// Run is one utterance's execution context. It is owned by a single session;
// a session has at most one live run, and starting a new one cancels the
// previous run's context before anything else happens.
type Run struct {
	ID        string
	Seq       int64 // session sequence at creation; stale output is gated on this
	Kind      InputKind
	Audio     core.AudioChunk // sealed utterance audio, KindAudio only
	Text      string          // user text (KindText) or proactive prompt (KindProactive)
	StartedAt time.Time

	// Filled in as the run progresses; read by the owner for history appends.
	Transcript string
	Reply      string

	ctx    context.Context
	cancel context.CancelFunc
}

func NewRun(seq int64, kind InputKind) *Run {
	ctx, cancel := context.WithCancel(context.Background())
	return &Run{
		ID:        uuid.New().String(),
		Seq:       seq,
		Kind:      kind,
		StartedAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Context is the run's cancellation token; every stage and every streamed
// unit of output observes it.
func (r *Run) Context() context.Context {
	return r.ctx
}

// Cancel invalidates the run. Idempotent.
func (r *Run) Cancel() {
	r.cancel()
}

func (r *Run) Done() <-chan struct{} {
	return r.ctx.Done()
}

// UserText is what the user contributed to this turn: the transcript for
// audio runs, the typed text otherwise.
func (r *Run) UserText() string {
	if r.Kind == KindAudio {
		return r.Transcript
	}
	return r.Text
}
