package core

import "fmt"

// Pipeline stage names used in StageError and in error frames sent to clients.
const (
	StageVAD = "vad"
	StageASR = "asr"
	StageLLM = "llm"
	StageTTS = "tts"
)

// ProtocolError reports a malformed or unrecognized inbound frame. It is
// tolerated: the router logs it and keeps the connection open.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "protocol: " + e.Reason
}

func NewProtocolError(format string, args ...interface{}) *ProtocolError {
	return &ProtocolError{Reason: fmt.Sprintf(format, args...)}
}

// StageError reports a failure inside one pipeline stage adapter. It aborts
// the current run only; the session returns to idle.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return e.Stage + " stage: " + e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func NewStageError(stage string, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}

// ConnectionError reports a transport failure. The session is terminated and
// removed from the registry and its group.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return "connection: " + e.Err.Error()
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
