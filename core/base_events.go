package core

// StageErrorEvent is emitted to the pipeline top when a stage adapter fails.
// The run is aborted and the failing stage is reported to the client.
type StageErrorEvent struct {
	Stage string
	Error string
}

func (e *StageErrorEvent) GetId() string {
	return "shared.stage_error"
}
