package session

// NoOpTurnEvent ends a run whose sealed transcript was empty or silent. No
// frame is sent; the session just returns to idle.
type NoOpTurnEvent struct {
}

func (e *NoOpTurnEvent) GetId() string {
	return "session.noop_turn"
}
