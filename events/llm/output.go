package llm

// LLMGenerateRequestEvent seeds a text run: the user text to respond to. Audio
// runs reach the LLM stage through the final ASR transcript instead.
type LLMGenerateRequestEvent struct {
	Text string
}

func (e *LLMGenerateRequestEvent) GetId() string {
	return "llm.generate_request"
}

type LLMResponseChunkEvent struct {
	Chunk string // A chunk of the LLM response text.
}

func (e *LLMResponseChunkEvent) GetId() string {
	return "llm.response_chunk"
}

type LLMResponseCompletedEvent struct {
	FullText string // The complete LLM response text.
}

func (e *LLMResponseCompletedEvent) GetId() string {
	return "llm.response_completed"
}
