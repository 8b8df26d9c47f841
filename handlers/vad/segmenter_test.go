package vad

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vocalink/core"
)

// scriptedVAD replays a fixed sequence of speech/silence classifications.
type scriptedVAD struct {
	script []bool
	pos    int
	resets int
}

func (s *scriptedVAD) ProcessAudio(chunk core.AudioChunk) (core.VADResult, error) {
	speech := false
	if s.pos < len(s.script) {
		speech = s.script[s.pos]
	}
	s.pos++
	return core.VADResult{IsSpeech: speech, Confidence: 1.0}, nil
}

func (s *scriptedVAD) Reset() {
	s.resets++
}

// chunk100ms is 100ms of 16kHz mono 16-bit PCM.
func chunk100ms() core.AudioChunk {
	return core.AudioChunk{
		Data:       make([]byte, 16000/10*2),
		SampleRate: 16000,
		Channels:   1,
		Format:     core.PCM,
	}
}

func testConfig() Config {
	return Config{
		MinConfidence:     0.5,
		SilenceHangoverMs: 300,
		MinSpeechMs:       200,
		MaxUtteranceMs:    30000,
	}
}

func TestSegmenterEndpointsAfterSilenceHangover(t *testing.T) {
	// 300ms speech, then silence; the endpoint fires once 300ms of silence
	// accumulated.
	script := []bool{true, true, true, false, false, false}
	seg := NewSegmenter(&scriptedVAD{script: script}, testConfig())

	for i := 0; i < 5; i++ {
		ended, err := seg.Feed(chunk100ms())
		require.NoError(t, err)
		assert.False(t, ended, "chunk %d should not end the utterance", i)
	}
	ended, err := seg.Feed(chunk100ms())
	require.NoError(t, err)
	assert.True(t, ended)
	assert.True(t, seg.SawSpeech())
}

func TestSegmenterIgnoresLeadingSilence(t *testing.T) {
	seg := NewSegmenter(&scriptedVAD{script: []bool{false, false, false, false}}, testConfig())

	for i := 0; i < 4; i++ {
		ended, err := seg.Feed(chunk100ms())
		require.NoError(t, err)
		assert.False(t, ended)
	}
	assert.False(t, seg.SawSpeech())
}

func TestSegmenterShortBlipDoesNotEndpoint(t *testing.T) {
	// 100ms of speech is below MinSpeechMs, so trailing silence never fires.
	script := []bool{true, false, false, false, false}
	seg := NewSegmenter(&scriptedVAD{script: script}, testConfig())

	for i := 0; i < 5; i++ {
		ended, err := seg.Feed(chunk100ms())
		require.NoError(t, err)
		assert.False(t, ended)
	}
	assert.True(t, seg.SawSpeech())
}

func TestSegmenterMaxUtteranceCap(t *testing.T) {
	cfg := testConfig()
	cfg.MaxUtteranceMs = 500
	seg := NewSegmenter(&scriptedVAD{script: []bool{true, true, true, true, true}}, cfg)

	var ended bool
	var err error
	for i := 0; i < 5; i++ {
		ended, err = seg.Feed(chunk100ms())
		require.NoError(t, err)
	}
	assert.True(t, ended)
}

func TestSegmenterReset(t *testing.T) {
	service := &scriptedVAD{script: []bool{true, true, true}}
	seg := NewSegmenter(service, testConfig())
	for i := 0; i < 3; i++ {
		_, err := seg.Feed(chunk100ms())
		require.NoError(t, err)
	}
	require.True(t, seg.SawSpeech())

	seg.Reset()
	assert.False(t, seg.SawSpeech())
	assert.Equal(t, 1, service.resets)
}
