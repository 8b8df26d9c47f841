package protocol

import "encoding/json"

// MessageType enumerates all frame types exchanged with clients.
type MessageType string

// Client -> server
const (
	MsgMicAudioData          MessageType = "mic-audio-data"
	MsgMicAudioEnd           MessageType = "mic-audio-end"
	MsgTextInput             MessageType = "text-input"
	MsgAISpeakSignal         MessageType = "ai-speak-signal"
	MsgInterruptSignal       MessageType = "interrupt-signal"
	MsgFetchHistoryList      MessageType = "fetch-history-list"
	MsgFetchAndSetHistory    MessageType = "fetch-and-set-history"
	MsgCreateNewHistory      MessageType = "create-new-history"
	MsgDeleteHistory         MessageType = "delete-history"
	MsgHeartbeat             MessageType = "heartbeat"
	MsgAddClientToGroup      MessageType = "add-client-to-group"
	MsgRemoveClientFromGroup MessageType = "remove-client-from-group"
	MsgRequestGroupInfo      MessageType = "request-group-info"
	MsgRequestInitConfig     MessageType = "request-init-config"
	MsgFetchConfigs          MessageType = "fetch-configs"
)

// Server -> client
const (
	MsgASRPartial        MessageType = "asr-partial"
	MsgASRFinal          MessageType = "asr-final"
	MsgLLMPartial        MessageType = "llm-partial"
	MsgLLMFinal          MessageType = "llm-final"
	MsgTTSChunk          MessageType = "tts-chunk"
	MsgTTSDone           MessageType = "tts-done"
	MsgInterrupted       MessageType = "interrupted"
	MsgError             MessageType = "error"
	MsgSetModelAndConf   MessageType = "set-model-and-conf"
	MsgConfigs           MessageType = "configs"
	MsgHistoryList       MessageType = "history-list"
	MsgHistoryData       MessageType = "history-data"
	MsgNewHistoryCreated MessageType = "new-history-created"
	MsgHistoryDeleted    MessageType = "history-deleted"
	MsgHeartbeatAck      MessageType = "heartbeat-ack"
	MsgGroupUpdate       MessageType = "group-update"
	MsgGroupInfo         MessageType = "group-info"
)

// Envelope is the outer JSON wrapper for all frames. Clients send the body
// under either "data" or "payload"; outbound frames always use "data".
type Envelope struct {
	Type    MessageType     `json:"type"`
	Data    json.RawMessage `json:"data,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Body returns whichever of data/payload the sender used.
func (e *Envelope) Body() json.RawMessage {
	if len(e.Data) > 0 {
		return e.Data
	}
	return e.Payload
}

// --- Client -> server payloads ---

// MicAudioPayload carries one chunk of microphone audio. Web clients send
// float32 samples; telephony-style clients send base64 bytes with a format tag.
type MicAudioPayload struct {
	Audio      []float32 `json:"audio,omitempty"`
	Data       string    `json:"data,omitempty"`   // base64, used with Format "ulaw"/"alaw"
	Format     string    `json:"format,omitempty"` // "", "pcm", "ulaw", "alaw"
	SampleRate int       `json:"sample_rate,omitempty"`
}

type TextInputPayload struct {
	Text string `json:"text"`
}

// InterruptPayload optionally reports how much of the reply the client heard
// before interrupting, so history can record what was actually spoken.
type InterruptPayload struct {
	HeardResponse string `json:"heard_response,omitempty"`
}

type GroupOpPayload struct {
	GroupName string `json:"group_name"`
	ClientUID string `json:"client_uid,omitempty"` // defaults to the sender
}

type HistoryOpPayload struct {
	HistoryUID string `json:"history_uid"`
}

// --- Server -> client payloads ---

type TranscriptPayload struct {
	Text string `json:"text"`
}

type TTSChunkPayload struct {
	Audio      string `json:"audio"` // base64 16-bit PCM
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	Text       string `json:"text,omitempty"` // sentence this chunk voices, for display
	SliceIndex int    `json:"slice_index"`
}

type ErrorPayload struct {
	Stage   string `json:"stage,omitempty"`
	Message string `json:"message"`
}

type ModelInfo struct {
	Name                string         `json:"name"`
	URL                 string         `json:"url"`
	KScale              float64        `json:"kScale"`
	IdleMotionGroupName string         `json:"idleMotionGroupName"`
	EmotionMap          map[string]int `json:"emotionMap"`
}

type SetModelAndConfPayload struct {
	ModelInfo ModelInfo `json:"model_info"`
	ConfName  string    `json:"conf_name"`
	ConfUID   string    `json:"conf_uid"`
	ClientUID string    `json:"client_uid"`
}

type CharacterConfig struct {
	ConfName string `json:"conf_name"`
	ConfUID  string `json:"conf_uid"`
}

type ConfigsPayload struct {
	Configs []CharacterConfig `json:"configs"`
}

type HistoryMeta struct {
	UID           string `json:"uid"`
	LatestMessage string `json:"latest_message,omitempty"`
	Timestamp     string `json:"timestamp,omitempty"`
}

type HistoryListPayload struct {
	Histories []HistoryMeta `json:"histories"`
}

type HistoryMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

type HistoryDataPayload struct {
	HistoryUID string           `json:"history_uid"`
	Messages   []HistoryMessage `json:"messages"`
}

type NewHistoryCreatedPayload struct {
	HistoryUID string `json:"history_uid"`
}

type HistoryDeletedPayload struct {
	HistoryUID string `json:"history_uid"`
	Success    bool   `json:"success"`
}

type HeartbeatAckPayload struct {
	Timestamp string `json:"timestamp"`
}

type GroupUpdatePayload struct {
	GroupName string   `json:"group_name"`
	Members   []string `json:"members"`
}
