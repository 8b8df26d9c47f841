// Package router dispatches inbound protocol frames to session operations and
// translates pipeline events back into outbound frames. It owns the glue the
// other packages deliberately avoid: protocol on one side, sessions, history
// and the pipeline on the other.
package router

import (
	"encoding/base64"
	"time"

	"vocalink/audioutil"
	"vocalink/config"
	"vocalink/core"
	asrevents "vocalink/events/asr"
	llmevents "vocalink/events/llm"
	ttsevents "vocalink/events/tts"
	"vocalink/history"
	"vocalink/pipeline"
	"vocalink/protocol"
	"vocalink/session"
)

type Router struct {
	registry *session.Registry
	store    history.Store
	pipe     *pipeline.Pipeline
	settings *config.Settings
	logger   *core.Logger
}

func New(registry *session.Registry, store history.Store, pipe *pipeline.Pipeline, settings *config.Settings, logger *core.Logger) *Router {
	return &Router{
		registry: registry,
		store:    store,
		pipe:     pipe,
		settings: settings,
		logger:   logger,
	}
}

// HandleFrame processes one inbound frame. A returned *core.ProtocolError
// means the frame was bad but the connection stays usable; the caller logs it
// and reads on.
func (r *Router) HandleFrame(s *session.Session, raw []byte) error {
	env, err := protocol.Unmarshal(raw)
	if err != nil {
		return err
	}
	s.Touch()

	switch env.Type {
	case protocol.MsgMicAudioData:
		return r.handleMicAudio(s, env.Body())
	case protocol.MsgMicAudioEnd:
		return s.FinishAudio()
	case protocol.MsgTextInput:
		return r.handleTextInput(s, env.Body())
	case protocol.MsgAISpeakSignal:
		return s.ProactiveSpeak(r.settings.ProactivePrompt)
	case protocol.MsgInterruptSignal:
		return r.handleInterrupt(s, env.Body())
	case protocol.MsgFetchHistoryList:
		return r.handleFetchHistoryList(s)
	case protocol.MsgFetchAndSetHistory:
		return r.handleFetchAndSetHistory(s, env.Body())
	case protocol.MsgCreateNewHistory:
		return r.handleCreateHistory(s)
	case protocol.MsgDeleteHistory:
		return r.handleDeleteHistory(s, env.Body())
	case protocol.MsgHeartbeat:
		r.send(s, protocol.MsgHeartbeatAck, protocol.HeartbeatAckPayload{
			Timestamp: time.Now().Format(time.RFC3339),
		})
		return nil
	case protocol.MsgAddClientToGroup:
		return r.handleAddToGroup(s, env.Body())
	case protocol.MsgRemoveClientFromGroup:
		return r.handleRemoveFromGroup(s, env.Body())
	case protocol.MsgRequestGroupInfo:
		r.send(s, protocol.MsgGroupInfo, protocol.GroupUpdatePayload{
			GroupName: s.Group(),
			Members:   r.registry.GroupMembers(s.Group()),
		})
		return nil
	case protocol.MsgRequestInitConfig:
		r.sendInitConfig(s)
		return nil
	case protocol.MsgFetchConfigs:
		r.send(s, protocol.MsgConfigs, protocol.ConfigsPayload{Configs: r.characterList()})
		return nil
	default:
		return core.NewProtocolError("unknown message type %q", env.Type)
	}
}

// send marshals one outbound frame and queues it on a session.
func (r *Router) send(s *session.Session, msgType protocol.MessageType, payload interface{}) {
	frame, err := protocol.Marshal(msgType, payload)
	if err != nil {
		r.logger.Error("marshal outbound frame", "type", string(msgType), "error", err.Error())
		return
	}
	s.Send(frame)
}

// SendInitConfig announces the active model and character to a session,
// typically right after connect.
func (r *Router) SendInitConfig(s *session.Session) {
	r.sendInitConfig(s)
}

func (r *Router) sendInitConfig(s *session.Session) {
	r.send(s, protocol.MsgSetModelAndConf, protocol.SetModelAndConfPayload{
		ModelInfo: r.settings.ModelInfo,
		ConfName:  r.settings.ConfName,
		ConfUID:   r.settings.ConfUID,
		ClientUID: s.ID,
	})
}

func (r *Router) characterList() []protocol.CharacterConfig {
	configs := []protocol.CharacterConfig{{ConfName: r.settings.ConfName, ConfUID: r.settings.ConfUID}}
	for _, c := range r.settings.Characters {
		if c.ConfUID == r.settings.ConfUID {
			continue
		}
		configs = append(configs, c)
	}
	return configs
}

// --- conversational input ---

func (r *Router) handleMicAudio(s *session.Session, body []byte) error {
	payload, err := protocol.UnmarshalPayload[protocol.MicAudioPayload](body)
	if err != nil {
		return err
	}

	var pcm []byte
	switch payload.Format {
	case "", "pcm":
		if len(payload.Audio) == 0 {
			return core.NewProtocolError("mic-audio-data without samples")
		}
		pcm = audioutil.Float32ToPCM16(payload.Audio)
	case "ulaw", "alaw":
		raw, err := base64.StdEncoding.DecodeString(payload.Data)
		if err != nil {
			return core.NewProtocolError("mic-audio-data bad base64: %v", err)
		}
		if payload.Format == "ulaw" {
			pcm = audioutil.DecodeULaw(raw)
		} else {
			pcm = audioutil.DecodeALaw(raw)
		}
	default:
		return core.NewProtocolError("mic-audio-data unknown format %q", payload.Format)
	}
	return s.AcceptAudioChunk(pcm, payload.SampleRate)
}

func (r *Router) handleTextInput(s *session.Session, body []byte) error {
	payload, err := protocol.UnmarshalPayload[protocol.TextInputPayload](body)
	if err != nil {
		return err
	}
	if payload.Text == "" {
		return core.NewProtocolError("text-input without text")
	}
	return s.SubmitText(payload.Text)
}

func (r *Router) handleInterrupt(s *session.Session, body []byte) error {
	payload, err := protocol.UnmarshalPayload[protocol.InterruptPayload](body)
	if err != nil {
		return err
	}
	if !s.Interrupt() {
		return nil
	}
	if payload.HeardResponse != "" {
		// Record what was actually heard, not the full generated reply.
		r.appendHistory(s, history.RoleAI, payload.HeardResponse)
	}
	frame, err := protocol.Marshal(protocol.MsgInterrupted, protocol.TranscriptPayload{Text: payload.HeardResponse})
	if err != nil {
		return err
	}
	s.Send(frame)
	r.mirror(s, frame)
	return nil
}

// --- history operations ---

func (r *Router) handleFetchHistoryList(s *session.Session) error {
	metas, err := r.store.List(r.settings.ConfUID)
	if err != nil {
		return err
	}
	out := make([]protocol.HistoryMeta, 0, len(metas))
	for _, m := range metas {
		meta := protocol.HistoryMeta{UID: m.UID, Timestamp: m.Timestamp.Format(time.RFC3339)}
		if m.LatestMessage != nil {
			meta.LatestMessage = m.LatestMessage.Content
		}
		out = append(out, meta)
	}
	r.send(s, protocol.MsgHistoryList, protocol.HistoryListPayload{Histories: out})
	return nil
}

func (r *Router) handleFetchAndSetHistory(s *session.Session, body []byte) error {
	payload, err := protocol.UnmarshalPayload[protocol.HistoryOpPayload](body)
	if err != nil {
		return err
	}
	if payload.HistoryUID == "" {
		return core.NewProtocolError("fetch-and-set-history without history_uid")
	}
	msgs, err := r.store.Get(r.settings.ConfUID, payload.HistoryUID)
	if err != nil {
		return err
	}
	s.SetHistoryUID(payload.HistoryUID)
	out := make([]protocol.HistoryMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, protocol.HistoryMessage{
			Role:      m.Role,
			Content:   m.Content,
			Timestamp: m.Timestamp.Format(time.RFC3339),
		})
	}
	r.send(s, protocol.MsgHistoryData, protocol.HistoryDataPayload{
		HistoryUID: payload.HistoryUID,
		Messages:   out,
	})
	return nil
}

func (r *Router) handleCreateHistory(s *session.Session) error {
	uid, err := r.store.Create(r.settings.ConfUID)
	if err != nil {
		return err
	}
	s.SetHistoryUID(uid)
	r.send(s, protocol.MsgNewHistoryCreated, protocol.NewHistoryCreatedPayload{HistoryUID: uid})
	return nil
}

func (r *Router) handleDeleteHistory(s *session.Session, body []byte) error {
	payload, err := protocol.UnmarshalPayload[protocol.HistoryOpPayload](body)
	if err != nil {
		return err
	}
	ok, err := r.store.Delete(r.settings.ConfUID, payload.HistoryUID)
	if err != nil {
		return err
	}
	if ok && s.HistoryUID() == payload.HistoryUID {
		s.SetHistoryUID("")
	}
	r.send(s, protocol.MsgHistoryDeleted, protocol.HistoryDeletedPayload{
		HistoryUID: payload.HistoryUID,
		Success:    ok,
	})
	return nil
}

func (r *Router) appendHistory(s *session.Session, role, content string) {
	uid := s.HistoryUID()
	if uid == "" || content == "" {
		return
	}
	err := r.store.Append(r.settings.ConfUID, uid, history.Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
	if err != nil {
		r.logger.Warn("history append failed", "history_uid", uid, "error", err.Error())
	}
}

// --- group operations ---

func (r *Router) handleAddToGroup(s *session.Session, body []byte) error {
	payload, err := protocol.UnmarshalPayload[protocol.GroupOpPayload](body)
	if err != nil {
		return err
	}
	if payload.GroupName == "" {
		return core.NewProtocolError("add-client-to-group without group_name")
	}
	target := payload.ClientUID
	if target == "" {
		target = s.ID
	}
	joined, leftGroup, left, err := r.registry.AddToGroup(payload.GroupName, target)
	if err != nil {
		return core.NewProtocolError("%v", err)
	}
	r.broadcastGroupUpdate(payload.GroupName, joined)
	if leftGroup != "" {
		r.broadcastGroupUpdate(leftGroup, left)
	}
	return nil
}

func (r *Router) handleRemoveFromGroup(s *session.Session, body []byte) error {
	payload, err := protocol.UnmarshalPayload[protocol.GroupOpPayload](body)
	if err != nil {
		return err
	}
	if payload.GroupName == "" {
		return core.NewProtocolError("remove-client-from-group without group_name")
	}
	target := payload.ClientUID
	if target == "" {
		target = s.ID
	}
	roster, err := r.registry.RemoveFromGroup(payload.GroupName, target)
	if err != nil {
		return core.NewProtocolError("%v", err)
	}
	r.broadcastGroupUpdate(payload.GroupName, roster)
	// The removed member gets the update too, so it can clear its roster.
	if removed, ok := r.registry.Get(target); ok {
		r.send(removed, protocol.MsgGroupUpdate, protocol.GroupUpdatePayload{
			GroupName: payload.GroupName,
			Members:   roster,
		})
	}
	return nil
}

// NotifyDeparture tells a group its roster shrank, used when a member
// disconnects.
func (r *Router) NotifyDeparture(groupName string, roster []string) {
	if groupName == "" {
		return
	}
	r.broadcastGroupUpdate(groupName, roster)
}

func (r *Router) broadcastGroupUpdate(groupName string, roster []string) {
	frame, err := protocol.Marshal(protocol.MsgGroupUpdate, protocol.GroupUpdatePayload{
		GroupName: groupName,
		Members:   roster,
	})
	if err != nil {
		r.logger.Error("marshal group update", "error", err.Error())
		return
	}
	r.registry.Broadcast(groupName, frame, "")
}

// --- pipeline integration ---

// StartRun implements session.RunDriver: it assembles the conversational
// context and launches the stage chain, binding run output back to the
// session.
func (r *Router) StartRun(s *session.Session, run *pipeline.Run) error {
	baseContext := core.LLMContext{}
	baseContext.AddSystemMessage(r.settings.PersonaPrompt)
	if uid := s.HistoryUID(); uid != "" {
		msgs, err := r.store.Get(r.settings.ConfUID, uid)
		if err != nil {
			r.logger.Warn("history load failed", "history_uid", uid, "error", err.Error())
		}
		for _, m := range msgs {
			switch m.Role {
			case history.RoleHuman:
				baseContext.AddUserMessage(m.Content)
			case history.RoleAI:
				baseContext.AddAssistantMessage(m.Content)
			}
		}
	}
	return r.pipe.StartRun(run, baseContext, func(run *pipeline.Run, event core.IEvent) {
		r.deliverRunEvent(s, run, event)
	})
}

// deliverRunEvent translates pipeline output into outbound frames. The frame
// is built first and then handed to the session, whose sequence check and
// enqueue are one atomic step — events from a superseded run are discarded,
// and an interrupt racing this delivery can never leave a stale frame queued
// after the interrupted frame.
func (r *Router) deliverRunEvent(s *session.Session, run *pipeline.Run, event core.IEvent) {
	if run.Seq != s.CurrentSeq() {
		return
	}

	var (
		msgType protocol.MessageType
		payload interface{}
	)
	switch e := event.(type) {
	case *asrevents.ASRPartialOutputEvent:
		msgType, payload = protocol.MsgASRPartial, protocol.TranscriptPayload{Text: e.Text}
	case *asrevents.ASRFinalOutputEvent:
		msgType, payload = protocol.MsgASRFinal, protocol.TranscriptPayload{Text: e.Text}
	case *llmevents.LLMResponseChunkEvent:
		msgType, payload = protocol.MsgLLMPartial, protocol.TranscriptPayload{Text: e.Chunk}
	case *llmevents.LLMResponseCompletedEvent:
		msgType, payload = protocol.MsgLLMFinal, protocol.TranscriptPayload{Text: e.FullText}
	case *ttsevents.TTSOutputEvent:
		msgType, payload = protocol.MsgTTSChunk, protocol.TTSChunkPayload{
			Audio:      base64.StdEncoding.EncodeToString(e.AudioChunk.Data),
			SampleRate: e.AudioChunk.SampleRate,
			Channels:   e.AudioChunk.Channels,
			Text:       e.Text,
			SliceIndex: e.SliceIndex,
		}
	case *ttsevents.TTSCompletedEvent:
		msgType, payload = protocol.MsgTTSDone, nil
	case *core.StageErrorEvent:
		msgType, payload = protocol.MsgError, protocol.ErrorPayload{Stage: e.Stage, Message: e.Error}
	default:
		// No-op turns produce no frame but still reset the state machine.
	}

	var frame []byte
	if msgType != "" {
		var err error
		frame, err = protocol.Marshal(msgType, payload)
		if err != nil {
			r.logger.Error("marshal run event", "type", string(msgType), "error", err.Error())
			return
		}
	}

	if !s.DeliverRunEvent(run, event, frame) {
		return
	}

	// History and group fan-out only happen for events the live run actually
	// delivered; typed input is committed once the turn completed, and
	// proactive prompts are never recorded as the user's words.
	switch e := event.(type) {
	case *asrevents.ASRFinalOutputEvent:
		r.appendHistory(s, history.RoleHuman, e.Text)
	case *llmevents.LLMResponseCompletedEvent:
		if run.Kind == pipeline.KindText {
			r.appendHistory(s, history.RoleHuman, run.UserText())
		}
		r.appendHistory(s, history.RoleAI, e.FullText)
	}
	if frame != nil {
		r.mirror(s, frame)
	}
}

// mirror forwards a frame to the sender's group, if it has one.
func (r *Router) mirror(s *session.Session, frame []byte) {
	if group := s.Group(); group != "" {
		r.registry.Broadcast(group, frame, s.ID)
	}
}
