package usecase

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/GiorgioBrux/raimu-sub001/internal/application/constant"
	"github.com/GiorgioBrux/raimu-sub001/internal/domain"
	"github.com/GiorgioBrux/raimu-sub001/internal/domain/events"
	"github.com/GiorgioBrux/raimu-sub001/internal/infra/adapters/memory"
)

// pipelineTimeout bounds one utterance's full transcribe/translate/synthesize
// round trip.
const pipelineTimeout = 60 * time.Second

// VoiceSampleStore resolves stored voice-sample references named in join
// requests.
type VoiceSampleStore interface {
	Sample(ctx context.Context, id string) ([]byte, error)
}

// SignalingUsecase dispatches every message a signaling connection can send
// and owns the disconnect cleanup sequence. One instance serves all
// connections; per-connection state lives in the domain.Session.
type SignalingUsecase struct {
	registry memory.RoomRegistry
	pipeline *UtterancePipeline
	samples  VoiceSampleStore // nil when no sample storage is configured
}

func NewSignalingUsecase(registry memory.RoomRegistry, pipeline *UtterancePipeline, samples VoiceSampleStore) *SignalingUsecase {
	return &SignalingUsecase{
		registry: registry,
		pipeline: pipeline,
		samples:  samples,
	}
}

// HandleMessage routes one inbound message. Malformed payloads and handler
// failures are reported back on the same connection; they never tear it down.
func (u *SignalingUsecase) HandleMessage(ctx context.Context, sess *domain.Session, data []byte) {
	var env events.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		u.replyError(sess, "malformed message")
		return
	}

	switch env.Type {
	case events.TypeCreateRoom:
		u.handleCreateRoom(sess, data)
	case events.TypeJoinRoom:
		u.handleJoinRoom(ctx, sess, data)
	case events.TypeCheckRoom:
		u.handleCheckRoom(sess, data)
	case events.TypeGetParticipants:
		u.handleGetParticipants(sess, data)
	case events.TypeTrackStateChange:
		u.handleTrackStateChange(sess, data)
	case events.TypeChat:
		u.handleChat(sess, data)
	case events.TypeTTSStatus:
		u.handleTTSStatus(sess, data)
	case events.TypeLanguageChanged:
		u.handleLanguageChanged(sess, data)
	case events.TypeTranscriptionEnabled:
		u.handleTranscriptionToggle(sess, data)
	case events.TypeTranscriptionRequest:
		u.handleTranscriptionRequest(sess, data)
	default:
		slog.Warn("unknown message type", slog.String(constant.MsgType, env.Type))
		u.replyError(sess, fmt.Sprintf("unknown message type %q", env.Type))
	}
}

// HandleDisconnect runs the full cleanup for a closing connection: observer
// deregistration, room departure and, when the room survives, the departure
// broadcast.
func (u *SignalingUsecase) HandleDisconnect(sess *domain.Session) {
	if pin := sess.ObservingPIN(); pin != "" {
		u.registry.RemoveObserver(pin, sess.Conn())
		sess.StopObserving()
	}

	roomID, userID := sess.RoomID(), sess.UserID()
	if roomID == "" || userID == "" {
		return
	}

	userName := ""
	if p, ok := u.registry.Participant(roomID, userID); ok {
		userName = p.Name
	}

	destroyed := u.registry.RemoveParticipant(roomID, userID)
	sess.Left()

	slog.Info(
		"participant left",
		slog.String(constant.RoomID, roomID),
		slog.String(constant.UserID, userID),
	)

	if destroyed {
		// Nobody is left to tell.
		return
	}

	u.registry.BroadcastToRoom(roomID, events.UserLeft{
		Type:     events.TypeUserLeft,
		UserID:   userID,
		UserName: userName,
	}, userID)
}

func (u *SignalingUsecase) handleCreateRoom(sess *domain.Session, data []byte) {
	var req events.CreateRoomRequest
	if err := json.Unmarshal(data, &req); err != nil {
		u.replyError(sess, "malformed createRoom payload")
		return
	}

	room, err := u.registry.CreateRoom(req.RoomName, req.UserID, req.UserName, req.MaxParticipants)
	if err != nil {
		u.replyError(sess, err.Error())
		return
	}

	// The creator is the first participant.
	p := &domain.Participant{
		ID:       req.UserID,
		Name:     req.UserName,
		JoinedAt: time.Now(),
		Session:  sess,
	}
	if err := u.registry.AddParticipant(room.ID, p); err != nil {
		u.replyError(sess, err.Error())
		return
	}
	sess.Joined(req.UserID, room.ID)

	status, _ := u.registry.Status(room.ID)
	u.send(sess, events.RoomCreated{Type: events.TypeRoomCreated, Room: status})

	slog.Info(
		"room created",
		slog.String(constant.RoomID, room.ID),
		slog.String(constant.PIN, room.PIN),
		slog.String(constant.UserID, req.UserID),
	)
}

func (u *SignalingUsecase) handleJoinRoom(ctx context.Context, sess *domain.Session, data []byte) {
	var req events.JoinRoomRequest
	if err := json.Unmarshal(data, &req); err != nil {
		u.replyJoinError(sess, events.JoinErrorValidation, "malformed joinRoom payload")
		return
	}
	if req.UserName == "" || len(req.UserName) > domain.MaxNameLength {
		u.replyJoinError(sess, events.JoinErrorValidation, fmt.Sprintf("user name must be 1..%d characters", domain.MaxNameLength))
		return
	}
	if _, err := uuid.Parse(req.UserID); err != nil {
		u.replyJoinError(sess, events.JoinErrorValidation, "user id is not a well-formed identifier")
		return
	}

	sample, err := u.resolveVoiceSample(ctx, req)
	if err != nil {
		u.replyJoinError(sess, events.JoinErrorValidation, err.Error())
		return
	}

	p := &domain.Participant{
		ID:          req.UserID,
		Name:        req.UserName,
		JoinedAt:    time.Now(),
		VoiceSample: sample,
		Session:     sess,
	}

	err = u.registry.AddParticipant(req.RoomID, p)
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		u.replyJoinError(sess, events.JoinErrorRoomNotFound, "room not found")
		return
	case errors.Is(err, domain.ErrRoomFull):
		u.replyJoinError(sess, events.JoinErrorRoomFull, "room is full")
		return
	case err != nil:
		u.replyJoinError(sess, events.JoinErrorValidation, err.Error())
		return
	}

	sess.Joined(req.UserID, req.RoomID)

	// Joining supersedes observing.
	if pin := sess.ObservingPIN(); pin != "" {
		u.registry.RemoveObserver(pin, sess.Conn())
		sess.StopObserving()
	}

	status, _ := u.registry.Status(req.RoomID)
	u.send(sess, events.RoomJoined{Type: events.TypeRoomJoined, Room: status})

	u.registry.BroadcastToRoom(req.RoomID, events.UserJoined{
		Type: events.TypeUserJoined,
		User: events.ParticipantInfo{ID: p.ID, Name: p.Name, JoinedAt: p.JoinedAt},
	}, p.ID)

	slog.Info(
		"participant joined",
		slog.String(constant.RoomID, req.RoomID),
		slog.String(constant.UserID, p.ID),
	)
}

// resolveVoiceSample decodes the inline sample or fetches the referenced one.
// A missing stored sample degrades to joining without a sample; a garbled
// inline sample is a validation failure.
func (u *SignalingUsecase) resolveVoiceSample(ctx context.Context, req events.JoinRoomRequest) ([]byte, error) {
	if req.VoiceSample != "" {
		sample, err := base64.StdEncoding.DecodeString(req.VoiceSample)
		if err != nil {
			return nil, fmt.Errorf("voice sample is not valid base64")
		}
		return sample, nil
	}

	if req.VoiceSampleRef != "" && u.samples != nil {
		sample, err := u.samples.Sample(ctx, req.VoiceSampleRef)
		if err != nil {
			slog.Warn(
				"voice sample lookup failed",
				slog.String(constant.UserID, req.UserID),
				slog.Any(constant.Error, err),
			)
			return nil, nil
		}
		return sample, nil
	}

	return nil, nil
}

func (u *SignalingUsecase) handleCheckRoom(sess *domain.Session, data []byte) {
	var req events.CheckRoomRequest
	if err := json.Unmarshal(data, &req); err != nil {
		u.replyError(sess, "malformed checkRoom payload")
		return
	}

	status, ok := u.registry.StatusByPIN(req.PIN)
	if !ok {
		u.send(sess, events.RoomNotFound{Type: events.TypeRoomNotFound, PIN: req.PIN})
		return
	}

	// Observers keep receiving status updates until they join or disconnect.
	if prev := sess.ObservingPIN(); prev != "" && prev != req.PIN {
		u.registry.RemoveObserver(prev, sess.Conn())
	}
	u.registry.AddObserver(req.PIN, sess.Conn())
	sess.Observe(req.PIN)

	u.send(sess, events.RoomStatusNotice{Type: events.TypeRoomStatus, Status: status})
}

func (u *SignalingUsecase) handleGetParticipants(sess *domain.Session, data []byte) {
	var req events.GetParticipantsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		u.replyError(sess, "malformed getParticipants payload")
		return
	}

	status, ok := u.registry.Status(req.RoomID)
	if !ok {
		u.replyError(sess, "room not found")
		return
	}

	u.send(sess, events.ParticipantList{
		Type:         events.TypeParticipants,
		RoomID:       req.RoomID,
		Participants: status.Participants,
	})
}

func (u *SignalingUsecase) handleTrackStateChange(sess *domain.Session, data []byte) {
	var msg events.TrackStateChange
	if err := json.Unmarshal(data, &msg); err != nil {
		u.replyError(sess, "malformed trackStateChange payload")
		return
	}

	roomID, userID := sess.RoomID(), sess.UserID()
	if roomID == "" {
		u.replyError(sess, "not in a room")
		return
	}

	// The relayed message always carries the authenticated sender, not
	// whatever the client claimed.
	msg.Type = events.TypeTrackStateChange
	msg.RoomID = roomID
	msg.UserID = userID

	if msg.TargetUserID != "" {
		if !u.registry.SendToParticipant(roomID, msg.TargetUserID, msg) {
			u.replyError(sess, "target participant not found")
		}
		return
	}

	u.registry.BroadcastToRoom(roomID, msg, userID)
}

func (u *SignalingUsecase) handleChat(sess *domain.Session, data []byte) {
	var msg events.ChatMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		u.replyError(sess, "malformed chat payload")
		return
	}

	roomID, userID := sess.RoomID(), sess.UserID()
	if roomID == "" {
		u.replyError(sess, "not in a room")
		return
	}

	userName := ""
	if p, ok := u.registry.Participant(roomID, userID); ok {
		userName = p.Name
	}

	u.registry.BroadcastToRoom(roomID, events.ChatRelay{
		Type:      events.TypeChat,
		Sender:    events.Identity{ID: userID, Name: userName},
		Message:   msg.Message,
		Timestamp: msg.Timestamp,
	}, userID)
}

func (u *SignalingUsecase) handleTTSStatus(sess *domain.Session, data []byte) {
	var msg events.TTSStatus
	if err := json.Unmarshal(data, &msg); err != nil {
		u.replyError(sess, "malformed TTSStatus payload")
		return
	}

	sess.SetTTSEnabled(msg.Enabled)
}

func (u *SignalingUsecase) handleLanguageChanged(sess *domain.Session, data []byte) {
	var msg events.LanguageChanged
	if err := json.Unmarshal(data, &msg); err != nil {
		u.replyError(sess, "malformed languageChanged payload")
		return
	}
	if msg.Language == "" {
		u.replyError(sess, "language must not be empty")
		return
	}

	sess.SetLanguage(msg.Language)

	slog.Debug(
		"language changed",
		slog.String(constant.UserID, sess.UserID()),
		slog.String(constant.Language, msg.Language),
	)
}

func (u *SignalingUsecase) handleTranscriptionToggle(sess *domain.Session, data []byte) {
	var msg events.TranscriptionToggle
	if err := json.Unmarshal(data, &msg); err != nil {
		u.replyError(sess, "malformed transcriptionEnabled payload")
		return
	}

	roomID, userID := sess.RoomID(), sess.UserID()
	if roomID == "" {
		u.replyError(sess, "not in a room")
		return
	}

	if !u.registry.SetTranscription(roomID, msg.Enabled) {
		// No-op toggles are not rebroadcast.
		return
	}

	userName := ""
	if p, ok := u.registry.Participant(roomID, userID); ok {
		userName = p.Name
	}

	u.registry.BroadcastToRoom(roomID, events.TranscriptionState{
		Type:     events.TypeTranscriptionEnabled,
		Enabled:  msg.Enabled,
		UserID:   userID,
		UserName: userName,
	}, "")
}

func (u *SignalingUsecase) handleTranscriptionRequest(sess *domain.Session, data []byte) {
	var req events.TranscriptionRequest
	if err := json.Unmarshal(data, &req); err != nil {
		u.replyError(sess, "malformed transcriptionRequest payload")
		return
	}

	roomID, userID := sess.RoomID(), sess.UserID()
	if roomID == "" {
		u.replyError(sess, "not in a room")
		return
	}

	// The pipeline runs off the read loop so a slow engine never blocks
	// subsequent messages from this connection.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), pipelineTimeout)
		defer cancel()

		if err := u.pipeline.Process(ctx, roomID, userID, req); err != nil {
			slog.Warn(
				"utterance pipeline failed",
				slog.String(constant.RoomID, roomID),
				slog.String(constant.UserID, userID),
				slog.Any(constant.Error, err),
			)
			u.replyError(sess, "transcription failed")
		}
	}()
}

func (u *SignalingUsecase) send(sess *domain.Session, msg any) {
	if err := sess.Send(msg); err != nil {
		slog.Warn("session write failed", slog.Any(constant.Error, err))
	}
}

func (u *SignalingUsecase) replyError(sess *domain.Session, msg string) {
	u.send(sess, events.NewError(msg))
}

func (u *SignalingUsecase) replyJoinError(sess *domain.Session, code, msg string) {
	u.send(sess, events.JoinError{Type: events.TypeJoinError, Code: code, Message: msg})
}
