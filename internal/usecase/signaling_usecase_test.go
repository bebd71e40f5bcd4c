package usecase

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	"github.com/GiorgioBrux/raimu-sub001/internal/domain"
	"github.com/GiorgioBrux/raimu-sub001/internal/domain/events"
	"github.com/GiorgioBrux/raimu-sub001/internal/infra/adapters/memory"
)

func newSignalingFixture(t *testing.T) (*SignalingUsecase, memory.RoomRegistry) {
	t.Helper()

	registry := memory.NewRoomRegistry()
	pipeline := NewUtterancePipeline(registry, &fakeTranscriber{text: "hi"}, &fakeTranslator{}, &fakeSynthesizer{})

	return NewSignalingUsecase(registry, pipeline, nil), registry
}

func dispatch(t *testing.T, u *SignalingUsecase, sess *domain.Session, v any) {
	t.Helper()

	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal message: %v", err)
	}
	u.HandleMessage(context.Background(), sess, data)
}

func createRoom(t *testing.T, u *SignalingUsecase) (*domain.Session, *fakeConn, events.RoomStatus) {
	t.Helper()

	conn := &fakeConn{}
	sess := domain.NewSession(conn)

	dispatch(t, u, sess, map[string]any{
		"type":            events.TypeCreateRoom,
		"roomName":        "standup",
		"userId":          uuid.NewString(),
		"userName":        "alice",
		"maxParticipants": 4,
	})

	for _, m := range conn.messages() {
		if created, ok := m.(events.RoomCreated); ok {
			return sess, conn, created.Room
		}
	}

	t.Fatalf("no roomCreated reply, got %v", conn.messages())
	return nil, nil, events.RoomStatus{}
}

func joinRoom(t *testing.T, u *SignalingUsecase, roomID, name string) (*domain.Session, *fakeConn) {
	t.Helper()

	conn := &fakeConn{}
	sess := domain.NewSession(conn)

	dispatch(t, u, sess, map[string]any{
		"type":     events.TypeJoinRoom,
		"roomId":   roomID,
		"userId":   uuid.NewString(),
		"userName": name,
	})

	return sess, conn
}

func (c *fakeConn) messages() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]any, len(c.msgs))
	copy(out, c.msgs)
	return out
}

func findMessage[T any](msgs []any) (T, bool) {
	for _, m := range msgs {
		if v, ok := m.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func TestCreateRoomJoinsCreator(t *testing.T) {
	u, registry := newSignalingFixture(t)

	sess, _, status := createRoom(t, u)

	if status.ParticipantCount != 1 {
		t.Fatalf("new room has %d participants, want the creator only", status.ParticipantCount)
	}
	if sess.RoomID() != status.ID {
		t.Fatal("creator session not bound to the new room")
	}

	members, ok := registry.Participants(status.ID)
	if !ok || len(members) != 1 {
		t.Fatal("registry does not hold the creator as first participant")
	}
}

func TestJoinRoomNotifiesMembers(t *testing.T) {
	u, _ := newSignalingFixture(t)
	_, creatorConn, status := createRoom(t, u)

	joinerSess, joinerConn := joinRoom(t, u, status.ID, "bob")

	joined, ok := findMessage[events.RoomJoined](joinerConn.messages())
	if !ok {
		t.Fatalf("no roomJoined reply, got %v", joinerConn.messages())
	}
	if joined.Room.ParticipantCount != 2 {
		t.Fatalf("roomJoined count = %d, want 2", joined.Room.ParticipantCount)
	}
	if joinerSess.RoomID() != status.ID {
		t.Fatal("joiner session not bound to the room")
	}

	userJoined, ok := findMessage[events.UserJoined](creatorConn.messages())
	if !ok {
		t.Fatal("creator did not receive userJoined")
	}
	if userJoined.User.Name != "bob" {
		t.Fatalf("userJoined name = %q, want bob", userJoined.User.Name)
	}
}

func TestJoinRoomErrors(t *testing.T) {
	u, _ := newSignalingFixture(t)
	_, _, status := createRoom(t, u)

	_, conn := joinRoom(t, u, uuid.NewString(), "ghost")
	if je, ok := findMessage[events.JoinError](conn.messages()); !ok || je.Code != events.JoinErrorRoomNotFound {
		t.Fatalf("unknown room join reply = %v, want joinError/roomNotFound", conn.messages())
	}

	// Fill the remaining seats, then one more.
	for _, name := range []string{"bob", "carol", "dave"} {
		joinRoom(t, u, status.ID, name)
	}
	_, lateConn := joinRoom(t, u, status.ID, "late")
	if je, ok := findMessage[events.JoinError](lateConn.messages()); !ok || je.Code != events.JoinErrorRoomFull {
		t.Fatalf("full room join reply = %v, want joinError/roomFull", lateConn.messages())
	}

	_, badConn := joinRoom(t, u, status.ID, "")
	if je, ok := findMessage[events.JoinError](badConn.messages()); !ok || je.Code != events.JoinErrorValidation {
		t.Fatalf("empty name join reply = %v, want joinError/validation", badConn.messages())
	}
}

func TestJoinRoomRejectsMalformedUserID(t *testing.T) {
	u, registry := newSignalingFixture(t)
	_, _, status := createRoom(t, u)

	conn := &fakeConn{}
	sess := domain.NewSession(conn)

	dispatch(t, u, sess, map[string]any{
		"type":     events.TypeJoinRoom,
		"roomId":   status.ID,
		"userId":   "not-a-uuid",
		"userName": "mallory",
	})

	je, ok := findMessage[events.JoinError](conn.messages())
	if !ok || je.Code != events.JoinErrorValidation {
		t.Fatalf("malformed user id reply = %v, want joinError/validation", conn.messages())
	}
	if sess.RoomID() != "" {
		t.Fatal("session bound to a room despite the rejected join")
	}

	members, ok := registry.Participants(status.ID)
	if !ok || len(members) != 1 {
		t.Fatalf("room has %d participants after rejected join, want the creator alone", len(members))
	}
}

func TestCheckRoomObserves(t *testing.T) {
	u, _ := newSignalingFixture(t)
	_, _, status := createRoom(t, u)

	conn := &fakeConn{}
	sess := domain.NewSession(conn)

	dispatch(t, u, sess, map[string]any{"type": events.TypeCheckRoom, "pin": status.PIN})

	notice, ok := findMessage[events.RoomStatusNotice](conn.messages())
	if !ok {
		t.Fatalf("no roomStatus reply, got %v", conn.messages())
	}
	if notice.Status.ID != status.ID {
		t.Fatal("status notice for the wrong room")
	}
	if sess.ObservingPIN() != status.PIN {
		t.Fatal("session not marked as observing the PIN")
	}

	// The observer now hears about joins without asking again.
	joinRoom(t, u, status.ID, "bob")
	msgs := conn.messages()
	if len(msgs) < 2 {
		t.Fatalf("observer got %d messages after a join, want a follow-up status", len(msgs))
	}
}

func TestCheckRoomUnknownPIN(t *testing.T) {
	u, _ := newSignalingFixture(t)

	conn := &fakeConn{}
	sess := domain.NewSession(conn)

	dispatch(t, u, sess, map[string]any{"type": events.TypeCheckRoom, "pin": "000000"})

	if nf, ok := findMessage[events.RoomNotFound](conn.messages()); !ok || nf.PIN != "000000" {
		t.Fatalf("unknown PIN reply = %v, want roomNotFound", conn.messages())
	}
	if sess.ObservingPIN() != "" {
		t.Fatal("session observes a PIN that does not exist")
	}
}

func TestDisconnectBroadcastsUserLeft(t *testing.T) {
	u, _ := newSignalingFixture(t)
	_, creatorConn, status := createRoom(t, u)

	bobSess, _ := joinRoom(t, u, status.ID, "bob")

	u.HandleDisconnect(bobSess)

	left, ok := findMessage[events.UserLeft](creatorConn.messages())
	if !ok {
		t.Fatal("remaining member did not receive userLeft")
	}
	if left.UserName != "bob" {
		t.Fatalf("userLeft name = %q, want bob", left.UserName)
	}
	if bobSess.RoomID() != "" {
		t.Fatal("disconnected session still bound to a room")
	}
}

func TestDisconnectLastMemberDestroysRoom(t *testing.T) {
	u, registry := newSignalingFixture(t)
	sess, _, status := createRoom(t, u)

	u.HandleDisconnect(sess)

	if _, ok := registry.Status(status.ID); ok {
		t.Fatal("room survived its last member's disconnect")
	}
}

func TestSessionPreferenceMessages(t *testing.T) {
	u, _ := newSignalingFixture(t)
	sess, _, _ := createRoom(t, u)

	dispatch(t, u, sess, map[string]any{"type": events.TypeLanguageChanged, "language": "fr"})
	if sess.Language() != "fr" {
		t.Fatalf("language = %q, want fr", sess.Language())
	}

	dispatch(t, u, sess, map[string]any{"type": events.TypeTTSStatus, "enabled": true})
	if !sess.TTSEnabled() {
		t.Fatal("TTS not enabled after TTSStatus message")
	}
}

func TestTranscriptionToggleBroadcast(t *testing.T) {
	u, _ := newSignalingFixture(t)
	sess, conn, _ := createRoom(t, u)

	dispatch(t, u, sess, map[string]any{"type": events.TypeTranscriptionEnabled, "enabled": true})

	state, ok := findMessage[events.TranscriptionState](conn.messages())
	if !ok {
		t.Fatal("toggler did not receive the transcription state broadcast")
	}
	if !state.Enabled || state.UserName != "alice" {
		t.Fatalf("transcription state = %+v", state)
	}

	// Re-sending the same value is a no-op and must not rebroadcast.
	before := len(conn.messages())
	dispatch(t, u, sess, map[string]any{"type": events.TypeTranscriptionEnabled, "enabled": true})
	if len(conn.messages()) != before {
		t.Fatal("no-op toggle was rebroadcast")
	}
}

func TestUnknownMessageType(t *testing.T) {
	u, _ := newSignalingFixture(t)

	conn := &fakeConn{}
	sess := domain.NewSession(conn)

	u.HandleMessage(context.Background(), sess, []byte(`{"type":"teleport"}`))

	if _, ok := findMessage[events.Error](conn.messages()); !ok {
		t.Fatalf("unknown type reply = %v, want error", conn.messages())
	}
}
