// Package events defines the signaling message envelope and every payload
// exchanged over a connection. One JSON object per message; the type field
// discriminates.
package events

import "time"

// Message types sent by clients.
const (
	TypeCreateRoom           = "createRoom"
	TypeJoinRoom             = "joinRoom"
	TypeCheckRoom            = "checkRoom"
	TypeGetParticipants      = "getParticipants"
	TypeTrackStateChange     = "trackStateChange"
	TypeChat                 = "chat"
	TypeTTSStatus            = "TTSStatus"
	TypeLanguageChanged      = "languageChanged"
	TypeTranscriptionEnabled = "transcriptionEnabled"
	TypeTranscriptionRequest = "transcriptionRequest"
)

// Message types sent by the server.
const (
	TypeRoomCreated   = "roomCreated"
	TypeRoomJoined    = "roomJoined"
	TypeUserJoined    = "userJoined"
	TypeJoinError     = "joinError"
	TypeRoomStatus    = "roomStatus"
	TypeRoomNotFound  = "roomNotFound"
	TypeParticipants  = "participants"
	TypeTranscription = "transcription"
	TypeUserLeft      = "userLeft"
	TypeRoomClosed    = "roomClosed"
	TypeError         = "error"
)

// Join error codes, distinguishable so clients can render specific messages.
const (
	JoinErrorRoomFull     = "roomFull"
	JoinErrorRoomNotFound = "roomNotFound"
	JoinErrorValidation   = "validation"
)

// Envelope carries only the discriminator; handlers re-unmarshal the raw
// bytes into the typed payload for the matched type.
type Envelope struct {
	Type string `json:"type"`
}

// CreateRoomRequest asks for a new room.
type CreateRoomRequest struct {
	RoomName        string `json:"roomName"`
	UserID          string `json:"userId"`
	UserName        string `json:"userName"`
	MaxParticipants int    `json:"maxParticipants"`
}

// JoinRoomRequest joins an existing room. VoiceSample is an optional inline
// base64 timbre reference; VoiceSampleRef names a stored sample instead.
type JoinRoomRequest struct {
	RoomID         string `json:"roomId"`
	UserID         string `json:"userId"`
	UserName       string `json:"userName"`
	VoiceSample    string `json:"voiceSample,omitempty"`
	VoiceSampleRef string `json:"voiceSampleRef,omitempty"`
}

// CheckRoomRequest asks for a room's status by PIN, registering the
// connection as an observer of that PIN.
type CheckRoomRequest struct {
	PIN string `json:"pin"`
}

// GetParticipantsRequest lists a room's members.
type GetParticipantsRequest struct {
	RoomID string `json:"roomId"`
}

// TrackStateChange notifies about a media track being enabled or disabled.
// With TargetUserID set it is delivered to that participant only, otherwise
// broadcast to the room excluding the sender.
type TrackStateChange struct {
	Type         string `json:"type"`
	RoomID       string `json:"roomId"`
	UserID       string `json:"userId"`
	TrackKind    string `json:"trackKind"`
	Enabled      bool   `json:"enabled"`
	TargetUserID string `json:"targetUserId,omitempty"`
}

// ChatMessage relays a text message to the room.
type ChatMessage struct {
	RoomID    string `json:"roomId"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// TTSStatus toggles synthesized-speech production for the sender.
type TTSStatus struct {
	Enabled bool `json:"enabled"`
}

// LanguageChanged records the sender's selected listening language.
type LanguageChanged struct {
	Language string `json:"language"`
}

// TranscriptionToggle switches room-wide transcription on or off.
type TranscriptionToggle struct {
	Enabled bool `json:"enabled"`
}

// TranscriptionRequest submits one captured utterance.
type TranscriptionRequest struct {
	AudioData string `json:"audioData"` // base64 PCM or WAV
	Language  string `json:"language"`
	Timestamp int64  `json:"timestamp"` // client capture time, unix millis
}

// ParticipantInfo is the public view of a room member.
type ParticipantInfo struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Identity pairs a user id with its display name.
type Identity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RoomStatus is the full status payload for a room.
type RoomStatus struct {
	ID                   string            `json:"id"`
	Name                 string            `json:"name"`
	PIN                  string            `json:"pin"`
	CreatedAt            time.Time         `json:"createdAt"`
	CreatedBy            Identity          `json:"createdBy"`
	ParticipantCount     int               `json:"participantCount"`
	MaxParticipants      int               `json:"maxParticipants"`
	Active               bool              `json:"active"`
	TranscriptionEnabled bool              `json:"transcriptionEnabled"`
	Participants         []ParticipantInfo `json:"participants"`
}

// RoomCreated confirms room creation to the creator.
type RoomCreated struct {
	Type string     `json:"type"`
	Room RoomStatus `json:"room"`
}

// RoomJoined confirms a successful join to the joiner.
type RoomJoined struct {
	Type string     `json:"type"`
	Room RoomStatus `json:"room"`
}

// UserJoined is broadcast to existing members when someone joins.
type UserJoined struct {
	Type string          `json:"type"`
	User ParticipantInfo `json:"user"`
}

// JoinError reports a failed join with a machine-readable code.
type JoinError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RoomStatusNotice carries a status snapshot to observers and checkers.
type RoomStatusNotice struct {
	Type   string     `json:"type"`
	Status RoomStatus `json:"status"`
}

// RoomNotFound answers a checkRoom for an unknown PIN.
type RoomNotFound struct {
	Type string `json:"type"`
	PIN  string `json:"pin"`
}

// ParticipantList answers getParticipants.
type ParticipantList struct {
	Type         string            `json:"type"`
	RoomID       string            `json:"roomId"`
	Participants []ParticipantInfo `json:"participants"`
}

// ChatRelay is the broadcast form of a chat message.
type ChatRelay struct {
	Type      string   `json:"type"`
	Sender    Identity `json:"sender"`
	Message   string   `json:"message"`
	Timestamp int64    `json:"timestamp"`
}

// TranscriptionState is broadcast when the room-wide transcription flag
// changes.
type TranscriptionState struct {
	Type     string `json:"type"`
	Enabled  bool   `json:"enabled"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// Transcription is the personalized per-listener delivery of one utterance.
// TranslatedText and TargetLanguage are present only when the target differs
// from the source; Audio and DurationMs only when synthesis succeeded for
// this listener's language.
type Transcription struct {
	Type           string `json:"type"`
	UserID         string `json:"userId"`
	UserName       string `json:"userName"`
	Text           string `json:"text"`
	Language       string `json:"language"`
	TranslatedText string `json:"translatedText,omitempty"`
	TargetLanguage string `json:"targetLanguage,omitempty"`
	Audio          string `json:"audio,omitempty"` // base64
	DurationMs     int64  `json:"durationMs,omitempty"`
	Timestamp      int64  `json:"timestamp"`
}

// UserLeft is broadcast when a participant leaves a still-existing room.
type UserLeft struct {
	Type     string `json:"type"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// RoomClosed notifies observers that the room behind a PIN is gone.
type RoomClosed struct {
	Type   string `json:"type"`
	PIN    string `json:"pin"`
	RoomID string `json:"roomId"`
}

// Error is the generic failure reply to the originating connection.
type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewError builds an error reply.
func NewError(msg string) Error {
	return Error{Type: TypeError, Message: msg}
}
