package domain

import "sync"

// DefaultLanguage is the language assumed for a connection until it sends a
// languageChanged message.
const DefaultLanguage = "en"

// Conn is the write side of a signaling connection. The concrete websocket
// connection is wrapped behind this so registry and pipeline code never touch
// the transport directly and tests can substitute fakes.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// Session is the explicit per-connection state record. It is created at
// connect, advanced by the transition methods below, and discarded at
// disconnect. Handlers never mutate fields directly.
//
// Reads may come from pipeline goroutines while the signaling loop mutates,
// hence the lock.
type Session struct {
	mu sync.RWMutex

	conn Conn

	userID       string
	roomID       string
	observingPIN string
	language     string
	ttsEnabled   bool
}

// NewSession returns a fresh session for a just-accepted connection.
func NewSession(conn Conn) *Session {
	return &Session{
		conn:     conn,
		language: DefaultLanguage,
	}
}

// Send writes a message to the owning connection.
func (s *Session) Send(v any) error {
	return s.conn.WriteJSON(v)
}

// Conn returns the underlying connection handle.
func (s *Session) Conn() Conn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn
}

// Joined records a successful create or join.
func (s *Session) Joined(userID, roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = userID
	s.roomID = roomID
}

// Left clears room membership.
func (s *Session) Left() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = ""
	s.roomID = ""
}

// Observe records that this connection is watching a PIN's status.
func (s *Session) Observe(pin string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observingPIN = pin
}

// StopObserving clears the observed PIN.
func (s *Session) StopObserving() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observingPIN = ""
}

// SetLanguage records the listener's selected language.
func (s *Session) SetLanguage(lang string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.language = lang
}

// SetTTSEnabled records whether synthesized audio should be produced for
// this participant's utterances.
func (s *Session) SetTTSEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ttsEnabled = enabled
}

// UserID returns the joined user id, empty until join/create succeeds.
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// RoomID returns the joined room id, empty until join/create succeeds.
func (s *Session) RoomID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roomID
}

// ObservingPIN returns the PIN this connection watches, if any.
func (s *Session) ObservingPIN() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.observingPIN
}

// Language returns the listener's selected language.
func (s *Session) Language() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.language
}

// TTSEnabled reports whether TTS is on for this connection.
func (s *Session) TTSEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ttsEnabled
}
