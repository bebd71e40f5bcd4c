package memory

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"sync"

	"github.com/GiorgioBrux/raimu-sub001/internal/application/constant"
	"github.com/GiorgioBrux/raimu-sub001/internal/application/metric"
	"github.com/GiorgioBrux/raimu-sub001/internal/domain"
	"github.com/GiorgioBrux/raimu-sub001/internal/domain/events"
)

// PINLength is the fixed length of the numeric room-discovery code.
const PINLength = 6

const pinAttempts = 100

// RoomRegistry is the authoritative in-memory store of rooms, participants
// and PIN-based lookup. Rooms live only as long as their participant set;
// PINs are unique among active rooms and reusable after closure.
//
// Live rooms never leave the registry lock: handler and pipeline goroutines
// run concurrently, so every accessor returns a point-in-time copy.
type RoomRegistry interface {
	CreateRoom(name, creatorID, creatorName string, maxParticipants int) (events.RoomStatus, error)
	AddParticipant(roomID string, p *domain.Participant) error

	// RemoveParticipant reports whether the room was destroyed, so callers
	// can suppress a stale "user left" broadcast into a dead room.
	RemoveParticipant(roomID, userID string) (destroyed bool)

	Participant(roomID, userID string) (domain.ParticipantSnapshot, bool)
	Participants(roomID string) ([]domain.ParticipantSnapshot, bool)
	TranscriptionEnabled(roomID string) (enabled, ok bool)
	Status(roomID string) (events.RoomStatus, bool)
	StatusByPIN(pin string) (events.RoomStatus, bool)

	SetTranscription(roomID string, enabled bool) (changed bool)

	BroadcastToRoom(roomID string, msg any, excludeUserID string)
	SendToParticipant(roomID, userID string, msg any) bool

	AddObserver(pin string, conn domain.Conn)
	RemoveObserver(pin string, conn domain.Conn)
}

type roomRegistry struct {
	mu sync.RWMutex

	rooms map[string]*domain.Room // room id -> room
	byPIN map[string]string       // pin -> room id

	// observers are connections watching a PIN before joining. Independent
	// of room membership.
	observers map[string]map[domain.Conn]struct{}
}

// NewRoomRegistry returns an empty registry.
func NewRoomRegistry() RoomRegistry {
	return &roomRegistry{
		rooms:     make(map[string]*domain.Room),
		byPIN:     make(map[string]string),
		observers: make(map[string]map[domain.Conn]struct{}),
	}
}

func (r *roomRegistry) CreateRoom(name, creatorID, creatorName string, maxParticipants int) (events.RoomStatus, error) {
	room, err := domain.NewRoom(name, creatorID, creatorName, maxParticipants)
	if err != nil {
		return events.RoomStatus{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	pin, err := r.newPINLocked()
	if err != nil {
		return events.RoomStatus{}, err
	}

	room.PIN = pin
	r.rooms[room.ID] = room
	r.byPIN[pin] = room.ID

	metric.SetActiveRooms(len(r.rooms))

	return r.statusLocked(room), nil
}

func (r *roomRegistry) AddParticipant(roomID string, p *domain.Participant) error {
	r.mu.Lock()

	room, ok := r.rooms[roomID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrRoomNotFound, roomID)
	}

	if err := room.AddParticipant(p); err != nil {
		r.mu.Unlock()
		return err
	}

	status := r.statusLocked(room)
	targets := r.observerTargetsLocked(room.PIN)
	r.mu.Unlock()

	notifyObservers(targets, events.RoomStatusNotice{Type: events.TypeRoomStatus, Status: status})

	return nil
}

func (r *roomRegistry) RemoveParticipant(roomID, userID string) bool {
	r.mu.Lock()

	room, ok := r.rooms[roomID]
	if !ok {
		r.mu.Unlock()
		return false
	}

	if !room.RemoveParticipant(userID) {
		r.mu.Unlock()
		return false
	}

	if room.Len() > 0 {
		status := r.statusLocked(room)
		targets := r.observerTargetsLocked(room.PIN)
		r.mu.Unlock()

		notifyObservers(targets, events.RoomStatusNotice{Type: events.TypeRoomStatus, Status: status})
		return false
	}

	// Last participant gone: deactivate, notify closure, delete. The PIN
	// becomes reusable immediately.
	room.Active = false
	delete(r.rooms, room.ID)
	delete(r.byPIN, room.PIN)

	targets := r.observerTargetsLocked(room.PIN)
	delete(r.observers, room.PIN)

	metric.SetActiveRooms(len(r.rooms))
	r.mu.Unlock()

	notifyObservers(targets, events.RoomClosed{Type: events.TypeRoomClosed, PIN: room.PIN, RoomID: room.ID})

	slog.Info("room destroyed", slog.String(constant.RoomID, room.ID), slog.String(constant.PIN, room.PIN))

	return true
}

func (r *roomRegistry) Participant(roomID, userID string) (domain.ParticipantSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return domain.ParticipantSnapshot{}, false
	}

	p, ok := room.Participant(userID)
	if !ok {
		return domain.ParticipantSnapshot{}, false
	}

	return snapshotParticipant(p), true
}

func (r *roomRegistry) Participants(roomID string) ([]domain.ParticipantSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return nil, false
	}

	parts := room.Participants()
	out := make([]domain.ParticipantSnapshot, 0, len(parts))
	for _, p := range parts {
		out = append(out, snapshotParticipant(p))
	}

	return out, true
}

func (r *roomRegistry) TranscriptionEnabled(roomID string) (enabled, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return false, false
	}

	return room.TranscriptionEnabled, true
}

func (r *roomRegistry) Status(roomID string) (events.RoomStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return events.RoomStatus{}, false
	}

	return r.statusLocked(room), true
}

func (r *roomRegistry) StatusByPIN(pin string) (events.RoomStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roomID, ok := r.byPIN[pin]
	if !ok {
		return events.RoomStatus{}, false
	}

	room, ok := r.rooms[roomID]
	if !ok {
		return events.RoomStatus{}, false
	}

	return r.statusLocked(room), true
}

func (r *roomRegistry) SetTranscription(roomID string, enabled bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok || room.TranscriptionEnabled == enabled {
		return false
	}

	room.TranscriptionEnabled = enabled
	return true
}

// BroadcastToRoom delivers msg to every participant connection except the
// excluded one. Write failures are logged and skipped; reconnection is the
// connection layer's concern.
func (r *roomRegistry) BroadcastToRoom(roomID string, msg any, excludeUserID string) {
	r.mu.RLock()
	room, ok := r.rooms[roomID]
	if !ok {
		r.mu.RUnlock()
		return
	}
	participants := room.Participants()
	r.mu.RUnlock()

	for _, p := range participants {
		if p.ID == excludeUserID || p.Session == nil {
			continue
		}
		if err := p.Session.Send(msg); err != nil {
			slog.Warn(
				"broadcast write failed",
				slog.String(constant.RoomID, roomID),
				slog.String(constant.UserID, p.ID),
				slog.Any(constant.Error, err),
			)
		}
	}
}

// SendToParticipant delivers msg to one member, reporting whether the member
// existed.
func (r *roomRegistry) SendToParticipant(roomID, userID string, msg any) bool {
	r.mu.RLock()
	room, ok := r.rooms[roomID]
	if !ok {
		r.mu.RUnlock()
		return false
	}
	p, ok := room.Participant(userID)
	r.mu.RUnlock()

	if !ok || p.Session == nil {
		return false
	}

	if err := p.Session.Send(msg); err != nil {
		slog.Warn(
			"targeted write failed",
			slog.String(constant.RoomID, roomID),
			slog.String(constant.UserID, userID),
			slog.Any(constant.Error, err),
		)
	}

	return true
}

func (r *roomRegistry) AddObserver(pin string, conn domain.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.observers[pin]
	if !ok {
		set = make(map[domain.Conn]struct{})
		r.observers[pin] = set
	}
	set[conn] = struct{}{}
}

func (r *roomRegistry) RemoveObserver(pin string, conn domain.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if set, ok := r.observers[pin]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(r.observers, pin)
		}
	}
}

// statusLocked builds the wire status snapshot. Caller holds at least a read
// lock.
func (r *roomRegistry) statusLocked(room *domain.Room) events.RoomStatus {
	parts := room.Participants()
	infos := make([]events.ParticipantInfo, 0, len(parts))
	for _, p := range parts {
		infos = append(infos, events.ParticipantInfo{ID: p.ID, Name: p.Name, JoinedAt: p.JoinedAt})
	}

	return events.RoomStatus{
		ID:                   room.ID,
		Name:                 room.Name,
		PIN:                  room.PIN,
		CreatedAt:            room.CreatedAt,
		CreatedBy:            events.Identity{ID: room.CreatedBy.ID, Name: room.CreatedBy.Name},
		ParticipantCount:     room.Len(),
		MaxParticipants:      room.MaxParticipants,
		Active:               room.Active,
		TranscriptionEnabled: room.TranscriptionEnabled,
		Participants:         infos,
	}
}

func snapshotParticipant(p *domain.Participant) domain.ParticipantSnapshot {
	return domain.ParticipantSnapshot{
		ID:          p.ID,
		Name:        p.Name,
		VoiceSample: p.VoiceSample,
		Session:     p.Session,
	}
}

func (r *roomRegistry) observerTargetsLocked(pin string) []domain.Conn {
	set, ok := r.observers[pin]
	if !ok {
		return nil
	}

	targets := make([]domain.Conn, 0, len(set))
	for conn := range set {
		targets = append(targets, conn)
	}
	return targets
}

// newPINLocked generates a numeric PIN unused by any active room.
func (r *roomRegistry) newPINLocked() (string, error) {
	for i := 0; i < pinAttempts; i++ {
		pin, err := randomPIN(PINLength)
		if err != nil {
			return "", fmt.Errorf("generate pin: %w", err)
		}
		if _, taken := r.byPIN[pin]; !taken {
			return pin, nil
		}
	}

	return "", fmt.Errorf("generate pin: no free pin after %d attempts", pinAttempts)
}

func randomPIN(length int) (string, error) {
	const digits = "0123456789"

	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i := range buf {
		buf[i] = digits[int(buf[i])%len(digits)]
	}
	return string(buf), nil
}

func notifyObservers(targets []domain.Conn, msg any) {
	for _, conn := range targets {
		if err := conn.WriteJSON(msg); err != nil {
			slog.Warn("observer notify failed", slog.Any(constant.Error, err))
		}
	}
}
