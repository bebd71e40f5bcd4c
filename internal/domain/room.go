package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MaxNameLength caps room and participant display names.
const MaxNameLength = 30

// allowedRoomSizes are the only accepted values for MaxParticipants.
var allowedRoomSizes = map[int]struct{}{
	2: {}, 4: {}, 8: {}, 16: {}, 32: {}, 64: {},
}

// ValidRoomSize reports whether n is one of the six supported room sizes.
func ValidRoomSize(n int) bool {
	_, ok := allowedRoomSizes[n]
	return ok
}

// Identity is a user id paired with its display name.
type Identity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Participant is a member of a room. It is owned exclusively by its Room and
// removed on disconnect or explicit leave.
type Participant struct {
	ID          string
	Name        string
	JoinedAt    time.Time
	VoiceSample []byte // optional timbre reference for synthesis
	Session     *Session
}

// Room is a live conference room. Rooms are memory-resident and fully
// transient: a room is destroyed the instant its last participant leaves.
// A Room is confined to the registry that owns it; every access, read or
// write, happens under the registry's lock, and other code sees only
// ParticipantSnapshot copies and status payloads.
type Room struct {
	ID                   string
	Name                 string
	PIN                  string
	CreatedAt            time.Time
	CreatedBy            Identity
	MaxParticipants      int
	Active               bool
	TranscriptionEnabled bool

	// participants is ordered by join time; byID indexes it.
	participants []*Participant
	byID         map[string]*Participant
}

// NewRoom validates the create request and returns a fresh active room with a
// generated id. The PIN is assigned by the registry, which owns uniqueness.
func NewRoom(name, creatorID, creatorName string, maxParticipants int) (*Room, error) {
	if !ValidRoomSize(maxParticipants) {
		return nil, fmt.Errorf("%w: maxParticipants must be one of 2,4,8,16,32,64, got %d", ErrValidation, maxParticipants)
	}
	if name == "" || len(name) > MaxNameLength {
		return nil, fmt.Errorf("%w: room name must be 1..%d characters", ErrValidation, MaxNameLength)
	}
	if creatorName == "" || len(creatorName) > MaxNameLength {
		return nil, fmt.Errorf("%w: creator name must be 1..%d characters", ErrValidation, MaxNameLength)
	}
	if _, err := uuid.Parse(creatorID); err != nil {
		return nil, fmt.Errorf("%w: creator id is not a well-formed identifier", ErrValidation)
	}

	return &Room{
		ID:              uuid.NewString(),
		Name:            name,
		CreatedAt:       time.Now(),
		CreatedBy:       Identity{ID: creatorID, Name: creatorName},
		MaxParticipants: maxParticipants,
		Active:          true,
		participants:    make([]*Participant, 0, maxParticipants),
		byID:            make(map[string]*Participant, maxParticipants),
	}, nil
}

// AddParticipant registers a participant, preserving join order.
func (r *Room) AddParticipant(p *Participant) error {
	if len(r.participants) >= r.MaxParticipants {
		return fmt.Errorf("%w: room %s at capacity %d", ErrRoomFull, r.ID, r.MaxParticipants)
	}
	if existing, ok := r.byID[p.ID]; ok {
		// Rejoin with the same identity replaces the stale entry in place.
		existing.Name = p.Name
		existing.Session = p.Session
		if p.VoiceSample != nil {
			existing.VoiceSample = p.VoiceSample
		}
		return nil
	}

	r.participants = append(r.participants, p)
	r.byID[p.ID] = p

	return nil
}

// RemoveParticipant removes the participant with the given id and reports
// whether it was present.
func (r *Room) RemoveParticipant(userID string) bool {
	if _, ok := r.byID[userID]; !ok {
		return false
	}

	delete(r.byID, userID)
	for i, p := range r.participants {
		if p.ID == userID {
			r.participants = append(r.participants[:i], r.participants[i+1:]...)
			break
		}
	}

	return true
}

// Participant returns the member with the given id.
func (r *Room) Participant(userID string) (*Participant, bool) {
	p, ok := r.byID[userID]
	return p, ok
}

// Participants returns the members in join order. The returned slice is a
// copy; the pointed-to participants are shared.
func (r *Room) Participants() []*Participant {
	out := make([]*Participant, len(r.participants))
	copy(out, r.participants)
	return out
}

// Len returns the current participant count.
func (r *Room) Len() int {
	return len(r.participants)
}

// ParticipantSnapshot is a point-in-time copy of a member's state, safe to
// use after the registry lock is released. The Session carries its own lock;
// the VoiceSample bytes are replaced wholesale on rejoin, never mutated.
type ParticipantSnapshot struct {
	ID          string
	Name        string
	VoiceSample []byte
	Session     *Session
}
