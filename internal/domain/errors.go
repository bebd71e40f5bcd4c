package domain

import "errors"

// Closed set of error kinds. Callers match these with errors.Is instead of
// inspecting message text.
var (
	// ErrValidation covers malformed create/join requests: bad identifiers,
	// over-long names, unsupported room sizes.
	ErrValidation = errors.New("validation failed")

	// ErrRoomNotFound is returned when a room id or PIN resolves to nothing.
	ErrRoomNotFound = errors.New("room not found")

	// ErrRoomFull is returned when a join would exceed the room's capacity.
	ErrRoomFull = errors.New("room is full")

	// ErrTranscriptionDisabled is returned when an utterance arrives for a
	// room whose transcription flag is off.
	ErrTranscriptionDisabled = errors.New("transcription disabled for room")

	// ErrEngineFailure wraps failures of the external speech engines. It is
	// isolated per language branch and never aborts a whole utterance.
	ErrEngineFailure = errors.New("speech engine failure")

	// ErrDecodeFailure is returned for audio payloads that cannot be decoded.
	ErrDecodeFailure = errors.New("audio decode failure")
)
