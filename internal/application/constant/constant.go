package constant

// Structured logging attribute keys.
const (
	Error    = "error"
	UserID   = "user_id"
	RoomID   = "room_id"
	PIN      = "pin"
	Language = "language"
	MsgType  = "msg_type"
)
