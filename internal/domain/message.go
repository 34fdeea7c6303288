package domain

import "time"

type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageAudio MessageType = "audio"
)

type MessageStatus string

// StatusSent is the only persisted status; no delivery receipts are modeled.
const StatusSent MessageStatus = "sent"

// Message is immutable once persisted. Exactly one of Text, ImageURL and
// AudioURL carries the payload, matching Type. CreatedAt is assigned by the
// store, never by the client; Seq breaks ties between equal timestamps.
type Message struct {
	ID              string
	ConversationID  string
	Seq             int64
	SenderID        string
	Type            MessageType
	Text            string
	ImageURL        string
	AudioURL        string
	DurationSeconds int
	Status          MessageStatus
	CreatedAt       time.Time
}

// File describes an attachment selected for sending, before upload.
type File struct {
	Name        string
	Size        int64
	ContentType string
	Data        []byte
}
