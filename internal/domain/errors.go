package domain

import "errors"

var (
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrInvalidConversation    = errors.New("invalid conversation id")
	ErrNoActiveConversation   = errors.New("no active conversation")
	ErrEmptyMessage           = errors.New("message is empty")
	ErrMessageTooLong         = errors.New("message too long")
	ErrNoFileSelected         = errors.New("no file selected")
	ErrFileTooLarge           = errors.New("file too large")
	ErrWrongFileType          = errors.New("wrong file type")
	ErrMicrophoneUnavailable  = errors.New("microphone unavailable")
	ErrRecordingFailed        = errors.New("recording failed")
	ErrSendFailed             = errors.New("send failed")
	ErrSubscriptionLost       = errors.New("subscription lost")
	ErrSessionNotFound        = errors.New("session not found")
	ErrBlobNotFound           = errors.New("blob not found")
)
