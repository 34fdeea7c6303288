package config

import "time"

const (
	// Outgoing text limit (characters, after trimming)
	MaxTextLen = 1000

	// History window loaded on session initialize
	HistoryLimit = 50

	// File size ceilings
	MaxImageBytes = 5 * 1024 * 1024
	MaxAudioBytes = 15 * 1024 * 1024

	// Audio recording cap
	MaxRecordingSeconds = 60
	RecordingTick       = 1 * time.Second

	// Scroll anchoring: distance from the bottom still treated as "at bottom"
	BottomThresholdPx = 100

	// Redis cache TTLs
	MessageCacheTTL = 24 * time.Hour
	HistoryCacheTTL = 24 * time.Hour

	// Operation timeouts
	AppendTimeout   = 15 * time.Second
	UploadTimeout   = 60 * time.Second
	NotifyTimeout   = 10 * time.Second
	ShutdownTimeout = 10 * time.Second

	// SSE keep-alive interval
	StreamKeepAlive = 30 * time.Second
)
