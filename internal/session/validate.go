package session

import (
	"strings"

	"github.com/wasla-delivery/orderchat/internal/config"
	"github.com/wasla-delivery/orderchat/internal/domain"
)

// ValidateText checks an outgoing text payload. Pure predicate, no side
// effects; length limits apply to the trimmed content.
func ValidateText(content string) error {
	trimmed := strings.TrimSpace(content)
	if len(trimmed) == 0 {
		return domain.ErrEmptyMessage
	}
	if len([]rune(trimmed)) > config.MaxTextLen {
		return domain.ErrMessageTooLong
	}
	return nil
}

// ValidateFile checks an outgoing attachment against the kind-dependent size
// ceiling and media-type prefix. Enforced before any upload attempt.
func ValidateFile(file *domain.File, kind domain.MessageType) error {
	if file == nil || file.Size == 0 {
		return domain.ErrNoFileSelected
	}

	var maxSize int64
	var prefix string
	switch kind {
	case domain.MessageImage:
		maxSize = config.MaxImageBytes
		prefix = "image/"
	case domain.MessageAudio:
		maxSize = config.MaxAudioBytes
		prefix = "audio/"
	default:
		return domain.ErrWrongFileType
	}

	if file.Size > maxSize {
		return domain.ErrFileTooLarge
	}
	if !strings.HasPrefix(file.ContentType, prefix) {
		return domain.ErrWrongFileType
	}
	return nil
}
