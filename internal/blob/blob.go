package blob

import (
	"context"
	"fmt"
	"time"

	"github.com/wasla-delivery/orderchat/internal/domain"
)

// Result is the outcome of a finished upload.
type Result struct {
	URL string
}

// ProgressFunc observes upload progress. It is optional and may be nil;
// implementations call it with monotonically increasing written counts and
// never after Upload returns.
type ProgressFunc func(written, total int64)

// Uploader stores an opaque binary object and returns a retrievable URL.
// Uploads are best-effort and never retried here; a failed upload leaves no
// message record behind, though an orphan object may remain.
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string, progress ProgressFunc) (Result, error)
}

// ObjectKey namespaces an object under its conversation and media kind:
// chat/<conversation>/<images|audio>/<unix-ms>_<name>.
func ObjectKey(conversationID string, kind domain.MessageType, ts time.Time, name string) string {
	dir := "files"
	switch kind {
	case domain.MessageImage:
		dir = "images"
	case domain.MessageAudio:
		dir = "audio"
	}
	return fmt.Sprintf("chat/%s/%s/%d_%s", conversationID, dir, ts.UnixMilli(), name)
}
