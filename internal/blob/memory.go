package blob

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/wasla-delivery/orderchat/internal/domain"
)

type memoryObject struct {
	contentType string
	data        []byte
}

// Memory is an in-process Uploader for local development and tests.
type Memory struct {
	mu      sync.Mutex
	baseURL string
	objects map[string]memoryObject
}

func NewMemory(baseURL string) *Memory {
	return &Memory{baseURL: baseURL, objects: make(map[string]memoryObject)}
}

func (m *Memory) Upload(ctx context.Context, key string, data []byte, contentType string, progress ProgressFunc) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	total := int64(len(data))
	if progress != nil {
		progress(0, total)
	}

	id := uuid.NewString()
	stored := make([]byte, len(data))
	copy(stored, data)

	m.mu.Lock()
	m.objects[id] = memoryObject{contentType: contentType, data: stored}
	m.mu.Unlock()

	if progress != nil {
		progress(total, total)
	}
	return Result{URL: m.baseURL + "/blobs/" + id}, nil
}

func (m *Memory) Get(ctx context.Context, id string) (string, []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, ok := m.objects[id]
	if !ok {
		return "", nil, domain.ErrBlobNotFound
	}
	return obj.contentType, obj.data, nil
}
