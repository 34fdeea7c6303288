package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/wasla-delivery/orderchat/internal/auth"
	"github.com/wasla-delivery/orderchat/internal/blob"
	"github.com/wasla-delivery/orderchat/internal/config"
	"github.com/wasla-delivery/orderchat/internal/domain"
	"github.com/wasla-delivery/orderchat/internal/notify"
	"github.com/wasla-delivery/orderchat/internal/session"
	"github.com/wasla-delivery/orderchat/internal/store"
)

// BlobReader serves stored blobs by id.
type BlobReader interface {
	Get(ctx context.Context, id string) (contentType string, data []byte, err error)
}

// Deps contains all dependencies required to construct a Server.
type Deps struct {
	Store    store.Store
	Uploader blob.Uploader
	Blobs    BlobReader
	Redis    *redis.Client
	Verifier *auth.Verifier
	Sink     notify.Sink
	Cfg      *config.Config
}

// Server exposes chat sessions over HTTP: one session per open conversation,
// message and status events streamed back over SSE.
type Server struct {
	deps   Deps
	router *gin.Engine

	mu       sync.Mutex
	sessions map[string]*liveSession
}

type liveSession struct {
	id         string
	userID     string
	controller *session.Controller
	events     chan streamEvent
	done       chan struct{}
	closeOnce  sync.Once
}

func (s *liveSession) close() {
	s.closeOnce.Do(func() { close(s.done) })
}

type messagePayload struct {
	ID              string    `json:"id"`
	ConversationID  string    `json:"conversation_id"`
	SenderID        string    `json:"sender_id"`
	Type            string    `json:"type"`
	Text            string    `json:"text,omitempty"`
	ImageURL        string    `json:"image_url,omitempty"`
	AudioURL        string    `json:"audio_url,omitempty"`
	DurationSeconds int       `json:"duration_seconds,omitempty"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

func toPayload(m domain.Message) messagePayload {
	return messagePayload{
		ID:              m.ID,
		ConversationID:  m.ConversationID,
		SenderID:        m.SenderID,
		Type:            string(m.Type),
		Text:            m.Text,
		ImageURL:        m.ImageURL,
		AudioURL:        m.AudioURL,
		DurationSeconds: m.DurationSeconds,
		Status:          string(m.Status),
		CreatedAt:       m.CreatedAt,
	}
}

type streamEvent struct {
	Type       string          `json:"type"` // message | status
	Message    *messagePayload `json:"message,omitempty"`
	AutoScroll bool            `json:"auto_scroll,omitempty"`
	Kind       string          `json:"kind,omitempty"`
	Text       string          `json:"text,omitempty"`
}

func New(deps Deps) *Server {
	s := &Server{
		deps:     deps,
		sessions: make(map[string]*liveSession),
	}

	router := gin.New()
	router.Use(Recover(), RequestLogger())

	router.GET("/blobs/:id", s.getBlob)
	router.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	api := router.Group("/api",
		JWTAuth(deps.Verifier),
		RateLimit(deps.Redis, deps.Cfg.RateLimitPerSecond),
	)
	api.POST("/sessions", s.openSession)
	api.DELETE("/sessions/:id", s.closeSession)
	api.GET("/sessions/:id/messages", s.listMessages)
	api.POST("/sessions/:id/messages", s.sendText)
	api.POST("/sessions/:id/images", s.sendImage)
	api.POST("/sessions/:id/audio", s.sendAudio)
	api.PUT("/sessions/:id/viewport", s.setViewport)
	api.GET("/sessions/:id/events", s.streamEvents)

	s.router = router
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Shutdown tears down every live session.
func (s *Server) Shutdown() {
	s.mu.Lock()
	sessions := make([]*liveSession, 0, len(s.sessions))
	for _, ls := range s.sessions {
		sessions = append(sessions, ls)
	}
	s.sessions = make(map[string]*liveSession)
	s.mu.Unlock()

	for _, ls := range sessions {
		ls.controller.Cleanup()
		ls.close()
	}
}

func (s *Server) register(userID string, controller *session.Controller, events chan streamEvent) *liveSession {
	ls := &liveSession{
		id:         uuid.NewString(),
		userID:     userID,
		controller: controller,
		events:     events,
		done:       make(chan struct{}),
	}
	s.mu.Lock()
	s.sessions[ls.id] = ls
	s.mu.Unlock()
	return ls
}

func (s *Server) remove(id string) {
	s.mu.Lock()
	ls := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if ls != nil {
		ls.controller.Cleanup()
		ls.close()
	}
}

// sessionFor resolves the session in the path and checks ownership.
func (s *Server) sessionFor(c *gin.Context) (*liveSession, bool) {
	s.mu.Lock()
	ls, ok := s.sessions[c.Param("id")]
	s.mu.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": domain.ErrSessionNotFound.Error()})
		return nil, false
	}
	identity := identityFrom(c)
	if identity == nil || identity.UserID != ls.userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your session"})
		return nil, false
	}
	return ls, true
}

func pushEvent(ls *liveSession, ev streamEvent) {
	select {
	case ls.events <- ev:
	default:
		slog.Warn("session event dropped", "session_id", ls.id, "type", ev.Type)
	}
}
