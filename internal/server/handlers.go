package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wasla-delivery/orderchat/internal/config"
	"github.com/wasla-delivery/orderchat/internal/domain"
	"github.com/wasla-delivery/orderchat/internal/notify"
	"github.com/wasla-delivery/orderchat/internal/session"
)

type openSessionRequest struct {
	OrderID string `json:"order_id"`
}

func (s *Server) openSession(c *gin.Context) {
	var req openSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	identity := identityFrom(c)
	events := make(chan streamEvent, 64)

	var ls *liveSession
	sink := notify.Multi{
		s.deps.Sink,
		notify.Func(func(kind notify.Kind, message string) {
			if ls == nil {
				return
			}
			pushEvent(ls, streamEvent{Type: "status", Kind: string(kind), Text: message})
		}),
	}
	controller := session.New(session.Deps{
		Store:    s.deps.Store,
		Uploader: s.deps.Uploader,
		Sink:     sink,
		User:     identity,
		OnEvent: func(ev session.Event) {
			if ls == nil {
				return
			}
			payload := toPayload(ev.Message)
			pushEvent(ls, streamEvent{Type: "message", Message: &payload, AutoScroll: ev.AutoScroll})
		},
	})
	ls = s.register(identity.UserID, controller, events)

	if !controller.Initialize(c.Request.Context(), req.OrderID) {
		s.remove(ls.id)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "could not open chat"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"session_id": ls.id})
}

func (s *Server) closeSession(c *gin.Context) {
	ls, ok := s.sessionFor(c)
	if !ok {
		return
	}
	s.remove(ls.id)
	c.Status(http.StatusNoContent)
}

func (s *Server) listMessages(c *gin.Context) {
	ls, ok := s.sessionFor(c)
	if !ok {
		return
	}

	msgs := ls.controller.Messages()
	payload := make([]messagePayload, len(msgs))
	for i, m := range msgs {
		payload[i] = toPayload(m)
	}
	c.JSON(http.StatusOK, gin.H{"messages": payload, "degraded": ls.controller.Degraded()})
}

type sendTextRequest struct {
	Text string `json:"text"`
}

func (s *Server) sendText(c *gin.Context) {
	ls, ok := s.sessionFor(c)
	if !ok {
		return
	}

	var req sendTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if !ls.controller.SendText(c.Request.Context(), req.Text) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"ok": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) sendImage(c *gin.Context) {
	ls, ok := s.sessionFor(c)
	if !ok {
		return
	}

	file, err := s.formFile(c, config.MaxImageBytes)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid upload"})
		return
	}

	if !ls.controller.SendImage(c.Request.Context(), file) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"ok": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) sendAudio(c *gin.Context) {
	ls, ok := s.sessionFor(c)
	if !ok {
		return
	}

	file, err := s.formFile(c, config.MaxAudioBytes)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid upload"})
		return
	}
	duration, _ := strconv.Atoi(c.PostForm("duration"))

	if !ls.controller.SendAudio(c.Request.Context(), file.Data, file.ContentType, duration) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"ok": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// formFile reads the uploaded file, allowing one byte past the ceiling so
// validation can still reject the oversized payload explicitly.
func (s *Server) formFile(c *gin.Context, maxBytes int64) (*domain.File, error) {
	header, err := c.FormFile("file")
	if err != nil {
		return nil, err
	}
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return nil, err
	}
	return &domain.File{
		Name:        header.Filename,
		Size:        int64(len(data)),
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

type viewportRequest struct {
	ScrollTop     int `json:"scroll_top"`
	ClientHeight  int `json:"client_height"`
	ContentHeight int `json:"content_height"`
}

func (s *Server) setViewport(c *gin.Context) {
	ls, ok := s.sessionFor(c)
	if !ok {
		return
	}

	var req viewportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ls.controller.SetViewport(session.Viewport{
		ScrollTop:     req.ScrollTop,
		ClientHeight:  req.ClientHeight,
		ContentHeight: req.ContentHeight,
	})
	c.Status(http.StatusNoContent)
}

func (s *Server) streamEvents(c *gin.Context) {
	ls, ok := s.sessionFor(c)
	if !ok {
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	keepAlive := time.NewTicker(config.StreamKeepAlive)
	defer keepAlive.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case <-ls.done:
			return false
		case ev := <-ls.events:
			c.SSEvent(ev.Type, ev)
			return true
		case <-keepAlive.C:
			c.SSEvent("ping", "")
			return true
		}
	})
}

func (s *Server) getBlob(c *gin.Context) {
	contentType, data, err := s.deps.Blobs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrBlobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "blob not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.Data(http.StatusOK, contentType, data)
}
