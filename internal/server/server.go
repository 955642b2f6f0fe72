// Package server is the JSON API over the editor session, the access gate
// and the voice channel.
package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/voxnote/voxnote/internal/ai"
	"github.com/voxnote/voxnote/internal/capture"
	"github.com/voxnote/voxnote/internal/editor"
	"github.com/voxnote/voxnote/internal/fault"
	"github.com/voxnote/voxnote/internal/gate"
	"github.com/voxnote/voxnote/internal/playback"
	"github.com/voxnote/voxnote/internal/rtc"
	"github.com/voxnote/voxnote/internal/store"
)

// Server holds the wired application and the echo instance serving it.
type Server struct {
	e        *echo.Echo
	store    *store.NoteStore
	gate     *gate.Gate
	editor   *editor.Session
	playback *playback.Controller
	capture  *capture.Controller
	hub      *rtc.Hub
}

func New(notes *store.NoteStore, g *gate.Gate, ed *editor.Session, p *playback.Controller, rec *capture.Controller, hub *rtc.Hub) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))

	s := &Server{e: e, store: notes, gate: g, editor: ed, playback: p, capture: rec, hub: hub}
	s.register()
	return s
}

func (s *Server) register() {
	api := s.e.Group("/api")

	api.GET("/notes", s.listNotes)
	api.POST("/notes", s.createNote)
	api.GET("/notes/:id", s.getNote)
	api.PUT("/notes/:id", s.updateNote)
	api.DELETE("/notes/:id", s.deleteNote)
	api.POST("/notes/:id/pin", s.togglePin)
	api.POST("/notes/:id/secret", s.toggleSecret)
	api.POST("/notes/:id/lock", s.lockNote)
	api.POST("/notes/:id/unlock", s.unlockNote)

	api.POST("/vault/enter", s.vaultEnter)
	api.POST("/vault/setup", s.vaultSetup)
	api.POST("/vault/check", s.vaultCheck)

	api.POST("/notes/:id/ai/summarize", s.summarize)
	api.POST("/notes/:id/ai/rewrite", s.rewrite)

	api.POST("/notes/:id/speak", s.speak)
	api.POST("/speak/stop", s.speakStop)
	api.POST("/speak/rate", s.speakRate)
	api.POST("/notes/:id/dictate/start", s.dictateStart)
	api.POST("/notes/:id/dictate/stop", s.dictateStop)

	api.POST("/rtc/offer", s.rtcOffer)
	api.GET("/status", s.status)
}

// Handler exposes the routing tree, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.e
}

// Start blocks serving on addr until Shutdown.
func (s *Server) Start(addr string) error {
	log.Infof("listening on %s", addr)
	if err := s.e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and closes the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

type errResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// fail renders the taxonomy: validation 400, auth 403, device 503, AI 502,
// busy 409, everything else 500.
func fail(c echo.Context, err error) error {
	if errors.Is(err, ai.ErrBusy) {
		return c.JSON(http.StatusConflict, errResponse{Error: err.Error(), Kind: "busy"})
	}
	status := fault.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Errorf("%s %s: %v", c.Request().Method, c.Request().URL.Path, err)
	}
	return c.JSON(status, errResponse{Error: err.Error(), Kind: fault.KindOf(err).String()})
}
