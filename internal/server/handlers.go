package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pion/webrtc/v4"

	"github.com/voxnote/voxnote/internal/editor"
	"github.com/voxnote/voxnote/internal/fault"
	"github.com/voxnote/voxnote/internal/note"
)

// redact strips what a list or detail response must never leak: the lock
// pin always, and the text of a note whose lock has not been passed.
func redact(n note.Note, unlocked bool) note.Note {
	n.LockPin = ""
	if n.IsLocked && !unlocked {
		n.Content = ""
	}
	return n
}

func (s *Server) listNotes(c echo.Context) error {
	notes, err := s.store.List(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}

	secret := false
	if q := c.QueryParam("secret"); q != "" {
		var err error
		secret, err = strconv.ParseBool(q)
		if err != nil {
			return fail(c, fault.Validation("bad secret filter %q", q))
		}
	}

	out := make([]note.Note, 0, len(notes))
	for _, n := range notes {
		if n.IsSecret == secret {
			out = append(out, redact(n, false))
		}
	}
	note.SortForList(out)
	return c.JSON(http.StatusOK, out)
}

func (s *Server) createNote(c echo.Context) error {
	var req struct {
		Secret bool `json:"secret"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, fault.Validation("bad request body"))
	}
	n, err := s.editor.Create(c.Request().Context(), req.Secret)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, redact(n, true))
}

func (s *Server) getNote(c echo.Context) error {
	ctx := c.Request().Context()
	n, ok, err := s.store.Get(ctx, c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	if !ok {
		return fail(c, fault.Validation("note %s not found", c.Param("id")))
	}
	if !n.IsLocked {
		return c.JSON(http.StatusOK, redact(n, true))
	}
	if !s.gate.CheckNotePin(n, c.QueryParam("pin")) {
		return fail(c, fault.Auth("incorrect PIN"))
	}
	return c.JSON(http.StatusOK, redact(n, true))
}

func (s *Server) updateNote(c echo.Context) error {
	var up editor.Update
	if err := c.Bind(&up); err != nil {
		return fail(c, fault.Validation("bad request body"))
	}
	n, err := s.editor.Save(c.Request().Context(), c.Param("id"), up)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, redact(n, true))
}

func (s *Server) deleteNote(c echo.Context) error {
	if err := s.editor.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) togglePin(c echo.Context) error {
	return s.toggle(c, func(n *note.Note) { n.IsPinned = !n.IsPinned })
}

func (s *Server) toggleSecret(c echo.Context) error {
	return s.toggle(c, func(n *note.Note) { n.IsSecret = !n.IsSecret })
}

func (s *Server) toggle(c echo.Context, flip func(*note.Note)) error {
	ctx := c.Request().Context()
	n, ok, err := s.store.Get(ctx, c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	if !ok {
		return fail(c, fault.Validation("note %s not found", c.Param("id")))
	}
	flip(&n)
	n.Touch()
	if err := s.store.Put(ctx, n); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, redact(n, false))
}

type pinRequest struct {
	Pin string `json:"pin"`
}

func (s *Server) lockNote(c echo.Context) error {
	var req pinRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, fault.Validation("bad request body"))
	}
	n, err := s.gate.LockNote(c.Request().Context(), c.Param("id"), req.Pin)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, redact(n, true))
}

func (s *Server) unlockNote(c echo.Context) error {
	var req pinRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, fault.Validation("bad request body"))
	}
	n, err := s.gate.UnlockNote(c.Request().Context(), c.Param("id"), req.Pin)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, redact(n, true))
}

func (s *Server) vaultEnter(c echo.Context) error {
	var req struct {
		Secret bool `json:"secret"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, fault.Validation("bad request body"))
	}
	res, err := s.gate.EnterCategory(c.Request().Context(), req.Secret)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) vaultSetup(c echo.Context) error {
	var req pinRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, fault.Validation("bad request body"))
	}
	if err := s.gate.SetVaultPin(c.Request().Context(), req.Pin); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) vaultCheck(c echo.Context) error {
	var req pinRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, fault.Validation("bad request body"))
	}
	ok, err := s.gate.CheckVaultPin(c.Request().Context(), req.Pin)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": ok})
}

// open makes the addressed note the editor's active one, passing any lock
// challenge with the pin carried in the body.
func (s *Server) open(c echo.Context, id, pin string) error {
	if s.editor.ActiveID() == id {
		return nil
	}
	_, err := s.editor.Open(c.Request().Context(), id, pin)
	return err
}

func (s *Server) summarize(c echo.Context) error {
	var req pinRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, fault.Validation("bad request body"))
	}
	if err := s.open(c, c.Param("id"), req.Pin); err != nil {
		return fail(c, err)
	}
	n, err := s.editor.Summarize(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, redact(n, true))
}

func (s *Server) rewrite(c echo.Context) error {
	var req struct {
		Pin         string `json:"pin"`
		Preset      string `json:"preset"`
		Instruction string `json:"instruction"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, fault.Validation("bad request body"))
	}

	instruction := req.Instruction
	switch req.Preset {
	case "grammar":
		instruction = editor.InstructionGrammar
	case "elaborate":
		instruction = editor.InstructionElaborate
	case "":
	default:
		return fail(c, fault.Validation("unknown preset %q", req.Preset))
	}

	if err := s.open(c, c.Param("id"), req.Pin); err != nil {
		return fail(c, err)
	}
	n, err := s.editor.Rewrite(c.Request().Context(), instruction)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, redact(n, true))
}

func (s *Server) speak(c echo.Context) error {
	var req pinRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, fault.Validation("bad request body"))
	}
	if err := s.open(c, c.Param("id"), req.Pin); err != nil {
		return fail(c, err)
	}
	if err := s.editor.Speak(c.Request().Context()); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"state": s.playback.State().String()})
}

func (s *Server) speakStop(c echo.Context) error {
	s.editor.StopSpeaking()
	return c.JSON(http.StatusOK, map[string]string{"state": s.playback.State().String()})
}

func (s *Server) speakRate(c echo.Context) error {
	var req struct {
		Rate float64 `json:"rate"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, fault.Validation("bad request body"))
	}
	if err := s.editor.SetRate(req.Rate); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]float64{"rate": s.playback.Rate()})
}

func (s *Server) dictateStart(c echo.Context) error {
	var req pinRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, fault.Validation("bad request body"))
	}
	if err := s.open(c, c.Param("id"), req.Pin); err != nil {
		return fail(c, err)
	}
	if err := s.editor.StartDictation(c.Request().Context()); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"state": s.capture.State().String()})
}

func (s *Server) dictateStop(c echo.Context) error {
	res, err := s.editor.StopDictation(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	res.Note = redact(res.Note, true)
	return c.JSON(http.StatusOK, res)
}

func (s *Server) rtcOffer(c echo.Context) error {
	var offer webrtc.SessionDescription
	if err := c.Bind(&offer); err != nil {
		return fail(c, fault.Validation("bad SDP offer"))
	}
	answer, err := s.hub.Connect(offer)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, answer)
}

type statusResponse struct {
	ActiveNote     string  `json:"activeNote"`
	Playback       string  `json:"playback"`
	Capture        string  `json:"capture"`
	Rate           float64 `json:"rate"`
	VoiceConnected bool    `json:"voiceConnected"`
}

func (s *Server) status(c echo.Context) error {
	return c.JSON(http.StatusOK, statusResponse{
		ActiveNote:     s.editor.ActiveID(),
		Playback:       s.playback.State().String(),
		Capture:        s.capture.State().String(),
		Rate:           s.playback.Rate(),
		VoiceConnected: s.hub.Connected(),
	})
}
