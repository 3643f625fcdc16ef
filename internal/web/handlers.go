package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"moodwave/internal/session"
	"moodwave/internal/view"
	"moodwave/pkg/logger"
	"moodwave/pkg/model"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const sessionKey = "session_id"

type FileView struct {
	Name string
	Size string
}

type PageData struct {
	File        *FileView
	CanSubmit   bool
	SubmitLabel string
	Error       string
	Result      *view.ResultView
	// Alert is shown as a blocking browser alert when the page loads
	Alert string
}

func newPageData(sess *session.Session) PageData {
	data := PageData{
		CanSubmit:   sess.CanSubmit(),
		SubmitLabel: sess.SubmitLabel(),
	}

	if sess.File != nil {
		data.File = &FileView{
			Name: sess.File.Name,
			Size: fmt.Sprintf("%.2f KB", sess.File.SizeKiB()),
		}
	}
	if msg, ok := sess.State.ErrorMessage(); ok {
		data.Error = msg
	}
	if result, ok := sess.State.Result(); ok {
		v := view.NewResultView(result)
		data.Result = &v
	}

	return data
}

// sessionMiddleware binds each request to a session cookie, issuing a new
// one when it is missing or malformed
func (s *Server) sessionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := ""
		if cookie, err := c.Cookie(s.opts.CookieName); err == nil {
			if parsed, err := uuid.Parse(cookie.Value); err == nil {
				id = parsed.String()
			}
		}

		if id == "" {
			id = uuid.New().String()
			logger.Debug("Issuing new session", zap.String("session_id", id))
		}

		// Refresh on every request so the cookie lives as long as the session
		c.SetCookie(&http.Cookie{
			Name:     s.opts.CookieName,
			Value:    id,
			Path:     "/",
			MaxAge:   int(s.opts.SessionTTL.Seconds()),
			HttpOnly: true,
			Secure:   s.opts.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		})

		c.Set(sessionKey, id)
		return next(c)
	}
}

func sessionID(c echo.Context) string {
	id, _ := c.Get(sessionKey).(string)
	return id
}

func (s *Server) index(c echo.Context) error {
	sess, err := s.controller.Session(c.Request().Context(), sessionID(c))
	if err != nil {
		return s.fail(c, "Failed to load session", err)
	}
	return s.render(c, http.StatusOK, "index.html", newPageData(sess))
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) selectFile(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		// Picker closed without a choice
		return c.Redirect(http.StatusSeeOther, "/")
	}

	f, err := fh.Open()
	if err != nil {
		return s.fail(c, "Failed to open uploaded file", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return s.fail(c, "Failed to read uploaded file", err)
	}

	file := &model.AudioFile{
		Name:     fh.Filename,
		Size:     int64(len(data)),
		MimeType: fh.Header.Get(echo.HeaderContentType),
		Data:     data,
	}

	origin := session.OriginPicker
	if session.Origin(c.FormValue("origin")) == session.OriginDrop {
		origin = session.OriginDrop
	}

	sess, err := s.controller.Select(c.Request().Context(), sessionID(c), file, origin)
	if errors.Is(err, session.ErrNotAudio) {
		page := newPageData(sess)
		page.Alert = session.MessageNotAudio
		return s.render(c, http.StatusUnsupportedMediaType, "index.html", page)
	}
	if err != nil {
		return s.fail(c, "Failed to select file", err)
	}

	logger.Info("File selected",
		zap.String("session_id", sess.ID),
		zap.String("file_name", file.Name),
		zap.Int64("file_size", file.Size),
		zap.String("origin", string(origin)))

	return c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) removeFile(c echo.Context) error {
	if _, err := s.controller.Remove(c.Request().Context(), sessionID(c)); err != nil {
		return s.fail(c, "Failed to remove file", err)
	}
	return c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) analyze(c echo.Context) error {
	_, err := s.controller.Submit(c.Request().Context(), sessionID(c))
	switch {
	case err == nil, errors.Is(err, session.ErrNoFile), errors.Is(err, session.ErrBusy):
		return c.Redirect(http.StatusSeeOther, "/")
	default:
		return s.fail(c, "Failed to analyze file", err)
	}
}

func (s *Server) fail(c echo.Context, msg string, err error) error {
	logger.Error(msg,
		zap.String("session_id", sessionID(c)),
		zap.Error(err))
	return echo.NewHTTPError(http.StatusInternalServerError, msg).SetInternal(err)
}
