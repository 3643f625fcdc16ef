package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"time"

	"moodwave/internal/session"
	"moodwave/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

type Options struct {
	CookieName   string
	CookieSecure bool
	SessionTTL   time.Duration
	// BodyLimit caps request bodies, e.g. "64M". Empty means no limit.
	BodyLimit string
}

type Server struct {
	echo       *echo.Echo
	controller *session.Controller
	templates  *template.Template
	opts       Options
}

func NewServer(controller *session.Controller, opts Options) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(requestLogger(logger.Named("http")))
	if opts.BodyLimit != "" {
		e.Use(middleware.BodyLimit(opts.BodyLimit))
	}

	tmpl := template.Must(template.ParseFS(templateFS, "templates/*.html"))

	s := &Server{
		echo:       e,
		controller: controller,
		templates:  tmpl,
		opts:       opts,
	}

	s.routes()

	return s
}

func (s *Server) routes() {
	s.echo.GET("/health", s.health)

	page := s.echo.Group("", s.sessionMiddleware)
	page.GET("/", s.index)
	page.POST("/file", s.selectFile)
	page.POST("/file/remove", s.removeFile)
	page.POST("/analyze", s.analyze)
}

// Handler exposes the routes for embedding and tests
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start(addr string) error {
	logger.Info("HTTP server listening", zap.String("addr", addr))

	err := s.echo.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) render(c echo.Context, status int, name string, data any) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(status)
	if err := s.templates.ExecuteTemplate(c.Response(), name, data); err != nil {
		logger.Error("Failed to render template",
			zap.String("template", name),
			zap.Error(err))
		return err
	}
	return nil
}

// requestLogger writes one zap entry per request
func requestLogger(log *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				log.Error("Request failed", append(fields, zap.Error(v.Error))...)
				return nil
			}
			log.Info("Request", fields...)
			return nil
		},
	})
}
