package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/jayalms/lms/core"
	"github.com/jayalms/lms/core/batch"
	"github.com/jayalms/lms/core/enrollment"
	"github.com/jayalms/lms/core/identity"
	"github.com/jayalms/lms/core/notice"
	"github.com/jayalms/lms/core/profile"
	"github.com/jayalms/lms/core/submission"
	"github.com/jayalms/lms/services/filestore"
)

type (
	// ServerDeps are the services the API is served from. Files is only set with the local storage driver.
	ServerDeps struct {
		Conf        *core.Config
		Logger      core.Logger
		Validate    *validator.Validate
		Translator  ut.Translator
		Identity    *identity.Service
		Profiles    *profile.Service
		Batches     *batch.Service
		Enrollments *enrollment.Service
		Notices     *notice.Service
		Submissions *submission.Service
		Broker      core.ChangeBroker
		Files       *filestore.LocalStorage
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		metrics  *metrics
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ http.Handler = (*Server)(nil)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		metrics:  newMetrics(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(s.metrics.middleware)

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)
	s.app.GET("/metrics", s.metrics.handler())
	if s.deps.Files != nil {
		s.app.GET("/files/*", s.serveFile)
	}

	v1 := s.app.Group("/v1")
	authed := v1.Group("", newJWTMiddleware(conf), sessionMiddleware(s.deps.Identity))

	registerIdentityAPI(v1, authed, s.deps)
	registerProfileAPI(authed, s.deps)
	registerDashboardAPI(authed, s.deps)
	registerBatchAPI(authed, s.deps)
	registerEnrollmentAPI(authed, s.deps)
	registerNoticeAPI(authed, s.deps)
	registerSubmissionAPI(authed, s.deps)
	registerChangesAPI(authed, s.deps)
}

// Start listens on the configured address; a failure is reported on Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}
