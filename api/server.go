package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogecho "github.com/samber/slog-echo"
	"gorm.io/gorm"

	"github.com/vigia-social/vigia/blobstore"
	"github.com/vigia-social/vigia/content"
	"github.com/vigia-social/vigia/moderation"
	"github.com/vigia-social/vigia/realtime"
)

// Server wires the HTTP API, the realtime gateway, and the moderation
// pipeline into one process.
type Server struct {
	db    *gorm.DB
	echo  *echo.Echo
	store *content.Store

	registry   *realtime.Registry
	dispatcher *realtime.Dispatcher
	gateway    *realtime.Gateway
	moderator  *moderation.Orchestrator
	blobs      *blobstore.DiskStore

	jwtSecret []byte

	log *slog.Logger
}

type Config struct {
	JWTSecret  []byte
	BlobDir    string
	Classifier moderation.Classifier
	Moderation moderation.OrchestratorConfig
}

func NewServer(db *gorm.DB, cfg Config) (*Server, error) {
	store, err := content.NewStore(db)
	if err != nil {
		return nil, err
	}

	blobs, err := blobstore.NewDiskStore(cfg.BlobDir, "/media")
	if err != nil {
		return nil, err
	}

	registry := realtime.NewRegistry()
	dispatcher := realtime.NewDispatcher(registry)

	classifier := cfg.Classifier
	if classifier == nil {
		classifier = moderation.NewKeywordClassifier()
	}

	modCfg := cfg.Moderation
	modCfg.Blobs = blobs
	moderator := moderation.NewOrchestrator(store, dispatcher, classifier, modCfg)

	s := &Server{
		db:         db,
		store:      store,
		registry:   registry,
		dispatcher: dispatcher,
		moderator:  moderator,
		blobs:      blobs,
		jwtSecret:  cfg.JWTSecret,
		log:        slog.Default().With("system", "api"),
	}
	s.gateway = realtime.NewGateway(registry, s)

	return s, nil
}

// Dispatcher exposes the notification dispatcher, e.g. for admin broadcast
// tooling.
func (s *Server) Dispatcher() *realtime.Dispatcher {
	return s.dispatcher
}

// RunAPI sets up routes and serves until Shutdown.
func (s *Server) RunAPI(listen string) error {
	e := s.setupEcho()
	return e.Start(listen)
}

func (s *Server) setupEcho() *echo.Echo {
	e := echo.New()
	s.echo = e
	e.HideBanner = true

	e.Use(slogecho.New(s.log))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
		} else {
			s.log.Error("request failed", "path", c.Path(), "err", err)
		}
		if !c.Response().Committed {
			c.JSON(code, map[string]any{"error": err.Error()})
		}
	}

	e.POST("/auth/register", s.handleRegister)
	e.POST("/auth/login", s.handleLogin)

	e.GET("/_health", s.handleHealthCheck)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.Static("/media", s.blobs.Dir())

	e.GET("/ws/notifications", s.handleNotificationStream)

	authed := e.Group("", s.authMiddleware)
	authed.GET("/users/me", s.handleMe)
	authed.GET("/users/me/posts", s.handleMyPosts)

	authed.POST("/posts", s.handleCreatePost)
	authed.GET("/posts", s.handleListPosts)
	authed.GET("/posts/:id", s.handleGetPost)
	authed.GET("/posts/:id/comments", s.handleListComments)

	authed.POST("/comments", s.handleCreateComment)
	authed.DELETE("/comments/:id", s.handleDeleteComment)

	authed.POST("/incidents", s.handleCreateIncident)
	authed.GET("/incidents", s.handleListIncidents)
	authed.GET("/incidents/mine", s.handleMyIncidents)
	authed.GET("/incidents/search", s.handleSearchIncidents)
	authed.GET("/incidents/area", s.handleIncidentsInArea)
	authed.GET("/incidents/category/:category", s.handleIncidentsByCategory)
	authed.GET("/incidents/:id", s.handleGetIncident)
	authed.PATCH("/incidents/:id", s.handleUpdateIncident)
	authed.DELETE("/incidents/:id", s.handleDeleteIncident)
	authed.GET("/incidents/:id/posts", s.handleIncidentPosts)

	authed.POST("/queries", s.handleCreateQuery)
	authed.GET("/queries/history", s.handleQueryHistory)
	authed.GET("/queries/history/:id", s.handleGetQuery)

	return e
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.moderator.Shutdown()
	if s.echo == nil {
		return nil
	}
	return s.echo.Shutdown(ctx)
}

type HealthStatus struct {
	Status  string `json:"status"`
	Message string `json:"msg,omitempty"`
}

func (s *Server) handleHealthCheck(c echo.Context) error {
	if err := s.db.Exec("SELECT 1").Error; err != nil {
		s.log.Error("healthcheck can't connect to database", "err", err)
		return c.JSON(http.StatusInternalServerError, HealthStatus{Status: "error", Message: "can't connect to database"})
	}
	return c.JSON(http.StatusOK, HealthStatus{Status: "ok"})
}

// handleNotificationStream hands the connection to the realtime gateway. A
// failed handshake surfaces as a 401 before the upgrade.
func (s *Server) handleNotificationStream(c echo.Context) error {
	if err := s.gateway.HandleConnection(c.Response(), c.Request()); err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	return nil
}
