package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/remidosol/express-library-api/internal/config"
	"github.com/remidosol/express-library-api/internal/http/handlers"
	"github.com/remidosol/express-library-api/internal/http/middleware"
	"github.com/remidosol/express-library-api/internal/version"
)

type Dependencies struct {
	DBPinger    handlers.Pinger
	CachePinger handlers.Pinger
	BookHandler *handlers.BookHandler
	UserHandler *handlers.UserHandler
}

func NewRouter(cfg config.Config, logger *slog.Logger, deps Dependencies) *gin.Engine {
	if cfg.Env == "prod" || cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestBodyLimit(cfg.MaxBodyBytes))
	r.Use(func(c *gin.Context) {
		logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"request_id", c.GetString("request_id"),
		)
		c.Next()
	})

	health := handlers.NewHealthHandler(deps.DBPinger, deps.CachePinger)
	meta := handlers.NewMetaHandler(cfg.Env, version.Version)

	r.GET("/health", health.Health)
	r.GET("/ready", health.Ready)
	r.GET("/v1/meta", meta.GetMeta)

	if deps.BookHandler != nil {
		r.GET("/books", deps.BookHandler.ListBooks)
		r.GET("/books/:bookId", deps.BookHandler.GetBook)
		r.POST("/books", deps.BookHandler.CreateBook)
	}
	if deps.UserHandler != nil {
		r.GET("/users", deps.UserHandler.ListUsers)
		r.GET("/users/:userId", deps.UserHandler.GetUser)
		r.POST("/users", deps.UserHandler.CreateUser)
		r.POST("/users/:userId/borrow/:bookId", deps.UserHandler.BorrowBook)
		r.POST("/users/:userId/return/:bookId", deps.UserHandler.ReturnBook)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return r
}
