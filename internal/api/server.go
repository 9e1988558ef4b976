package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"origtext/internal/config"
	"origtext/internal/models"
	"origtext/internal/originals"
)

// Originals is the operation set exposed over HTTP.
type Originals interface {
	Save(ctx context.Context, meta models.OriginalText, up originals.Upload) (models.OriginalText, error)
	Update(ctx context.Context, meta models.OriginalText, up originals.Upload) (models.OriginalText, error)
	Delete(ctx context.Context, refs []models.ArtifactRef) error
	Get(ctx context.Context, catalogueID int, id string) (map[string]any, error)
	FileAttributes(ctx context.Context, catalogueID int, id string) (map[string]any, error)
	Download(ctx context.Context, kind originals.DownloadKind, catalogueID int, id string) (*originals.Download, error)
	List(ctx context.Context, catalogueID int, entryID, title string, page models.Page) (models.PageResult, error)
	Sort(ctx context.Context, catalogueID int, idA, idB string) error
	Scroll(ctx context.Context, req originals.ScrollRequest) (models.PageResult, error)
	Archive(ctx context.Context, req originals.ArchiveRequest) ([]models.ArchivingResult, error)
}

type Server struct {
	cfg  config.Config
	svc  Originals
	log  *slog.Logger
	rate *rate.Limiter
}

func NewServer(cfg config.Config, svc Originals, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{cfg: cfg, svc: svc, log: log}
	if cfg.RateLimitRPS > 0 {
		s.rate = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	return s
}

func (s *Server) Routes() http.Handler {
	if s.cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())
	r.Use(cors.New(s.corsConfig()))
	if s.rate != nil {
		r.Use(rateLimit(s.rate, s.log))
	}

	r.GET("/healthz", s.handleHealthz)

	g := r.Group("/originalText")
	g.POST("", s.handleSave)
	g.PUT("", s.handleUpdate)
	g.DELETE("", s.handleDelete)
	g.GET("", s.handleGet)
	g.GET("/fileAttributes", s.handleFileAttributes)
	g.GET("/file", s.handleDownload)
	g.GET("/list", s.handleList)
	g.PATCH("/sort", s.handleSort)
	g.GET("/scroll", s.handleScroll)
	g.POST("/archiving", s.handleArchive)
	return r
}

func (s *Server) corsConfig() cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(s.cfg.CORSOrigins) == 0 {
		c.AllowAllOrigins = true
		c.AllowCredentials = false
	} else {
		c.AllowOrigins = s.cfg.CORSOrigins
	}
	return c
}

// rateLimit rejects requests over the shared budget. Health checks are exempt.
func rateLimit(limiter *rate.Limiter, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Next()
			return
		}
		if !limiter.Allow() {
			log.Warn("rate limit exceeded", "ip", c.ClientIP(), "path", c.Request.URL.Path)
			writeErr(c, http.StatusTooManyRequests, nil)
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
