// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns
// such as tracing, correlation IDs, logging, panic recovery, metrics,
// CORS, compression, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/aulalibre/go-aula-backend/internal/auth"
	"github.com/aulalibre/go-aula-backend/internal/config"
	"github.com/aulalibre/go-aula-backend/internal/domain"
	"github.com/aulalibre/go-aula-backend/internal/http/handlers"
	"github.com/aulalibre/go-aula-backend/internal/http/middleware"
	"github.com/aulalibre/go-aula-backend/internal/repo"
	"github.com/aulalibre/go-aula-backend/internal/services"
	"github.com/aulalibre/go-aula-backend/internal/storage"
	"github.com/aulalibre/go-aula-backend/internal/ws"
)

// chatRepoShim adapts the repository free functions to the
// services.ChatRepo interface. This keeps services decoupled from the
// concrete repo package while reusing existing functions.
type chatRepoShim struct{}

func (chatRepoShim) CreateChat(ctx context.Context, db *gorm.DB, userA, userB int64) (*domain.Chat, error) {
	return repo.CreateChat(ctx, db, userA, userB)
}

func (chatRepoShim) GetChatByPair(ctx context.Context, db *gorm.DB, userA, userB int64) (*domain.Chat, error) {
	return repo.GetChatByPair(ctx, db, userA, userB)
}

func (chatRepoShim) GetChat(ctx context.Context, db *gorm.DB, id string) (*domain.Chat, error) {
	return repo.GetChat(ctx, db, id)
}

func (chatRepoShim) ListChatsFor(ctx context.Context, db *gorm.DB, userID int64) ([]domain.Chat, error) {
	return repo.ListChatsFor(ctx, db, userID)
}

// messageRepoShim adapts the repository free functions to the
// services.MessageRepo interface.
type messageRepoShim struct{}

func (messageRepoShim) CreateMessage(ctx context.Context, db *gorm.DB, chatID string, senderID int64, body string) (*domain.Message, error) {
	return repo.CreateMessage(ctx, db, chatID, senderID, body)
}

func (messageRepoShim) CreateAttachment(ctx context.Context, db *gorm.DB, messageID int64, ref, filename, mimeType string, size int64) (*domain.Attachment, error) {
	return repo.CreateAttachment(ctx, db, messageID, ref, filename, mimeType, size)
}

func (messageRepoShim) GetAttachmentByRef(ctx context.Context, db *gorm.DB, ref string) (*domain.Attachment, error) {
	return repo.GetAttachmentByRef(ctx, db, ref)
}

func (messageRepoShim) ListMessagesBefore(ctx context.Context, db *gorm.DB, chatID string, beforeAt time.Time, beforeID int64, limit int) ([]domain.Message, error) {
	return repo.ListMessagesBefore(ctx, db, chatID, beforeAt, beforeID, limit)
}

// notificationRepoShim adapts the repository free functions to the
// services.NotificationRepo interface.
type notificationRepoShim struct{}

func (notificationRepoShim) CreateNotification(ctx context.Context, db *gorm.DB, recipientID int64, kind domain.NotificationKind, body string, actividadID, entregaID *int64) (*domain.Notification, error) {
	return repo.CreateNotification(ctx, db, recipientID, kind, body, actividadID, entregaID)
}

func (notificationRepoShim) ListNotificationsFor(ctx context.Context, db *gorm.DB, userID int64) ([]domain.Notification, int64, error) {
	return repo.ListNotificationsFor(ctx, db, userID)
}

func (notificationRepoShim) DeleteNotification(ctx context.Context, db *gorm.DB, userID int64, id string) error {
	return repo.DeleteNotification(ctx, db, userID, id)
}

func (notificationRepoShim) DeleteAllNotifications(ctx context.Context, db *gorm.DB, userID int64) (int64, error) {
	return repo.DeleteAllNotifications(ctx, db, userID)
}

// roleDirectoryShim exposes the shared users table as the
// services.RoleDirectory collaborator.
type roleDirectoryShim struct{}

func (roleDirectoryShim) RoleOf(ctx context.Context, db *gorm.DB, userID int64) (domain.Role, error) {
	return repo.RoleOf(ctx, db, userID)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given
// Gin engine.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured access logs
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Rate limiter (per user/IP)
//  8. CORS and gzip
//
// The public API mounts under cfg.APIBasePath behind bearer auth; the
// WebSocket handshake carries its token in the query string instead.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, store *storage.Store, reg *ws.Registry, verifier *auth.Verifier, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())

	// Body cap: attachment ceiling plus slack for the multipart framing.
	r.Use(limitBody(cfg.Attachment.MaxBytes + 1<<20))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "Content-Disposition"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "Content-Disposition"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/ws", "/metrics"})))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Dependency injection: services ← repo/db/store/registry
	router := ws.NewRouter(reg)
	chatSvc := services.NewChatService(db, chatRepoShim{}, roleDirectoryShim{})
	msgSvc := &services.MessageService{
		DB:           db,
		Repo:         messageRepoShim{},
		Chats:        chatRepoShim{},
		Store:        store,
		Push:         router,
		MaxBodyRunes: 4000,
	}
	notifSvc := services.NewNotificationService(db, notificationRepoShim{}, router)
	h := handlers.New(chatSvc, msgSvc, notifSvc)

	// WebSocket handshake (token in query; no bearer middleware here)
	r.GET("/ws", handlers.Connect(verifier, reg, cfg.WS))

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(middleware.Auth(verifier))
	{
		// Chats
		api.POST("/chats", h.CreateChat)
		api.GET("/chats", h.ListChats)

		// Messages
		api.GET("/chats/:id/messages", h.ListMessages)
		api.POST("/chats/:id/messages", h.SendMessage)

		// Attachments
		api.GET("/attachments/:ref", h.DownloadAttachment)

		// Notifications
		api.GET("/notifications", h.ListNotifications)
		api.DELETE("/notifications/:id", h.AcknowledgeNotification)
		api.DELETE("/notifications", h.AcknowledgeAllNotifications)

		// Event ingestion (docente/admin collaborators)
		api.POST("/events", h.IngestEvent)
	}
}

// limitBody caps the request body size for all endpoints using
// http.MaxBytesReader. Requests exceeding the cap cause downstream body
// reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
