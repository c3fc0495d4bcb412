package server

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/shinyyama/herald-backend/internal/config"
	"github.com/shinyyama/herald-backend/internal/handler"
	appmw "github.com/shinyyama/herald-backend/internal/middleware"
	"github.com/shinyyama/herald-backend/internal/realtime"
	"github.com/shinyyama/herald-backend/internal/repository"
	"github.com/shinyyama/herald-backend/internal/service"
	"github.com/shinyyama/herald-backend/internal/session"
	"github.com/shinyyama/herald-backend/internal/storage"
)

// Services is every domain service the HTTP layer and the worker share.
type Services struct {
	Notifications service.NotificationService
	Wallets       service.WalletService
	Profiles      service.ProfileService
	Posts         service.PostService
	Messages      service.MessageService
}

func NewServices(repos *repository.Repositories, store storage.ObjectStore, logger *slog.Logger) *Services {
	wallets := service.NewWalletService(repos, logger)
	return &Services{
		Notifications: service.NewNotificationService(repos.Notifications, logger),
		Wallets:       wallets,
		Profiles:      service.NewProfileService(repos, store, logger),
		Posts:         service.NewPostService(repos.Posts, wallets, logger),
		Messages:      service.NewMessageService(repos),
	}
}

type Deps struct {
	Repos    *repository.Repositories
	Bus      *realtime.Bus
	Services *Services
	Verifier appmw.TokenVerifier
	// Audits is nil when no worker is configured.
	Audits handler.AuditQueue
	Logger *slog.Logger
	SHA    string
	Build  string
}

type Server struct {
	e        *echo.Echo
	sessions *session.Manager
	logger   *slog.Logger
}

func New(cfg *config.Config, d Deps) (*Server, error) {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	allowed := originAllowed(cfg.CORSOriginSuffix)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.Use(middleware.Recover())
	e.Use(appmw.RequestID)
	e.Use(middleware.Logger())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		AllowOriginFunc: func(origin string) (bool, error) {
			return allowed(origin), nil
		},
	}))

	walletLimit, err := appmw.RateLimit(cfg.WalletRateLimit)
	if err != nil {
		return nil, err
	}

	sessions := session.NewManager(d.Bus, d.Services.Notifications, d.Services.Messages, cfg.FeedRefreshInterval, logger)
	authMw := appmw.NewAuthMiddleware(d.Verifier)

	notifications := handler.NewNotificationHandler(d.Services.Notifications)
	wallets := handler.NewWalletHandler(d.Services.Wallets, d.Audits)
	posts := handler.NewPostHandler(d.Services.Posts)
	messages := handler.NewMessageHandler(d.Services.Messages)
	profiles := handler.NewProfileHandler(d.Services.Profiles, d.Verifier, sessions)
	rt := handler.NewRealtimeHandler(sessions, func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed(origin)
	}, logger)

	e.GET("/healthz", func(c echo.Context) error {
		status := http.StatusOK
		dbState := "ok"
		if err := ping(c.Request().Context(), d.Repos); err != nil {
			status = http.StatusServiceUnavailable
			dbState = err.Error()
		}
		return c.JSON(status, map[string]string{
			"ok":         "true",
			"db":         dbState,
			"git_sha":    d.SHA,
			"build_time": d.Build,
		})
	})

	api := e.Group("/api")
	api.GET("/users/:uid/public", profiles.GetPublic)

	authed := api.Group("", authMw.RequireAuth)
	authed.GET("/notifications", notifications.List)
	authed.GET("/notifications/unread-count", notifications.UnreadCount)
	authed.POST("/notifications/read-all", notifications.MarkAllRead)
	authed.POST("/notifications/:id/read", notifications.MarkRead)
	authed.DELETE("/notifications/:id", notifications.Delete)
	authed.DELETE("/notifications", notifications.ClearAll)

	authed.GET("/wallet", wallets.Get)
	authed.GET("/wallet/transactions", wallets.Transactions)
	authed.GET("/wallet/audit", wallets.Audit)
	authed.POST("/wallet/audit", wallets.QueueAudit)
	authed.POST("/wallet/convert", wallets.Convert, walletLimit)
	authed.POST("/wallet/send", wallets.Send, walletLimit)
	authed.POST("/wallet/claim", wallets.Claim, walletLimit)
	authed.POST("/checkout", wallets.Checkout, walletLimit)
	authed.POST("/streams/:id/donations", wallets.DonateToStream, walletLimit)
	authed.POST("/causes/:id/donations", wallets.DonateToCause, walletLimit)

	authed.POST("/posts", posts.Create)
	authed.POST("/tasks/:id/complete", posts.CompleteTask)

	authed.GET("/conversations", messages.Conversations)
	authed.GET("/conversations/:peer/messages", messages.Messages)
	authed.POST("/conversations/:peer/messages", messages.Send)

	authed.GET("/me", profiles.Me)
	authed.PUT("/me", profiles.Save)
	authed.POST("/me/avatar", profiles.UploadAvatar)
	authed.DELETE("/me/avatar", profiles.RemoveAvatar)
	authed.POST("/session/signout", profiles.SignOut)

	authed.GET("/realtime", rt.Serve)

	return &Server{e: e, sessions: sessions, logger: logger}, nil
}

func (s *Server) Start(addr string) error {
	s.logger.Info("starting server", "addr", addr)
	return s.e.Start(addr)
}

// Shutdown stops every realtime session, then drains HTTP requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.sessions.StopAll()
	return s.e.Shutdown(ctx)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.e.ServeHTTP(w, r)
}

func (s *Server) Sessions() *session.Manager {
	return s.sessions
}

func ping(ctx context.Context, repos *repository.Repositories) error {
	if repos == nil || repos.DB() == nil {
		return repository.ErrDBNotReady
	}
	sqlDB, err := repos.DB().DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// originAllowed accepts local development origins and any http(s) host
// ending in suffix.
func originAllowed(suffix string) func(origin string) bool {
	suffix = strings.ToLower(suffix)
	return func(origin string) bool {
		low := strings.ToLower(origin)
		if strings.HasPrefix(low, "http://localhost:") || strings.HasPrefix(low, "http://127.0.0.1:") ||
			strings.HasPrefix(low, "https://localhost:") || strings.HasPrefix(low, "https://127.0.0.1:") {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return false
		}
		return suffix != "" && strings.HasSuffix(u.Hostname(), suffix)
	}
}
