package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	chatdomain "github.com/warrantydesk/warrantydesk/internal/chat/domain"
	claimdomain "github.com/warrantydesk/warrantydesk/internal/claim/domain"
	"github.com/warrantydesk/warrantydesk/internal/config"
	directorydomain "github.com/warrantydesk/warrantydesk/internal/directory/domain"
	donationdomain "github.com/warrantydesk/warrantydesk/internal/donation/domain"
	invoicedomain "github.com/warrantydesk/warrantydesk/internal/invoice/domain"
	notificationdomain "github.com/warrantydesk/warrantydesk/internal/notification/domain"
	"github.com/warrantydesk/warrantydesk/internal/observability/metrics"
	"github.com/warrantydesk/warrantydesk/internal/providers/storage"
	"github.com/warrantydesk/warrantydesk/internal/ratelimit"
	"github.com/warrantydesk/warrantydesk/internal/realtime"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger, obsMetrics *metrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log))
	r.Use(obsMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger, obsMetrics *metrics.Metrics) *gin.Engine {
	return NewEngine(log, obsMetrics)
}

// requestLogger emits one structured line per request.
func requestLogger(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if strings.TrimSpace(route) == "" {
			route = "unknown"
		}
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("route", route),
			zap.Int("status", c.Writer.Status()),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		}
		if lastErr := c.Errors.Last(); lastErr != nil {
			fields = append(fields, zap.String("error", lastErr.Err.Error()))
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			log.Error("request", fields...)
		case c.Writer.Status() >= http.StatusBadRequest:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server starting", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	log             *zap.Logger
	directorySvc    directorydomain.Service
	claimSvc        claimdomain.Service
	invoiceSvc      invoicedomain.Service
	chatSvc         chatdomain.Service
	notificationSvc notificationdomain.Service
	donationSvc     donationdomain.Service
	hub             *realtime.Hub
	storage         storage.Provider
	obsMetrics      *metrics.Metrics
	intentLimiter   *ratelimit.DonationIntentLimiter
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Log             *zap.Logger
	DirectorySvc    directorydomain.Service
	ClaimSvc        claimdomain.Service
	InvoiceSvc      invoicedomain.Service
	ChatSvc         chatdomain.Service
	NotificationSvc notificationdomain.Service
	DonationSvc     donationdomain.Service
	Hub             *realtime.Hub
	Storage         storage.Provider
	ObsMetrics      *metrics.Metrics                 `optional:"true"`
	IntentLimiter   *ratelimit.DonationIntentLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		log:             p.Log.Named("server"),
		directorySvc:    p.DirectorySvc,
		claimSvc:        p.ClaimSvc,
		invoiceSvc:      p.InvoiceSvc,
		chatSvc:         p.ChatSvc,
		notificationSvc: p.NotificationSvc,
		donationSvc:     p.DonationSvc,
		hub:             p.Hub,
		storage:         p.Storage,
		obsMetrics:      p.ObsMetrics,
		intentLimiter:   p.IntentLimiter,
	}

	svc.registerAPIRoutes()
	svc.registerPublicRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.AuthRequired())

	claims := api.Group("/claims")
	{
		claims.POST("", s.CreateClaim)
		claims.GET("", s.ListClaims)
		claims.GET("/archived", s.ListArchivedClaims)
		claims.GET("/export", s.ExportClaims)
		claims.POST("/import", s.ImportClaims)
		claims.POST("/archive", s.ArchiveClaims)
		claims.POST("/unarchive", s.UnarchiveClaims)
		claims.GET("/stats", s.ClaimStats)
		claims.GET("/dashboard", s.ClaimDashboard)
		claims.GET("/:id", s.GetClaim)
		claims.PATCH("/:id", s.UpdateClaim)
		claims.PATCH("/:id/status", s.UpdateClaimStatus)
		claims.DELETE("/:id", s.DeleteClaim)

		claims.POST("/:id/messages", s.SendChatMessage)
		claims.GET("/:id/messages", s.ChatThread)
	}

	invoices := api.Group("/invoices", RequireRole(directorydomain.RoleAdmin, directorydomain.RoleClient))
	{
		invoices.POST("", RequireRole(directorydomain.RoleAdmin), s.CreateInvoice)
		invoices.GET("", s.ListInvoices)
		invoices.GET("/archived", s.ListArchivedInvoices)
		invoices.POST("/archive", RequireRole(directorydomain.RoleAdmin), s.ArchiveInvoices)
		invoices.POST("/unarchive", RequireRole(directorydomain.RoleAdmin), s.UnarchiveInvoices)
		invoices.GET("/stats", s.InvoiceStats)
		invoices.GET("/:id", s.GetInvoice)
		invoices.PATCH("/:id", RequireRole(directorydomain.RoleAdmin), s.EditInvoice)
		invoices.PATCH("/:id/status", RequireRole(directorydomain.RoleAdmin), s.ChangeInvoiceStatus)
		invoices.POST("/:id/send", RequireRole(directorydomain.RoleAdmin), s.SendInvoice)
		invoices.DELETE("/:id", RequireRole(directorydomain.RoleAdmin), s.DeleteInvoice)
	}

	chats := api.Group("/chats", RequireRole(directorydomain.RoleAdmin))
	{
		chats.GET("/response-times", s.ChatResponseTimes)
		chats.GET("/response-times/top", s.TopChatResponseTimes)
	}

	notifications := api.Group("/notifications")
	{
		notifications.GET("", s.NotificationFeed)
		notifications.GET("/stream", s.StreamNotifications)
		notifications.PATCH("/:id/read", s.MarkNotificationRead)
		notifications.DELETE("/:id", s.DeleteNotification)
	}

	clients := api.Group("/clients", RequireRole(directorydomain.RoleAdmin))
	{
		clients.POST("", s.CreateClient)
		clients.GET("", s.ListClients)
		clients.GET("/stats", s.ClientStats)
		clients.GET("/:id", s.GetActor)
		clients.PATCH("/:id", s.UpdateClient)
		clients.DELETE("/:id", s.DeleteClient)
	}

	users := api.Group("/users", RequireRole(directorydomain.RoleClient, directorydomain.RoleAdmin))
	{
		users.POST("", RequireRole(directorydomain.RoleClient), s.CreateUser)
		users.GET("", s.ListUsers)
		users.GET("/stats", s.UserStats)
		users.PATCH("/:id", s.UpdateUser)
		users.DELETE("/:id", RequireRole(directorydomain.RoleClient), s.DeleteUser)
	}

	api.GET("/activity", RequireRole(directorydomain.RoleAdmin), s.ActorActivity)

	donations := api.Group("/donations")
	{
		donations.GET("", RequireRole(directorydomain.RoleAdmin), s.ListDonations)
		// The service limits receipt downloads to admins and the
		// paying member.
		donations.GET("/:id/receipt", s.DonationReceipt)
		donations.POST("/:id/receipt/resend", RequireRole(directorydomain.RoleAdmin), s.ResendDonationReceipt)
	}
}

func (s *Server) registerPublicRoutes() {
	public := s.engine.Group("/public")

	public.POST("/donations/intent", s.CreateDonationIntent)
	public.POST("/donations/webhook", s.DonationWebhook)
}
