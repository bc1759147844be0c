package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mentorly/sessionmeter/internal/config"
	"github.com/mentorly/sessionmeter/internal/conversation"
	conversationdomain "github.com/mentorly/sessionmeter/internal/conversation/domain"
	obsmiddleware "github.com/mentorly/sessionmeter/internal/observability/logger"
	obsmetrics "github.com/mentorly/sessionmeter/internal/observability/metrics"
	obstracing "github.com/mentorly/sessionmeter/internal/observability/tracing"
	"github.com/mentorly/sessionmeter/internal/ratelimit"
	"github.com/mentorly/sessionmeter/internal/subscription"
	"github.com/mentorly/sessionmeter/internal/usage"
	usagedomain "github.com/mentorly/sessionmeter/internal/usage/domain"
	"github.com/mentorly/sessionmeter/internal/webhook"
	"github.com/mentorly/sessionmeter/internal/webhook/authenticator"
	webhookdomain "github.com/mentorly/sessionmeter/internal/webhook/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	ratelimit.Module,
	subscription.Module,
	conversation.Module,
	usage.Module,
	webhook.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware())
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
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
	engine         *gin.Engine
	cfg            config.Config
	log            *zap.Logger
	convSvc        conversationdomain.Service
	usageSvc       usagedomain.Service
	webhookSvc     webhookdomain.Service
	authn          *authenticator.Authenticator
	webhookLimiter *ratelimit.WebhookLimiter
	obsMetrics     *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	Log            *zap.Logger
	ConvSvc        conversationdomain.Service
	UsageSvc       usagedomain.Service
	WebhookSvc     webhookdomain.Service
	Authn          *authenticator.Authenticator
	WebhookLimiter *ratelimit.WebhookLimiter `optional:"true"`
	ObsMetrics     *obsmetrics.Metrics       `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		log:            p.Log.Named("server"),
		convSvc:        p.ConvSvc,
		usageSvc:       p.UsageSvc,
		webhookSvc:     p.WebhookSvc,
		authn:          p.Authn,
		webhookLimiter: p.WebhookLimiter,
		obsMetrics:     p.ObsMetrics,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.POST("/webhooks/tavus", s.IngestWebhook)

	api.POST("/conversations", s.CreateConversation)
	api.GET("/conversations/:id", s.GetConversation)

	api.GET("/usage/summary", s.GetUsageSummary)
}
