package webserver

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/workmesh/workmesh/src/api/bus"
	"github.com/workmesh/workmesh/src/api/chat"
	"github.com/workmesh/workmesh/src/api/config"
	"github.com/workmesh/workmesh/src/api/lifecycle"
	"github.com/workmesh/workmesh/src/api/notify"
)

func New(cfg config.Config, db *gorm.DB, reg *bus.Registry, coord *lifecycle.Coordinator, dispatcher *notify.Dispatcher, chatSvc *chat.Service) *gin.Engine {
	g := gin.New()
	g.Use(gin.Logger(), gin.Recovery())
	attachRoutes(g, cfg, db, reg, coord, dispatcher, chatSvc)
	return g
}

func attachRoutes(r *gin.Engine, cfg config.Config, db *gorm.DB, reg *bus.Registry, coord *lifecycle.Coordinator, dispatcher *notify.Dispatcher, chatSvc *chat.Service) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	authH := NewAuth(db, []byte(cfg.JWTSecret))
	jobsH := NewJobs(db, coord)
	wdH := NewWithdrawals(db, coord)
	notifH := NewNotifications(dispatcher)
	msgH := NewMessages(chatSvc)
	wsH := NewWS(db, reg, []byte(cfg.JWTSecret))
	limiter := NewRateLimiter(cfg.RateLimit, time.Minute)

	v1 := r.Group("/v1")
	{
		v1.POST("/auth/register", authH.Register)
		v1.POST("/auth/login", authH.Login)

		v1.GET("/ws", wsH.Serve)

		secured := v1.Use(JWTMiddleware([]byte(cfg.JWTSecret)), RateLimitMiddleware(limiter))
		secured.POST("/jobs", jobsH.Create)
		secured.GET("/jobs", jobsH.List)
		secured.GET("/jobs/:id", jobsH.Get)
		secured.POST("/jobs/:id/proposals", jobsH.SubmitProposal)
		secured.POST("/jobs/:id/proposals/:freelancerId/accept", jobsH.AcceptProposal)
		secured.POST("/jobs/:id/milestones/:ord/complete", jobsH.CompleteMilestone)

		secured.POST("/withdrawals", wdH.Request)
		secured.GET("/withdrawals", wdH.List)
		secured.POST("/withdrawals/:id/cancel", wdH.Cancel)

		secured.GET("/notifications", notifH.List)
		secured.POST("/notifications/read", notifH.MarkAllRead)

		secured.GET("/jobs/:id/messages", msgH.List)
		secured.POST("/jobs/:id/messages", msgH.Create)
		secured.DELETE("/messages/:id", msgH.Delete)
	}

	// inherits the JWT and rate limit middleware attached to v1 above
	admin := v1.Group("/admin")
	admin.Use(AdminMiddleware())
	{
		admin.POST("/withdrawals/:id/complete", wdH.AdminComplete)
		admin.DELETE("/withdrawals/:id", wdH.AdminReject)
	}
}
