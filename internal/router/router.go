// Package router maps URLs to handlers and applies the guard middleware
// per route group.  Each route is registered exactly once.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/kwanjai/budbook/internal/config"
	"github.com/kwanjai/budbook/internal/handler"
	"github.com/kwanjai/budbook/internal/middleware"
	"github.com/kwanjai/budbook/internal/repository"
)

// Handlers bundles every constructed handler for registration.
type Handlers struct {
	Health    *handler.HealthHandler
	Auth      *handler.AuthHandler
	Profile   *handler.ProfileHandler
	Buds      *handler.BudHandler
	Reviews   *handler.ReviewHandler
	Activity  *handler.ActivityHandler
	Search    *handler.SearchHandler
	AdminAuth *handler.AdminAuthHandler
	Admin     *handler.AdminHandler
}

// Register wires all routes.  Group layout mirrors the gate design:
// public browse and auth are open; /v1 requires a JWT; the catalog
// mutations additionally require the approval gate; /v1/admin runs on
// admin sessions only.
func Register(e *echo.Echo, cfg config.Config, h Handlers,
	users *repository.UserRepo, admins *repository.AdminRepo, rdb *redis.Client) {

	rl := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	respCache := middleware.NewResponseCache(config.LoadResponseCacheConfig(), rdb)

	e.GET("/healthz", h.Health.Health)
	e.Static("/media", cfg.MediaDir)

	// auth (no session required)
	auth := e.Group("/v1/auth")
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login, rl)
	auth.POST("/refresh", h.Auth.Refresh)
	auth.POST("/logout", h.Auth.Logout)
	auth.GET("/verify-email", h.Profile.VerifyEmail)
	auth.POST("/password-reset/request", h.Profile.RequestPasswordReset)
	auth.POST("/password-reset/perform", h.Profile.PerformPasswordReset)
	auth.GET("/oauth/login", h.Auth.OAuthLogin)
	auth.GET("/oauth/callback", h.Auth.OAuthCallback)

	// referral landing links shared outside the app
	e.GET("/v1/r/:code", h.Auth.ReferralLanding)

	// public browse (guests included)
	e.GET("/v1/buds", h.Buds.List, respCache)
	e.GET("/v1/buds/:id", h.Buds.Get)
	e.GET("/v1/buds/:id/reviews", h.Reviews.ListByBud)
	e.GET("/v1/search/buds", h.Search.Search, respCache)
	e.GET("/v1/search/strain-names", h.Search.StrainNames, respCache)
	e.GET("/v1/search/breeders", h.Search.Breeders, respCache)
	e.GET("/v1/activities", h.Activity.ListOpen)
	e.GET("/v1/activities/:id", h.Activity.Get)

	// authenticated, gate-exempt.  Only the self-service routes a pending
	// user needs belong here; anything touching other accounts or the
	// catalog goes through the approval gate below.
	me := e.Group("/v1", middleware.JWTAuth(cfg.JWTSecret))
	me.GET("/me", h.Auth.Me)
	me.PUT("/me", h.Profile.UpdateProfile)
	me.GET("/me/status", h.Profile.PendingStatus)
	me.POST("/me/referral-code", h.Profile.SubmitReferralCode)

	// authenticated and approved
	gated := e.Group("/v1",
		middleware.JWTAuth(cfg.JWTSecret),
		middleware.RequireApproved(users),
	)
	gated.GET("/me/referees", h.Profile.Referees)
	gated.POST("/me/referees/:id/approve", h.Profile.ApproveReferee)
	gated.GET("/me/referrals", h.Profile.MyReferrals)
	gated.GET("/me/reviews", h.Reviews.Mine)
	gated.POST("/buds", h.Buds.Create, middleware.RequireRole("GROWER", "BUDTENDER"))
	gated.GET("/my-buds", h.Buds.Mine)
	gated.PUT("/buds/:id", h.Buds.Update)
	gated.DELETE("/buds/:id", h.Buds.Delete)
	gated.POST("/buds/:id/images/:slot", h.Buds.UploadImage)
	gated.POST("/buds/:id/reviews", h.Reviews.Create)
	gated.DELETE("/reviews/:id", h.Reviews.Delete)
	gated.POST("/activities/:id/join", h.Activity.Join)

	// admin console
	e.POST("/v1/admin/login", h.AdminAuth.Login, rl)
	admin := e.Group("/v1/admin", middleware.AdminAuth(cfg.JWTSecret, admins))
	admin.POST("/logout", h.AdminAuth.Logout)
	admin.GET("/users", h.Admin.ListUsers)
	admin.GET("/users/pending", h.Admin.PendingUsers)
	admin.POST("/users/:id/approve", h.Admin.ApproveUser)
	admin.DELETE("/users/:id", h.Admin.RejectUser)
	admin.GET("/settings", h.Admin.GetSettings)
	admin.PUT("/settings", h.Admin.PutSetting)
	admin.POST("/admins", h.Admin.CreateAdmin)
	admin.PUT("/admins/:name/active", h.Admin.SetAdminActive)
	admin.POST("/activities", h.Admin.CreateActivity)
	admin.PUT("/activities/:id/status", h.Admin.SetActivityStatus)
	admin.PUT("/participants/:participant_id/rank", h.Admin.AssignRank)
	admin.GET("/log", h.Admin.ActivityLog)
}
