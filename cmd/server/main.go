package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/kwanjai/budbook/internal/cache"
	"github.com/kwanjai/budbook/internal/config"
	"github.com/kwanjai/budbook/internal/database"
	"github.com/kwanjai/budbook/internal/handler"
	"github.com/kwanjai/budbook/internal/mailer"
	"github.com/kwanjai/budbook/internal/queue"
	"github.com/kwanjai/budbook/internal/repository"
	"github.com/kwanjai/budbook/internal/router"
	"github.com/kwanjai/budbook/internal/utils"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env vars win

	cfg := config.Load()

	db, err := database.Open(database.Options{
		Driver: cfg.DBDriver,
		Path:   cfg.DBPath,
		User:   cfg.DBUser,
		Pass:   cfg.DBPass,
		Host:   cfg.DBHost,
		Port:   cfg.DBPort,
		Name:   cfg.DBName,
	})
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	seed, err := buildSeed(cfg)
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	if err := database.EnsureSchema(ctx, db, seed); err != nil {
		log.Fatalf("schema: %v", err)
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	verifications := repository.NewEmailVerificationRepo(db)
	resets := repository.NewPasswordResetRepo(db)
	buds := repository.NewBudRepo(db)
	reviews := repository.NewReviewRepo(db)
	activities := repository.NewActivityRepo(db)
	referrals := repository.NewReferralRepo(db)
	admins := repository.NewAdminRepo(db)
	settings := repository.NewSettingRepo(db)

	store := cache.New()
	rdb := config.NewRedisClient() // nil when Redis is unreachable
	mail := mailer.New(config.LoadMailConfig())

	if os.Getenv("RABBITMQ_URL") != "" || os.Getenv("AMQP_URL") != "" {
		go func() {
			if err := queue.StartNotificationConsumer(mail); err != nil {
				log.Printf("notify-consumer stopped: %v", err)
			}
		}()
	}

	h := router.Handlers{
		Health: handler.NewHealthHandler(db),
		Auth: &handler.AuthHandler{
			Cfg: cfg, Users: users, Tokens: tokens, Settings: settings,
			Referrals: referrals, Verifications: verifications, Mail: mail,
		},
		Profile: &handler.ProfileHandler{
			Cfg: cfg, Users: users, Tokens: tokens, Referrals: referrals,
			Verifications: verifications, Resets: resets, Mail: mail,
		},
		Buds:     &handler.BudHandler{Buds: buds, Reviews: reviews, Cache: store, MediaDir: cfg.MediaDir},
		Reviews:  &handler.ReviewHandler{Reviews: reviews, Buds: buds, Settings: settings, Cache: store},
		Activity: &handler.ActivityHandler{Activities: activities, Buds: buds, Users: users, Settings: settings, Cache: store},
		Search:   &handler.SearchHandler{Buds: buds, Cache: store},
		AdminAuth: &handler.AdminAuthHandler{Cfg: cfg, Admins: admins},
		Admin: &handler.AdminHandler{
			Cfg: cfg, Users: users, Admins: admins, Settings: settings,
			Activities: activities, Referrals: referrals, Cache: store, Mail: mail,
		},
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())
	router.Register(e, cfg, h, users, admins, rdb)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s, driver=%s)", addr, cfg.Env, cfg.DBDriver)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}

// buildSeed hashes the bootstrap credentials for EnsureSchema.
func buildSeed(cfg config.Config) (database.SeedOptions, error) {
	adminHash, err := utils.HashPassword(cfg.BootstrapPass, cfg.BcryptCost)
	if err != nil {
		return database.SeedOptions{}, err
	}
	firstHash, err := utils.HashPassword(cfg.BootstrapPass, cfg.BcryptCost)
	if err != nil {
		return database.SeedOptions{}, err
	}
	return database.SeedOptions{
		AdminName:         cfg.BootstrapAdmin,
		AdminPasswordHash: adminHash,
		FirstUsername:     "founder",
		FirstUserEmail:    "founder@budbook.local",
		FirstUserPassHash: firstHash,
	}, nil
}
