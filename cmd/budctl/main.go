// budctl is the operations CLI: schema migration and credential repair
// without going through the HTTP surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/kwanjai/budbook/internal/config"
	"github.com/kwanjai/budbook/internal/database"
	"github.com/kwanjai/budbook/internal/repository"
	"github.com/kwanjai/budbook/internal/utils"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

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

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	switch os.Args[1] {
	case "migrate":
		runMigrate(ctx, cfg, db)
	case "create-admin":
		runCreateAdmin(ctx, cfg, db, os.Args[2:])
	case "reset-password":
		runResetPassword(ctx, cfg, db, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: budctl <command> [flags]

commands:
  migrate                           apply schema and seeds
  create-admin  -name N -password P add an admin account
  reset-password -email E -password P  replace a user's password`)
}

func runMigrate(ctx context.Context, cfg config.Config, db *database.DB) {
	adminHash, err := utils.HashPassword(cfg.BootstrapPass, cfg.BcryptCost)
	if err != nil {
		log.Fatalf("hash: %v", err)
	}
	seed := database.SeedOptions{
		AdminName:         cfg.BootstrapAdmin,
		AdminPasswordHash: adminHash,
		FirstUsername:     "founder",
		FirstUserEmail:    "founder@budbook.local",
		FirstUserPassHash: adminHash,
	}
	if err := database.EnsureSchema(ctx, db, seed); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	log.Println("schema is up to date")
}

func runCreateAdmin(ctx context.Context, cfg config.Config, db *database.DB, args []string) {
	fs := flag.NewFlagSet("create-admin", flag.ExitOnError)
	name := fs.String("name", "", "admin login name")
	password := fs.String("password", "", "admin password")
	_ = fs.Parse(args)
	if *name == "" || len(*password) < 8 {
		log.Fatal("create-admin: -name and -password (8+ chars) required")
	}
	hash, err := utils.HashPassword(*password, cfg.BcryptCost)
	if err != nil {
		log.Fatalf("hash: %v", err)
	}
	id, err := repository.NewAdminRepo(db).Create(ctx, *name, hash)
	if err != nil {
		log.Fatalf("create-admin: %v", err)
	}
	log.Printf("admin %q created (id=%d)", *name, id)
}

func runResetPassword(ctx context.Context, cfg config.Config, db *database.DB, args []string) {
	fs := flag.NewFlagSet("reset-password", flag.ExitOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "new password")
	_ = fs.Parse(args)
	if *email == "" || len(*password) < 8 {
		log.Fatal("reset-password: -email and -password (8+ chars) required")
	}
	users := repository.NewUserRepo(db)
	u, err := users.GetByEmail(ctx, *email)
	if err != nil {
		log.Fatalf("reset-password: %v", err)
	}
	hash, err := utils.HashPassword(*password, cfg.BcryptCost)
	if err != nil {
		log.Fatalf("hash: %v", err)
	}
	if err := users.SetPassword(ctx, u.ID, hash); err != nil {
		log.Fatalf("reset-password: %v", err)
	}
	if err := repository.NewTokenRepo(db).RevokeAllForUser(ctx, u.ID); err != nil {
		log.Printf("warning: revoke sessions failed: %v", err)
	}
	log.Printf("password updated for %s", *email)
}
