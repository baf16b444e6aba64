package database

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
)

// Canonical DDL, written in the sqlite flavor and adapted per dialect by
// RewriteDDL.  Statements are executed in order; a failure is logged and
// the initializer proceeds, so one bad statement cannot abort startup.
var createStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username VARCHAR(64) NOT NULL UNIQUE,
		email VARCHAR(191) NOT NULL UNIQUE,
		password_hash VARCHAR(191) NOT NULL,
		is_grower BOOLEAN NOT NULL DEFAULT 0,
		is_budtender BOOLEAN NOT NULL DEFAULT 0,
		is_consumer BOOLEAN NOT NULL DEFAULT 1,
		is_verified BOOLEAN NOT NULL DEFAULT 0,
		is_approved BOOLEAN NOT NULL DEFAULT 0,
		approved_at DATETIME,
		approved_by BIGINT,
		referred_by BIGINT,
		referral_code VARCHAR(64) NOT NULL UNIQUE,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (approved_by) REFERENCES users(id) ON DELETE SET NULL,
		FOREIGN KEY (referred_by) REFERENCES users(id) ON DELETE SET NULL
	)`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id BIGINT NOT NULL,
		token_hash VARCHAR(64) NOT NULL,
		expires_at DATETIME NOT NULL,
		revoked_at DATETIME,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS email_verifications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id BIGINT NOT NULL,
		token VARCHAR(64) NOT NULL UNIQUE,
		expires_at DATETIME NOT NULL,
		used BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS password_resets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id BIGINT NOT NULL,
		token VARCHAR(64) NOT NULL UNIQUE,
		expires_at DATETIME NOT NULL,
		used BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS buds (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		strain_name_th VARCHAR(191),
		strain_name_en VARCHAR(191) NOT NULL,
		breeder VARCHAR(191),
		category VARCHAR(32) NOT NULL,
		thc REAL,
		cbd REAL,
		image1 VARCHAR(255),
		image2 VARCHAR(255),
		image3 VARCHAR(255),
		image4 VARCHAR(255),
		cert1 VARCHAR(255),
		cert2 VARCHAR(255),
		status VARCHAR(16) NOT NULL DEFAULT 'available',
		created_by BIGINT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (created_by) REFERENCES users(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS reviews (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		bud_id BIGINT NOT NULL,
		user_id BIGINT NOT NULL,
		rating INTEGER NOT NULL,
		content TEXT,
		aroma_tags VARCHAR(255),
		effect_tags VARCHAR(255),
		media_url VARCHAR(255),
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (bud_id, user_id),
		FOREIGN KEY (bud_id) REFERENCES buds(id) ON DELETE CASCADE,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS activities (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title VARCHAR(191) NOT NULL,
		description TEXT,
		opens_at DATETIME NOT NULL,
		closes_at DATETIME NOT NULL,
		first_prize VARCHAR(191),
		second_prize VARCHAR(191),
		third_prize VARCHAR(191),
		eligibility VARCHAR(32) NOT NULL DEFAULT 'any',
		status VARCHAR(16) NOT NULL DEFAULT 'open',
		created_by VARCHAR(64),
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS activity_participants (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		activity_id BIGINT NOT NULL,
		user_id BIGINT NOT NULL,
		bud_id BIGINT NOT NULL,
		final_rank INTEGER,
		prize VARCHAR(191),
		joined_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (activity_id, user_id, bud_id),
		FOREIGN KEY (activity_id) REFERENCES activities(id) ON DELETE CASCADE,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
		FOREIGN KEY (bud_id) REFERENCES buds(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS referrals (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		code VARCHAR(64) NOT NULL,
		referrer_id BIGINT,
		utm_source VARCHAR(191),
		utm_medium VARCHAR(191),
		utm_campaign VARCHAR(191),
		client_hash VARCHAR(64),
		first_seen_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		signed_up_at DATETIME,
		verified_at DATETIME,
		converted_at DATETIME,
		FOREIGN KEY (referrer_id) REFERENCES users(id) ON DELETE SET NULL
	)`,
	`CREATE TABLE IF NOT EXISTS admin_accounts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		admin_name VARCHAR(64) NOT NULL UNIQUE,
		password_hash VARCHAR(191) NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		failed_attempts INTEGER NOT NULL DEFAULT 0,
		locked_until DATETIME,
		session_token VARCHAR(64),
		token_expires_at DATETIME,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS admin_activity_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		admin_name VARCHAR(64) NOT NULL,
		action VARCHAR(32) NOT NULL,
		outcome VARCHAR(16) NOT NULL,
		ip VARCHAR(64),
		user_agent VARCHAR(255),
		detail TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS admin_settings (
		name VARCHAR(64) PRIMARY KEY,
		value TEXT,
		updated_by VARCHAR(64),
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS strain_names (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name VARCHAR(191) NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS breeders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name VARCHAR(191) NOT NULL UNIQUE
	)`,
}

var indexStatements = []string{
	`CREATE INDEX IF NOT EXISTS idx_users_referred_by ON users (referred_by)`,
	`CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user ON refresh_tokens (user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_buds_created_by ON buds (created_by)`,
	`CREATE INDEX IF NOT EXISTS idx_buds_category ON buds (category)`,
	`CREATE INDEX IF NOT EXISTS idx_reviews_bud ON reviews (bud_id)`,
	`CREATE INDEX IF NOT EXISTS idx_participants_activity ON activity_participants (activity_id)`,
	`CREATE INDEX IF NOT EXISTS idx_referrals_code ON referrals (code)`,
	`CREATE INDEX IF NOT EXISTS idx_admin_log_name ON admin_activity_log (admin_name)`,
}

// Columns added after the initial release.  ensureColumn probes the live
// schema and only issues the ALTER when the column is missing, so running
// EnsureSchema on every start is free once they exist.
var columnMigrations = []struct {
	table  string
	column string
	ddl    string
}{
	{"users", "phone", "ALTER TABLE users ADD COLUMN phone VARCHAR(32)"},
	{"users", "line_id", "ALTER TABLE users ADD COLUMN line_id VARCHAR(64)"},
	{"buds", "test_lab", "ALTER TABLE buds ADD COLUMN test_lab VARCHAR(191)"},
	{"buds", "tested_at", "ALTER TABLE buds ADD COLUMN tested_at DATETIME"},
	{"admin_accounts", "last_login", "ALTER TABLE admin_accounts ADD COLUMN last_login DATETIME"},
}

// SeedOptions carries the bootstrap identities inserted into an empty
// database.  The password fields must already be hashed.
type SeedOptions struct {
	AdminName         string
	AdminPasswordHash string
	FirstUsername     string
	FirstUserEmail    string
	FirstUserPassHash string
}

// EnsureSchema creates tables and indexes idempotently, applies additive
// column migrations and inserts seed rows into empty reference tables.
// It is safe to run on every process start and from the CLI; individual
// statement failures are logged and skipped.
func EnsureSchema(ctx context.Context, db *DB, seed SeedOptions) error {
	for _, stmt := range createStatements {
		s, ok := db.Dialect.RewriteDDL(stmt)
		if !ok {
			log.Printf("schema: statement not portable to %s, skipped", db.Dialect)
			continue
		}
		if _, err := db.SQL.ExecContext(ctx, s); err != nil {
			log.Printf("schema: create table failed, continuing: %v", err)
		}
	}
	for _, stmt := range indexStatements {
		s, ok := db.Dialect.RewriteDDL(stmt)
		if !ok {
			continue
		}
		if _, err := db.SQL.ExecContext(ctx, s); err != nil && !db.Dialect.IsDuplicateIndex(err) {
			log.Printf("schema: create index failed, continuing: %v", err)
		}
	}
	for _, m := range columnMigrations {
		exists, err := columnExists(ctx, db, m.table, m.column)
		if err != nil {
			log.Printf("schema: column probe %s.%s failed, continuing: %v", m.table, m.column, err)
			continue
		}
		if exists {
			continue
		}
		s, ok := db.Dialect.RewriteDDL(m.ddl)
		if !ok {
			continue
		}
		if _, err := db.SQL.ExecContext(ctx, s); err != nil {
			log.Printf("schema: add column %s.%s failed, continuing: %v", m.table, m.column, err)
		}
	}
	seedAll(ctx, db, seed)
	return ctx.Err()
}

func columnExists(ctx context.Context, db *DB, table, column string) (bool, error) {
	var n int
	switch db.Dialect {
	case SQLite:
		// table names are internal constants, never user input
		q := fmt.Sprintf("SELECT COUNT(*) FROM pragma_table_info('%s') WHERE name = ?", table)
		if err := db.QueryRowContext(ctx, q, column).Scan(&n); err != nil {
			return false, err
		}
	case MySQL:
		const q = `SELECT COUNT(*) FROM information_schema.columns
				   WHERE table_schema = DATABASE() AND table_name = ? AND column_name = ?`
		if err := db.QueryRowContext(ctx, q, table, column).Scan(&n); err != nil {
			return false, err
		}
	case Postgres:
		const q = `SELECT COUNT(*) FROM information_schema.columns
				   WHERE table_schema = 'public' AND table_name = ? AND column_name = ?`
		if err := db.QueryRowContext(ctx, q, table, column).Scan(&n); err != nil {
			return false, err
		}
	}
	return n > 0, nil
}

// seedAll inserts reference data only into empty tables so re-runs never
// duplicate rows.
func seedAll(ctx context.Context, db *DB, seed SeedOptions) {
	seedIfEmpty(ctx, db, "strain_names", func() error {
		for _, name := range defaultStrainNames {
			if _, err := db.ExecContext(ctx, "INSERT INTO strain_names (name) VALUES (?)", name); err != nil {
				return err
			}
		}
		return nil
	})
	seedIfEmpty(ctx, db, "breeders", func() error {
		for _, name := range defaultBreeders {
			if _, err := db.ExecContext(ctx, "INSERT INTO breeders (name) VALUES (?)", name); err != nil {
				return err
			}
		}
		return nil
	})
	seedIfEmpty(ctx, db, "admin_settings", func() error {
		defaults := map[string]string{
			"registration_mode":  "public",
			"site_name":          "Budbook",
			"reviews_enabled":    "true",
			"activities_enabled": "true",
		}
		for name, value := range defaults {
			if _, err := db.ExecContext(ctx,
				"INSERT INTO admin_settings (name, value, updated_by) VALUES (?,?,?)",
				name, value, "seed"); err != nil {
				return err
			}
		}
		return nil
	})
	if seed.AdminName != "" && seed.AdminPasswordHash != "" {
		seedIfEmpty(ctx, db, "admin_accounts", func() error {
			_, err := db.ExecContext(ctx,
				"INSERT INTO admin_accounts (admin_name, password_hash, is_active) VALUES (?,?,1)",
				seed.AdminName, seed.AdminPasswordHash)
			return err
		})
	}
	if seed.FirstUsername != "" && seed.FirstUserPassHash != "" {
		seedIfEmpty(ctx, db, "users", func() error {
			// The first account is always approved and exempt from the
			// referral gate.
			_, err := db.ExecContext(ctx,
				`INSERT INTO users (username, email, password_hash, is_verified, is_approved, referral_code)
				 VALUES (?,?,?,1,1,?)`,
				seed.FirstUsername, seed.FirstUserEmail, seed.FirstUserPassHash, uuid.NewString())
			return err
		})
	}
}

func seedIfEmpty(ctx context.Context, db *DB, table string, fn func() error) {
	var n int64
	q := fmt.Sprintf("SELECT COUNT(*) FROM %s", table)
	if err := db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		log.Printf("schema: seed count for %s failed, continuing: %v", table, err)
		return
	}
	if n > 0 {
		return
	}
	if err := fn(); err != nil {
		log.Printf("schema: seeding %s failed, continuing: %v", table, err)
	}
}

var defaultStrainNames = []string{
	"Hang Kra Rog Phu Phan", "Tanaosri Kan Daeng", "Foi Thong Phu Phan",
	"Kradum Thong", "Northern Lights", "White Widow", "Sour Diesel",
	"OG Kush", "Gorilla Glue", "Amnesia Haze", "Gelato", "Wedding Cake",
	"Blue Dream", "Purple Punch", "Durban Poison", "Jack Herer",
	"Super Lemon Haze", "Pineapple Express", "Granddaddy Purple", "AK-47",
	"Bubba Kush", "Green Crack", "Zkittlez", "Runtz",
}

var defaultBreeders = []string{
	"Highland Thai Genetics", "Siam Seeds", "Barney's Farm", "Sensi Seeds",
	"Royal Queen Seeds", "Dutch Passion", "DNA Genetics", "Humboldt Seed Co.",
	"Mephisto Genetics", "Seedsman",
}
