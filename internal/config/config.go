package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The database section supports three drivers:
// "sqlite" (embedded, the default for local runs), "mysql" and "postgres"
// (client/server).  Driver-specific fields are only consulted for the
// matching driver.
type Config struct {
	Env            string // application environment (e.g. "dev", "prod")
	Port           string // HTTP port to listen on
	DBDriver       string // "sqlite", "mysql" or "postgres"
	DBPath         string // sqlite database file path
	DBUser         string // database username (mysql/postgres)
	DBPass         string // database password (optional)
	DBHost         string // database host address
	DBPort         string // database port number
	DBName         string // database name
	JWTSecret      string // secret used to sign JWTs (users and master admin sessions)
	AccessTTLMin   int    // access token time-to-live in minutes
	RefreshTTLDays int    // refresh token time-to-live in days
	BcryptCost     int    // bcrypt cost for password hashing
	MediaDir       string // directory for uploaded bud/certificate images
	BaseURL        string // public base URL used in verification/reset links
	MasterAdmin    string // break-glass admin login name (empty disables the master path)
	MasterSecret   string // break-glass admin secret
	BootstrapAdmin string // seeded admin account name
	BootstrapPass  string // seeded admin account password (hashed before storage)
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  Everything with a
// sensible local default uses getenv() instead so a bare `go run` against
// the embedded sqlite backend needs only JWT_SECRET set.
func Load() Config {
	return Config{
		Env:            getenv("APP_ENV", "dev"),
		Port:           getenv("APP_PORT", "8080"),
		DBDriver:       getenv("DB_DRIVER", "sqlite"),
		DBPath:         getenv("DB_PATH", "budbook.db"),
		DBUser:         os.Getenv("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         getenv("DB_HOST", "localhost"),
		DBPort:         os.Getenv("DB_PORT"),
		DBName:         getenv("DB_NAME", "budbook"),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   atoiDefault("ACCESS_TOKEN_TTL_MIN", 30),
		RefreshTTLDays: atoiDefault("REFRESH_TOKEN_TTL_DAYS", 14),
		BcryptCost:     atoiDefault("BCRYPT_COST", 12),
		MediaDir:       getenv("MEDIA_DIR", "media"),
		BaseURL:        getenv("BASE_URL", "http://localhost:8080"),
		MasterAdmin:    os.Getenv("ADMIN_MASTER_NAME"),
		MasterSecret:   os.Getenv("ADMIN_MASTER_SECRET"),
		BootstrapAdmin: getenv("ADMIN_BOOTSTRAP_NAME", "root"),
		BootstrapPass:  getenv("ADMIN_BOOTSTRAP_PASS", "changeme"),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// atoiDefault converts the named variable to an integer, falling back to
// def when the variable is unset or malformed.
func atoiDefault(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
