package config // package config loads application configuration from environment variables

import (
    "os"      // os provides access to environment variables
    "strconv" // strconv converts strings to other types

    "go.uber.org/zap"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Required values are enforced at start-up so the
// server never runs half-configured.
type Config struct {
    Env            string // application environment (e.g. "dev", "prod")
    Port           string // HTTP port to listen on
    DBUser         string // database username
    DBPass         string // database password (optional)
    DBHost         string // database host address
    DBPort         string // database port number
    DBName         string // database name
    DBMaxConns     int    // connection pool size
    AutoMigrate    bool   // apply the embedded schema on start-up
    JWTSecret      string // secret used to sign JWTs
    AccessTTLMin   int    // access token time-to-live in minutes
    RefreshTTLDays int    // refresh token time-to-live in days
    VerifyTTLMin   int    // email verification token time-to-live in minutes
    BcryptCost     int    // bcrypt cost for password hashing

    AllowAdminSignup       bool   // allow role=admin on public registration
    StrictOrderTransitions bool   // enforce the order status transition table
    DefaultPaymentMethod   string // payment method recorded when checkout omits one
    CORSOrigins            []string
}

// Load reads configuration values from environment variables and returns a
// Config.  Missing required variables are fatal.
func Load(log *zap.Logger) Config {
    return Config{
        Env:            must(log, "APP_ENV"),
        Port:           must(log, "APP_PORT"),
        DBUser:         must(log, "DB_USER"),
        DBPass:         os.Getenv("DB_PASS"), // empty allowed
        DBHost:         must(log, "DB_HOST"),
        DBPort:         must(log, "DB_PORT"),
        DBName:         must(log, "DB_NAME"),
        DBMaxConns:     envInt("DB_MAX_OPEN_CONNS", 25),
        AutoMigrate:    envBool("DB_AUTO_MIGRATE", true),
        JWTSecret:      must(log, "JWT_SECRET"),
        AccessTTLMin:   mustInt(log, "ACCESS_TOKEN_TTL_MIN"),
        RefreshTTLDays: mustInt(log, "REFRESH_TOKEN_TTL_DAYS"),
        VerifyTTLMin:   envInt("VERIFY_TOKEN_TTL_MIN", 60*24),
        BcryptCost:     mustInt(log, "BCRYPT_COST"),

        AllowAdminSignup:       envBool("ALLOW_ADMIN_SIGNUP", false),
        StrictOrderTransitions: envBool("ORDER_STRICT_TRANSITIONS", false),
        DefaultPaymentMethod:   envStr("DEFAULT_PAYMENT_METHOD", "bank_transfer"),
        CORSOrigins:            splitList(envStr("CORS_ORIGINS", "*")),
    }
}

// IsProduction reports whether the service runs with APP_ENV=prod|production.
func (c Config) IsProduction() bool {
    return c.Env == "prod" || c.Env == "production"
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(log *zap.Logger, key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatal("missing required env var", zap.String("key", key))
    }
    return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(log *zap.Logger, key string) int {
    s := must(log, key)
    n, err := strconv.Atoi(s)
    if err != nil {
        log.Fatal("invalid int env var", zap.String("key", key), zap.String("value", s))
    }
    return n
}
