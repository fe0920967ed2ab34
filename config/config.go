package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/oksasatya/go-shop-account/pkg/apperror"
	"github.com/oksasatya/go-shop-account/pkg/helpers"
)

const (
	StorageMongo    = "mongo"
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds application configuration loaded from environment variables.
// Defaults suit local development; Validate rejects what cannot run.
type Config struct {
	AppName  string
	Env      string // development, staging, production
	Port     string
	GinMode  string
	LogLevel string // optional logrus level overriding the env default

	StorageDriver string

	// MongoDB
	MongoURI             string
	MongoDB              string
	MongoUsersCollection string

	// Postgres
	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBSSLMode     string
	DBMaxConns    int32
	DBMinConns    int32
	DBMaxConnLife time.Duration
	MigrationsDir string

	// Redis profile cache; empty address disables it
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	ProfileCacheTTL time.Duration

	// Google Cloud Storage
	GCSBucket              string
	GCSCredentialsJSONPath string // optional; if empty, Application Default Credentials are used

	// Session tokens
	JWTSecretKey string
	JWTExpires   string // raw JWT_EXPIRES, parsed by Validate

	// Password hashing
	BcryptCost  int
	HashWorkers int

	// Cookies
	CookieDomain string
	CookieSecure bool

	// CORS
	CORSAllowedOrigins string // comma-separated

	// RabbitMQ; empty URL indexes inline
	RabbitMQURL             string
	RabbitMQUserEventsQueue string

	// Elasticsearch; empty addrs disables search
	ElasticsearchAddrs string // comma-separated
	ElasticsearchUser  string
	ElasticsearchPass  string
	ESUsersIndex       string

	// Password reset
	ResetPasswordURL string
	ResetPasswordTTL time.Duration

	// Debug metrics (/api/debug/vars)
	DebugMetricsEnabled bool

	// Per-request logrus access log
	HTTPLogEnabled bool

	jwtExpiresIn time.Duration
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getbool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			log.Printf("invalid boolean for %s: %v, using default %v", key, err, def)
			return def
		}
		return b
	}
	return def
}

func getint(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			log.Printf("invalid int for %s: %v, using default %d", key, err, def)
			return def
		}
		return i
	}
	return def
}

func getdur(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := helpers.ParseExpiresIn(v)
		if err != nil {
			log.Printf("invalid duration for %s: %v, using default %v", key, err, def)
			return def
		}
		return d
	}
	return def
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		AppName:  getenv("APP_NAME", "go-shop-account"),
		Env:      getenv("APP_ENV", "development"),
		Port:     getenv("PORT", "8080"),
		GinMode:  getenv("GIN_MODE", "release"),
		LogLevel: getenv("LOG_LEVEL", ""),

		StorageDriver: strings.ToLower(getenv("STORAGE_DRIVER", StorageMongo)),

		MongoURI:             getenv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:              getenv("MONGO_DB", "shop"),
		MongoUsersCollection: getenv("MONGO_USERS_COLLECTION", "users"),

		DBHost:        getenv("DB_HOST", "localhost"),
		DBPort:        getenv("DB_PORT", "5432"),
		DBUser:        getenv("DB_USER", "postgres"),
		DBPassword:    getenv("DB_PASSWORD", "postgres"),
		DBName:        getenv("DB_NAME", "appdb"),
		DBSSLMode:     getenv("DB_SSLMODE", "disable"),
		DBMaxConns:    int32(getint("DB_MAX_CONNS", 10)),
		DBMinConns:    int32(getint("DB_MIN_CONNS", 2)),
		DBMaxConnLife: getdur("DB_MAX_CONN_LIFETIME", time.Hour),
		MigrationsDir: getenv("MIGRATIONS_DIR", "db/migrations"),

		RedisAddr:       getenv("REDIS_ADDR", ""),
		RedisPassword:   getenv("REDIS_PASSWORD", ""),
		RedisDB:         getint("REDIS_DB", 0),
		ProfileCacheTTL: getdur("PROFILE_CACHE_TTL", 10*time.Minute),

		GCSBucket:              getenv("GCS_BUCKET", ""),
		GCSCredentialsJSONPath: getenv("GCS_CREDENTIALS_JSON", ""),

		JWTSecretKey: os.Getenv("JWT_SECRET_KEY"),
		JWTExpires:   getenv("JWT_EXPIRES", "7d"),

		BcryptCost:  getint("BCRYPT_COST", helpers.DefaultBcryptCost),
		HashWorkers: getint("HASH_WORKERS", 0),

		CookieDomain: getenv("COOKIE_DOMAIN", "localhost"),
		CookieSecure: getbool("COOKIE_SECURE", false),

		CORSAllowedOrigins: getenv("CORS_ALLOWED_ORIGINS", ""),

		RabbitMQURL:             getenv("RABBITMQ_URL", ""),
		RabbitMQUserEventsQueue: getenv("RABBITMQ_USER_EVENTS_QUEUE", "user-events"),

		ElasticsearchAddrs: getenv("ELASTICSEARCH_ADDRS", ""),
		ElasticsearchUser:  getenv("ELASTICSEARCH_USERNAME", ""),
		ElasticsearchPass:  getenv("ELASTICSEARCH_PASSWORD", ""),
		ESUsersIndex:       getenv("ES_USERS_INDEX", "users"),

		ResetPasswordURL: getenv("RESET_PASSWORD_URL", "http://localhost:3000/password/reset"),
		ResetPasswordTTL: getdur("RESET_PASSWORD_TTL", 15*time.Minute),

		DebugMetricsEnabled: getbool("DEBUG_METRICS_ENABLED", true),
		HTTPLogEnabled:      getbool("HTTP_LOG_ENABLED", false),
	}
}

// Validate checks the settings the process cannot start without and
// caches the parsed token lifetime.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecretKey) == "" {
		return apperror.Configuration("JWT_SECRET_KEY", "is required")
	}
	d, err := helpers.ParseExpiresIn(c.JWTExpires)
	if err != nil || d <= 0 {
		return apperror.Configuration("JWT_EXPIRES", "must be a positive duration such as 7d, 12h or 3600")
	}
	c.jwtExpiresIn = d
	if c.BcryptCost < helpers.DefaultBcryptCost || c.BcryptCost > bcrypt.MaxCost {
		return apperror.Configuration("BCRYPT_COST", "must be between 10 and 31")
	}
	switch c.StorageDriver {
	case StorageMongo, StoragePostgres, StorageMemory:
	default:
		return apperror.Configuration("STORAGE_DRIVER", "must be one of mongo, postgres, memory")
	}
	if c.ResetPasswordTTL <= 0 {
		return apperror.Configuration("RESET_PASSWORD_TTL", "must be positive")
	}
	return nil
}

// JWTExpiresIn is the token lifetime parsed by Validate.
func (c *Config) JWTExpiresIn() time.Duration { return c.jwtExpiresIn }

func (c *Config) IsDevelopment() bool { return c.Env == "development" }

// PostgresDSN returns a DSN compatible with pgx
func (c *Config) PostgresDSN() string {
	return "postgres://" + c.DBUser + ":" + c.DBPassword + "@" + c.DBHost + ":" + c.DBPort + "/" + c.DBName + "?sslmode=" + c.DBSSLMode
}

// CORSOrigins returns the allowed origins as slice
func (c *Config) CORSOrigins() []string {
	return splitList(c.CORSAllowedOrigins)
}

// ESAddrs returns Elasticsearch addresses as a slice
func (c *Config) ESAddrs() []string {
	return splitList(c.ElasticsearchAddrs)
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	res := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			res = append(res, p)
		}
	}
	return res
}
