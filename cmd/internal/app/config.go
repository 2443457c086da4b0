package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogPretty bool

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	// Persistence backends. Mongo wins when both are set; neither set
	// means the in-memory dev store.
	DatabaseURL   string
	DBMaxConns    int32
	DBMinConns    int32
	MongoURI      string
	MongoDatabase string

	// Redis backs token revocation when configured; otherwise revocations
	// live in process memory and do not survive restarts.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	TokenSecret string
	TokenTTL    time.Duration

	// SecureCookies sets the Secure flag on the session cookie. Off for
	// plain-http dev, on for production.
	SecureCookies bool

	UploadDir string

	// Browser origin policy for the HTTP API. Entries may carry a port
	// wildcard ("http://127.0.0.1:*").
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int

	// If true:
	// - /readyz returns 503 unless a database is configured and reachable.
	ReadinessRequireDB bool
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("PIGEON_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("PIGEON_LOG_LEVEL", "info"),
		LogPretty: EnvBool("PIGEON_LOG_PRETTY", false),

		ReadHeaderTimeout: EnvDuration("PIGEON_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("PIGEON_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("PIGEON_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("PIGEON_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("PIGEON_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL:   EnvString("PIGEON_DATABASE_URL", ""),
		DBMaxConns:    EnvInt32("PIGEON_DB_MAX_CONNS", 10),
		DBMinConns:    EnvInt32("PIGEON_DB_MIN_CONNS", 0),
		MongoURI:      EnvString("PIGEON_MONGO_URI", ""),
		MongoDatabase: EnvString("PIGEON_MONGO_DATABASE", "pigeon"),

		RedisAddr:     EnvString("PIGEON_REDIS_ADDR", ""),
		RedisPassword: EnvString("PIGEON_REDIS_PASSWORD", ""),
		RedisDB:       EnvInt("PIGEON_REDIS_DB", 0),

		TokenSecret: EnvString("PIGEON_TOKEN_SECRET", ""),
		TokenTTL:    EnvDuration("PIGEON_TOKEN_TTL", time.Hour),

		SecureCookies: EnvBool("PIGEON_SECURE_COOKIES", false),

		UploadDir: EnvString("PIGEON_UPLOAD_DIR", "uploads"),

		CORSAllowedOrigins:   EnvCSV("PIGEON_CORS_ALLOWED_ORIGINS", "http://localhost:*,http://127.0.0.1:*"),
		CORSAllowCredentials: EnvBool("PIGEON_CORS_ALLOW_CREDENTIALS", true),
		CORSMaxAgeSeconds:    EnvInt("PIGEON_CORS_MAX_AGE_SECONDS", 600),

		ReadinessRequireDB: EnvBool("PIGEON_READINESS_REQUIRE_DB", false),
	}
}
