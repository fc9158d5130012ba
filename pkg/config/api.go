package config

import "time"

// APIConfig holds runtime configuration for the opsboard API service.
type APIConfig struct {
	Environment        string
	Addr               string
	LogLevel           string
	DatabaseURL        string
	MigrationsDir      string
	JWTSecret          string
	AccessTokenTTL     time.Duration
	IdentityHealthURL  string
	IngestToken        string
	ProbeTimeout       time.Duration
	BucketLockTTL      time.Duration
	AuditListLimit     int
	RateLimitRedisAddr string
	RateLimitRedisPass string
	RateLimitRedisDB   int
	SessionRedisAddr   string
	SessionRedisPass   string
	SessionRedisDB     int
	SessionKeyPrefix   string
}

// LoadAPIConfig constructs an APIConfig from environment variables.
func LoadAPIConfig() APIConfig {
	return APIConfig{
		Environment:        GetString("APP_ENV", "development"),
		Addr:               GetString("API_ADDR", ":4000"),
		LogLevel:           GetString("LOG_LEVEL", "info"),
		DatabaseURL:        GetString("DATABASE_URL", "postgres://opsboard:opsboard@db:5432/opsboard?sslmode=disable"),
		MigrationsDir:      GetString("DB_MIGRATIONS_DIR", "./migrations"),
		JWTSecret:          GetString("JWT_SECRET", "supersecuresecret"),
		AccessTokenTTL:     time.Duration(GetInt("ACCESS_TOKEN_TTL_MIN", 15)) * time.Minute,
		IdentityHealthURL:  GetString("IDENTITY_HEALTH_URL", ""),
		IngestToken:        GetString("AUDIT_INGEST_TOKEN", ""),
		ProbeTimeout:       GetDuration("METRICS_PROBE_TIMEOUT", 2*time.Second),
		BucketLockTTL:      GetDuration("BUCKET_LOCK_TTL", 5*time.Second),
		AuditListLimit:     GetInt("AUDIT_LIST_LIMIT", 5000),
		RateLimitRedisAddr: GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass: GetString("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:   GetInt("RATE_LIMIT_REDIS_DB", 0),
		SessionRedisAddr:   GetString("SESSION_REDIS_ADDR", ""),
		SessionRedisPass:   GetString("SESSION_REDIS_PASSWORD", ""),
		SessionRedisDB:     GetInt("SESSION_REDIS_DB", 0),
		SessionKeyPrefix:   GetString("SESSION_KEY_PREFIX", "opsboard:sessions:"),
	}
}
