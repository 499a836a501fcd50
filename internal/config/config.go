// Package config loads service configuration from environment variables
// using struct tags. A .env file is supported for local development; in
// deployed environments the variables come from the task definition.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config holds every runtime setting for the service.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Storage  StorageConfig
	Queue    QueueConfig
	Upload   UploadConfig
	CORS     CORSConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Host            string        `env:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `env:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"10s"`
}

type DatabaseConfig struct {
	URL          string        `env:"DATABASE_URL" required:"true"`
	MaxConns     int           `env:"DATABASE_MAX_CONNS" default:"10"`
	ConnLifetime time.Duration `env:"DATABASE_CONN_LIFETIME" default:"30m"`
}

// AuthConfig describes the Cognito user pool whose tokens this API accepts.
type AuthConfig struct {
	Region          string        `env:"COGNITO_REGION" required:"true"`
	UserPoolID      string        `env:"COGNITO_USER_POOL_ID" required:"true"`
	ClientID        string        `env:"COGNITO_CLIENT_ID" required:"true"`
	RefreshInterval time.Duration `env:"COGNITO_JWKS_REFRESH" default:"1h"`
	Leeway          time.Duration `env:"COGNITO_TOKEN_LEEWAY" default:"30s"`
}

// IssuerURL returns the token issuer for the configured user pool.
func (a AuthConfig) IssuerURL() string {
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", a.Region, a.UserPoolID)
}

// JWKSURL returns the JWKS endpoint used to verify token signatures.
func (a AuthConfig) JWKSURL() string {
	return a.IssuerURL() + "/.well-known/jwks.json"
}

type StorageConfig struct {
	Bucket string `env:"S3_BUCKET" required:"true"`
	Region string `env:"AWS_REGION" default:"us-east-1"`
}

type QueueConfig struct {
	URL string `env:"SQS_QUEUE_URL" required:"true"`
}

type UploadConfig struct {
	// MaxFileSize is the admission ceiling for uploaded files in bytes.
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"5242880"`
}

type CORSConfig struct {
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" default:"*"`
}

type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" default:"info"`
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Validate checks cross-field constraints that the loader's required
// tags cannot express. All failures are reported together.
func (c *Config) Validate() error {
	var problems []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("SERVER_PORT %d out of range", c.Server.Port))
	}
	if c.Database.MaxConns < 1 {
		problems = append(problems, "DATABASE_MAX_CONNS must be at least 1")
	}
	if c.Upload.MaxFileSize < 1 {
		problems = append(problems, "UPLOAD_MAX_FILE_SIZE must be positive")
	}
	if !strings.HasPrefix(c.Queue.URL, "https://") && !strings.HasPrefix(c.Queue.URL, "http://") {
		problems = append(problems, "SQS_QUEUE_URL must be an http(s) URL")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// String renders the configuration for startup logging with secrets masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"server=%s db=%s bucket=%s queue=%s pool=%s log=%s/%s",
		c.Addr(),
		maskURL(c.Database.URL),
		c.Storage.Bucket,
		c.Queue.URL,
		c.Auth.UserPoolID,
		c.Logging.Level,
		c.Logging.Format,
	)
}

// maskURL hides the credential portion of a connection URL.
func maskURL(u string) string {
	at := strings.LastIndex(u, "@")
	if at == -1 {
		return u
	}
	scheme := strings.Index(u, "://")
	if scheme == -1 {
		return "***" + u[at:]
	}
	return u[:scheme+3] + "***" + u[at:]
}
