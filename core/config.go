package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Debug            bool
		TestMode         bool
		AppName          string
		Env              string
		Build            string
		SecretKey        string
		WorkDir          string
		FrontendBaseURL  string
		RollbarToken     string
		SendgridApiKey   string
		RedisURL         string
		NatsURL          string
		defaultFromEmail string

		Server   ServerConfig
		Database DatabaseConfig
		Storage  StorageConfig
	}

	ServerConfig struct {
		Host                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		AuthCookieName            string
		AuthCookieSecure          bool
		RateLimitWindow           time.Duration
		RateLimitMax              int
		RateLimitSweepSpec        string
		MaxUploadSize             int64
		MaxBodySize               string // JSON bodies read whole, e.g. bulk attendance
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	StorageConfig struct {
		Driver        string // local | s3 | minio
		LocalRoot     string
		PublicBaseURL string
		Bucket        string
		Region        string
		Endpoint      string
		AccessKey     string
		SecretKey     string
	}
)

func (c *Config) DefaultFromEmail() mail.Address {
	return mail.Address{Name: c.AppName, Address: c.defaultFromEmail}
}

func (dc DatabaseConfig) Address() string {
	return net.JoinHostPort(dc.Host, dc.Port)
}

// NewConfig loads the application configuration from the environment.
// ENV selects the profile: DEV (local; default), TEST, QA or PROD.
// Variables are read with the profile as prefix, eg: DEV_DATABASE_HOST.
func NewConfig() *Config {
	v := viper.New()

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	wd := Getwd()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", env == "DEV" || env == "TEST")
	v.SetDefault("testMode", env == "TEST")
	v.SetDefault("appName", "Academia")
	v.SetDefault("build", "develop")
	v.SetDefault("secretKey", "k2#b9r!x7@t$p0v&m1q^w8z(e5y)u3n%c6s-h4j*l_d+f=g")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("redisURL", "")
	v.SetDefault("natsURL", "")

	v.SetDefault("server.host", "0.0.0.0:8000")
	v.SetDefault("server.debugHost", "0.0.0.0:4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 8*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.authCookieName", "academia_token")
	v.SetDefault("server.authCookieSecure", env == "QA" || env == "PROD")
	v.SetDefault("server.rateLimitWindow", time.Minute)
	v.SetDefault("server.rateLimitMax", 120)
	v.SetDefault("server.rateLimitSweepSpec", "@every 1m")
	v.SetDefault("server.maxUploadSize", int64(20<<20))
	v.SetDefault("server.maxBodySize", "1M")

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "academia")
	v.SetDefault("database.user", "academia")
	v.SetDefault("database.password", "academia")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", env == "DEV" || env == "TEST")

	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.localRoot", filepath.Join(wd, "var", "storage"))
	v.SetDefault("storage.publicBaseURL", "")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.accessKey", "")
	v.SetDefault("storage.secretKey", "")

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}

	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Config{
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		AppName:          v.GetString("appName"),
		Env:              env,
		Build:            v.GetString("build"),
		SecretKey:        v.GetString("secretKey"),
		WorkDir:          wd,
		FrontendBaseURL:  v.GetString("frontendBaseURL"),
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		RedisURL:         v.GetString("redisURL"),
		NatsURL:          v.GetString("natsURL"),
		defaultFromEmail: v.GetString("defaultFromEmail"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			DebugHost:                 v.GetString("server.debugHost"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
			AuthCookieName:            v.GetString("server.authCookieName"),
			AuthCookieSecure:          v.GetBool("server.authCookieSecure"),
			RateLimitWindow:           v.GetDuration("server.rateLimitWindow"),
			RateLimitMax:              v.GetInt("server.rateLimitMax"),
			RateLimitSweepSpec:        v.GetString("server.rateLimitSweepSpec"),
			MaxUploadSize:             v.GetInt64("server.maxUploadSize"),
			MaxBodySize:               v.GetString("server.maxBodySize"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Storage: StorageConfig{
			Driver:        v.GetString("storage.driver"),
			LocalRoot:     v.GetString("storage.localRoot"),
			PublicBaseURL: v.GetString("storage.publicBaseURL"),
			Bucket:        v.GetString("storage.bucket"),
			Region:        v.GetString("storage.region"),
			Endpoint:      v.GetString("storage.endpoint"),
			AccessKey:     v.GetString("storage.accessKey"),
			SecretKey:     v.GetString("storage.secretKey"),
		},
	}
}

// NewTestConfig returns a Config suitable for tests: no .env lookup, no external services.
func NewTestConfig() *Config {
	return &Config{
		Debug:            false,
		TestMode:         true,
		AppName:          "Academia",
		Env:              "TEST",
		Build:            "test",
		SecretKey:        "test-secret",
		WorkDir:          os.TempDir(),
		FrontendBaseURL:  "http://localhost:3000",
		defaultFromEmail: "noreply@localhost",
		Server: ServerConfig{
			Host:                      "localhost:0",
			ShutdownTimeout:           time.Second,
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: 4 * time.Hour,
			AuthCookieName:            "academia_token",
			RateLimitWindow:           time.Minute,
			RateLimitMax:              1000,
			RateLimitSweepSpec:        "@every 1m",
			MaxUploadSize:             1 << 20,
			MaxBodySize:               "4K",
		},
		Database: DatabaseConfig{Engine: "memory"},
		Storage: StorageConfig{
			Driver:    "local",
			LocalRoot: filepath.Join(os.TempDir(), "academia-test-storage"),
		},
	}
}
