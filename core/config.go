package core

import (
	"fmt"
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		PasswordResetTimeoutDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string // postgres | memory
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	StorageConfig struct {
		Driver     string // local | s3
		LocalDir   string
		S3Bucket   string
		S3Region   string
		S3Endpoint string
	}

	EventsConfig struct {
		NATSURL string // empty: events are dropped
	}

	ReviewConfig struct {
		ApprovalThreshold float64
	}

	Config struct {
		AppName          string
		Env              string // DEV (local; default) | TEST | QA | PROD
		Build            string
		Debug            bool
		TestMode         bool
		WorkDir          string
		SecretKey        string
		FrontendBaseURL  string
		DefaultFromEmail mail.Address
		RollbarToken     string
		SendgridApiKey   string

		Server   ServerConfig
		Database DatabaseConfig
		Storage  StorageConfig
		Events   EventsConfig
		Review   ReviewConfig
	}
)

func (dc DatabaseConfig) Address() string {
	return net.JoinHostPort(dc.Host, strconv.Itoa(dc.Port))
}

// NewConfig reads the configuration from the environment, with an optional `config/.env.<env>` file.
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	wd := Getwd()

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
	setDefaults(v, env)

	conf := &Config{
		AppName:         v.GetString("app_name"),
		Env:             env,
		Build:           v.GetString("build"),
		Debug:           v.GetBool("debug"),
		TestMode:        env == "TEST",
		WorkDir:         wd,
		SecretKey:       v.GetString("secret_key"),
		FrontendBaseURL: strings.TrimRight(v.GetString("frontend_base_url"), "/"),
		DefaultFromEmail: mail.Address{
			Name:    v.GetString("app_name"),
			Address: v.GetString("default_from_email"),
		},
		RollbarToken:   v.GetString("rollbar_token"),
		SendgridApiKey: v.GetString("sendgrid_api_key"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			DebugHost:                 v.GetString("server.debug_host"),
			ShutdownTimeout:           v.GetDuration("server.shutdown_timeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwt_expiration_delta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwt_refresh_expiration_delta"),
			PasswordResetTimeoutDelta: v.GetDuration("server.password_reset_timeout_delta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.admin_user"),
			AdminPassword: v.GetString("database.admin_password"),
			DisableTLS:    v.GetBool("database.disable_tls"),
		},
		Storage: StorageConfig{
			Driver:     v.GetString("storage.driver"),
			LocalDir:   v.GetString("storage.local_dir"),
			S3Bucket:   v.GetString("storage.s3_bucket"),
			S3Region:   v.GetString("storage.s3_region"),
			S3Endpoint: v.GetString("storage.s3_endpoint"),
		},
		Events: EventsConfig{
			NATSURL: v.GetString("events.nats_url"),
		},
		Review: ReviewConfig{
			ApprovalThreshold: v.GetFloat64("review.approval_threshold"),
		},
	}
	if !filepath.IsAbs(conf.Storage.LocalDir) {
		conf.Storage.LocalDir = filepath.Join(wd, conf.Storage.LocalDir)
	}
	return conf
}

func setDefaults(v *viper.Viper, env string) {
	v.SetDefault("app_name", "CTS")
	v.SetDefault("build", "develop")
	v.SetDefault("debug", env == "DEV")
	v.SetDefault("secret_key", "x7#k2!wq9)pd$+41=zr&ujmb3(v!t)#*a8(#fn^$ckel0uay")
	v.SetDefault("frontend_base_url", "http://localhost:3000")
	v.SetDefault("default_from_email", "noreply@localhost")

	v.SetDefault("server.host", "0.0.0.0:8000")
	v.SetDefault("server.debug_host", "0.0.0.0:4000")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.jwt_expiration_delta", 4*time.Hour)
	v.SetDefault("server.jwt_refresh_expiration_delta", 7*24*time.Hour)
	v.SetDefault("server.password_reset_timeout_delta", 3*24*time.Hour)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", fmt.Sprintf("cts_%s", strings.ToLower(env)))
	v.SetDefault("database.user", "cts")
	v.SetDefault("database.password", "cts")
	v.SetDefault("database.disable_tls", env == "DEV" || env == "TEST")

	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.local_dir", "uploads")
	v.SetDefault("storage.s3_region", "us-east-1")

	v.SetDefault("review.approval_threshold", 80.0)
}
