package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host                      string
		APIHost                   string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Host          string
		Port          string
		DisableTLS    bool
	}

	AdminConfig struct {
		Name        string
		Email       string
		PhoneNumber string
		Password    string
	}

	KafkaConfig struct {
		Broker string
		Topic  string
	}

	// Config holds all process-wide settings. It is built once by NewConfig at
	// start-up and passed around by reference; nothing reads the environment
	// after that.
	Config struct {
		AppName          string
		Env              string // DEV (default), TEST, QA, PROD
		Debug            bool
		TestMode         bool
		Build            string
		WorkDir          string
		SecretKey        string
		FrontendBaseURL  string
		DefaultFromEmail mail.Address

		OTPExpirationDelta time.Duration
		OTPResendCooldown  time.Duration
		OTPLength          int

		// daily pending-approval reminder time-of-day (server TZ)
		ReminderHour   int
		ReminderMinute int

		SendgridApiKey string
		RollbarToken   string
		CloudinaryURL  string

		Server   ServerConfig
		Database DatabaseConfig
		Admin    AdminConfig
		Kafka    KafkaConfig
	}
)

func (c DatabaseConfig) Address() string {
	return c.Host + ":" + c.Port
}

// NewConfig loads the app configuration from defaults, an optional
// config/.env.<env> file and environment variables (in increasing precedence).
func NewConfig() *Config {
	conf := viper.New()
	conf.SetTypeByDefaultValue(true)

	// defaults
	conf.SetDefault("debug", true)
	conf.SetDefault("appName", "Darasa")
	conf.SetDefault("build", "develop")
	conf.SetDefault("secretKey", "w#05+do4b^*#=pjxufn85b$h0!1u)ln0-1aywzsn6ov&idy2cj")
	conf.SetDefault("frontendBaseURL", "http://localhost:3000")
	conf.SetDefault("defaultFromEmail", "noreply@localhost")
	conf.SetDefault("otpExpirationDelta", 5*time.Minute)
	conf.SetDefault("otpResendCooldown", time.Minute)
	conf.SetDefault("otpLength", 6)
	conf.SetDefault("reminderHour", 17)
	conf.SetDefault("reminderMinute", 0)
	conf.SetDefault("server.host", "localhost")
	conf.SetDefault("server.apiHost", "0.0.0.0:8000")
	conf.SetDefault("server.debugHost", "0.0.0.0:4000")
	conf.SetDefault("server.shutdownTimeout", 5*time.Second)
	conf.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	conf.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)
	conf.SetDefault("database.engine", "postgres")
	conf.SetDefault("database.name", "darasa")
	conf.SetDefault("database.user", "darasa")
	conf.SetDefault("database.host", "localhost")
	conf.SetDefault("database.port", "5432")
	conf.SetDefault("database.disableTLS", true)
	conf.SetDefault("admin.name", "Admin")
	conf.SetDefault("admin.email", "admin@localhost")
	conf.SetDefault("admin.phoneNumber", "")
	conf.SetDefault("admin.password", "ChangeMe!123") // dev only; override in PROD
	conf.SetDefault("kafka.broker", "")
	conf.SetDefault("kafka.topic", "darasa.notifications")

	env := os.Getenv("ENV")
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		conf.SetDefault("testMode", true)
	}
	conf.SetEnvPrefix(env)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err = godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	return &Config{
		AppName:          conf.GetString("appName"),
		Env:              env,
		Debug:            conf.GetBool("debug"),
		TestMode:         conf.GetBool("testMode"),
		Build:            conf.GetString("build"),
		WorkDir:          wd,
		SecretKey:        conf.GetString("secretKey"),
		FrontendBaseURL:  conf.GetString("frontendBaseURL"),
		DefaultFromEmail: mail.Address{Address: conf.GetString("defaultFromEmail")},

		OTPExpirationDelta: conf.GetDuration("otpExpirationDelta"),
		OTPResendCooldown:  conf.GetDuration("otpResendCooldown"),
		OTPLength:          conf.GetInt("otpLength"),

		ReminderHour:   conf.GetInt("reminderHour"),
		ReminderMinute: conf.GetInt("reminderMinute"),

		SendgridApiKey: conf.GetString("sendgridApiKey"),
		RollbarToken:   conf.GetString("rollbarToken"),
		CloudinaryURL:  conf.GetString("cloudinaryURL"),

		Server: ServerConfig{
			Host:                      conf.GetString("server.host"),
			APIHost:                   conf.GetString("server.apiHost"),
			DebugHost:                 conf.GetString("server.debugHost"),
			ShutdownTimeout:           conf.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        conf.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: conf.GetDuration("server.jwtRefreshExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        conf.GetString("database.engine"),
			Name:          conf.GetString("database.name"),
			User:          conf.GetString("database.user"),
			Password:      conf.GetString("database.password"),
			AdminUser:     conf.GetString("database.adminUser"),
			AdminPassword: conf.GetString("database.adminPassword"),
			Host:          conf.GetString("database.host"),
			Port:          conf.GetString("database.port"),
			DisableTLS:    conf.GetBool("database.disableTLS"),
		},
		Admin: AdminConfig{
			Name:        conf.GetString("admin.name"),
			Email:       conf.GetString("admin.email"),
			PhoneNumber: conf.GetString("admin.phoneNumber"),
			Password:    conf.GetString("admin.password"),
		},
		Kafka: KafkaConfig{
			Broker: conf.GetString("kafka.broker"),
			Topic:  conf.GetString("kafka.topic"),
		},
	}
}
