package core

import (
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
	Config struct {
		Env              string // DEV (local; default), TEST, QA, PROD
		Build            string
		Debug            bool
		TestMode         bool
		AppName          string
		SecretKey        string
		WorkDir          string
		FrontendBaseURL  string
		DefaultFromEmail mail.Address
		SendgridAPIKey   string
		RollbarToken     string

		Server   ServerConfig
		Database DatabaseConfig
		Storage  StorageConfig
		Realtime RealtimeConfig
	}

	ServerConfig struct {
		Host                      string
		Address                   string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string // postgres | inmem
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
		Driver          string // local | oss
		LocalDir        string
		LocalBaseURL    string
		OSSEndpoint     string
		OSSAccessKey    string
		OSSAccessSecret string
		OSSBucket       string
		SignedURLTTL    time.Duration
	}

	RealtimeConfig struct {
		Driver        string // memory | redis
		RedisAddress  string
		RedisPassword string
		RedisChannel  string
	}
)

func (dc DatabaseConfig) Address() string {
	return net.JoinHostPort(dc.Host, strconv.Itoa(dc.Port))
}

// NewConfig loads the app configuration from the environment.
// Env vars are prefixed by the current ENV, e.g. `DEV_SECRETKEY`, `PROD_DATABASE_PASSWORD`.
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("build", "develop")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "Jaya LMS")
	v.SetDefault("secretKey", "u3z#vr7h!q0@l_2mna8$y9kx^e-c4w)bsj6+t5fgp1=od")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("sendgridAPIKey", "")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 30*24*time.Hour)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "jaya")
	v.SetDefault("database.user", "jaya")
	v.SetDefault("database.password", "jaya")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.localDir", "uploads")
	v.SetDefault("storage.localBaseURL", "http://localhost:8080/files")
	v.SetDefault("storage.ossEndpoint", "")
	v.SetDefault("storage.ossAccessKey", "")
	v.SetDefault("storage.ossAccessSecret", "")
	v.SetDefault("storage.ossBucket", "submissions")
	v.SetDefault("storage.signedURLTTL", 60*time.Second)

	v.SetDefault("realtime.driver", "memory")
	v.SetDefault("realtime.redisAddress", "localhost:6379")
	v.SetDefault("realtime.redisPassword", "")
	v.SetDefault("realtime.redisChannel", "jaya:changes")

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

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
	v.AutomaticEnv()

	conf := &Config{
		Env:             env,
		Build:           v.GetString("build"),
		Debug:           v.GetBool("debug"),
		TestMode:        v.GetBool("testMode"),
		AppName:         v.GetString("appName"),
		SecretKey:       v.GetString("secretKey"),
		WorkDir:         wd,
		FrontendBaseURL: v.GetString("frontendBaseURL"),
		SendgridAPIKey:  v.GetString("sendgridAPIKey"),
		RollbarToken:    v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			Address:                   v.GetString("server.address"),
			DebugHost:                 v.GetString("server.debugHost"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Storage: StorageConfig{
			Driver:          v.GetString("storage.driver"),
			LocalDir:        v.GetString("storage.localDir"),
			LocalBaseURL:    v.GetString("storage.localBaseURL"),
			OSSEndpoint:     v.GetString("storage.ossEndpoint"),
			OSSAccessKey:    v.GetString("storage.ossAccessKey"),
			OSSAccessSecret: v.GetString("storage.ossAccessSecret"),
			OSSBucket:       v.GetString("storage.ossBucket"),
			SignedURLTTL:    v.GetDuration("storage.signedURLTTL"),
		},
		Realtime: RealtimeConfig{
			Driver:        v.GetString("realtime.driver"),
			RedisAddress:  v.GetString("realtime.redisAddress"),
			RedisPassword: v.GetString("realtime.redisPassword"),
			RedisChannel:  v.GetString("realtime.redisChannel"),
		},
	}

	from, err := mail.ParseAddress(v.GetString("defaultFromEmail"))
	if err != nil {
		log.Fatalf("config.mail.ParseAddress(defaultFromEmail): %v", err)
	}
	from.Name = conf.AppName
	conf.DefaultFromEmail = *from

	return conf
}

// NewTestConfig returns a Config suitable for tests: in-memory everything, no .env lookups.
func NewTestConfig() *Config {
	return &Config{
		Env:              "TEST",
		Build:            "test",
		TestMode:         true,
		AppName:          "Jaya LMS",
		SecretKey:        "secret",
		FrontendBaseURL:  "http://localhost:3000",
		DefaultFromEmail: mail.Address{Name: "Jaya LMS", Address: "noreply@localhost"},
		Server: ServerConfig{
			Host:                      "localhost",
			ShutdownTimeout:           time.Second,
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
		Database: DatabaseConfig{Engine: "inmem"},
		Storage:  StorageConfig{Driver: "local", LocalBaseURL: "http://localhost/files", SignedURLTTL: time.Minute},
		Realtime: RealtimeConfig{Driver: "memory"},
	}
}
