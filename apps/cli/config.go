package main

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jayalms/lms/core/identity"
)

const appDir = "jaya-lms"

type config struct {
	APIURL      string
	Timeout     time.Duration
	SessionPath string
}

// loadConfig reads LMS_API_URL, LMS_TIMEOUT & LMS_SESSION_PATH.
func loadConfig() (config, error) {
	v := viper.New()
	v.SetTypeByDefaultValue(true)
	v.SetDefault("api.url", "http://localhost:8080")
	v.SetDefault("timeout", 30*time.Second)
	v.SetDefault("session.path", "")
	v.SetEnvPrefix("lms")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	conf := config{
		APIURL:      v.GetString("api.url"),
		Timeout:     v.GetDuration("timeout"),
		SessionPath: v.GetString("session.path"),
	}
	if conf.SessionPath == "" {
		path, err := identity.DefaultSessionPath(appDir)
		if err != nil {
			return config{}, err
		}
		conf.SessionPath = path
	}
	return conf, nil
}
