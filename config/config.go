package config

import (
	"os"
	"permflow/common"
	"permflow/domain/vgroup"
	"permflow/infra/ratelimit"
	"permflow/persistence"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

type ServiceConfig struct {
	ListenAddr string                     `yaml:"listenAddr"`
	GinMode    string                     `yaml:"ginMode"`
	LogLevel   string                     `yaml:"logLevel"`
	Database   persistence.DatabaseConfig `yaml:"database"`

	// ElasticsearchAddresses empty disables change log indexing
	ElasticsearchAddresses []string `yaml:"elasticsearchAddresses"`
	ExpirySchedule         string   `yaml:"expirySchedule"`
	RequestRatePerMinute   int      `yaml:"requestRatePerMinute"`
	RoleCacheSize          int      `yaml:"roleCacheSize"`

	// SessionIssuerSecret empty disables session issuing over http
	SessionIssuerSecret string `yaml:"sessionIssuerSecret"`
}

func Default() *ServiceConfig {
	return &ServiceConfig{
		ListenAddr:           ":80",
		GinMode:              gin.DebugMode,
		LogLevel:             logrus.InfoLevel.String(),
		ExpirySchedule:       vgroup.DefaultExpirySchedule,
		RequestRatePerMinute: ratelimit.DefaultRatePerMinute,
		RoleCacheSize:        256,
	}
}

// Load reads the yaml file at path when path is not empty, then applies environment overrides.
func Load(path string) (*ServiceConfig, error) {
	c := Default()
	if path != "" {
		bytes, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(bytes, c); err != nil {
			return nil, err
		}
	}

	dbConfig, err := persistence.ParseDatabaseConfigFromEnv()
	if os.Getenv("DB_DRIVER") != "" || os.Getenv("DB_ARGS") != "" || c.Database.DriverType == "" {
		if err != nil {
			return nil, err
		}
		c.Database = *dbConfig
	}
	if err := c.Database.Validate(); err != nil {
		return nil, err
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		c.ListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("GIN_MODE")); v != "" {
		c.GinMode = v
	}
	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		c.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("ES_ADDRESSES")); v != "" {
		c.ElasticsearchAddresses = strings.Split(v, ",")
	}
	if v := strings.TrimSpace(os.Getenv("VG_EXPIRY_CRON")); v != "" {
		c.ExpirySchedule = v
	}
	if v := strings.TrimSpace(os.Getenv("REQUEST_RATE_PER_MINUTE")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, err
		}
		c.RequestRatePerMinute = n
	}
	if v := strings.TrimSpace(os.Getenv("SESSION_ISSUER_SECRET")); v != "" {
		c.SessionIssuerSecret = v
	}
	return c, nil
}

// DebugMode true unless gin runs in release mode, enables sql and elasticsearch body logging
func (c *ServiceConfig) DebugMode() bool {
	return c.GinMode != gin.ReleaseMode
}

// SetupLogging configures the standard logger, json output in release mode
func SetupLogging(c *ServiceConfig) error {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return err
	}
	logger := logrus.StandardLogger()
	logger.SetLevel(level)
	if c.GinMode == gin.ReleaseMode {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{})
	}
	logger.AddHook(common.NewDefaultFieldsHook())
	return nil
}
