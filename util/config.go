package util

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

const Name = "nodeweave"
const ConfigFileName = "config.yaml"

//go:embed config_default.yaml
var embeddedConfig []byte

type AppConfig struct {
	Conf struct {
		Host     string
		HttpPort int    `yaml:"httpPort"`
		BaseUrl  string `yaml:"baseUrl"`
		Database string
		Closed   bool   `yaml:"closed"`
		LogLevel string `yaml:"logLevel"`
		Node     struct {
			Username string
			Password string
		}
		Federation struct {
			TimeoutSeconds int `yaml:"timeoutSeconds"`
			Concurrency    int
		}
		Stream struct {
			PageSize    int `yaml:"pageSize"`
			MaxPageSize int `yaml:"maxPageSize"`
		}
		Limits struct {
			RequestsPerSecond float64 `yaml:"requestsPerSecond"`
			Burst             int
			InboxPerSecond    float64 `yaml:"inboxPerSecond"`
			InboxBurst        int     `yaml:"inboxBurst"`
			MaxBodyBytes      int64   `yaml:"maxBodyBytes"`
		}
	}
}

// FederationTimeout is the bound on every outbound peer call.
func (c *AppConfig) FederationTimeout() time.Duration {
	if c.Conf.Federation.TimeoutSeconds <= 0 {
		return 3 * time.Second
	}
	return time.Duration(c.Conf.Federation.TimeoutSeconds) * time.Second
}

// MaxBodyBytes bounds request bodies; 1 MiB unless configured.
func (c *AppConfig) MaxBodyBytes() int64 {
	if c.Conf.Limits.MaxBodyBytes <= 0 {
		return 1 << 20
	}
	return c.Conf.Limits.MaxBodyBytes
}

func ReadConf() (*AppConfig, error) {

	// Try to resolve config file path (local first, then user dir)
	configPath := ResolveFilePath(ConfigFileName)

	buf, err := os.ReadFile(configPath)
	if err != nil {
		log.Info("Config file not found, using embedded defaults", "path", configPath)
		buf = embeddedConfig

		stateDir, dirErr := StateDir()
		if dirErr == nil {
			userConfigPath := filepath.Join(stateDir, ConfigFileName)
			writeErr := os.WriteFile(userConfigPath, embeddedConfig, 0644)
			if writeErr != nil {
				log.Warn("Could not write default config", "path", userConfigPath, "err", writeErr)
			} else {
				log.Info("Created default config file", "path", userConfigPath)
			}
		}
	}

	return ParseConf(buf)
}

// ParseConf applies buf over the embedded defaults, then the environment.
func ParseConf(buf []byte) (*AppConfig, error) {
	c := &AppConfig{}
	if err := yaml.Unmarshal(embeddedConfig, c); err != nil {
		return nil, fmt.Errorf("in embedded config: %w", err)
	}
	if err := yaml.Unmarshal(buf, c); err != nil {
		return nil, fmt.Errorf("in config file: %w", err)
	}

	if v := os.Getenv("NODEWEAVE_HOST"); v != "" {
		c.Conf.Host = v
	}
	if v := os.Getenv("NODEWEAVE_HTTPPORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("NODEWEAVE_HTTPPORT: %w", err)
		}
		c.Conf.HttpPort = port
	}
	if v := os.Getenv("NODEWEAVE_BASEURL"); v != "" {
		c.Conf.BaseUrl = v
	}
	if v := os.Getenv("NODEWEAVE_DATABASE"); v != "" {
		c.Conf.Database = v
	}
	if v := os.Getenv("NODEWEAVE_LOGLEVEL"); v != "" {
		c.Conf.LogLevel = v
	}
	if v := os.Getenv("NODEWEAVE_NODE_USERNAME"); v != "" {
		c.Conf.Node.Username = v
	}
	if v := os.Getenv("NODEWEAVE_NODE_PASSWORD"); v != "" {
		c.Conf.Node.Password = v
	}
	if v := os.Getenv("NODEWEAVE_TIMEOUT"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("NODEWEAVE_TIMEOUT: %w", err)
		}
		c.Conf.Federation.TimeoutSeconds = secs
	}
	if os.Getenv("NODEWEAVE_CLOSED") == "true" {
		c.Conf.Closed = true
	}

	if c.Conf.BaseUrl == "" {
		c.Conf.BaseUrl = fmt.Sprintf("http://%s:%d", c.Conf.Host, c.Conf.HttpPort)
	}
	if c.Conf.Stream.PageSize <= 0 {
		c.Conf.Stream.PageSize = 5
	}
	if c.Conf.Stream.MaxPageSize < c.Conf.Stream.PageSize {
		c.Conf.Stream.MaxPageSize = c.Conf.Stream.PageSize
	}
	if c.Conf.Federation.Concurrency <= 0 {
		c.Conf.Federation.Concurrency = 8
	}

	return c, nil
}
