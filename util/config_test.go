package util

import (
	"os"
	"testing"
	"time"
)

func TestConfigConstants(t *testing.T) {
	if Name != "nodeweave" {
		t.Errorf("Expected Name 'nodeweave', got '%s'", Name)
	}

	if ConfigFileName != "config.yaml" {
		t.Errorf("Expected ConfigFileName 'config.yaml', got '%s'", ConfigFileName)
	}
}

func TestReadConfWithYaml(t *testing.T) {
	yamlContent := `
conf:
  host: 127.0.0.1
  httpPort: 9999
  baseUrl: http://node.example:9999
  node:
    username: alice-node
    password: secret
  federation:
    timeoutSeconds: 2
    concurrency: 4
`
	err := os.WriteFile("config.yaml", []byte(yamlContent), 0644)
	if err != nil {
		t.Fatalf("Failed to create test config: %v", err)
	}
	defer os.Remove("config.yaml")

	config, err := ReadConf()
	if err != nil {
		t.Fatalf("ReadConf failed: %v", err)
	}

	if config.Conf.Host != "127.0.0.1" {
		t.Errorf("Expected Host '127.0.0.1', got '%s'", config.Conf.Host)
	}
	if config.Conf.HttpPort != 9999 {
		t.Errorf("Expected HttpPort 9999, got %d", config.Conf.HttpPort)
	}
	if config.Conf.BaseUrl != "http://node.example:9999" {
		t.Errorf("Expected BaseUrl 'http://node.example:9999', got '%s'", config.Conf.BaseUrl)
	}
	if config.Conf.Node.Username != "alice-node" || config.Conf.Node.Password != "secret" {
		t.Errorf("Unexpected node credentials %+v", config.Conf.Node)
	}
	if config.FederationTimeout() != 2*time.Second {
		t.Errorf("Expected 2s timeout, got %s", config.FederationTimeout())
	}
	if config.Conf.Federation.Concurrency != 4 {
		t.Errorf("Expected concurrency 4, got %d", config.Conf.Federation.Concurrency)
	}
	// Values absent from the file come from the embedded defaults
	if config.Conf.Stream.PageSize != 5 {
		t.Errorf("Expected default page size 5, got %d", config.Conf.Stream.PageSize)
	}
	if config.Conf.Stream.MaxPageSize != 100 {
		t.Errorf("Expected default max page size 100, got %d", config.Conf.Stream.MaxPageSize)
	}
}

func TestParseConfWithEnvOverrides(t *testing.T) {
	yamlContent := `
conf:
  host: 127.0.0.1
  httpPort: 9999
`
	t.Setenv("NODEWEAVE_HOST", "192.168.1.1")
	t.Setenv("NODEWEAVE_HTTPPORT", "8080")
	t.Setenv("NODEWEAVE_NODE_USERNAME", "env-user")
	t.Setenv("NODEWEAVE_NODE_PASSWORD", "env-pass")
	t.Setenv("NODEWEAVE_TIMEOUT", "7")
	t.Setenv("NODEWEAVE_CLOSED", "true")

	config, err := ParseConf([]byte(yamlContent))
	if err != nil {
		t.Fatalf("ParseConf failed: %v", err)
	}

	if config.Conf.Host != "192.168.1.1" {
		t.Errorf("Expected Host '192.168.1.1' from env, got '%s'", config.Conf.Host)
	}
	if config.Conf.HttpPort != 8080 {
		t.Errorf("Expected HttpPort 8080 from env, got %d", config.Conf.HttpPort)
	}
	if config.Conf.Node.Username != "env-user" || config.Conf.Node.Password != "env-pass" {
		t.Errorf("Unexpected node credentials %+v", config.Conf.Node)
	}
	if config.FederationTimeout() != 7*time.Second {
		t.Errorf("Expected 7s timeout, got %s", config.FederationTimeout())
	}
	if !config.Conf.Closed {
		t.Error("Expected Closed to be true from env")
	}
	if config.Conf.BaseUrl != "http://192.168.1.1:8080" {
		t.Errorf("Expected derived BaseUrl, got '%s'", config.Conf.BaseUrl)
	}
}

func TestParseConfInvalidEnvPort(t *testing.T) {
	t.Setenv("NODEWEAVE_HTTPPORT", "not_a_number")

	if _, err := ParseConf([]byte("conf:\n  host: 127.0.0.1\n")); err == nil {
		t.Error("Expected error for invalid port override")
	}
}

func TestParseConfInvalidYaml(t *testing.T) {
	invalidYaml := `
conf:
  host: 127.0.0.1
  httpPort: not_a_number
  invalid yaml structure
`
	if _, err := ParseConf([]byte(invalidYaml)); err == nil {
		t.Error("Expected error for invalid YAML")
	}
}

func TestRedacted(t *testing.T) {
	config, err := ParseConf([]byte("conf:\n  node:\n    password: secret\n"))
	if err != nil {
		t.Fatalf("ParseConf failed: %v", err)
	}

	redacted := config.Redacted()
	if redacted.Conf.Node.Password != "***" {
		t.Errorf("Expected password to be masked, got '%s'", redacted.Conf.Node.Password)
	}
	if config.Conf.Node.Password != "secret" {
		t.Error("Redacted must not modify the original config")
	}
}
