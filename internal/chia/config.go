// Package chia talks to the RPC and daemon websocket endpoints of a local
// Chia installation over mutual TLS.
package chia

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultDaemonPort is the daemon websocket port when the config omits it.
const DefaultDaemonPort = 55400

// CertPair locates a certificate and its key, relative to the Chia root.
type CertPair struct {
	Crt        string `yaml:"crt"`
	Key        string `yaml:"key"`
	PrivateCrt string `yaml:"private_crt"`
	PrivateKey string `yaml:"private_key"`
}

// ServiceConfig is the RPC section of one Chia service.
type ServiceConfig struct {
	RPCPort int      `yaml:"rpc_port"`
	SSL     CertPair `yaml:"ssl"`
}

// NetConfig is the subset of the Chia config.yaml the monitor needs.
type NetConfig struct {
	SelfHostname string        `yaml:"self_hostname"`
	DaemonPort   int           `yaml:"daemon_port"`
	PrivateSSLCA CertPair      `yaml:"private_ssl_ca"`
	DaemonSSL    CertPair      `yaml:"daemon_ssl"`
	FullNode     ServiceConfig `yaml:"full_node"`
	Wallet       ServiceConfig `yaml:"wallet"`
	Farmer       ServiceConfig `yaml:"farmer"`

	root string
}

// LoadNetConfig reads the Chia config file. Relative certificate paths are
// resolved against root.
func LoadNetConfig(root, path string) (*NetConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading chia config: %w", err)
	}
	var cfg NetConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing chia config: %w", err)
	}
	if cfg.SelfHostname == "" {
		cfg.SelfHostname = "localhost"
	}
	if cfg.DaemonPort == 0 {
		cfg.DaemonPort = DefaultDaemonPort
	}
	cfg.root = root
	return &cfg, nil
}

// Path resolves p against the Chia root.
func (c *NetConfig) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.root, p)
}

// Endpoint returns host:port for a service port.
func (c *NetConfig) Endpoint(port int) string {
	return fmt.Sprintf("%s:%d", c.SelfHostname, port)
}
