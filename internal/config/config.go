package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nvinayak/pharmanet/internal/core/domain"
)

// Config holds everything the server binary needs. Values come from an
// optional YAML file, then environment overrides, on top of the defaults.
type Config struct {
	HTTPAddr    string            `yaml:"http_addr"`
	GRPCAddr    string            `yaml:"grpc_addr"`
	MySQLDSN    string            `yaml:"mysql_dsn"`
	RedisAddr   string            `yaml:"redis_addr"`
	WorkerCount int               `yaml:"worker_count"`
	QueueSize   int               `yaml:"queue_size"`

	// Orgs maps a verified organisation identifier to its network role.
	Orgs map[string]string `yaml:"orgs"`
}

func Default() Config {
	return Config{
		HTTPAddr:    ":8080",
		GRPCAddr:    ":50051",
		MySQLDSN:    "root:root@tcp(localhost:3306)/pharmanet?parseTime=true",
		RedisAddr:   "localhost:6379",
		WorkerCount: 10,
		QueueSize:   10000,
		Orgs: map[string]string{
			"manufacturer.pharma-network.com": "manufacturer",
			"distributor.pharma-network.com":  "distributor",
			"retailer.pharma-network.com":     "retailer",
			"transporter.pharma-network.com":  "transporter",
		},
	}
}

// Load reads the YAML file at path when it is non-empty, then applies
// environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("load config %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %q: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("GRPC_ADDR"); v != "" {
		cfg.GRPCAddr = v
	}
	if v := os.Getenv("MYSQL_DSN"); v != "" {
		cfg.MySQLDSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
}

// Roles converts the configured org map into domain roles, rejecting
// unknown role names up front.
func (c Config) Roles() (map[string]domain.Role, error) {
	out := make(map[string]domain.Role, len(c.Orgs))
	for org, name := range c.Orgs {
		role, err := domain.ParseRole(name)
		if err != nil {
			return nil, fmt.Errorf("org %q: %w", org, err)
		}
		out[org] = role
	}
	return out, nil
}
