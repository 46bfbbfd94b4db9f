package config

import (
	"fmt"
	"os"

	"github.com/cuemby/pixelforge/pkg/types"
	"gopkg.in/yaml.v3"
)

// Server controls the HTTP bind address, port scan range, and API base path.
type Server struct {
	BindHost    string `yaml:"bind_host"`
	PortRange   [2]int `yaml:"port_range"`
	APIBase     string `yaml:"api_base"`
}

// Worker controls the Worker Pool's size and bounded queue capacity.
type Worker struct {
	Count         int `yaml:"count"`
	QueueCapacity int `yaml:"queue_capacity"`
}

// Storage controls where metadata/blobs live and which local directories
// path-reference reference-images may resolve into.
type Storage struct {
	DataDir         string   `yaml:"data_dir"`
	AllowedRefRoots []string `yaml:"allowed_ref_roots"`
}

// Config is PixelForge's full runtime configuration.
type Config struct {
	Server    Server                  `yaml:"server"`
	Worker    Worker                  `yaml:"worker"`
	Storage   Storage                 `yaml:"storage"`
	Providers []types.ProviderConfig `yaml:"providers"`
}

// Default returns the configuration used when no file is present and no
// overrides apply.
func Default() Config {
	return Config{
		Server: Server{
			BindHost:  "127.0.0.1",
			PortRange: [2]int{8080, 8099},
			APIBase:   "/api/v1",
		},
		Worker: Worker{
			Count:         6,
			QueueCapacity: 100,
		},
		Storage: Storage{
			DataDir: "./data",
		},
	}
}

// Load reads path (if non-empty and present) over Default, then applies
// the SERVER_HOST and PIXELFORGE_CONTAINER environment overrides. A
// missing path is not an error — callers get Default with env applied.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// no config file; defaults stand
		case err != nil:
			return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv layers SERVER_HOST and PIXELFORGE_CONTAINER over cfg, per
// spec.md §6's CLI/process surface.
func applyEnv(cfg *Config) {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		cfg.Server.BindHost = host
		return
	}
	if os.Getenv("PIXELFORGE_CONTAINER") != "" {
		cfg.Server.BindHost = "0.0.0.0"
	}
}
