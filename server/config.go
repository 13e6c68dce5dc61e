package server

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/janelia-flyem/neuropil/npil"
	"github.com/janelia-flyem/neuropil/storage"
)

const (
	// DefaultWebAddress is the default address of the HTTP server.
	DefaultWebAddress = "localhost:8000"

	// DefaultMaxConnections is the default limit on simultaneous HTTP connections.
	DefaultMaxConnections = 256

	// DefaultSliceCacheMB is the default size of the slice PNG cache.
	DefaultSliceCacheMB = 64

	// DefaultCheckpointEngine is the storage engine used for checkpoints.
	DefaultCheckpointEngine = "badger"

	// WebAPIPath is the prefix of all HTTP API endpoints.
	WebAPIPath = "/api/"

	// environment variables that override the TOML configuration
	EnvConfigFile = "NEUROPIL_CONFIG"
	EnvSecretKey  = "NEUROPIL_SECRET"
)

// Config is the TOML configuration of the server.
type Config struct {
	Server     ServerConfig        `toml:"server"`
	Logging    npil.LogConfig      `toml:"logging"`
	Auth       AuthConfig          `toml:"auth"`
	Mutations  MutationsConfig     `toml:"mutations"`
	Kafka      storage.KafkaConfig `toml:"kafka"`
	Cache      CacheConfig         `toml:"cache"`
	Checkpoint CheckpointConfig    `toml:"checkpoint"`
	Export     ExportConfig        `toml:"export"`
	Layers     []LayerConfig       `toml:"layer"`

	location string
}

type ServerConfig struct {
	Host           string   `toml:"host"`
	HTTPAddress    string   `toml:"httpAddress"`
	MaxConnections int      `toml:"max_connections"`
	AllowedOrigins []string `toml:"allowed_origins"`
	Note           string   `toml:"note"`
}

// AuthConfig gives the JWT secret and a JSON file mapping users to "read", "write" or
// "readwrite" privileges.  Authorization is disabled if no secret is given.
type AuthConfig struct {
	AuthFile  string `toml:"auth_file"`
	SecretKey string `toml:"secret_key"`
}

// MutationsConfig gives the directory of the append-only mutation journal.  Mutations are
// kept only in memory if no directory is given.
type MutationsConfig struct {
	Journal string `toml:"journal"`
}

type CacheConfig struct {
	SliceCacheMB int `toml:"slice_cache_mb"`
}

// CheckpointConfig selects the store for layer checkpoints.  An empty path keeps
// checkpoints in memory.
type CheckpointConfig struct {
	Engine string `toml:"engine"`
	Path   string `toml:"path"`
}

// ExportConfig gives the default destination of saved label slices, which may be a
// local directory or a bucket reference.
type ExportConfig struct {
	Directory string `toml:"directory"`
}

// LayerConfig is a layer loaded at startup.
type LayerConfig struct {
	Name string `toml:"name"`
	Kind string `toml:"kind"`
	Path string `toml:"path"`
}

// DefaultConfig returns the configuration used without a TOML file.
func DefaultConfig() *Config {
	c := new(Config)
	c.setDefaults()
	return c
}

func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		if host, err := os.Hostname(); err == nil {
			c.Server.Host = host
		} else {
			c.Server.Host = "localhost"
		}
	}
	if c.Server.HTTPAddress == "" {
		c.Server.HTTPAddress = DefaultWebAddress
	}
	if c.Server.MaxConnections <= 0 {
		c.Server.MaxConnections = DefaultMaxConnections
	}
	if c.Cache.SliceCacheMB <= 0 {
		c.Cache.SliceCacheMB = DefaultSliceCacheMB
	}
	if c.Checkpoint.Engine == "" {
		c.Checkpoint.Engine = DefaultCheckpointEngine
	}
	if secret := os.Getenv(EnvSecretKey); secret != "" {
		c.Auth.SecretKey = secret
	}
}

// Location returns the file the configuration was loaded from, if any.
func (c *Config) Location() string {
	return c.location
}

func (c *Config) convertPathsToAbsolute(configPath string) error {
	var err error

	configDir := filepath.Dir(configPath)

	// [logging].logfile
	if c.Logging.Logfile != "" {
		c.Logging.Logfile, err = npil.ConvertToAbsolute(c.Logging.Logfile, configDir)
		if err != nil {
			return fmt.Errorf("Error converting logfile setting to absolute path")
		}
	}

	// [auth].auth_file
	if c.Auth.AuthFile != "" {
		c.Auth.AuthFile, err = npil.ConvertToAbsolute(c.Auth.AuthFile, configDir)
		if err != nil {
			return fmt.Errorf("Error converting auth_file setting to absolute path")
		}
	}

	// [mutations].journal
	if c.Mutations.Journal != "" {
		c.Mutations.Journal, err = npil.ConvertToAbsolute(c.Mutations.Journal, configDir)
		if err != nil {
			return fmt.Errorf("Error converting mutation journal to absolute path")
		}
	}

	// [checkpoint].path
	if c.Checkpoint.Path != "" {
		c.Checkpoint.Path, err = npil.ConvertToAbsolute(c.Checkpoint.Path, configDir)
		if err != nil {
			return fmt.Errorf("Error converting checkpoint path to absolute path")
		}
	}

	// [export].directory unless it is a bucket
	if c.Export.Directory != "" && !storage.IsBucketRef(c.Export.Directory) {
		c.Export.Directory, err = npil.ConvertToAbsolute(c.Export.Directory, configDir)
		if err != nil {
			return fmt.Errorf("Error converting export directory to absolute path")
		}
	}

	// [[layer]].path
	for i, layer := range c.Layers {
		c.Layers[i].Path, err = npil.ConvertToAbsolute(layer.Path, configDir)
		if err != nil {
			return fmt.Errorf("Error converting path of layer %q to absolute path: %q", layer.Name, layer.Path)
		}
	}
	return nil
}

// LoadConfig reads a TOML configuration.  If filename is empty, the file named by the
// NEUROPIL_CONFIG environment variable is used, and if that is unset the defaults.
func LoadConfig(filename string) (*Config, error) {
	if filename == "" {
		filename = os.Getenv(EnvConfigFile)
	}
	if filename == "" {
		npil.Infof("No server TOML configuration file provided.  Using defaults.\n")
		return DefaultConfig(), nil
	}
	c := new(Config)
	if _, err := toml.DecodeFile(filename, c); err != nil {
		return nil, fmt.Errorf("could not decode TOML config: %v", err)
	}
	c.location = filename
	c.setDefaults()
	for _, layer := range c.Layers {
		if layer.Name == "" || layer.Path == "" {
			return nil, fmt.Errorf("each [[layer]] needs a name and path")
		}
	}
	if err := c.convertPathsToAbsolute(filename); err != nil {
		return nil, fmt.Errorf("could not convert relative paths to absolute paths in TOML config: %v", err)
	}
	npil.Debugf("Loaded config from %s with %d startup layers\n", filename, len(c.Layers))
	return c, nil
}
