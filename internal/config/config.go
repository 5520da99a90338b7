// Package config builds the configuration of the binaries from flags,
// TFHE_ environment variables and an optional config file.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/luxfi/tfhe"
	"github.com/luxfi/tfhe/internal/profile"
	"github.com/luxfi/tfhe/internal/queue"
	"github.com/luxfi/tfhe/internal/storage"
)

// EnvPrefix prefixes every environment variable, e.g. TFHE_STORAGE_BACKEND.
const EnvPrefix = "TFHE"

const (
	ConfigFileKey     = "config-file"
	LogLevelKey       = "log-level"
	LogDevelopmentKey = "log-development"
	ParamsKey         = "params"
	WorkersKey        = "workers"
	MetricsAddrKey    = "metrics-addr"
	APIAddrKey        = "api-addr"

	StorageBackendKey    = "storage.backend"
	StorageDirKey        = "storage.dir"
	StorageCapacityKey   = "storage.capacity-mb"
	StorageRedisAddrKey  = "storage.redis.addr"
	StorageRedisDBKey    = "storage.redis.db"
	StorageRedisTTLKey   = "storage.redis.ttl"
	QueueBackendKey      = "queue.backend"
	QueueNameKey         = "queue.name"
	QueueRedisAddrKey    = "queue.redis.addr"
	QueueRedisDBKey      = "queue.redis.db"
	ProfileCPUKey        = "profile.cpu"
	ProfileMemKey        = "profile.mem"
	ProfileBlockKey      = "profile.block"
	ProfileMutexKey      = "profile.mutex"

	StorageRedisPasswordKey = "storage.redis.password"
	QueueRedisPasswordKey   = "queue.redis.password"
)

const (
	defaultLogLevel    = "info"
	defaultParams      = "PMessage2Carry2"
	defaultMetricsAddr = ":9090"
	defaultAPIAddr     = ":8080"
	defaultBackend     = "memory"
	defaultStorageDir  = "tfhe-data"
	defaultCapacityMB  = 1024
	defaultQueueName   = "bootstrap"
)

// Backend names.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type StorageConfig struct {
	Backend    string              `mapstructure:"backend"`
	Dir        string              `mapstructure:"dir"`
	CapacityMB int64               `mapstructure:"capacity-mb"`
	Redis      storage.RedisConfig `mapstructure:"redis"`
}

type QueueConfig struct {
	Backend string            `mapstructure:"backend"`
	Name    string            `mapstructure:"name"`
	Redis   queue.RedisConfig `mapstructure:"redis"`
}

// Config is shared by every binary; each reads the fields it needs.
type Config struct {
	LogLevel       string         `mapstructure:"log-level"`
	LogDevelopment bool           `mapstructure:"log-development"`
	Params         string         `mapstructure:"params"`
	Workers        int            `mapstructure:"workers"`
	MetricsAddr    string         `mapstructure:"metrics-addr"`
	APIAddr        string         `mapstructure:"api-addr"`
	Storage        StorageConfig  `mapstructure:"storage"`
	Queue          QueueConfig    `mapstructure:"queue"`
	Profile        profile.Config `mapstructure:"profile"`
}

// AddFlags registers the flags shared by the binaries.
func AddFlags(fs *pflag.FlagSet) {
	fs.String(ConfigFileKey, "", "path to a config file (json, yaml or toml)")
	fs.String(LogLevelKey, defaultLogLevel, "log level: debug, info, warn or error")
	fs.Bool(LogDevelopmentKey, false, "human-readable development logging")
	fs.String(ParamsKey, defaultParams, "named parameter set")
	fs.Int(WorkersKey, 0, "number of workers, 0 for one per CPU")
	fs.String(StorageBackendKey, defaultBackend, "blob storage backend: memory, file or redis")
	fs.String(StorageDirKey, defaultStorageDir, "directory of the file storage backend")
	fs.String(QueueBackendKey, defaultBackend, "job queue backend: memory or redis")
}

func SetDefaultConfigValues(v *viper.Viper) {
	v.SetDefault(LogLevelKey, defaultLogLevel)
	v.SetDefault(LogDevelopmentKey, false)
	v.SetDefault(ParamsKey, defaultParams)
	v.SetDefault(WorkersKey, 0)
	v.SetDefault(MetricsAddrKey, defaultMetricsAddr)
	v.SetDefault(APIAddrKey, defaultAPIAddr)
	v.SetDefault(StorageBackendKey, defaultBackend)
	v.SetDefault(StorageDirKey, defaultStorageDir)
	v.SetDefault(StorageCapacityKey, defaultCapacityMB)
	v.SetDefault(StorageRedisAddrKey, "localhost:6379")
	v.SetDefault(StorageRedisPasswordKey, "")
	v.SetDefault(StorageRedisDBKey, 0)
	v.SetDefault(StorageRedisTTLKey, 0)
	v.SetDefault(QueueBackendKey, defaultBackend)
	v.SetDefault(QueueNameKey, defaultQueueName)
	v.SetDefault(QueueRedisAddrKey, "localhost:6379")
	v.SetDefault(QueueRedisPasswordKey, "")
	v.SetDefault(QueueRedisDBKey, 0)
	v.SetDefault(ProfileCPUKey, "")
	v.SetDefault(ProfileMemKey, "")
	v.SetDefault(ProfileBlockKey, "")
	v.SetDefault(ProfileMutexKey, "")
}

// BuildViper binds fs and the environment. A config file is read when
// config-file is set. Precedence: flags, environment, config file,
// defaults.
func BuildViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, err
		}
	}
	SetDefaultConfigValues(v)

	if filename := v.GetString(ConfigFileKey); filename != "" {
		v.SetConfigFile(filename)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	return v, nil
}

// NewConfig unmarshals and validates the configuration held by v.
func NewConfig(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to unmarshal viper config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("failed to validate configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, ok := tfhe.GetParameters(c.Params); !ok {
		return fmt.Errorf("%w: unknown parameter set %q", ErrInvalidConfig, c.Params)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: negative worker count %d", ErrInvalidConfig, c.Workers)
	}
	switch c.Storage.Backend {
	case BackendMemory:
		if c.Storage.CapacityMB <= 0 {
			return fmt.Errorf("%w: memory storage capacity %d MB", ErrInvalidConfig, c.Storage.CapacityMB)
		}
	case BackendFile:
		if c.Storage.Dir == "" {
			return fmt.Errorf("%w: file storage needs a directory", ErrInvalidConfig)
		}
	case BackendRedis:
	default:
		return fmt.Errorf("%w: unknown storage backend %q", ErrInvalidConfig, c.Storage.Backend)
	}
	switch c.Queue.Backend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("%w: unknown queue backend %q", ErrInvalidConfig, c.Queue.Backend)
	}
	return nil
}

// Parameters returns the configured parameter set.
func (c *Config) Parameters() (tfhe.Parameters, error) {
	lit, ok := tfhe.GetParameters(c.Params)
	if !ok {
		return tfhe.Parameters{}, fmt.Errorf("%w: unknown parameter set %q", ErrInvalidConfig, c.Params)
	}
	return tfhe.NewParametersFromLiteral(lit)
}

// Logger builds the zap logger of the binaries.
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if c.LogDevelopment {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// Open opens the configured storage backend.
func (c StorageConfig) Open() (storage.Storage, error) {
	switch c.Backend {
	case BackendMemory:
		return storage.NewMemoryStorage(c.CapacityMB), nil
	case BackendFile:
		return storage.NewFileStorage(c.Dir)
	case BackendRedis:
		return storage.NewRedisStorage(c.Redis)
	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", ErrInvalidConfig, c.Backend)
	}
}

// Open opens the configured queue backend.
func (c QueueConfig) Open() (queue.Queue, error) {
	switch c.Backend {
	case BackendMemory:
		return queue.NewMemoryQueue(), nil
	case BackendRedis:
		return queue.NewRedisQueue(c.Redis, c.Name)
	default:
		return nil, fmt.Errorf("%w: unknown queue backend %q", ErrInvalidConfig, c.Backend)
	}
}
