// Package config loads the engine configuration once per process.
package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/sentrasec/sentra/pkg/errs"
)

// Config is the full engine configuration. Loaded once; treated as read-only
// afterwards.
type Config struct {
	ModelDir string `mapstructure:"model_dir"`
	DataDir  string `mapstructure:"data_dir"`
	LogFile  string `mapstructure:"log_file"`
	LogLevel string `mapstructure:"log_level"`

	TargetColumn   string   `mapstructure:"target_column"`
	ExcludeColumns []string `mapstructure:"exclude_columns"`

	Forest struct {
		Estimators int `mapstructure:"estimators"`
		MaxDepth   int `mapstructure:"max_depth"`
	} `mapstructure:"forest"`

	Boost struct {
		Estimators   int     `mapstructure:"estimators"`
		LearningRate float64 `mapstructure:"learning_rate"`
		MaxDepth     int     `mapstructure:"max_depth"`
	} `mapstructure:"boost"`

	MLP struct {
		HiddenLayers []int   `mapstructure:"hidden_layers"`
		LearningRate float64 `mapstructure:"learning_rate"`
		MaxIter      int     `mapstructure:"max_iter"`
	} `mapstructure:"mlp"`

	IForest struct {
		Trees      int `mapstructure:"trees"`
		SampleSize int `mapstructure:"sample_size"`
	} `mapstructure:"iforest"`

	OCSVM struct {
		Nu    float64 `mapstructure:"nu"`
		Gamma float64 `mapstructure:"gamma"`
	} `mapstructure:"ocsvm"`

	Autoencoder struct {
		Epochs    int `mapstructure:"epochs"`
		BatchSize int `mapstructure:"batch_size"`
	} `mapstructure:"autoencoder"`

	Sequence struct {
		WindowLength int `mapstructure:"window_length"`
		Epochs       int `mapstructure:"epochs"`
		BatchSize    int `mapstructure:"batch_size"`
	} `mapstructure:"sequence"`

	Drift struct {
		Delta float64 `mapstructure:"delta"`
	} `mapstructure:"drift"`

	// UncertaintyThreshold feeds the active-learning triage: supervised
	// decisions within this distance of 0.5 are queued for human review.
	UncertaintyThreshold float64 `mapstructure:"uncertainty_threshold"`

	// Optional external stores. Empty means in-memory only.
	RedisAddr   string `mapstructure:"redis_addr"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// Load reads the configuration file at path. Environment variables prefixed
// with SENTRA_ override file values (SENTRA_MODEL_DIR, SENTRA_REDIS_ADDR, ...).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("sentra")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, &errs.ConfigError{Path: path, Err: err}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &errs.ConfigError{Path: path, Err: err}
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("model_dir", "models")
	v.SetDefault("data_dir", "data")
	v.SetDefault("log_level", "info")
	v.SetDefault("target_column", "label")
	v.SetDefault("exclude_columns", []string{})

	v.SetDefault("forest.estimators", 100)
	v.SetDefault("forest.max_depth", 10)
	v.SetDefault("boost.estimators", 100)
	v.SetDefault("boost.learning_rate", 0.1)
	v.SetDefault("boost.max_depth", 3)
	v.SetDefault("mlp.hidden_layers", []int{64, 32})
	v.SetDefault("mlp.learning_rate", 0.01)
	v.SetDefault("mlp.max_iter", 200)

	v.SetDefault("iforest.trees", 100)
	v.SetDefault("iforest.sample_size", 256)
	v.SetDefault("ocsvm.nu", 0.1)
	v.SetDefault("ocsvm.gamma", 0.0) // auto: 1/n_features

	v.SetDefault("autoencoder.epochs", 100)
	v.SetDefault("autoencoder.batch_size", 32)
	v.SetDefault("sequence.window_length", 10)
	v.SetDefault("sequence.epochs", 50)
	v.SetDefault("sequence.batch_size", 32)

	v.SetDefault("drift.delta", 0.002)
	v.SetDefault("uncertainty_threshold", 0.15)
}
