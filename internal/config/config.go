// Package config loads the matcher configuration from config.yaml, MATCH_*
// environment variables and defaults.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix prefixes every environment override (MATCH_JUDGE_MODEL, ...).
const EnvPrefix = "MATCH"

// Config holds the full application configuration.
type Config struct {
	Source    SourceConfig    `yaml:"source" mapstructure:"source"`
	Target    TargetConfig    `yaml:"target" mapstructure:"target"`
	Match     MatchConfig     `yaml:"match" mapstructure:"match"`
	Judge     JudgeConfig     `yaml:"judge" mapstructure:"judge"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI    OpenAIConfig    `yaml:"openai" mapstructure:"openai"`
	Output    OutputConfig    `yaml:"output" mapstructure:"output"`
	Encoding  EncodingConfig  `yaml:"encoding" mapstructure:"encoding"`
	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`
	Run       RunConfig       `yaml:"run" mapstructure:"run"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// SourceConfig describes the table of companies to reconcile.
type SourceConfig struct {
	Path     string `yaml:"path" mapstructure:"path"`
	IDColumn string `yaml:"id_column" mapstructure:"id_column"`
	// NameColumns is a pipe-delimited fallback list, first present wins.
	NameColumns string `yaml:"name_columns" mapstructure:"name_columns"`
}

// TargetConfig describes the reference table of known company names.
type TargetConfig struct {
	Path       string `yaml:"path" mapstructure:"path"`
	NameColumn string `yaml:"name_column" mapstructure:"name_column"`
}

// MatchConfig tunes the fuzzy stage.
type MatchConfig struct {
	Threshold   float64  `yaml:"threshold" mapstructure:"threshold"`
	CommonTerms []string `yaml:"common_terms" mapstructure:"common_terms"`
}

// JudgeConfig configures the LLM adjudication stage.
type JudgeConfig struct {
	Provider    string        `yaml:"provider" mapstructure:"provider"`
	Model       string        `yaml:"model" mapstructure:"model"`
	Prompt      string        `yaml:"prompt" mapstructure:"prompt"`
	PromptFile  string        `yaml:"prompt_file" mapstructure:"prompt_file"`
	BatchSizes  []int         `yaml:"batch_sizes" mapstructure:"batch_sizes"`
	Pause       time.Duration `yaml:"pause" mapstructure:"pause"`
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64       `yaml:"temperature" mapstructure:"temperature"`
}

// AnthropicConfig holds Anthropic credentials.
type AnthropicConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// OpenAIConfig holds credentials for an OpenAI-compatible endpoint.
type OpenAIConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// OutputConfig names the files the stages write.
type OutputConfig struct {
	FuzzyPath  string `yaml:"fuzzy_path" mapstructure:"fuzzy_path"`
	LedgerPath string `yaml:"ledger_path" mapstructure:"ledger_path"`
}

// EncodingConfig names the fallback charset for input files that are not
// valid UTF-8.
type EncodingConfig struct {
	Legacy string `yaml:"legacy" mapstructure:"legacy"`
}

// RetryConfig bounds retries of transient judge failures.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// RunConfig selects which stages `run` executes.
type RunConfig struct {
	Fuzzy bool `yaml:"fuzzy" mapstructure:"fuzzy"`
	AI    bool `yaml:"ai" mapstructure:"ai"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment. An empty path looks
// for config.yaml in the working directory and tolerates its absence; an
// explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Every key gets one so AutomaticEnv can see it.
	v.SetDefault("source.path", "")
	v.SetDefault("source.id_column", "id")
	v.SetDefault("source.name_columns", "name")
	v.SetDefault("target.path", "")
	v.SetDefault("target.name_column", "name")
	v.SetDefault("match.threshold", 50)
	v.SetDefault("match.common_terms", []string{})
	v.SetDefault("judge.provider", "anthropic")
	v.SetDefault("judge.model", "claude-haiku-4-5-20251001")
	v.SetDefault("judge.prompt", "")
	v.SetDefault("judge.prompt_file", "")
	v.SetDefault("judge.batch_sizes", []int{10, 5, 1})
	v.SetDefault("judge.pause", "6s")
	v.SetDefault("judge.max_tokens", 4096)
	v.SetDefault("judge.temperature", 0.1)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("openai.key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("output.fuzzy_path", "fuzzy_output.csv")
	v.SetDefault("output.ledger_path", "match_status.csv")
	v.SetDefault("encoding.legacy", "latin1")
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 1000)
	v.SetDefault("retry.max_backoff_ms", 30000)
	v.SetDefault("run.fuzzy", true)
	v.SetDefault("run.ai", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional unless named)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. mode is "fuzzy",
// "adjudicate" or "run"; "run" checks whichever stages run.fuzzy and run.ai
// enable.
func (c *Config) Validate(mode string) error {
	var fuzzy, ai bool
	switch mode {
	case "fuzzy":
		fuzzy = true
	case "adjudicate":
		ai = true
	case "run":
		fuzzy, ai = c.Run.Fuzzy, c.Run.AI
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	var problems []string
	if c.Output.FuzzyPath == "" {
		problems = append(problems, "output.fuzzy_path is required")
	}

	if fuzzy {
		if c.Source.Path == "" {
			problems = append(problems, "source.path is required")
		}
		if c.Source.IDColumn == "" {
			problems = append(problems, "source.id_column is required")
		}
		if strings.Trim(c.Source.NameColumns, "| ") == "" {
			problems = append(problems, "source.name_columns is required")
		}
		if c.Target.Path == "" {
			problems = append(problems, "target.path is required")
		}
		if c.Target.NameColumn == "" {
			problems = append(problems, "target.name_column is required")
		}
		if c.Match.Threshold < 0 || c.Match.Threshold > 100 {
			problems = append(problems, "match.threshold must be between 0 and 100")
		}
	}

	if ai {
		if c.Output.LedgerPath == "" {
			problems = append(problems, "output.ledger_path is required")
		}
		if len(c.Judge.BatchSizes) == 0 {
			problems = append(problems, "judge.batch_sizes must not be empty")
		}
		for _, size := range c.Judge.BatchSizes {
			if size <= 0 {
				problems = append(problems, "judge.batch_sizes must be positive")
				break
			}
		}
		if c.Judge.Model == "" {
			problems = append(problems, "judge.model is required")
		}
		if c.Judge.MaxTokens <= 0 {
			problems = append(problems, "judge.max_tokens must be > 0")
		}
		// An empty provider selects anthropic, as the judge factory does.
		switch strings.ToLower(c.Judge.Provider) {
		case "anthropic", "":
			if c.Anthropic.Key == "" {
				problems = append(problems, "anthropic.key is required")
			}
		case "openai":
			if c.OpenAI.Key == "" && c.OpenAI.BaseURL == "" {
				problems = append(problems, "openai.key is required")
			}
		default:
			problems = append(problems, "judge.provider must be anthropic or openai")
		}
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Masked returns a copy with credentials replaced, for printing.
func (c *Config) Masked() Config {
	out := *c
	out.Anthropic.Key = mask(c.Anthropic.Key)
	out.OpenAI.Key = mask(c.OpenAI.Key)
	return out
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "****"
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
