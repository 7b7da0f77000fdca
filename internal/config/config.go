package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	DefaultFile = "config.json"
	DotEnvFile  = ".env"
)

type Config struct {
	GigaChatUser     string        `env:"GIGACHAT_USER"`
	GigaChatPassword string        `env:"GIGACHAT_PASSWORD"`
	GigaChatBaseURL  string        `env:"GIGACHAT_BASE_URL" envDefault:"https://beta.saluteai.sberdevices.ru/v1"`
	LLMAPIKey        string        `env:"LLM_API_KEY"`
	LLMTimeout       time.Duration `env:"LLM_TIMEOUT"       envDefault:"100m"`
	LLMMaxRetries    int           `env:"LLM_MAX_RETRIES"   envDefault:"3"`
	LLMMinInterval   time.Duration `env:"LLM_MIN_INTERVAL"  envDefault:"0s"`
	OpenAIAPIKey     string        `env:"OPENAI_API_KEY"`
	JudgeModel       string        `env:"JUDGE_MODEL"       envDefault:"gpt-4"`
	OutputDir        string        `env:"OUTPUT_DIR"        envDefault:"."`
	PromptsDir       string        `env:"PROMPTS_DIR"`
	MapConcurrency   int           `env:"MAP_CONCURRENCY"   envDefault:"1"`
	LogLevel         string        `env:"LOG_LEVEL"         envDefault:"info"`
}

// Load resolves the configuration: environment variables (including those
// from .env) win over values from the JSON file at path, which win over the
// defaults. A missing .env or JSON file is not an error.
func Load(path string) (Config, error) {
	if err := godotenv.Load(DotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", DotEnvFile, err)
	}

	fileValues, err := readFile(path)
	if err != nil {
		return Config{}, err
	}

	environment := fileValues
	for k, v := range env.ToMap(os.Environ()) {
		environment[k] = v
	}

	var cfg Config
	if err = env.ParseWithOptions(&cfg, env.Options{Environment: environment}); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if err = cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.GigaChatBaseURL) == "" {
		errs = append(errs, errors.New("GIGACHAT_BASE_URL must not be empty"))
	}
	if c.LLMTimeout <= 0 {
		errs = append(errs, fmt.Errorf("LLM_TIMEOUT must be positive, got %s", c.LLMTimeout))
	}
	if c.LLMMaxRetries < 0 {
		errs = append(errs, fmt.Errorf("LLM_MAX_RETRIES must not be negative, got %d", c.LLMMaxRetries))
	}
	if c.LLMMinInterval < 0 {
		errs = append(errs, fmt.Errorf("LLM_MIN_INTERVAL must not be negative, got %s", c.LLMMinInterval))
	}
	if c.MapConcurrency < 1 {
		errs = append(errs, fmt.Errorf("MAP_CONCURRENCY must be at least 1, got %d", c.MapConcurrency))
	}
	if (c.GigaChatUser == "") != (c.GigaChatPassword == "") {
		errs = append(errs, errors.New("GIGACHAT_USER and GIGACHAT_PASSWORD must be set together"))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	return nil
}

func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	return level, nil
}

// readFile reads a flat JSON object whose keys are the environment variable
// names. Durations are given as strings ("90s"), numbers and booleans as is.
func readFile(path string) (map[string]string, error) {
	values := make(map[string]string)
	if path == "" {
		return values, nil
	}

	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return values, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	decoder := json.NewDecoder(bytes.NewReader(b))
	decoder.UseNumber()

	var raw map[string]any
	if err = decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode config file %s: %w", path, err)
	}

	for key, value := range raw {
		switch v := value.(type) {
		case nil:
			continue
		case string:
			values[key] = v
		case json.Number:
			values[key] = v.String()
		case bool:
			values[key] = strconv.FormatBool(v)
		default:
			return nil, fmt.Errorf("config file %s: %s must be a string, number or boolean", path, key)
		}
	}

	return values, nil
}
