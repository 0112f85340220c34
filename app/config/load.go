package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/joho/godotenv"

	"contractforge/internal/infrastructure/compiler"
)

func Default() *Config {
	return &Config{
		Server: HTTPServerConfig{
			Host:         "0.0.0.0",
			Port:         5000,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 5 * time.Minute,
			CORSOrigins:  []string{"*"},
		},
		LLM: LLMConfig{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4",
			MaxTokens:   2000,
			Temperature: 0.7,
			Timeout:     2 * time.Minute,
		},
		Compiler: CompilerConfig{
			WorkDir: "./compile-workspaces",
			Command: append([]string(nil), compiler.DefaultCommand...),
			Timeout: 2 * time.Minute,
			Workers: 2,
		},
		Mongo: MongoConfig{
			Database: "contractforge",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load resolves configuration: defaults, then the HCL file named by
// CONFIG_FILE, then .env, then the process environment.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := ApplyFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

type fileConfig struct {
	Server   *fileServer   `hcl:"server,block"`
	LLM      *fileLLM      `hcl:"llm,block"`
	Compiler *fileCompiler `hcl:"compiler,block"`
	Mongo    *fileMongo    `hcl:"mongo,block"`
	LogLevel *string       `hcl:"log_level,optional"`
}

type fileServer struct {
	Host         *string  `hcl:"host,optional"`
	Port         *int     `hcl:"port,optional"`
	ReadTimeout  *string  `hcl:"read_timeout,optional"`
	WriteTimeout *string  `hcl:"write_timeout,optional"`
	CORSOrigins  []string `hcl:"cors_origins,optional"`
	MetricsAddr  *string  `hcl:"metrics_addr,optional"`
}

type fileLLM struct {
	APIKey      *string  `hcl:"api_key,optional"`
	BaseURL     *string  `hcl:"base_url,optional"`
	Model       *string  `hcl:"model,optional"`
	MaxTokens   *int     `hcl:"max_tokens,optional"`
	Temperature *float64 `hcl:"temperature,optional"`
	Timeout     *string  `hcl:"timeout,optional"`
}

type fileCompiler struct {
	ProjectDir *string  `hcl:"project_dir,optional"`
	WorkDir    *string  `hcl:"work_dir,optional"`
	Command    []string `hcl:"command,optional"`
	Timeout    *string  `hcl:"timeout,optional"`
	Workers    *int     `hcl:"workers,optional"`
}

type fileMongo struct {
	URI      *string `hcl:"uri,optional"`
	Database *string `hcl:"database,optional"`
}

// ApplyFile overlays the settings present in an HCL file onto cfg.
func ApplyFile(cfg *Config, path string) error {
	var fc fileConfig
	if err := hclsimple.DecodeFile(path, nil, &fc); err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}

	if s := fc.Server; s != nil {
		setString(&cfg.Server.Host, s.Host)
		setInt(&cfg.Server.Port, s.Port)
		if err := setDuration(&cfg.Server.ReadTimeout, s.ReadTimeout); err != nil {
			return fmt.Errorf("server.read_timeout: %w", err)
		}
		if err := setDuration(&cfg.Server.WriteTimeout, s.WriteTimeout); err != nil {
			return fmt.Errorf("server.write_timeout: %w", err)
		}
		if len(s.CORSOrigins) > 0 {
			cfg.Server.CORSOrigins = s.CORSOrigins
		}
		setString(&cfg.Server.MetricsAddr, s.MetricsAddr)
	}
	if l := fc.LLM; l != nil {
		setString(&cfg.LLM.APIKey, l.APIKey)
		setString(&cfg.LLM.BaseURL, l.BaseURL)
		setString(&cfg.LLM.Model, l.Model)
		setInt(&cfg.LLM.MaxTokens, l.MaxTokens)
		if l.Temperature != nil {
			cfg.LLM.Temperature = float32(*l.Temperature)
		}
		if err := setDuration(&cfg.LLM.Timeout, l.Timeout); err != nil {
			return fmt.Errorf("llm.timeout: %w", err)
		}
	}
	if c := fc.Compiler; c != nil {
		setString(&cfg.Compiler.ProjectDir, c.ProjectDir)
		setString(&cfg.Compiler.WorkDir, c.WorkDir)
		if len(c.Command) > 0 {
			cfg.Compiler.Command = c.Command
		}
		if err := setDuration(&cfg.Compiler.Timeout, c.Timeout); err != nil {
			return fmt.Errorf("compiler.timeout: %w", err)
		}
		setInt(&cfg.Compiler.Workers, c.Workers)
	}
	if m := fc.Mongo; m != nil {
		setString(&cfg.Mongo.URI, m.URI)
		setString(&cfg.Mongo.Database, m.Database)
	}
	setString(&cfg.Log.Level, fc.LogLevel)
	return nil
}

// ApplyEnv overlays environment variables onto cfg.
func ApplyEnv(cfg *Config) error {
	cfg.Server.Host = getEnv("SERVER_HOST", cfg.Server.Host)
	cfg.Server.MetricsAddr = getEnv("METRICS_ADDR", cfg.Server.MetricsAddr)
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = splitList(v)
	}

	cfg.LLM.APIKey = getEnv("OPENAI_API_KEY", cfg.LLM.APIKey)
	cfg.LLM.BaseURL = getEnv("OPENAI_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.Model = getEnv("OPENAI_MODEL", cfg.LLM.Model)

	cfg.Compiler.ProjectDir = getEnv("COMPILER_PROJECT_DIR", cfg.Compiler.ProjectDir)
	cfg.Compiler.WorkDir = getEnv("COMPILER_WORK_DIR", cfg.Compiler.WorkDir)
	if v := strings.Fields(os.Getenv("COMPILER_COMMAND")); len(v) > 0 {
		cfg.Compiler.Command = v
	}

	cfg.Mongo.URI = getEnv("MONGO_URI", cfg.Mongo.URI)
	cfg.Mongo.Database = getEnv("MONGO_DB", cfg.Mongo.Database)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)

	var err error
	if cfg.Server.Port, err = getEnvInt("PORT", cfg.Server.Port); err != nil {
		return err
	}
	if cfg.Compiler.Workers, err = getEnvInt("COMPILER_WORKERS", cfg.Compiler.Workers); err != nil {
		return err
	}
	if cfg.LLM.Timeout, err = getEnvDuration("OPENAI_TIMEOUT", cfg.LLM.Timeout); err != nil {
		return err
	}
	if cfg.Compiler.Timeout, err = getEnvDuration("COMPILER_TIMEOUT", cfg.Compiler.Timeout); err != nil {
		return err
	}
	return cfg.Validate()
}

func (c *Config) Validate() error {
	if len(c.Compiler.Command) == 0 {
		return errors.New("compiler command is empty")
	}
	if c.Compiler.Workers <= 0 {
		return fmt.Errorf("compiler workers must be positive, got %d", c.Compiler.Workers)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimRight(strings.TrimSpace(part), "/")
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *string) error {
	if v == nil {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
