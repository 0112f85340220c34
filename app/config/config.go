package config

import "time"

type Config struct {
	Server   HTTPServerConfig `json:"server"`
	LLM      LLMConfig        `json:"llm"`
	Compiler CompilerConfig   `json:"compiler"`
	Mongo    MongoConfig      `json:"mongo"`
	Log      LogConfig        `json:"log"`
}

type HTTPServerConfig struct {
	Host         string        `json:"host" default:"0.0.0.0"`
	Port         int           `json:"port" default:"5000"`
	ReadTimeout  time.Duration `json:"read_timeout" default:"30s"`
	WriteTimeout time.Duration `json:"write_timeout" default:"5m"`
	CORSOrigins  []string      `json:"cors_origins" default:"*"`
	MetricsAddr  string        `json:"metrics_addr"`
}

// LLMConfig leaves APIKey empty by default; generation is then disabled
// while the rest of the service keeps working.
type LLMConfig struct {
	APIKey      string        `json:"api_key"`
	BaseURL     string        `json:"base_url" default:"https://api.openai.com/v1"`
	Model       string        `json:"model" default:"gpt-4"`
	MaxTokens   int           `json:"max_tokens" default:"2000"`
	Temperature float32       `json:"temperature" default:"0.7"`
	Timeout     time.Duration `json:"timeout" default:"2m"`
}

type CompilerConfig struct {
	ProjectDir string        `json:"project_dir"`
	WorkDir    string        `json:"work_dir" default:"./compile-workspaces"`
	Command    []string      `json:"command" default:"npx hardhat compile --force"`
	Timeout    time.Duration `json:"timeout" default:"2m"`
	Workers    int           `json:"workers" default:"2"`
}

// MongoConfig is optional; an empty URI disables the contract catalogue.
type MongoConfig struct {
	URI      string `json:"uri"`
	Database string `json:"database" default:"contractforge"`
}

type LogConfig struct {
	Level string `json:"level" default:"info"`
}
