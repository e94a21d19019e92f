package config

import "time"

// Config is the root application configuration. Values load from
// defaults first, then CONMON_* environment variables.
type Config struct {
	Log          LogConfig          `koanf:"log"`
	Store        StoreConfig        `koanf:"store"`
	Postgres     PostgresConfig     `koanf:"postgres"`
	LLM          LLMConfig          `koanf:"llm"`
	Generator    GeneratorConfig    `koanf:"generator"`
	Orchestrator OrchestratorConfig `koanf:"orchestrator"`
	Sandbox      SandboxConfig      `koanf:"sandbox"`
}

type LogConfig struct {
	Level string `koanf:"level" validate:"omitempty,oneof=debug info warn error"`
	JSON  bool   `koanf:"json"`
}

// StoreConfig selects the persistence backend. The relational and CSV
// adapters expose the same dispatcher surface, so the rest of the
// engine is agnostic to the choice.
type StoreConfig struct {
	Driver string `koanf:"driver" validate:"oneof=postgres csv"`
	CSVDir string `koanf:"csv_dir"`
}

type PostgresConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"gt=0,lte=65535"`
	User            string        `koanf:"user"`
	Password        string        `koanf:"password"`
	DBName          string        `koanf:"db_name"`
	SSLMode         string        `koanf:"ssl_mode"`
	MaxConns        int           `koanf:"max_conns" validate:"gte=1"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
	MigrationsTable string        `koanf:"migrations_table"`
}

type LLMConfig struct {
	Provider    string        `koanf:"provider" validate:"oneof=openai anthropic google ollama"`
	Model       string        `koanf:"model"`
	APIKey      string        `koanf:"api_key"`
	BaseURL     string        `koanf:"base_url"`
	Timeout     time.Duration `koanf:"timeout" validate:"gt=0"`
	MaxTokens   int           `koanf:"max_tokens" validate:"gt=0"`
	Temperature float64       `koanf:"temperature" validate:"gte=0,lte=2"`
	MaxRetries  int           `koanf:"max_retries" validate:"gte=0"`
}

type GeneratorConfig struct {
	MaxAttempts    int `koanf:"max_attempts" validate:"gte=1"`
	FieldPathDepth int `koanf:"field_path_depth" validate:"gte=1,lte=8"`
	SamplePaths    int `koanf:"sample_paths" validate:"gte=1"`
}

type OrchestratorConfig struct {
	Workers       int    `koanf:"workers" validate:"gte=1"`
	StatusLogPath string `koanf:"status_log_path"`
	CaptureDir    string `koanf:"capture_dir"`
}

type SandboxConfig struct {
	CostLimit uint64        `koanf:"cost_limit" validate:"gt=0"`
	Timeout   time.Duration `koanf:"timeout" validate:"gt=0"`
}

// Default returns the built-in configuration; every Load starts here.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Store: StoreConfig{
			Driver: "csv",
			CSVDir: ".conmon/tables",
		},
		Postgres: PostgresConfig{
			Host:           "localhost",
			Port:           5432,
			User:           "conmon",
			DBName:         "conmon",
			SSLMode:        "disable",
			MaxConns:       10,
			ConnectTimeout: 5 * time.Second,
		},
		LLM: LLMConfig{
			Provider:    "anthropic",
			Model:       "claude-sonnet-4-20250514",
			Timeout:     120 * time.Second,
			MaxTokens:   4096,
			Temperature: 0.2,
			MaxRetries:  3,
		},
		Generator: GeneratorConfig{
			MaxAttempts:    2,
			FieldPathDepth: 4,
			SamplePaths:    40,
		},
		Orchestrator: OrchestratorConfig{
			Workers:       4,
			StatusLogPath: ".conmon/status_log.csv",
			CaptureDir:    ".conmon/captures",
		},
		Sandbox: SandboxConfig{
			CostLimit: 1_000_000,
			Timeout:   2 * time.Second,
		},
	}
}
