package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/sprookie/aigdb/internal/adapters/llm/openai"
	tomlrepo "github.com/sprookie/aigdb/internal/adapters/repo/toml"
	"github.com/sprookie/aigdb/internal/gdb"
	"github.com/sprookie/aigdb/internal/ports"
)

const (
	defaultCommandTimeout = 5 * time.Second
	defaultAnalyzeBudget  = 2 * time.Minute
)

type app struct {
	targets        ports.TargetRepository
	model          ports.ChatModel // nil when no API key is configured
	gdbPath        string
	commandTimeout time.Duration
	analyzeBudget  time.Duration
}

func wireApp() (*app, error) {
	targets, err := tomlrepo.NewRepository(viper.New())
	if err != nil {
		return nil, fmt.Errorf("wire target repository: %w", err)
	}

	a := &app{
		targets:        targets,
		gdbPath:        envOrDefault("AIGDB_GDB_PATH", "gdb"),
		commandTimeout: envDuration("AIGDB_COMMAND_TIMEOUT", defaultCommandTimeout),
		analyzeBudget:  envDuration("AIGDB_ANALYZE_BUDGET", defaultAnalyzeBudget),
	}

	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		client := openai.NewClient(apiKey)
		client.BaseURL = envOrDefault("AIGDB_BASE_URL", openai.DefaultBaseURL)
		client.Model = envOrDefault("AIGDB_MODEL", openai.DefaultModel)
		a.model = client
	}

	return a, nil
}

func (a *app) newController(diag func(string)) *gdb.Controller {
	opts := []gdb.Option{
		gdb.WithGDBPath(a.gdbPath),
		gdb.WithCommandTimeout(a.commandTimeout),
	}
	if diag != nil {
		opts = append(opts, gdb.WithDiag(diag))
	}
	return gdb.NewController(opts...)
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
