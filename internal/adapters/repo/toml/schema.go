package toml

import (
	"fmt"
	"time"

	"github.com/sprookie/aigdb/internal/domain"
)

const currentSchemaVersion = 1

type fileSchema struct {
	Version int            `toml:"version"`
	Targets []targetSchema `toml:"targets"`
}

type targetSchema struct {
	Executable   string `toml:"executable"`
	Core         string `toml:"core"`
	LastLoadedAt string `toml:"last_loaded_at"`
}

func (f *fileSchema) applyDefaults() {
	if f.Version == 0 {
		f.Version = currentSchemaVersion
	}
	if f.Targets == nil {
		f.Targets = []targetSchema{}
	}
}

func (f fileSchema) validateVersion() error {
	if f.Version != 0 && f.Version != currentSchemaVersion {
		return fmt.Errorf("unsupported targets file version %d", f.Version)
	}
	return nil
}

func toSchema(target domain.Target) targetSchema {
	return targetSchema{
		Executable:   target.ExecutablePath,
		Core:         target.CorePath,
		LastLoadedAt: formatTime(target.LastLoadedAt),
	}
}

func fromSchema(entry targetSchema) domain.Target {
	return domain.Target{
		ExecutablePath: entry.Executable,
		CorePath:       entry.Core,
		LastLoadedAt:   parseTime(entry.LastLoadedAt),
	}
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}

	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}

	return parsed
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}

	return value.Format(time.RFC3339)
}
