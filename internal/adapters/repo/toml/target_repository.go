// Package toml persists the debug targets a user has loaded, keyed by
// executable/core path pair, in a TOML file under the user's home
// directory. Writes go through a temp file and rename so a crash never
// leaves a half-written file behind.
package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/sprookie/aigdb/internal/domain"
	"github.com/sprookie/aigdb/internal/ports"
)

const (
	configName        = "config"
	configType        = "toml"
	targetsPathKey    = "targets.path"
	targetsFileMode   = 0o600
	targetsDirMode    = 0o700
	targetsConfigDir  = ".aigdb"
	targetsConfigFile = "targets.toml"
	tempFilePattern   = ".targets-*.toml.tmp"

	maxRecordedTargets = 20
)

type Repository struct {
	targetsPath string
	mu          *sync.RWMutex
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var _ ports.TargetRepository = (*Repository)(nil)

func NewRepository(cfg *viper.Viper) (*Repository, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	defaultPath := filepath.Join(homeDir, targetsConfigDir, targetsConfigFile)

	cfg.SetConfigName(configName)
	cfg.SetConfigType(configType)
	cfg.AddConfigPath(filepath.Join(homeDir, targetsConfigDir))
	cfg.SetDefault(targetsPathKey, defaultPath)

	err = cfg.ReadInConfig()
	if err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	targetsPath := cfg.GetString(targetsPathKey)
	if targetsPath == "" {
		return nil, errors.New("targets path is empty")
	}
	targetsPath, err = normalizeTargetsPath(targetsPath)
	if err != nil {
		return nil, err
	}

	return &Repository{targetsPath: targetsPath, mu: lockForPath(targetsPath)}, nil
}

// List returns recorded targets, most recently loaded first.
func (r *Repository) List(ctx context.Context) ([]domain.Target, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return nil, err
	}
	file.applyDefaults()

	targets := make([]domain.Target, 0, len(file.Targets))
	for _, entry := range file.Targets {
		targets = append(targets, fromSchema(entry))
	}

	return targets, nil
}

// Record upserts a target at the head of the list. An existing entry
// with the same executable/core pair moves to the head instead of
// duplicating.
func (r *Repository) Record(ctx context.Context, target domain.Target) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if target.ExecutablePath == "" {
		return errors.New("target executable path is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := r.readSchema()
	if err != nil {
		return err
	}
	file.applyDefaults()

	encoded := toSchema(target)
	kept := make([]targetSchema, 0, len(file.Targets)+1)
	kept = append(kept, encoded)
	for _, entry := range file.Targets {
		if entry.Executable == encoded.Executable && entry.Core == encoded.Core {
			continue
		}
		kept = append(kept, entry)
	}
	if len(kept) > maxRecordedTargets {
		kept = kept[:maxRecordedTargets]
	}
	file.Targets = kept

	if err := ctx.Err(); err != nil {
		return err
	}

	return r.writeSchema(file)
}

func (r *Repository) readSchema() (fileSchema, error) {
	data, err := os.ReadFile(r.targetsPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fileSchema{}, nil
		}
		return fileSchema{}, fmt.Errorf("read targets file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return fileSchema{}, fmt.Errorf("decode targets file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return fileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func (r *Repository) writeSchema(file fileSchema) error {
	file.applyDefaults()

	if err := os.MkdirAll(filepath.Dir(r.targetsPath), targetsDirMode); err != nil {
		return fmt.Errorf("create targets directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode targets file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(r.targetsPath), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp targets file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp targets file: %w", err)
	}

	if err := tempFile.Chmod(targetsFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp targets file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp targets file: %w", err)
	}

	if err := os.Rename(tempName, r.targetsPath); err != nil {
		return fmt.Errorf("replace targets file: %w", err)
	}

	cleanup = false

	if err := os.Chmod(r.targetsPath, targetsFileMode); err != nil {
		return fmt.Errorf("chmod targets file: %w", err)
	}

	return nil
}

func normalizeTargetsPath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve targets path: %w", err)
	}

	return filepath.Clean(absPath), nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}
