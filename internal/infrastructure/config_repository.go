package infrastructure

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Francouer/proto-watch/internal/domain"
	"gopkg.in/yaml.v3"
)

type ConfigRepositoryImpl struct {
	logger   domain.Logger
	fileRepo domain.FileRepository
}

// NewConfigRepository creates a repository reading .proto-watch.yaml files
func NewConfigRepository(logger domain.Logger, fileRepo domain.FileRepository) domain.ConfigRepository {
	return &ConfigRepositoryImpl{
		logger:   logger,
		fileRepo: fileRepo,
	}
}

// Load overlays the YAML file at path onto base. Keys absent from the file
// keep their base value. A missing file returns base unchanged. A relative
// project_dir set in the file is resolved against the file's directory.
func (r *ConfigRepositoryImpl) Load(path string, base domain.CompilerConfig) (domain.CompilerConfig, error) {
	if path == "" || !r.fileRepo.FileExists(path) {
		r.logger.Debug("No config file at %s, using defaults", path)
		return base, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("failed to read config file: %w", err)
	}

	config := base
	if err := yaml.Unmarshal(data, &config); err != nil {
		return base, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	var keys struct {
		ProjectDir *string `yaml:"project_dir"`
	}
	if err := yaml.Unmarshal(data, &keys); err != nil {
		return base, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if keys.ProjectDir != nil && !filepath.IsAbs(config.ProjectDir) {
		config.ProjectDir = filepath.Join(filepath.Dir(path), config.ProjectDir)
	}

	r.logger.Debug("Loaded configuration from %s", path)
	return config, nil
}
