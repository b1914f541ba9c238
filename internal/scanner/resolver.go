package scanner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/blocksmith-dev/blocksmith/internal/models"
	"gopkg.in/yaml.v3"
)

// ConfigFileName is the declarative configuration file looked for in every
// resource directory.
const ConfigFileName = "blocksmith.config.yaml"

// PackageFileName is the package metadata file marking a resource directory.
const PackageFileName = "package.json"

// ConfigResolver turns a resource directory into structured configuration.
// Returning (nil, nil) means the resource has no configuration file; the
// resolution mechanism behind this contract is pluggable.
type ConfigResolver interface {
	Resolve(resourceDir string) (*models.ResourceConfig, error)
}

// YAMLResolver is the shipped resolver: a static parse of the resource's
// configuration file.
type YAMLResolver struct{}

// Resolve reads and parses the configuration file in resourceDir.
func (YAMLResolver) Resolve(resourceDir string) (*models.ResourceConfig, error) {
	data, err := os.ReadFile(filepath.Join(resourceDir, ConfigFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", ConfigFileName, err)
	}

	var cfg models.ResourceConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", ConfigFileName, err)
	}
	return &cfg, nil
}

// PackageMetadata is the subset of package.json the scanner reads. Legacy
// projects embedded resource configuration under the "blocksmith" key; its
// presence triggers a migration warning.
type PackageMetadata struct {
	Name        string                 `json:"name"`
	Version     string                 `json:"version"`
	Description string                 `json:"description"`
	Legacy      map[string]interface{} `json:"blocksmith"`
}

// readPackageMetadata parses package.json from a resource directory. A
// missing file returns (nil, nil).
func readPackageMetadata(resourceDir string) (*PackageMetadata, error) {
	data, err := os.ReadFile(filepath.Join(resourceDir, PackageFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", PackageFileName, err)
	}

	var meta PackageMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", PackageFileName, err)
	}
	return &meta, nil
}
