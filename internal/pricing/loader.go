package pricing

import (
	"crypto/sha256"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadCatalogFile reads and parses a YAML catalog file. It computes the
// SHA-256 checksum and records the source file path. Validation is a
// separate step; see Validator.
func LoadCatalogFile(path string) (CatalogDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return CatalogDefinition{}, fmt.Errorf("reading %s: %w", path, err)
	}

	var def CatalogDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return CatalogDefinition{}, fmt.Errorf("parsing %s: %w", path, err)
	}

	def.Checksum = fmt.Sprintf("%x", sha256.Sum256(data))
	def.SourceFile = path

	return def, nil
}
