package status

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/trackwire/trackwire/internal/types"
)

// mappingFile is the on-disk shape of a status mapping file:
//
//	global:
//	  "To Do": open
//	  "Won't Fix": closed
//	contexts:
//	  PROJ-1:
//	    "Ready for QA": in_progress
type mappingFile struct {
	Global   map[string]string            `yaml:"global"`
	Contexts map[string]map[string]string `yaml:"contexts"`
}

// LoadFile reads a YAML status mapping file and builds a Mapper.
// Canonical targets are validated against the closed canonical set.
func LoadFile(path string) (*Mapper, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path comes from user config
	if err != nil {
		return nil, fmt.Errorf("reading status map: %w", err)
	}
	return Parse(data)
}

// Parse builds a Mapper from YAML mapping data.
func Parse(data []byte) (*Mapper, error) {
	var file mappingFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing status map: %w", err)
	}

	mappings := make(map[string]map[string]string, len(file.Contexts)+1)
	if len(file.Global) > 0 {
		if err := validateTargets(GlobalContext, file.Global); err != nil {
			return nil, err
		}
		mappings[GlobalContext] = file.Global
	}
	for ctx, table := range file.Contexts {
		if ctx == GlobalContext {
			return nil, fmt.Errorf("status map: empty context key; use the global section instead")
		}
		if err := validateTargets(ctx, table); err != nil {
			return nil, err
		}
		mappings[ctx] = table
	}

	return NewMapper(mappings), nil
}

func validateTargets(context string, table map[string]string) error {
	for native, canonical := range table {
		if !types.IsCanonical(types.Status(canonical)) {
			scope := "global"
			if context != GlobalContext {
				scope = fmt.Sprintf("context %q", context)
			}
			return fmt.Errorf("status map (%s): %q maps to %q, not a canonical status", scope, native, canonical)
		}
	}
	return nil
}
