package plan

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	sprenerrors "github.com/stevehiehn/spren/internal/errors"
)

// LoadFile reads a saved plan or a captured model response from disk.
func LoadFile(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan file: %w", err)
	}
	return Load(data)
}

// Load parses a plan from data. The JSON extractor runs first so raw model
// output works; anything else is parsed as YAML. The result is not
// validated.
func Load(data []byte) (*Plan, error) {
	obj, extractErr := Extract(string(data))
	if extractErr == nil {
		return Decode(obj)
	}

	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil || (p.Version == "" && len(p.Steps) == 0) {
		if strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
			return nil, extractErr
		}
		if err != nil {
			return nil, sprenerrors.NewValidationError(fmt.Sprintf("parsing YAML: %v", err), "")
		}
		return nil, sprenerrors.NewValidationError("no plan found: expected a version and steps", "")
	}
	return &p, nil
}

// Decode unmarshals a plan object. Type mismatches are reported as
// validation errors.
func Decode(obj string) (*Plan, error) {
	var p Plan
	if err := json.Unmarshal([]byte(obj), &p); err != nil {
		return nil, sprenerrors.NewValidationError(fmt.Sprintf("malformed plan: %v", err), "")
	}
	return &p, nil
}
