package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/filedepot/filedepot/core/infra/schema"
)

// validateStrategySchema checks a strategy YAML document against the embedded
// JSON schema before field-level parsing sees it.
func validateStrategySchema(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	var payload any
	if err := yaml.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("parse strategy config: %w", err)
	}
	if err := schema.ValidateSchema("strategy-config", strategySchemaJSON, payload); err != nil {
		return fmt.Errorf("validate strategy config: %w", err)
	}
	return nil
}
