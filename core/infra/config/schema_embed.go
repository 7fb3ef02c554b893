package config

import _ "embed"

//go:embed schema/strategy.schema.json
var strategySchemaJSON []byte
