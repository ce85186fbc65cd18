// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/kadirpekel/whatssound/pkg/config"
)

// SchemaCmd generates JSON Schema from the config structs.
// Output is written to stdout so it can be redirected.
type SchemaCmd struct {
	Compact bool `help:"Compact JSON output (no indentation)."`
}

// Run executes the schema generation command.
func (c *SchemaCmd) Run(cli *CLI) error {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		// Inline all definitions (no $ref)
		DoNotReference: true,
	}

	schema := reflector.Reflect(&config.Config{})
	schema.ID = "https://whatssound.app/schemas/config.json"
	schema.Title = "WhatsSound Configuration Schema"
	schema.Description = "Configuration schema for the WhatsSound throttle and payment API"
	schema.Version = "http://json-schema.org/draft-07/schema#"
	schema.Examples = []any{
		map[string]any{
			"name": "whatssound",
			"server": map[string]any{
				"port": 8080,
			},
			"auth": map[string]any{
				"enabled":    true,
				"jwt_secret": "${SUPABASE_JWT_SECRET}",
			},
			"throttle": map[string]any{
				"categories": map[string]any{
					"login": map[string]any{"max_requests": 5, "window": "1m"},
				},
			},
			"payments": map[string]any{
				"currency": "EUR",
				"store":    "memory",
			},
		},
	}

	encoder := json.NewEncoder(cli.stdout())
	if !c.Compact {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(schema); err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}
	return nil
}
