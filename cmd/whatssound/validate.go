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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kadirpekel/whatssound/pkg/config"
)

// ValidateCmd validates a configuration file.
type ValidateCmd struct {
	// Config is the configuration file path (positional argument)
	Config string `arg:"" name:"config" help:"Configuration file path." type:"path" placeholder:"PATH"`

	Format string `short:"f" help:"Output format: compact, verbose, json." default:"compact" enum:"compact,verbose,json"`

	// PrintConfig prints the expanded configuration
	PrintConfig bool `short:"p" name:"print-config" help:"Print the expanded configuration (defaults applied, env vars resolved, secrets redacted)."`
}

// errInvalidConfig is returned after the failure has been printed.
var errInvalidConfig = errors.New("config validation failed")

// Run executes the validate command.
func (c *ValidateCmd) Run(cli *CLI) error {
	out := cli.stdout()

	cfg, loader, err := config.LoadConfigFile(context.Background(), c.Config)
	if err != nil {
		printLoadError(out, c.Format, c.Config, err)
		return errInvalidConfig
	}
	defer loader.Close()

	if c.PrintConfig {
		return printExpandedConfig(out, c.Format, c.Config, redact(cfg))
	}

	printSuccess(out, c.Format, c.Config)
	return nil
}

// ValidationError represents a single validation error.
type ValidationError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type jsonOutput struct {
	Valid  bool              `json:"valid"`
	File   string            `json:"file"`
	Errors []ValidationError `json:"errors,omitempty"`
}

func printLoadError(out io.Writer, format, file string, err error) {
	switch format {
	case "json":
		printJSONResult(out, false, file, []ValidationError{{Type: "load", Message: err.Error()}})
	case "verbose":
		fmt.Fprintf(out, "Configuration Load Error\n")
		fmt.Fprintf(out, "========================\n\n")
		fmt.Fprintf(out, "File:    %s\n", file)
		fmt.Fprintf(out, "Error:   %s\n", err.Error())
	default:
		fmt.Fprintf(out, "%s: load error: %s\n", file, err.Error())
	}
}

func printSuccess(out io.Writer, format, file string) {
	switch format {
	case "json":
		printJSONResult(out, true, file, nil)
	case "verbose":
		fmt.Fprintf(out, "Configuration Validation Successful\n")
		fmt.Fprintf(out, "==================================\n\n")
		fmt.Fprintf(out, "File:   %s\n", file)
		fmt.Fprintf(out, "Status: OK Valid\n")
	default:
		fmt.Fprintf(out, "%s: valid\n", file)
	}
}

func printExpandedConfig(out io.Writer, format, file string, cfg *config.Config) error {
	if format == "json" {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(cfg); err != nil {
			return fmt.Errorf("failed to encode config as JSON: %w", err)
		}
		return nil
	}

	fmt.Fprintf(out, "# Expanded Configuration from: %s\n", file)
	fmt.Fprintf(out, "# (defaults applied, env vars resolved)\n\n")

	encoder := yaml.NewEncoder(out)
	encoder.SetIndent(2)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config as YAML: %w", err)
	}
	return encoder.Close()
}

func printJSONResult(out io.Writer, valid bool, file string, errs []ValidationError) {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(jsonOutput{Valid: valid, File: file, Errors: errs}); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
	}
}

const redacted = "********"

// redact returns a copy of cfg with secrets masked.
func redact(cfg *config.Config) *config.Config {
	c := *cfg
	if c.Auth.JWTSecret != "" {
		c.Auth.JWTSecret = redacted
	}
	if c.Database != nil {
		db := *c.Database
		if db.Password != "" {
			db.Password = redacted
		}
		c.Database = &db
	}
	return &c
}
