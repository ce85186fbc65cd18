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
	"fmt"

	"github.com/kadirpekel/whatssound/pkg/payments"
	"github.com/kadirpekel/whatssound/pkg/server"
)

// FeesCmd quotes the platform fee for an amount using the configured
// payment policies, or the built-in ones without --config.
type FeesCmd struct {
	Amount int64  `required:"" help:"Amount in cents."`
	Kind   string `help:"Payment kind (tip, golden_boost)." default:"tip"`
	JSON   bool   `name:"json" help:"Print the quote as JSON."`
}

// Run executes the fees command.
func (c *FeesCmd) Run(cli *CLI) error {
	kind, err := payments.ParseKind(c.Kind)
	if err != nil {
		return err
	}

	cfg, loader, err := loadConfig(context.Background(), cli)
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}
	calc, err := cfg.Payments.Calculator()
	if err != nil {
		return err
	}

	quote, err := server.Quote(calc, c.Amount, kind)
	if err != nil {
		return err
	}

	out := cli.stdout()
	if c.JSON {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(quote)
	}

	fmt.Fprintf(out, "Kind:    %s\n", quote.Kind)
	fmt.Fprintf(out, "Amount:  %s\n", quote.Formatted.Amount)
	fmt.Fprintf(out, "Fee:     %s\n", quote.Formatted.Fee)
	fmt.Fprintf(out, "Net:     %s\n", quote.Formatted.Net)
	if quote.Valid {
		fmt.Fprintf(out, "Status:  valid\n")
	} else {
		fmt.Fprintf(out, "Status:  invalid (%s)\n", quote.Error)
	}
	return nil
}
