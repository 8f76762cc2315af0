// Copyright 2025 Philipp Hossner
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
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"image-pipeline/pkg/manifest"
)

var validateTemplateDir string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate an extracted template directory offline",
	Long: `Validate an extracted template directory offline.

Runs the same manifest pipeline the service applies per request: load
manifest.json, check its structure, normalize it, and verify every
referenced asset file exists. No network access and no rendering.

Example usage:
  pipeline validate --template ./templates/tpl_001`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validateTemplateDir, "template", "",
		"Path to the extracted template directory (required)")
	_ = validateCmd.MarkFlagRequired("template")
}

func runValidate(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	loader := manifest.NewLoader(validateTemplateDir, logger)
	spec, err := loader.Resolve()
	if err != nil {
		return fmt.Errorf("template is invalid: %w", err)
	}

	doc, err := loader.Load()
	if err != nil {
		return err
	}
	rules := loader.LoadRules(doc)

	fmt.Printf("template OK: %s %s\n", spec.TemplateCode, spec.VersionSemver)
	fmt.Printf("  output:   %dx%d %s\n", spec.Output.Width, spec.Output.Height, spec.Output.Format)
	fmt.Printf("  photos:   %d\n", len(spec.Photos))
	fmt.Printf("  stickers: %d\n", len(spec.Stickers))
	if rules.Loaded {
		fmt.Printf("  rules:    loaded (%d keys)\n", len(rules.Rules))
	} else {
		fmt.Println("  rules:    defaults in effect")
	}
	return nil
}
