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

// Package main provides the CLI entrypoint for the image pipeline service.
//
// The service composes user photos onto downloadable templates and serves
// the results over HTTP. Configuration comes from an optional YAML file,
// overridden by environment variables (PIPELINE_HOST, PIPELINE_PORT,
// PIPELINE_DATA_DIR, PUBLIC_BASE_URL, TEMPLATE_CACHE_DIR, METRICS_PORT,
// VERBOSE, LOG_FORMAT), with built-in defaults below both.
package main

import (
	"os"

	_ "github.com/KimMachineGun/automemlimit"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "pipeline",
	Short:        "Image composition pipeline service",
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
