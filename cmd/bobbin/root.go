// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/teradata-labs/bobbin/internal/version"
)

var (
	cfgFile string
	config  *Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:     "bobbin",
	Short:   "Bobbin - token-budgeted conversation memory for LLM chat backends",
	Long:    `Bobbin serves a multi-provider chat API with per-session conversation memory that stays inside each model's context budget through summarizing eviction.`,
	Version: version.Get(),
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./bobbin.yaml)")

	// Server flags
	rootCmd.PersistentFlags().Int("port", 5000, "HTTP server port")
	rootCmd.PersistentFlags().String("host", "0.0.0.0", "HTTP server host")

	// Provider flags
	rootCmd.PersistentFlags().String("nvidia-key", "", "NVIDIA API key (or BOBBIN_LLM_NVIDIA_API_KEY)")
	rootCmd.PersistentFlags().String("openrouter-key", "", "OpenRouter API key (or BOBBIN_LLM_OPENROUTER_API_KEY)")
	rootCmd.PersistentFlags().String("anthropic-key", "", "Anthropic API key (or BOBBIN_LLM_ANTHROPIC_API_KEY)")
	rootCmd.PersistentFlags().Int("max-tokens", 1024, "Maximum completion tokens per request")

	// Memory flags
	rootCmd.PersistentFlags().Int("max-sessions", 500, "Maximum concurrent sessions (0=unlimited)")
	rootCmd.PersistentFlags().String("response-format", "markdown", "Assistant response format (markdown, plaintext, json, yaml)")

	// Chat log flags
	rootCmd.PersistentFlags().String("db", "bobbin.db", "SQLite chat log path (empty=disabled)")
	rootCmd.PersistentFlags().String("export-key", "", "API key guarding the log export endpoints")

	// Logging flags
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (text, json)")

	// Bind flags to viper
	_ = viper.BindPFlag("server.port", rootCmd.PersistentFlags().Lookup("port"))
	_ = viper.BindPFlag("server.host", rootCmd.PersistentFlags().Lookup("host"))

	_ = viper.BindPFlag("llm.nvidia_api_key", rootCmd.PersistentFlags().Lookup("nvidia-key"))
	_ = viper.BindPFlag("llm.openrouter_api_key", rootCmd.PersistentFlags().Lookup("openrouter-key"))
	_ = viper.BindPFlag("llm.anthropic_api_key", rootCmd.PersistentFlags().Lookup("anthropic-key"))
	_ = viper.BindPFlag("llm.max_tokens", rootCmd.PersistentFlags().Lookup("max-tokens"))

	_ = viper.BindPFlag("memory.max_sessions", rootCmd.PersistentFlags().Lookup("max-sessions"))
	_ = viper.BindPFlag("memory.response_format", rootCmd.PersistentFlags().Lookup("response-format"))

	_ = viper.BindPFlag("chatlog.path", rootCmd.PersistentFlags().Lookup("db"))
	_ = viper.BindPFlag("chatlog.export_key", rootCmd.PersistentFlags().Lookup("export-key"))

	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	var err error
	config, err = LoadConfig(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
}

func main() {
	Execute()
}
