// Command retrace-cli is the command-line interface to a retraced server.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/retracehq/retrace/client"
)

// Build-time variables set via ldflags.
var (
	version   = "0.3.0"
	commit    = ""
	buildDate = ""
)

const defaultURL = "http://localhost:3040"

var (
	apiClient *client.Client

	flagURL string
	flagKey string
	flagFmt string

	flagActorType    string
	flagActorID      string
	flagActorName    string
	flagGroupTag     string
	flagGroupComment string
)

func versionString() string {
	if commit != "" && buildDate != "" {
		return fmt.Sprintf("retrace version %s (commit: %s, built: %s)", version, commit, buildDate)
	}
	return fmt.Sprintf("retrace version %s-dev", version)
}

type configFile struct {
	// Flat format
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
	// Profile format
	Profiles      map[string]configProfile `yaml:"profiles"`
	ActiveProfile string                   `yaml:"active_profile"`
}

type configProfile struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
}

func main() {
	rootCmd := &cobra.Command{
		Use:     "retrace",
		Short:   "Retrace CLI — audit trails and point-in-time entity revisions",
		Version: versionString(),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			resolveConfig()
			var opts []client.Option
			if flagKey != "" {
				opts = append(opts, client.WithAPIKey(flagKey))
			}
			apiClient = client.New(flagURL, opts...)
			apiClient = applyAttribution(apiClient)
		},
		SilenceUsage: true,
	}
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&flagURL, "url", defaultURL, "Retrace server URL (env: RETRACE_URL)")
	rootCmd.PersistentFlags().StringVar(&flagKey, "api-key", "", "API key (env: RETRACE_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&flagFmt, "format", "json", "Output format: json|table|quiet")
	rootCmd.PersistentFlags().StringVar(&flagActorType, "actor-type", "", "Attribute changes to a structured actor type (with --actor-id)")
	rootCmd.PersistentFlags().StringVar(&flagActorID, "actor-id", "", "Attribute changes to a structured actor id (with --actor-type)")
	rootCmd.PersistentFlags().StringVar(&flagActorName, "actor", "", "Attribute changes to a display-name actor")
	rootCmd.PersistentFlags().StringVar(&flagGroupTag, "group-tag", "", "Change-group tag (with --group-comment)")
	rootCmd.PersistentFlags().StringVar(&flagGroupComment, "group-comment", "", "Change-group comment (with --group-tag)")

	rootCmd.AddCommand(newEntityCmd())
	rootCmd.AddCommand(newAuditCmd())
	rootCmd.AddCommand(newRevisionCmd())
	rootCmd.AddCommand(newTypesCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// applyAttribution derives an attributed client from the attribution flags.
func applyAttribution(c *client.Client) *client.Client {
	switch {
	case flagActorType != "" && flagActorID != "":
		c = c.As(flagActorType, flagActorID)
	case flagActorName != "":
		c = c.AsName(flagActorName)
	}

	if flagGroupTag != "" && flagGroupComment != "" {
		c = c.Grouped(flagGroupTag, flagGroupComment)
	}

	return c
}

func resolveConfig() {
	// Flag takes precedence, then env, then config file.
	if flagURL == defaultURL {
		if v := os.Getenv("RETRACE_URL"); v != "" {
			flagURL = v
		}
	}
	if flagKey == "" {
		flagKey = os.Getenv("RETRACE_API_KEY")
	}

	// Try config file for any remaining defaults.
	home, err := os.UserHomeDir()
	if err != nil {
		return
	}
	cfgPath := filepath.Join(home, ".retrace", "config.yaml")
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return
	}
	var cfg configFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return
	}
	// Resolve from profiles if available, fall back to flat format.
	resolvedURL := cfg.URL
	resolvedKey := cfg.APIKey
	if cfg.Profiles != nil {
		profileName := cfg.ActiveProfile
		if profileName == "" {
			profileName = "default"
		}
		if p, ok := cfg.Profiles[profileName]; ok {
			if p.URL != "" {
				resolvedURL = p.URL
			}
			if p.APIKey != "" {
				resolvedKey = p.APIKey
			}
		}
	}
	if flagURL == defaultURL && resolvedURL != "" {
		flagURL = resolvedURL
	}
	if flagKey == "" && resolvedKey != "" {
		flagKey = resolvedKey
	}
}

func fatal(msg string, err error) {
	fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	os.Exit(1)
}
