// Copyright (c) 2025 Justin Cranford

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// fortressBuildMode controls whether --dir is required (debug builds must
// not silently clobber a real vault; release builds may be invoked from
// scripts that already know their working directory).
var fortressBuildMode = "debug"

func newRootCommand() *cobra.Command {
	var configFile string
	var dataDir string

	cmd := &cobra.Command{
		Use:           "fortress",
		Short:         "Encrypted, synchronizable password-manager database core",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			v.SetEnvPrefix("FORTRESS")
			v.AutomaticEnv()
			if configFile != "" {
				if err := loadConfigFile(v, configFile); err != nil {
					return err
				}
			}
			if dataDir == "" {
				dataDir = v.GetString("dir")
			}
			if dataDir == "" && fortressBuildMode == "debug" {
				return fmt.Errorf("fortress: --dir is required in debug builds")
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Optional config file (yaml/json/toml) providing defaults")
	cmd.PersistentFlags().StringVar(&dataDir, "dir", "", "Data directory holding the vault file (required in debug builds)")

	cmd.AddCommand(newEncryptCommand(&dataDir), newDecryptCommand(&dataDir))

	return cmd
}

// loadConfigFile loads configFile into v. YAML files (.yaml/.yml) are
// decoded directly with goccy/go-yaml, which rejects duplicate keys that
// viper's own config loader would silently let the last one win on — a
// config typo should fail closed, not pick an arbitrary value. Other
// formats (json/toml) are left to viper's own loader.
func loadConfigFile(v *viper.Viper, configFile string) error {
	ext := strings.ToLower(filepath.Ext(configFile))
	if ext != ".yaml" && ext != ".yml" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("fortress: read config file %s: %w", configFile, err)
		}
		return nil
	}

	raw, err := os.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("fortress: read config file %s: %w", configFile, err)
	}
	var settings map[string]any
	if err := yaml.UnmarshalWithOptions(raw, &settings, yaml.Strict()); err != nil {
		return fmt.Errorf("fortress: parse config file %s: %w", configFile, err)
	}
	if err := v.MergeConfigMap(settings); err != nil {
		return fmt.Errorf("fortress: load config file %s: %w", configFile, err)
	}
	return nil
}

func resolvePath(dir, path string) string {
	if dir == "" {
		return path
	}
	return filepath.Join(dir, path)
}
