package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gnolang/opsem/internal/opsem"
)

// initCmd: opsem init
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := initConfigurationFile(cfgFile)
		if err != nil {
			return fmt.Errorf("initializing config file: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration file created/updated: %s\n", path)
		return nil
	},
}

func initConfigurationFile(configurationPath string) (string, error) {
	if configurationPath == "" {
		configurationPath = defaultConfigFile
	}

	d, err := yaml.Marshal(opsem.DefaultConfig())
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(configurationPath, d, 0o644); err != nil {
		return "", err
	}
	return configurationPath, nil
}
