package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sddlab/specd/internal/config"
	"github.com/sddlab/specd/internal/types"
	"github.com/sddlab/specd/internal/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage project configuration",
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		p, err := openProject(ctx)
		if err != nil {
			return err
		}
		defer p.Close()

		value, err := p.store.GetConfig(ctx, args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			outputJSON(map[string]string{"key": args[0], "value": value})
			return nil
		}
		fmt.Println(value)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		p, err := openProject(ctx)
		if err != nil {
			return err
		}
		defer p.Close()

		if err := p.store.SetConfig(ctx, args[0], args[1]); err != nil {
			return err
		}
		if jsonOutput {
			outputJSON(map[string]string{"key": args[0], "value": args[1]})
			return nil
		}
		fmt.Printf("%s %s = %s\n", ui.RenderPass(ui.IconPass), args[0], args[1])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configuration values",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		p, err := openProject(ctx)
		if err != nil {
			return err
		}
		defer p.Close()

		values, err := p.store.ListConfig(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			outputJSON(values)
			return nil
		}
		keys := make([]string, 0, len(values))
		for k := range values {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("%s = %s\n", ui.RenderAccent(k), values[k])
		}
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the project's config.yaml",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		specdDir := config.FindSpecdDir()
		if specdDir == "" {
			return fmt.Errorf("no %s directory found (run 'sd init' first)", config.DirName)
		}

		issues := validateConfigFile(config.ConfigPath(specdDir))

		if jsonOutput {
			outputJSON(map[string]interface{}{
				"valid":  len(issues) == 0,
				"issues": issues,
			})
			if len(issues) > 0 {
				os.Exit(1)
			}
			return nil
		}
		if len(issues) == 0 {
			fmt.Printf("%s Configuration is valid\n", ui.RenderPass(ui.IconPass))
			return nil
		}
		fmt.Println("Configuration validation found issues:")
		for _, issue := range issues {
			fmt.Printf("  %s %s\n", ui.RenderFail(ui.IconFail), issue)
		}
		os.Exit(1)
		return nil
	},
}

// validateConfigFile checks config.yaml values beyond what Load's strict
// decoding catches: cross-field requirements and enum ranges.
func validateConfigFile(configPath string) []string {
	var issues []string

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		// Missing file means defaults apply; nothing to validate.
		if os.IsNotExist(err) {
			return issues
		}
		return append(issues, fmt.Sprintf("config.yaml: %v", err))
	}

	owner := v.GetString("github.owner")
	repo := v.GetString("github.repo")
	project := v.GetInt("github.project")
	stages := v.GetInt("status.stages")
	mapping := v.GetStringMapString("status.mapping")

	if owner != "" && repo == "" {
		issues = append(issues, "github.repo: required when github.owner is set")
	}
	if repo != "" && owner == "" {
		issues = append(issues, "github.owner: required when github.repo is set")
	}
	if project != 0 && (owner == "" || repo == "") {
		issues = append(issues, "github.project: requires github.owner and github.repo")
	}
	if stages != 0 && stages != 3 && stages != 4 {
		issues = append(issues, fmt.Sprintf("status.stages: %d is invalid (valid values: 3, 4)", stages))
	}
	for key := range mapping {
		if _, err := types.ParsePhase(key); err != nil {
			issues = append(issues, fmt.Sprintf("status.mapping: unknown phase %q", key))
		}
	}
	return issues
}

func init() {
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(configCmd)
}
