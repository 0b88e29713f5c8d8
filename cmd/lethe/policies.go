package main

import (
	"github.com/spf13/cobra"

	"mercator-hq/lethe/pkg/cli"
	"mercator-hq/lethe/pkg/retention/catalog"
)

var listPoliciesCmd = &cobra.Command{
	Use:   "list_policies",
	Short: "Print the effective retention policy of every category",
	Long: `Print the retention policy of every data category after configuration
overrides are applied. The store is not opened.`,
	Args: cobra.NoArgs,
	RunE: listPolicies,
}

func init() {
	rootCmd.AddCommand(listPoliciesCmd)
}

func listPolicies(cmd *cobra.Command, args []string) error {
	formatter, err := outputFormatter()
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	overrides, err := catalogOverrides(cfg.Categories)
	if err != nil {
		return cli.NewConfigError("categories", err.Error())
	}
	cat, err := catalog.Default(overrides)
	if err != nil {
		return cli.NewConfigError("categories", err.Error())
	}
	return formatter.FormatTo(cmd.OutOrStdout(), policyTable(cat))
}

func policyTable(cat *catalog.Catalog) cli.PolicyTable {
	policies := cat.Policies()
	rows := make(cli.PolicyTable, 0, len(policies))
	for _, p := range policies {
		rows = append(rows, cli.NewPolicyRow(p, cat.Target(p.Category).Table))
	}
	return rows
}
