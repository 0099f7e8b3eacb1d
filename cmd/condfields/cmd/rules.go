package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/solatis/condfields/internal/rules"
	"github.com/solatis/condfields/internal/types"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage stored field dependencies",
}

var rulesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a dependency between a dependee and one or more dependents",
	RunE:  runRulesAdd,
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the dependencies of a bundle",
	RunE:  runRulesList,
}

var rulesDeleteCmd = &cobra.Command{
	Use:   "delete <rule-id>",
	Short: "Delete a dependency",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesDelete,
}

var rulesImportCmd = &cobra.Command{
	Use:   "import <bundle.yaml>",
	Short: "Import fields and dependencies from a bundle file",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesImport,
}

var rulesFieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "List the fields of a bundle that can take part in dependencies",
	RunE:  runRulesFields,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesAddCmd, rulesListCmd, rulesDeleteCmd, rulesImportCmd, rulesFieldsCmd)

	for _, c := range []*cobra.Command{rulesAddCmd, rulesListCmd, rulesFieldsCmd} {
		c.Flags().String("entity-type", "", "entity type")
		c.Flags().String("bundle", "", "bundle")
		_ = c.MarkFlagRequired("entity-type")
		_ = c.MarkFlagRequired("bundle")
	}
	rulesAddCmd.Flags().String("dependee", "", "field controlling the dependents")
	rulesAddCmd.Flags().StringSlice("dependent", nil, "dependent field (repeatable)")
	rulesAddCmd.Flags().String("options", "", "dependency options as JSON, or @file")
	_ = rulesAddCmd.MarkFlagRequired("dependee")
	_ = rulesAddCmd.MarkFlagRequired("dependent")
}

func bundleFlags(cmd *cobra.Command) (string, string) {
	et, _ := cmd.Flags().GetString("entity-type")
	b, _ := cmd.Flags().GetString("bundle")
	return et, b
}

// readOptions parses inline JSON or @path.
func readOptions(arg string) (types.Options, error) {
	if arg == "" {
		return types.DefaultOptions(), nil
	}
	data := []byte(arg)
	if arg[0] == '@' {
		var err error
		if data, err = os.ReadFile(arg[1:]); err != nil {
			return types.Options{}, fmt.Errorf("failed to read options: %w", err)
		}
	}
	var opts types.Options
	if err := json.Unmarshal(data, &opts); err != nil {
		return types.Options{}, fmt.Errorf("%w: %v", types.ErrInvalidOption, err)
	}
	return opts, nil
}

func runRulesAdd(cmd *cobra.Command, args []string) error {
	database, store, _, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer database.Close()

	admin, err := rules.NewAdmin(store)
	if err != nil {
		return err
	}

	et, b := bundleFlags(cmd)
	dependee, _ := cmd.Flags().GetString("dependee")
	dependents, _ := cmd.Flags().GetStringSlice("dependent")
	optArg, _ := cmd.Flags().GetString("options")
	opts, err := readOptions(optArg)
	if err != nil {
		return err
	}

	ids, err := admin.AddDependency(commandContext(cmd), rules.NewDependencyRequest{
		EntityType: et,
		Bundle:     b,
		Dependee:   dependee,
		Dependents: dependents,
		Options:    opts,
	})
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Fprintln(cmd.OutOrStdout(), id)
	}
	return nil
}

func runRulesList(cmd *cobra.Command, args []string) error {
	database, store, _, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer database.Close()

	admin, err := rules.NewAdmin(store)
	if err != nil {
		return err
	}
	et, b := bundleFlags(cmd)
	list, err := admin.ListDependencies(commandContext(cmd), et, b)
	if err != nil {
		return err
	}
	for _, r := range list {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s -> %s  %s %s\n",
			r.ID, r.Dependent, r.Dependee, r.Options.State, r.Options.Condition)
	}
	return nil
}

func runRulesDelete(cmd *cobra.Command, args []string) error {
	database, store, _, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer database.Close()

	admin, err := rules.NewAdmin(store)
	if err != nil {
		return err
	}
	if err := admin.DeleteDependency(commandContext(cmd), types.RuleID(args[0])); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
	return nil
}

func runRulesImport(cmd *cobra.Command, args []string) error {
	display, err := rules.LoadBundleFile(args[0])
	if err != nil {
		return err
	}

	database, store, _, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer database.Close()

	n, err := rules.ImportBundle(commandContext(cmd), store, display)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d fields and %d rules into %s\n",
		len(display.Fields), n, types.BundleKey(display.EntityType, display.Bundle))
	return nil
}

func runRulesFields(cmd *cobra.Command, args []string) error {
	database, store, cfg, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer database.Close()

	engine, err := newEngine(store, cfg.Engine)
	if err != nil {
		return err
	}
	et, b := bundleFlags(cmd)
	fields, err := engine.NewSession().AvailableFields(commandContext(cmd), et, b)
	if err != nil {
		return err
	}
	for _, f := range fields {
		fmt.Fprintln(cmd.OutOrStdout(), f)
	}
	return nil
}
