package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/solatis/condfields/internal/form"
	"github.com/solatis/condfields/internal/rules"
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Build states or guard a submission offline from a bundle file",
	Long: `eval loads a bundle file into memory, builds the client states of a form
and prints them as JSON. With --submission the submission is guarded instead
and the resulting values, errors and field outcomes are printed.`,
	RunE: runEval,
}

func init() {
	rootCmd.AddCommand(evalCmd)
	evalCmd.Flags().String("bundle-file", "", "bundle file (YAML or JSON)")
	evalCmd.Flags().String("form", "", "form document (JSON)")
	evalCmd.Flags().String("submission", "", "submission {values, errors} (JSON)")
	evalCmd.Flags().String("language", "und", "language substituted for %lang in selectors")
	_ = evalCmd.MarkFlagRequired("bundle-file")
	_ = evalCmd.MarkFlagRequired("form")
}

type evalOutput struct {
	Form     json.RawMessage             `json:"form"`
	Effects  map[string]rules.EffectSpec `json:"effects"`
	Validate bool                        `json:"validate"`
	Cycles   [][]string                  `json:"cycles,omitempty"`
}

func runEval(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	bundleFile, _ := cmd.Flags().GetString("bundle-file")
	display, err := rules.LoadBundleFile(bundleFile)
	if err != nil {
		return err
	}
	store := rules.NewMemoryStore()
	if _, err := rules.ImportBundle(ctx, store, display); err != nil {
		return err
	}
	engine, err := newEngine(store, cfg.Engine)
	if err != nil {
		return err
	}

	formFile, _ := cmd.Flags().GetString("form")
	data, err := os.ReadFile(formFile)
	if err != nil {
		return fmt.Errorf("failed to read form: %w", err)
	}
	tree, err := form.Decode(data)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")

	if subFile, _ := cmd.Flags().GetString("submission"); subFile != "" {
		sub, err := readSubmission(subFile)
		if err != nil {
			return err
		}
		report, err := engine.Validate(ctx, engine.NewSession(), display.EntityType, display.Bundle, tree, sub)
		if err != nil {
			return err
		}
		return enc.Encode(report)
	}

	result, err := engine.Process(ctx, engine.NewSession(), display.EntityType, display.Bundle, tree)
	if err != nil {
		return err
	}
	encoded, err := form.Encode(result.Tree)
	if err != nil {
		return err
	}
	return enc.Encode(evalOutput{
		Form:     encoded,
		Effects:  result.Effects,
		Validate: result.Validate,
		Cycles:   result.Cycles,
	})
}

func readSubmission(path string) (rules.Submission, error) {
	var sub rules.Submission
	data, err := os.ReadFile(path)
	if err != nil {
		return sub, fmt.Errorf("failed to read submission: %w", err)
	}
	if err := json.Unmarshal(data, &sub); err != nil {
		return sub, fmt.Errorf("failed to parse submission: %w", err)
	}
	return sub, nil
}

