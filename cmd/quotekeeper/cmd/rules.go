package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solatis/quotekeeper/internal/rules"
	"github.com/solatis/quotekeeper/internal/types"
)

var (
	rulesFile  string
	rulesQuote string
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Work with rule files",
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate every rule in a JSON array",
	RunE:  runRulesValidate,
}

var rulesTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Trace one rule against sample or supplied quotes",
	Long: `Evaluate each top-level condition of a rule against quote records and
report which hold. Uses the built-in sample quotes unless --quote names a
JSON file holding one record or an array of records.`,
	RunE: runRulesTest,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesValidateCmd, rulesTestCmd)

	rulesValidateCmd.Flags().StringVar(&rulesFile, "file", "", "rules JSON file (array)")
	rulesTestCmd.Flags().StringVar(&rulesFile, "file", "", "rule JSON file (single object)")
	rulesTestCmd.Flags().StringVar(&rulesQuote, "quote", "", "quote record JSON file")
}

func runRulesValidate(cmd *cobra.Command, args []string) error {
	if rulesFile == "" {
		return fmt.Errorf("--file required")
	}
	recs, err := readRules(rulesFile)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	invalid := 0
	for i, rec := range recs {
		rule := rules.FromRecord(rec)
		label := rule.Label()
		if label == "" {
			label = fmt.Sprintf("#%d", i+1)
		}
		if err := rules.ValidateRule(rule); err != nil {
			invalid++
			fmt.Fprintf(out, "INVALID %s\n", label)
			for _, e := range flatten(err) {
				fmt.Fprintf(out, "  - %v\n", e)
			}
			continue
		}
		fmt.Fprintf(out, "ok      %s  %s\n", label, rules.FormatRuleAction(rule))
	}

	if invalid > 0 {
		return fmt.Errorf("%d of %d rules invalid: %w", invalid, len(recs), types.ErrInvalidRule)
	}
	return nil
}

// flatten unpacks an errors.Join result.
func flatten(err error) []error {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		if _, ok := err.(*types.ValidationError); !ok {
			return joined.Unwrap()
		}
	}
	return []error{err}
}

func runRulesTest(cmd *cobra.Command, args []string) error {
	data, err := readFile(rulesFile, "file")
	if err != nil {
		return err
	}
	var rec types.RuleRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return fmt.Errorf("parse rule: %w", err)
	}

	records, err := readRecords(rulesQuote)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		records = rules.SampleRecords()
	}

	traces := rules.NewEngine(logger).Trace(rules.FromRecord(rec), records)
	return printJSON(cmd, traces)
}

// readRecords accepts a single JSON object or an array of objects.
func readRecords(path string) ([]types.Record, error) {
	if path == "" {
		return nil, nil
	}
	data, err := readFile(path, "quote")
	if err != nil {
		return nil, err
	}
	var many []types.Record
	if err := json.Unmarshal(data, &many); err == nil {
		return many, nil
	}
	var one types.Record
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, fmt.Errorf("parse quote: %w", err)
	}
	return []types.Record{one}, nil
}
