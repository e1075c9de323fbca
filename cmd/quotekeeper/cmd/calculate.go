package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/solatis/quotekeeper/internal/quote"
	"github.com/solatis/quotekeeper/internal/rules"
	"github.com/solatis/quotekeeper/internal/types"
)

var (
	calcInput  string
	calcRules  string
	calcPrices string
	calcAsOf   string
)

var calculateCmd = &cobra.Command{
	Use:   "calculate",
	Short: "Price a quote offline from JSON files",
	Long: `Price a quote without a database. Reads the quote input, a JSON array of
rules and the price tables, and prints the priced quote as JSON.`,
	RunE: runCalculate,
}

func init() {
	rootCmd.AddCommand(calculateCmd)
	calculateCmd.Flags().StringVar(&calcInput, "input", "", "quote input JSON file")
	calculateCmd.Flags().StringVar(&calcRules, "rules", "", "rules JSON file (array)")
	calculateCmd.Flags().StringVar(&calcPrices, "prices", "", "price tables JSON file")
	calculateCmd.Flags().StringVar(&calcAsOf, "as-of", "", "skip rules not active on this date (YYYY-MM-DD)")
}

func runCalculate(cmd *cobra.Command, args []string) error {
	data, err := readFile(calcInput, "input")
	if err != nil {
		return err
	}
	in, err := quote.DecodeInput(data)
	if err != nil {
		return err
	}

	recs, err := readRules(calcRules)
	if err != nil {
		return err
	}

	var prices types.PriceTables
	if calcPrices != "" {
		data, err := readFile(calcPrices, "prices")
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, &prices); err != nil {
			return fmt.Errorf("parse prices: %w", err)
		}
	}

	opts := quote.Options{}
	if calcAsOf != "" {
		t, err := time.Parse(time.DateOnly, calcAsOf)
		if err != nil {
			return fmt.Errorf("--as-of: %w", err)
		}
		opts.AsOf = t
	}

	calc := quote.NewCalculator(rules.NewEngine(logger), logger)
	out, err := calc.Calculate(in, rules.FromRecords(recs), prices, opts)
	if err != nil {
		return err
	}
	return printJSON(cmd, out)
}

// readRules parses a JSON array of rules. An empty path means no rules.
func readRules(path string) ([]types.RuleRecord, error) {
	if path == "" {
		return nil, nil
	}
	data, err := readFile(path, "rules")
	if err != nil {
		return nil, err
	}
	var recs []types.RuleRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	return recs, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
