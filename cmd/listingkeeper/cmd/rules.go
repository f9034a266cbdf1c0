package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/solatis/listingkeeper/internal/core/db"
	"github.com/solatis/listingkeeper/internal/core/rulefile"
	"github.com/solatis/listingkeeper/internal/rules"
	"github.com/solatis/listingkeeper/internal/types"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import rules from a YAML or JSON file into the database",
	Args:  cobra.NoArgs,
	RunE:  runImport,
}

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Check a rule file for problems that make rules inert",
	Args:  cobra.NoArgs,
	RunE:  runLint,
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate a product against a rule file without a database",
	Args:  cobra.NoArgs,
	RunE:  runEvaluate,
}

func init() {
	rootCmd.AddCommand(importCmd, lintCmd, evaluateCmd)

	importCmd.Flags().String("file", "", "rule file (YAML or JSON)")
	importCmd.Flags().String("user", "", "owner of the imported rules")
	importCmd.Flags().Bool("force", false, "import rules even if lint reports problems")
	importCmd.MarkFlagRequired("file")
	importCmd.MarkFlagRequired("user")

	lintCmd.Flags().String("file", "", "rule file (YAML or JSON)")
	lintCmd.MarkFlagRequired("file")

	evaluateCmd.Flags().String("file", "", "rule file (YAML or JSON)")
	evaluateCmd.Flags().String("product", "", "product file (JSON or YAML)")
	evaluateCmd.Flags().String("marketplace", "", "target marketplace")
	evaluateCmd.Flags().String("user", "local", "user the rules are evaluated for")
	evaluateCmd.MarkFlagRequired("file")
	evaluateCmd.MarkFlagRequired("product")
}

// lintRules writes every problem found in list to w and returns the count.
func lintRules(w io.Writer, list []types.Rule) int {
	problems := 0
	for i := range list {
		name := list[i].Name
		if name == "" {
			name = fmt.Sprintf("rule %d", i)
		}
		for _, err := range rules.Lint(&list[i]) {
			fmt.Fprintf(w, "%s: %v\n", name, err)
			problems++
		}
	}
	return problems
}

func runLint(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("file")
	list, err := rulefile.Load(path)
	if err != nil {
		return err
	}

	if n := lintRules(cmd.OutOrStdout(), list); n > 0 {
		return fmt.Errorf("%d problem(s) in %d rule(s)", n, len(list))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d rule(s) OK\n", len(list))
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("file")
	userID, _ := cmd.Flags().GetString("user")
	force, _ := cmd.Flags().GetBool("force")

	list, err := rulefile.Load(path)
	if err != nil {
		return err
	}
	if n := lintRules(cmd.ErrOrStderr(), list); n > 0 && !force {
		return fmt.Errorf("%d problem(s) found; fix them or pass --force", n)
	}

	database, queries, err := openMigrated(cmd.Context())
	if err != nil {
		return err
	}
	defer database.Close()

	store := db.NewRuleStore(queries)
	for i := range list {
		list[i].UserID = userID
		if err := store.SaveRule(cmd.Context(), &list[i]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", list[i].ID, list[i].Name)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "imported %d rule(s) for %s\n", len(list), userID)
	return nil
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	rulePath, _ := cmd.Flags().GetString("file")
	productPath, _ := cmd.Flags().GetString("product")
	marketplace, _ := cmd.Flags().GetString("marketplace")
	userID, _ := cmd.Flags().GetString("user")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	list, err := rulefile.Load(rulePath)
	if err != nil {
		return err
	}
	product, err := rulefile.LoadProduct(productPath)
	if err != nil {
		return err
	}

	engine := rules.NewEngine(rulefile.NewSource(list), rules.WithLogger(logger))
	result, err := engine.Run(cmd.Context(), userID, product.ID, product.Record, marketplace)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"product_id":       product.ID,
		"modified_data":    result.ModifiedData,
		"applied_rule_ids": result.AppliedRuleIDs,
		"logs":             result.Logs,
	})
}
