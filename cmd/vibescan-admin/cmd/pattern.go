package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vibescan/api/internal/infra/postgres"
	"github.com/vibescan/api/pkg/domain/finding"
)

var (
	flagPatternRuleID      string
	flagPatternContextClue string
	flagPatternExplanation string
	flagPatternConfidence  string
	flagPatternPriority    int
)

var patternCmd = &cobra.Command{
	Use:   "pattern",
	Short: "Manage false-positive patterns",
}

var patternListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active false-positive patterns in evaluation order",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		patterns, err := postgres.NewPatternRepository(db).ListActive(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RULE\tCONTEXT CLUE\tCONFIDENCE\tEXPLANATION")
		for _, p := range patterns {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.RuleID, p.ContextClue, p.Confidence, truncate(p.Explanation, 60))
		}
		return w.Flush()
	},
}

var patternAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a false-positive pattern",
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(flagPatternRuleID) == "" {
			return fmt.Errorf("--rule-id is required")
		}
		if strings.TrimSpace(flagPatternExplanation) == "" {
			return fmt.Errorf("--explanation is required")
		}

		db, cfg, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		p := finding.FalsePositivePattern{
			RuleID:      flagPatternRuleID,
			ContextClue: flagPatternContextClue,
			Explanation: flagPatternExplanation,
			Confidence:  flagPatternConfidence,
		}
		if err := postgres.NewPatternRepository(db).Create(cmd.Context(), p, flagPatternPriority); err != nil {
			return err
		}
		invalidatePatternCache(cmd.Context(), cfg)

		fmt.Printf("Added pattern for rule %s\n", p.RuleID)
		return nil
	},
}

// patternSeed is the YAML shape of one pattern in a seed file.
type patternSeed struct {
	RuleID      string `yaml:"rule_id"`
	ContextClue string `yaml:"context_clue"`
	Explanation string `yaml:"explanation"`
	Confidence  string `yaml:"confidence"`
	Priority    int    `yaml:"priority"`
}

type patternSeedFile struct {
	Patterns []patternSeed `yaml:"patterns"`
}

var patternImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Import false-positive patterns from a YAML seed file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		var seed patternSeedFile
		if err := yaml.Unmarshal(raw, &seed); err != nil {
			return fmt.Errorf("parse %s: %w", args[0], err)
		}
		if len(seed.Patterns) == 0 {
			return fmt.Errorf("%s contains no patterns", args[0])
		}

		db, cfg, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		repo := postgres.NewPatternRepository(db)
		for i, s := range seed.Patterns {
			if strings.TrimSpace(s.RuleID) == "" || strings.TrimSpace(s.Explanation) == "" {
				return fmt.Errorf("pattern %d: rule_id and explanation are required", i+1)
			}
			p := finding.FalsePositivePattern{
				RuleID:      s.RuleID,
				ContextClue: s.ContextClue,
				Explanation: s.Explanation,
				Confidence:  s.Confidence,
			}
			if err := repo.Create(cmd.Context(), p, s.Priority); err != nil {
				return fmt.Errorf("pattern %d (%s): %w", i+1, s.RuleID, err)
			}
		}
		invalidatePatternCache(cmd.Context(), cfg)

		fmt.Printf("Imported %d patterns\n", len(seed.Patterns))
		return nil
	},
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func init() {
	patternAddCmd.Flags().StringVar(&flagPatternRuleID, "rule-id", "", "Scanner rule id the pattern applies to")
	patternAddCmd.Flags().StringVar(&flagPatternContextClue, "context-clue", "", "Substring of the file path or message that must match")
	patternAddCmd.Flags().StringVar(&flagPatternExplanation, "explanation", "", "Explanation shown to the user")
	patternAddCmd.Flags().StringVar(&flagPatternConfidence, "confidence", "medium", "Pattern confidence: low, medium, high")
	patternAddCmd.Flags().IntVar(&flagPatternPriority, "priority", 100, "Evaluation priority, lower runs first")

	patternCmd.AddCommand(patternListCmd)
	patternCmd.AddCommand(patternAddCmd)
	patternCmd.AddCommand(patternImportCmd)
}
