package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/gorewinder/internal/classifier"
)

var classifyCmd = &cobra.Command{
	Use:   "classify [sql...]",
	Short: "Print the tables a SQL statement inserts into",
	Long: `Classify runs the insert classifier on each argument, or on standard
input when no argument is given, and prints one insert target per line.
Statements separated by ';' are classified individually.

Example:
  gorewinder classify "INSERT INTO users (name) VALUES ('a')"
  echo "INSERT INTO orders VALUES (1); SELECT 1" | gorewinder classify`,
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, args []string) error {
	inputs := args
	if len(inputs) == 0 {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read statements: %w", err)
		}
		inputs = []string{string(data)}
	}

	out := cmd.OutOrStdout()
	for _, sql := range inputs {
		for _, table := range classifier.Classify(strings.TrimSpace(sql)) {
			fmt.Fprintln(out, table)
		}
	}
	return nil
}
