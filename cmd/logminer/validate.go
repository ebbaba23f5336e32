package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/logminer/logminer-go/pkg/logminer"
	"github.com/logminer/logminer-go/pkg/logminer/pattern"
)

var validateCmd = &cobra.Command{
	Use:   "validate <patternsFile>...",
	Short: "Check that pattern files load and compile",
	Long: `Load every pattern file, compile its expressions and print how many
statements and classes it holds. Records with the wrong number of fields are
reported as skipped; an invalid expression fails with its line number.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	for _, path := range args {
		f, err := pattern.Load(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		repo, err := pattern.NewRepository(f)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		_, hasDefault := repo.Lookup(logminer.DefaultClass)
		fmt.Fprintf(out, "%s: %d statements in %d classes (%s", path, repo.Len(), len(repo.Classes()), f.Format)
		if f.Skipped > 0 {
			fmt.Fprintf(out, ", %d skipped", f.Skipped)
		}
		if hasDefault {
			fmt.Fprintf(out, ", has %s", logminer.DefaultClass)
		}
		fmt.Fprintln(out, ")")
	}
	return nil
}
