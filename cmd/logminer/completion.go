package main

import (
	"github.com/spf13/cobra"
)

var completionShells = []string{"bash", "zsh", "fish", "powershell"}

var completionCmd = &cobra.Command{
	Use:   "completion <shell>",
	Short: "Print a shell completion script",
	Long: `Print a completion script for logminer to stdout.

Load it into the current shell:

  bash:        source <(logminer completion bash)
  zsh:         source <(logminer completion zsh)
  fish:        logminer completion fish | source
  powershell:  logminer completion powershell | Out-String | Invoke-Expression

To install it permanently, redirect the output into the shell's completion
directory, for example ~/.config/fish/completions/logminer.fish or
"${fpath[1]}/_logminer".`,
	DisableFlagsInUseLine: true,
	ValidArgs:             completionShells,
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE:                  runCompletion,
}

func init() {
	rootCmd.AddCommand(completionCmd)
}

func runCompletion(cmd *cobra.Command, args []string) error {
	root, out := cmd.Root(), cmd.OutOrStdout()
	switch args[0] {
	case "zsh":
		return root.GenZshCompletion(out)
	case "fish":
		return root.GenFishCompletion(out, true)
	case "powershell":
		return root.GenPowerShellCompletionWithDesc(out)
	default:
		return root.GenBashCompletionV2(out, true)
	}
}
