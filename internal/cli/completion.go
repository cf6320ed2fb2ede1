package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/matzehuels/reflow/pkg/pipeline"
	"github.com/matzehuels/reflow/pkg/sink"
)

// completionCommand creates the completion command for generating shell completions.
func (c *CLI) completionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for reflow.

Completions cover the subcommands, enum flags such as --container, --format,
--levels and --rotate, and input directories.

  bash:        source <(reflow completion bash)
  zsh:         reflow completion zsh > "${fpath[1]}/_reflow"
  fish:        reflow completion fish > ~/.config/fish/completions/reflow.fish
  powershell:  reflow completion powershell | Out-String | Invoke-Expression`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}

	return cmd
}

// flagValues lists the accepted values of flags that take a fixed set.
var flagValues = map[string][]string{
	"container": {pipeline.ContainerImages, pipeline.ContainerPDF},
	"format":    {string(sink.FormatPNG), string(sink.FormatJPEG)},
	"levels":    itoas(sink.ValidLevels),
	"rotate":    itoas(sink.ValidRotations),
}

// registerCompletions completes the input directory argument of cmd and
// the fixed-set flags it defines.
func registerCompletions(cmd *cobra.Command) {
	cmd.ValidArgsFunction = completeInputDir
	for name, values := range flagValues {
		if cmd.Flags().Lookup(name) == nil {
			continue
		}
		_ = cmd.RegisterFlagCompletionFunc(name, cobra.FixedCompletions(values, cobra.ShellCompDirectiveNoFileComp))
	}
}

func completeInputDir(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveFilterDirs
}

func itoas(values []int) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strconv.Itoa(v)
	}
	return out
}
