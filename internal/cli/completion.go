package cli

import (
	"github.com/spf13/cobra"
)

// completionCommand creates the completion command for generating shell completions.
func (c *CLI) completionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for pyvalidate.

To load completions:

Bash:
  $ source <(pyvalidate completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ pyvalidate completion bash > /etc/bash_completion.d/pyvalidate
  # macOS:
  $ pyvalidate completion bash > $(brew --prefix)/etc/bash_completion.d/pyvalidate

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ pyvalidate completion zsh > "${fpath[1]}/_pyvalidate"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ pyvalidate completion fish | source

  # To load completions for each session, execute once:
  $ pyvalidate completion fish > ~/.config/fish/completions/pyvalidate.fish

PowerShell:
  PS> pyvalidate completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> pyvalidate completion powershell > pyvalidate.ps1
  # and source this file from your PowerShell profile.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(stdout, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(stdout)
			}
			return nil
		},
	}

	return cmd
}
