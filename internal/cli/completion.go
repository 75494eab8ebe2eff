package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(completionCmd)
}

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for dockerfixture.

To load completions:

Bash:
  $ source <(dockerfixture completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ dockerfixture completion bash > /etc/bash_completion.d/dockerfixture
  # macOS:
  $ dockerfixture completion bash > $(brew --prefix)/etc/bash_completion.d/dockerfixture

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ dockerfixture completion zsh > "${fpath[1]}/_dockerfixture"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ dockerfixture completion fish | source

  # To load completions for each session, execute once:
  $ dockerfixture completion fish > ~/.config/fish/completions/dockerfixture.fish

PowerShell:
  PS> dockerfixture completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> dockerfixture completion powershell > dockerfixture.ps1
  # and source this file from your PowerShell profile.
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	Run: func(cmd *cobra.Command, args []string) {
		switch args[0] {
		case "bash":
			cmd.Root().GenBashCompletion(cmd.OutOrStdout())
		case "zsh":
			cmd.Root().GenZshCompletion(cmd.OutOrStdout())
		case "fish":
			cmd.Root().GenFishCompletion(cmd.OutOrStdout(), true)
		case "powershell":
			cmd.Root().GenPowerShellCompletionWithDesc(cmd.OutOrStdout())
		}
	},
}
