// cmd.go - main CLI setup and root command.
package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/kvsim/kvsim/envconfig"
)

// appendEnvDocs adds an "Environment Variables" section to a command's
// usage output, documenting the env vars a given subcommand actually reads.
func appendEnvDocs(cmd *cobra.Command, envs []envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}

	envUsage := "\nEnvironment Variables:\n"
	for _, e := range envs {
		envUsage += fmt.Sprintf("      %-24s   %s\n", e.Name, e.Description)
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + envUsage)
}

// NewCLI creates the kvsim root command and wires every subcommand.
func NewCLI() *cobra.Command {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:           "kvsim",
		Short:         "Compare monolithic and paged KV-cache memory accounting",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	runCmd := newRunCmd()
	configCmd := newConfigCmd()

	envVars := envconfig.AsMap()
	appendEnvDocs(runCmd, []envconfig.EnvVar{
		envVars["KVSIM_NUM_LAYERS"],
		envVars["KVSIM_NUM_HEADS"],
		envVars["KVSIM_HEAD_DIM"],
		envVars["KVSIM_TOKENS_PER_PAGE"],
		envVars["KVSIM_ARENA_BYTES"],
		envVars["KVSIM_MAX_CONTEXT_TOKENS"],
		envVars["KVSIM_NUM_SEQUENCES"],
		envVars["KVSIM_NUM_GROUPS"],
		envVars["KVSIM_MAX_PROMPT_EXTRA"],
		envVars["KVSIM_MIN_GEN_TOKENS"],
		envVars["KVSIM_MAX_GEN_TOKENS"],
		envVars["KVSIM_MAX_IN_FLIGHT"],
		envVars["KVSIM_STRICT"],
		envVars["KVSIM_TOKEN_LATENCY_US"],
		envVars["KVSIM_BACKEND"],
		envVars["KVSIM_SEED"],
		envVars["KVSIM_DEBUG"],
	})

	rootCmd.AddCommand(runCmd, configCmd)

	return rootCmd
}
