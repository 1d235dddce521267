package cli

import (
	"github.com/spf13/cobra"
)

// Root returns the leveling command with every subcommand attached.
func Root(version string) *cobra.Command {
	root := &cobra.Command{
		Use:     "leveling",
		Short:   "Per-guild XP and level tracking",
		Version: version,
		Long: `leveling tracks experience points and levels for members of guilds.

Records are created on first reference at level 1 with 0 XP. Adding XP
levels a member up once it reaches 5(L+1)^2 + 50(L+1) + 100.

Configuration is read from --config (or $LEVELING_CONFIG) and
LEVELING_* environment variables.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "path to a YAML config file")
	root.PersistentFlags().Bool("debug", false, "log at debug level")

	root.AddCommand(ServeCmd(version))
	root.AddCommand(GetCmd())
	root.AddCommand(NextCmd())
	root.AddCommand(RankCmd())
	root.AddCommand(LeaderboardCmd())
	root.AddCommand(PropertyCmd("xp"))
	root.AddCommand(PropertyCmd("level"))
	root.AddCommand(MigrateCmd())

	return root
}
