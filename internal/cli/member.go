package cli

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/alem-hub/guild-leveling/internal/domain/guild"
)

// GetCmd prints a member record, creating it if needed.
func GetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get GUILD MEMBER",
		Short: "Show a member's level and XP",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				m, err := a.engine.Get(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				printMember(cmd, args[0], m)
				return nil
			})
		},
	}
}

// NextCmd prints the XP needed for the member's next level.
func NextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "next GUILD MEMBER",
		Short: "Show the XP required for the next level",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				required, err := a.engine.XPForNextLevel(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				remaining, err := a.engine.RemainingXP(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "required: %d\nremaining: %d\n", required, remaining)
				return nil
			})
		},
	}
}

// RankCmd prints the member's leaderboard position.
func RankCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rank GUILD MEMBER",
		Short: "Show a member's position on the guild leaderboard",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				rank, err := a.engine.Rank(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "#%d\n", rank)
				return nil
			})
		},
	}
}

// LeaderboardCmd prints the guild's members sorted by level.
func LeaderboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "leaderboard GUILD",
		Aliases: []string{"lb"},
		Short:   "Show the guild leaderboard",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return withApp(cmd, func(ctx context.Context, a *app) error {
				var (
					members []guild.Member
					err     error
				)
				if limit > 0 {
					members, err = a.engine.Top(ctx, args[0], limit)
				} else {
					members, err = a.engine.Leaderboard(ctx, args[0])
				}
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "RANK\tMEMBER\tLEVEL\tXP")
				for i, m := range members {
					fmt.Fprintf(w, "%d\t%s\t%d\t%d\n", i+1, m.ID, m.Level, m.XP)
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().Int("limit", 0, "show only the first N members (0 = all)")
	return cmd
}

// PropertyCmd returns the add/subtract/set command group for xp or level.
func PropertyCmd(name string) *cobra.Command {
	prop, err := guild.ParseProperty(name)
	if err != nil {
		panic(err)
	}

	group := &cobra.Command{
		Use:   name,
		Short: fmt.Sprintf("Change a member's %s", name),
	}

	ops := []struct {
		use   string
		short string
	}{
		{"add", "Add %s to a member"},
		{"subtract", "Subtract %s from a member"},
		{"set", "Set a member's %s"},
	}
	for _, op := range ops {
		group.AddCommand(&cobra.Command{
			Use:   op.use + " GUILD MEMBER AMOUNT",
			Short: fmt.Sprintf(op.short, name),
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				amount, err := strconv.Atoi(args[2])
				if err != nil {
					return fmt.Errorf("amount must be an integer: %q", args[2])
				}
				return withApp(cmd, func(ctx context.Context, a *app) error {
					var m guild.Member
					switch op.use {
					case "add":
						m, err = a.engine.Add(ctx, args[0], args[1], prop, amount)
					case "subtract":
						m, err = a.engine.Subtract(ctx, args[0], args[1], prop, amount)
					case "set":
						m, err = a.engine.Set(ctx, args[0], args[1], prop, amount)
					}
					if err != nil {
						return err
					}
					printMember(cmd, args[0], m)
					return nil
				})
			},
		})
	}
	return group
}

func printMember(cmd *cobra.Command, guildID string, m guild.Member) {
	label := color.New(color.FgCyan).Sprint(guildID + "/" + m.ID)
	fmt.Fprintf(cmd.OutOrStdout(), "%s level %d, %d/%d xp\n", label, m.Level, m.XP, m.XPForNextLevel())
}
