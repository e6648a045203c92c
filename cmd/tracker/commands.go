package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cory-johannsen/initiative/internal/config"
	"github.com/cory-johannsen/initiative/internal/game/combat"
	"github.com/cory-johannsen/initiative/internal/game/dice"
	"github.com/cory-johannsen/initiative/internal/observability"
	"github.com/cory-johannsen/initiative/internal/scenario"
	"github.com/cory-johannsen/initiative/internal/scripting"
)

// newRootCmd builds the command tree. Reports are written to out.
func newRootCmd(out io.Writer) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "tracker",
		Short:         "Combat encounter tracker",
		Long:          `tracker plays tabletop combat encounters: initiative order, hit points, death saves and conditions.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to configuration file (defaults and TRACKER_* env when empty)")

	check := &cobra.Command{
		Use:   "check <scenario.yaml>...",
		Short: "Validate scenario files without running them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				sc, err := scenario.LoadFile(path)
				if err != nil {
					failed++
					fmt.Fprintf(out, "FAIL %s: %v\n", path, err)
					continue
				}
				fmt.Fprintf(out, "ok   %s (%q: %d combatants, %d steps)\n", path, sc.Name, len(sc.Combatants), len(sc.Steps))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d scenarios invalid", failed, len(args))
			}
			return nil
		},
	}

	run := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Play a scenario and print each step and the final roster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			logger, err := observability.NewLogger(cfg.Logging)
			if err != nil {
				return fmt.Errorf("initializing logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck

			sc, err := scenario.LoadFile(args[0])
			if err != nil {
				return err
			}
			return play(out, cfg, logger, dice.NewLoggedRoller(dice.NewCryptoSource(), logger), sc)
		},
	}

	root.AddCommand(check, run)
	return root
}

// play runs sc on a fresh encounter and writes the report to out.
func play(out io.Writer, cfg config.Config, logger *zap.Logger, roller *dice.Roller, sc *scenario.Scenario) error {
	enc := combat.NewEncounter(
		combat.WithLogger(logger),
		combat.WithMinCombatants(cfg.Encounter.MinCombatants),
	)
	opts := []scenario.Option{scenario.WithLogger(logger)}
	if cfg.Scripting.Enabled {
		mgr := scripting.NewManager(roller, logger, cfg.Scripting.InstructionLimit)
		defer mgr.Close()
		opts = append(opts, scenario.WithScripts(mgr))
	}
	runner := scenario.NewRunner(enc, roller, opts...)

	fmt.Fprintf(out, "== %s ==\n", sc.Name)
	if sc.Description != "" {
		fmt.Fprintln(out, sc.Description)
	}
	results, err := runner.Run(sc)
	for _, res := range results {
		fmt.Fprintf(out, "%3d %-19s %s\n", res.Index, res.Action, res.Detail)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	return writeRoster(out, enc)
}

func writeRoster(out io.Writer, enc *combat.Encounter) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "\tNAME\tSIDE\tINIT\tHP\tSTATE\tCONDITIONS\n")
	current := enc.Current()
	for _, c := range enc.Combatants() {
		marker := ""
		if current != nil && c.ID == current.ID {
			marker = ">"
		}
		names := make([]string, 0, len(c.Conditions()))
		for _, cond := range c.Conditions() {
			names = append(names, cond.Name.String())
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d/%d\t%s\t%s\n",
			marker, c.Name, c.Side, c.Initiative(), c.HP(), c.CurrentMaxHP(), c.State(), strings.Join(names, ","))
	}
	defeat := enc.CheckTeamDefeat()
	fmt.Fprintf(tw, "\nround %d\tallies down: %t\tenemies down: %t\n", enc.Round(), defeat.AlliesDisabled, defeat.EnemiesDisabled)
	return tw.Flush()
}
