package cmd

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pthm-cable/multiverse/regions"
	"github.com/pthm-cable/multiverse/soul"
	"github.com/pthm-cable/multiverse/store"
	"github.com/pthm-cable/multiverse/systems"
	"github.com/pthm-cable/multiverse/telemetry"
)

// Inspect flags
var (
	inspectBadger string
	inspectList   bool
	inspectSouls  int

	inspectCmd = &cobra.Command{
		Use:   "inspect [snapshot]",
		Short: "Summarize a snapshot",
		Long: `Prints a summary of a snapshot file, or of a snapshot stored in a badger
directory when --badger is given (the key defaults to "latest").`,
		Args: cobra.MaximumNArgs(1),
		RunE: runInspect,
	}
)

func init() {
	flags := inspectCmd.Flags()
	flags.StringVar(&inspectBadger, "badger", "", "Badger directory to read from")
	flags.BoolVar(&inspectList, "list", false, "List the snapshots stored in the badger directory")
	flags.IntVar(&inspectSouls, "souls", 10, "Number of longest-lived souls to print")
}

func runInspect(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if inspectBadger == "" {
		if len(args) == 0 {
			return errors.New("inspect needs a snapshot file or --badger")
		}
		snap, err := telemetry.LoadSnapshot(args[0])
		if err != nil {
			return err
		}
		return printSnapshot(out, snap, inspectSouls)
	}

	db, err := store.OpenBadger(store.BadgerConfig{Path: inspectBadger})
	if err != nil {
		return err
	}
	defer db.Close()

	if inspectList {
		names, err := db.Snapshots()
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Fprintln(out, name)
		}
		return nil
	}

	name := latestSnapshot
	if len(args) > 0 {
		name = args[0]
	}
	snap, err := db.LoadSnapshot(name)
	if err != nil {
		return err
	}
	return printSnapshot(out, snap, inspectSouls)
}

// printSnapshot writes a human-readable summary of snap.
func printSnapshot(w io.Writer, snap *telemetry.Snapshot, souls int) error {
	var levels [regions.NumLODs]int
	var life int
	for i := range snap.Regions {
		levels[snap.Regions[i].LOD]++
		life += len(snap.Regions[i].Life)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "tick\t%d\n", snap.Tick)
	fmt.Fprintf(tw, "seed\t%d\n", snap.Config.Universe.Seed)
	fmt.Fprintf(tw, "cycle\t%d\n", snap.Clock.Cycle)
	fmt.Fprintf(tw, "phase\t%s\n", snap.Clock.Phase)
	fmt.Fprintf(tw, "age\t%.4f Gyr\n", snap.Clock.Age)
	fmt.Fprintf(tw, "entropy\t%.1f / %.1f\n", snap.Clock.Entropy, snap.Config.Universe.MaxEntropy)
	fmt.Fprintf(tw, "time scale\t%g\n", snap.TimeScale)
	fmt.Fprintf(tw, "particles\t%d alive of %d\n", systems.AliveCount(snap.Particles), len(snap.Particles))
	for lod, n := range levels {
		fmt.Fprintf(tw, "regions %s\t%d\n", regions.LOD(lod), n)
	}
	fmt.Fprintf(tw, "inhabited planets\t%d\n", life)
	fmt.Fprintf(tw, "creatures\t%d on %d planets\n", len(snap.Creatures), len(snap.Homes))
	fmt.Fprintf(tw, "lineages\t%d\n", len(snap.Lineages))
	fmt.Fprintf(tw, "souls\t%d\n", len(snap.Ledger))
	if snap.Bookmark != nil {
		fmt.Fprintf(tw, "bookmark\t%s: %s\n", snap.Bookmark.Type, snap.Bookmark.Description)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if souls <= 0 || len(snap.Ledger) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	return printSouls(w, snap.Ledger, souls)
}

// printSouls lists the n longest-lived souls.
func printSouls(w io.Writer, ledger []soul.Soul, n int) error {
	sorted := slices.Clone(ledger)
	slices.SortStableFunc(sorted, func(a, b soul.Soul) int {
		return cmp.Compare(b.Lifespan, a.Lifespan)
	})
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LINEAGE\tLIFESPAN_GYR\tCYCLES\tGENERATIONS\tCONDITIONS\tGENOME")
	for _, s := range sorted[:min(n, len(sorted))] {
		fmt.Fprintf(tw, "%s\t%.4f\t%d\t%d\t%s\t%s\n",
			s.Lineage, s.Lifespan, s.Cycles, s.Generations, s.Conditions, s.Genome.Short())
	}
	return tw.Flush()
}
