package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pthm-cable/multiverse/config"
	"github.com/pthm-cable/multiverse/game"
	"github.com/pthm-cable/multiverse/regions"
	"github.com/pthm-cable/multiverse/store"
)

// Survey flags
var (
	surveyUniverses int
	surveyAge       float64
	surveyRegions   int
	surveyCatalog   string
	surveyTop       int
	surveyParallel  int

	surveyCmd = &cobra.Command{
		Use:   "survey",
		Short: "Catalogue life across many generated universes",
		Long: `Generates universes with consecutive seeds starting at the configured
seed, brings the densest regions of each to planetary detail at a target age
and catalogues every inhabited planet. Prints the most complex biospheres.`,
		RunE: runSurvey,
	}
)

func init() {
	flags := surveyCmd.Flags()
	flags.IntVar(&surveyUniverses, "universes", 16, "Number of universes to generate")
	flags.Float64Var(&surveyAge, "age", 13.8, "Universe age to survey at, Gyr")
	flags.IntVar(&surveyRegions, "regions", 4, "Densest regions per universe brought to planetary detail")
	flags.StringVar(&surveyCatalog, "catalog", "survey.db", "SQLite catalogue file (\":memory:\" to discard)")
	flags.IntVar(&surveyTop, "top", 20, "Number of discoveries to print")
	flags.IntVar(&surveyParallel, "parallel", runtime.GOMAXPROCS(0), "Universes generated concurrently")
}

func runSurvey(cmd *cobra.Command, args []string) error {
	if surveyUniverses <= 0 || surveyAge < 0 {
		return fmt.Errorf("%w: survey needs a positive universe count and a non-negative age", config.ErrInvalid)
	}

	catalog, err := store.OpenCatalog(surveyCatalog)
	if err != nil {
		return err
	}
	defer catalog.Close()

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(max(surveyParallel, 1))
	for i := 0; i < surveyUniverses; i++ {
		c := *cfg
		c.Universe.Seed += int64(i)
		g.Go(func() error {
			return surveyUniverse(ctx, &c, catalog)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	total, err := catalog.Count(cmd.Context())
	if err != nil {
		return err
	}
	top, err := catalog.Top(cmd.Context(), surveyTop)
	if err != nil {
		return err
	}
	slog.Info("survey complete", "universes", surveyUniverses, "age_gyr", surveyAge, "discoveries", total)
	return printDiscoveries(cmd.OutOrStdout(), top)
}

// surveyUniverse generates one universe's first cycle at the survey age and
// catalogues the life found in its densest regions.
func surveyUniverse(ctx context.Context, c *config.Config, catalog *store.Catalog) error {
	if err := c.Validate(); err != nil {
		return err
	}
	universe := c.Derived.Seed
	m := regions.NewManager(c, game.CycleSeed(universe, 1), nil)
	defer m.Close()

	if err := m.Bootstrap(ctx, surveyAge); err != nil {
		return err
	}
	for _, coord := range m.Ranked(surveyRegions) {
		if _, err := m.Ensure(ctx, coord, regions.LODPlanetary); err != nil {
			return err
		}
	}

	var found []store.Discovery
	for _, ref := range m.WithLife() {
		p, ok := m.Planet(ref)
		if !ok {
			continue
		}
		if d, ok := store.NewDiscovery(universe, 1, surveyAge, ref, p); ok {
			found = append(found, d)
		}
	}
	life, civs := m.Discoveries()
	slog.Debug("universe surveyed", "seed", c.Universe.Seed, "life", life, "civilizations", civs)
	if len(found) == 0 {
		return nil
	}
	return catalog.Insert(ctx, found...)
}

func printDiscoveries(w io.Writer, ds []store.Discovery) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "UNIVERSE\tPLANET\tTYPE\tTEMP_K\tCOMPLEXITY\tSTAGE\tSPECIES\tTECH\tGENOME")
	for _, d := range ds {
		fmt.Fprintf(tw, "%d\t%d/%d/%d\t%s\t%.0f\t%.2f\t%s\t%d\t%t\t%s\n",
			d.Universe, d.Ref.Region, d.Ref.Star, d.Ref.Planet,
			d.PlanetType, d.Temperature, d.Complexity, d.Stage, d.Species, d.Technology, d.Genome)
	}
	return tw.Flush()
}
