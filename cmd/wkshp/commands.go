package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
	"gopkg.in/yaml.v3"

	"github.com/matflow/wkshp/internal/config"
	"github.com/matflow/wkshp/internal/taskdb"
	"github.com/matflow/wkshp/internal/tasklabel"
	"github.com/matflow/wkshp/internal/version"
	"github.com/matflow/wkshp/internal/wfplot"
	"github.com/matflow/wkshp/internal/workflow"
)

func newRootCmd() *cobra.Command {
	var (
		dbFile  string
		timeout time.Duration
	)

	root := &cobra.Command{
		Use:          "wkshp",
		Short:        "Materials workflow workshop helpers",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&dbFile, "db-file", "", "path to db.json credentials (default $"+config.DBFileEnv+")")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 60*time.Second, "database operation timeout")

	dbContext := func(cmd *cobra.Command) (context.Context, context.CancelFunc, string, error) {
		path, err := config.ResolveDBFile(dbFile)
		if err != nil {
			return nil, nil, "", err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		return ctx, cancel, path, nil
	}

	root.AddCommand(
		newTasksCmd(dbContext),
		newBandStructureCmd(dbContext),
		newDosCmd(dbContext),
		newFakeCmd(),
		newPlotCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print build information",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), version.String())
			},
		},
	)
	return root
}

type dbContextFunc func(cmd *cobra.Command) (context.Context, context.CancelFunc, string, error)

func newTasksCmd(dbContext dbContextFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "Show the latest task for each band-structure stage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel, path, err := dbContext(cmd)
			if err != nil {
				return err
			}
			defer cancel()

			s, err := taskdb.TaskCollection(ctx, path)
			if err != nil {
				return err
			}
			defer s.Close(ctx)

			tasks, err := taskdb.LatestTasks(ctx, s.Collection)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, label := range tasklabel.BandStructure {
				t := tasks.Get(label)
				fmt.Fprintf(out, "%-24s %s task_id=%v formula=%s\n", label, t.IDString(), t.TaskID, t.FormulaPretty)
			}
			return nil
		},
	}
}

func newBandStructureCmd(dbContext dbContextFunc) *cobra.Command {
	return &cobra.Command{
		Use:     "bandstructure",
		Aliases: []string{"bs"},
		Short:   "Load the latest nscf line band structure",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel, path, err := dbContext(cmd)
			if err != nil {
				return err
			}
			defer cancel()

			bs, err := taskdb.BandStructure(ctx, path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "efermi=%.4f kpoints=%d bands=%d spin_polarized=%t metal=%t\n",
				bs.Efermi, len(bs.Kpoints), bs.NumBands(), bs.IsSpinPolarized, bs.IsMetal())
			return nil
		},
	}
}

func newDosCmd(dbContext dbContextFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "dos",
		Short: "Load the latest nscf uniform density of states",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel, path, err := dbContext(cmd)
			if err != nil {
				return err
			}
			defer cancel()

			dos, err := taskdb.Dos(ctx, path)
			if err != nil {
				return err
			}
			total := dos.TotalDensities()
			peak := 0.0
			if len(total) > 0 {
				peak = floats.Max(total)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "efermi=%.4f energies=%d spin_polarized=%t peak_density=%.4f\n",
				dos.Efermi, len(dos.Energies), dos.IsSpinPolarized(), peak)
			return nil
		},
	}
}

func newFakeCmd() *cobra.Command {
	var (
		wfPath       string
		refDir       string
		outPath      string
		deformations int
	)

	run := func(rewire func(*workflow.Workflow) *workflow.Workflow) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			wf, err := workflow.Load(nil, wfPath)
			if err != nil {
				return err
			}
			wf = rewire(wf)
			if outPath == "" {
				return yaml.NewEncoder(cmd.OutOrStdout()).Encode(wf)
			}
			if err := workflow.Save(nil, outPath, wf); err != nil {
				return err
			}
			log.Printf("wrote %s", outPath)
			return nil
		}
	}

	fake := &cobra.Command{
		Use:   "fake",
		Short: "Substitute recorded VASP runs into a workflow",
	}
	fake.PersistentFlags().StringVarP(&wfPath, "workflow", "w", "", "workflow file (YAML or JSON)")
	fake.PersistentFlags().StringVar(&refDir, "ref-dir", config.DefaultRefDir, "base directory of recorded runs")
	fake.PersistentFlags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")
	_ = fake.MarkPersistentFlagRequired("workflow")

	bs := &cobra.Command{
		Use:   "bandstructure",
		Short: "Replay the four-stage Si band-structure runs",
		Args:  cobra.NoArgs,
		RunE: run(func(wf *workflow.Workflow) *workflow.Workflow {
			return workflow.SimulateBandStructureRun(wf, refDir)
		}),
	}

	elastic := &cobra.Command{
		Use:   "elasticity",
		Short: "Replay the Si elasticity runs",
		Args:  cobra.NoArgs,
		RunE: run(func(wf *workflow.Workflow) *workflow.Workflow {
			return workflow.SimulateElasticityRun(wf, make([]workflow.Deformation, deformations), refDir)
		}),
	}
	elastic.Flags().IntVarP(&deformations, "deformations", "n", 6, "number of deformation stages")

	fake.AddCommand(bs, elastic)
	return fake
}

func newPlotCmd() *cobra.Command {
	opt := wfplot.DefaultOptions()
	var (
		wfPath   string
		outPath  string
		noLabels bool
	)

	cmd := &cobra.Command{
		Use:   "plot",
		Short: "Draw a workflow graph (png, svg, pdf or html)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			wf, err := workflow.Load(nil, wfPath)
			if err != nil {
				return err
			}
			opt.LabelsOn = !noLabels
			if opt.Title == "" {
				opt.Title = wf.Name
			}
			d, err := wfplot.Layout(wf, opt)
			if err != nil {
				return err
			}
			if err := wfplot.Save(nil, d, outPath); err != nil {
				return err
			}
			log.Printf("wrote %s (%d edges)", outPath, len(d.Segments))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&wfPath, "workflow", "w", "", "workflow file (YAML or JSON)")
	f.StringVarP(&outPath, "out", "o", "workflow.png", "output file; extension selects the format")
	f.BoolVar(&noLabels, "no-labels", false, "omit node labels")
	f.BoolVar(&opt.NumericalLabel, "numeric", false, "label nodes by id instead of name")
	f.Float64Var(&opt.DepthFactor, "depth", opt.DepthFactor, "vertical spacing factor")
	f.Float64Var(&opt.BreadthFactor, "breadth", opt.BreadthFactor, "horizontal spacing factor")
	f.Float64Var(&opt.TextLocFactor, "text-loc", opt.TextLocFactor, "label position scale factor")
	f.Float64Var(&opt.FontSize, "font-size", opt.FontSize, "label font size in points")
	f.StringVar(&opt.Title, "title", "", "diagram title (default workflow name)")
	_ = cmd.MarkFlagRequired("workflow")
	return cmd
}
