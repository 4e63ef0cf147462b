package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gogrowth/adapters/export"
	"gogrowth/adapters/ingest"
	"gogrowth/app"
	"gogrowth/internal"
	"gogrowth/internal/band"
	"gogrowth/internal/config"
	"gogrowth/internal/testkit"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "gogrowth-cli",
		Short: "Growth-curve smoothing, log-phase detection and parameter extraction",
	}

	rootCmd.AddCommand(
		newSmoothCmd(),
		newDetectCmd(),
		newParamsCmd(),
		newBandCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadPipeline builds a pipeline from env config plus flag overrides and
// loads the dataset file into it.
func loadPipeline(datasetPath string, span float64, degree, robustIter int) (*app.Pipeline, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if span > 0 {
		cfg.Smoothing.Span = span
	}
	if degree > 0 {
		cfg.Smoothing.Degree = degree
	}
	if robustIter > 0 {
		cfg.Smoothing.RobustIterations = robustIter
	}

	reader := ingest.NewDataReader(datasetPath)
	ds, err := reader.ReadDataset()
	if err != nil {
		return nil, nil, err
	}

	logger := internal.NewDefaultLogger()
	pipeline := app.NewPipeline(cfg, logger, testkit.NewRNGAdapter(cfg.Band.Seed))
	n := pipeline.LoadDataset(ds)
	logger.Info("loaded %d samples from %s", n, datasetPath)
	return pipeline, cfg, nil
}

func newSmoothCmd() *cobra.Command {
	var span float64
	var degree, robustIter int
	var out string

	cmd := &cobra.Command{
		Use:   "smooth [dataset]",
		Short: "Smooth all sample curves and write the smoothed-curves payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeline, _, err := loadPipeline(args[0], span, degree, robustIter)
			if err != nil {
				return err
			}
			outcomes, err := pipeline.SmoothAll(context.Background())
			if err != nil {
				return err
			}
			for _, o := range outcomes {
				if o.Err != "" {
					fmt.Fprintf(os.Stderr, "%s: %s\n", o.Sample, o.Err)
					continue
				}
				fmt.Printf("%s: %d passes, converged=%v\n", o.Sample, o.Passes, o.Converged)
			}
			pipeline.DetectAll(false)

			samples, phases, source := pipeline.Snapshot()
			payload := export.BuildSmoothedPayload(samples, phases, source, pipeline.SmoothingInfo())
			return writeJSONFile(out, payload)
		},
	}

	cmd.Flags().Float64Var(&span, "span", 0, "LOESS span (fraction <1 or window points)")
	cmd.Flags().IntVar(&degree, "degree", 0, "local polynomial degree, 1 or 2")
	cmd.Flags().IntVar(&robustIter, "robust-iterations", 0, "robust reweighting passes")
	cmd.Flags().StringVarP(&out, "out", "o", "-", "output path, - for stdout")
	return cmd
}

func newDetectCmd() *cobra.Command {
	var span float64
	var degree, robustIter int

	cmd := &cobra.Command{
		Use:   "detect [dataset]",
		Short: "Smooth and report the detected log phase per sample",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeline, _, err := loadPipeline(args[0], span, degree, robustIter)
			if err != nil {
				return err
			}
			if _, err := pipeline.SmoothAll(context.Background()); err != nil {
				return err
			}
			for sample, det := range pipeline.DetectAll(false) {
				if !det.Detected() {
					fmt.Printf("%s: no log phase detected\n", sample)
					continue
				}
				fmt.Printf("%s: [%.1f, %.1f] min, muMax=%.5f 1/min\n",
					sample, *det.StartTime, *det.EndTime, *det.MuMax)
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&span, "span", 0, "LOESS span (fraction <1 or window points)")
	cmd.Flags().IntVar(&degree, "degree", 0, "local polynomial degree, 1 or 2")
	cmd.Flags().IntVar(&robustIter, "robust-iterations", 0, "robust reweighting passes")
	return cmd
}

func newParamsCmd() *cobra.Command {
	var span float64
	var degree, robustIter int
	var thresholds []float64
	var out, csvOut, xlsxOut string

	cmd := &cobra.Command{
		Use:   "params [dataset]",
		Short: "Extract growth parameters and write JSON/CSV/XLSX exports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeline, cfg, err := loadPipeline(args[0], span, degree, robustIter)
			if err != nil {
				return err
			}
			if _, err := pipeline.SmoothAll(context.Background()); err != nil {
				return err
			}
			pipeline.DetectAll(false)

			if len(thresholds) == 0 {
				thresholds = cfg.Data.Thresholds
			}
			exp, err := pipeline.ComputeParameters(context.Background(), thresholds)
			if err != nil {
				return err
			}

			if csvOut != "" {
				f, err := os.Create(csvOut)
				if err != nil {
					return err
				}
				defer f.Close()
				if err := export.WriteParametersCSV(f, exp); err != nil {
					return err
				}
			}
			if xlsxOut != "" {
				if err := export.WriteParametersXLSX(xlsxOut, exp); err != nil {
					return err
				}
			}
			if csvOut == "" && xlsxOut == "" || out != "" {
				if out == "" {
					out = "-"
				}
				return writeJSONFile(out, exp)
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&span, "span", 0, "LOESS span (fraction <1 or window points)")
	cmd.Flags().IntVar(&degree, "degree", 0, "local polynomial degree, 1 or 2")
	cmd.Flags().IntVar(&robustIter, "robust-iterations", 0, "robust reweighting passes")
	cmd.Flags().Float64SliceVar(&thresholds, "thresholds", nil, "detection OD thresholds")
	cmd.Flags().StringVarP(&out, "out", "o", "", "JSON output path, - for stdout")
	cmd.Flags().StringVar(&csvOut, "csv", "", "CSV output path")
	cmd.Flags().StringVar(&xlsxOut, "xlsx", "", "XLSX output path")
	return cmd
}

func newBandCmd() *cobra.Command {
	var span float64
	var degree, robustIter int
	var mode string

	cmd := &cobra.Command{
		Use:   "band [dataset] [sample]",
		Short: "Estimate the resampling confidence band for one sample",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeline, _, err := loadPipeline(args[0], span, degree, robustIter)
			if err != nil {
				return err
			}
			b, err := pipeline.EstimateBand(context.Background(), args[1], band.Mode(strings.ToLower(mode)))
			if err != nil {
				return err
			}
			if b == nil {
				fmt.Printf("%s: fewer than 2 wells, no band available\n", args[1])
				return nil
			}
			return writeJSONFile("-", b)
		},
	}

	cmd.Flags().Float64Var(&span, "span", 0, "LOESS span (fraction <1 or window points)")
	cmd.Flags().IntVar(&degree, "degree", 0, "local polynomial degree, 1 or 2")
	cmd.Flags().IntVar(&robustIter, "robust-iterations", 0, "robust reweighting passes")
	cmd.Flags().StringVar(&mode, "mode", "pointwise", "band mode: pointwise or simultaneous")
	return cmd
}

func writeJSONFile(path string, payload interface{}) error {
	if path == "-" {
		return export.WriteJSON(os.Stdout, payload)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return export.WriteJSON(f, payload)
}
