// Command gpac is the GPAC circuit driver (spec §6): it loads a .gpac
// circuit specification, finalizes it, runs it through the fixed-step
// RK4 ODE driver, and optionally emits DOT/LaTeX/source-form exports.
// Grounded on the teacher's cmd/operator-cli main.go (cobra root
// command, logrus debug toggle via PreRunE) and cmd/operator-cli's
// pflag-bound subcommand flags.
package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mvance/gpac/export"
	"github.com/mvance/gpac/gpacfile"
	"github.com/mvance/gpac/ode"
	"github.com/mvance/gpac/simplify"
)

var (
	inputFile        string
	plotOutputFile   string
	upperBound       float64
	stepSize         float64
	dotFile          string
	latexFile        string
	toCode           bool
	noSimulation     bool
	noSimplification bool
	noFinalization   bool
	debug            bool
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "gpac: %+v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gpac [circuit-file]",
		Short: "Construct, normalize, and simulate GPAC circuits",
		Long: `gpac loads a .gpac circuit specification (spec §6), finalizes it
(normalize -> simplify -> validate), and integrates the resulting
polynomial initial-value problem with a fixed-step RK4 driver.`,
		Args: cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if debug {
				log.SetLevel(log.DebugLevel)
			}
			if len(args) == 1 && inputFile == "" {
				inputFile = args[0]
			}
			if inputFile == "" {
				return errors.New("no circuit file given (positional argument or -i)")
			}
			return nil
		},
		RunE: runGPAC,
	}

	flags := cmd.Flags()
	flags.StringVarP(&inputFile, "input", "i", "", "input circuit specification")
	flags.StringVarP(&plotOutputFile, "output", "o", "", "output time-series file (written as CSV; no PDF plot is produced)")
	flags.Float64VarP(&upperBound, "bound", "b", 5.0, "simulation upper bound")
	flags.Float64VarP(&stepSize, "step", "s", 0.001, "RK4 step size")
	flags.StringVarP(&dotFile, "dot", "d", "", "write DOT graph to file")
	flags.StringVar(&latexFile, "to-latex", "", "write LaTeX pIVP form to file")
	flags.BoolVar(&toCode, "to-code", false, "emit source-form dump to stdout")
	flags.BoolVar(&noSimulation, "no-simulation", false, "suppress the simulation pass")
	flags.BoolVar(&noSimplification, "no-simplification", false, "suppress the simplifier pass")
	flags.BoolVar(&noFinalization, "no-finalization", false, "suppress finalize entirely (implies --no-simulation)")
	flags.BoolVar(&debug, "debug", false, "enable debug logging")
	_ = flags.MarkHidden("debug")

	if err := viper.BindPFlags(flags); err != nil {
		log.WithError(err).Warn("failed to bind flags to viper")
	}
	viper.SetEnvPrefix("gpac")
	viper.AutomaticEnv()

	return cmd
}

func runGPAC(cmd *cobra.Command, args []string) error {
	doc, err := gpacfile.Load(inputFile)
	if err != nil {
		return errors.Wrap(err, "loading circuit")
	}
	c := doc.Main
	log.WithFields(log.Fields{"circuit": c.Name, "defined": len(doc.Circuits)}).Info("loaded circuit file")

	if !noFinalization {
		if err := simplify.Finalize(c, !noSimplification); err != nil {
			return errors.Wrap(err, "finalizing circuit")
		}
	}

	if dotFile != "" {
		if err := writeToFile(dotFile, func(f *os.File) { export.DOT(f, c) }); err != nil {
			return errors.Wrap(err, "writing DOT output")
		}
	}
	if latexFile != "" {
		if err := writeToFile(latexFile, func(f *os.File) { export.LaTeX(f, c) }); err != nil {
			return errors.Wrap(err, "writing LaTeX output")
		}
	}
	if toCode {
		export.SourceDump(os.Stdout, c)
	}

	if noSimulation || noFinalization {
		return nil
	}

	times, outputs, err := ode.Simulate(c, 0, upperBound, stepSize)
	if err != nil {
		return errors.Wrap(err, "simulating circuit")
	}

	if plotOutputFile != "" {
		log.WithField("file", plotOutputFile).Warn("plotting to PDF is an external collaborator concern (spec §1); writing a CSV time series instead")
		if err := writeSeriesCSV(plotOutputFile, times, outputs); err != nil {
			return errors.Wrap(err, "writing output series")
		}
		return nil
	}

	for i := range times {
		fmt.Printf("%g\t%g\n", times[i], outputs[i])
	}
	return nil
}

func writeToFile(path string, write func(*os.File)) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	write(f)
	return nil
}

func writeSeriesCSV(path string, times, outputs []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	for i := range times {
		if _, err := fmt.Fprintf(f, "%g,%g\n", times[i], outputs[i]); err != nil {
			return err
		}
	}
	return nil
}
