// main.go --  This file is part of goHF project.
// Mirzaeva Irina, 2023
//
//	goHF is distributed in the hope that it will be useful,
//	but WITHOUT ANY WARRANTY; without even the implied warranty
//	of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
//	See the GNU General Public License for more details.
//
//	You should have received a copy of the GNU General Public License
//	along with this program.  If not, see http://www.gnu.org/licenses/
//
// ------------------------------------------------

// Command godiis reads a history of iterates from a block input file and
// writes the DIIS extrapolation of it.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type config struct {
	Output    string  `mapstructure:"output"`
	LogLevel  string  `mapstructure:"log_level"`
	NProcs    int     `mapstructure:"nprocs"`
	CondTol   float64 `mapstructure:"cond_tol"`
	MinWindow int     `mapstructure:"min_window"`
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:           "godiis [input]",
		Short:         "DIIS extrapolation of an iterate history",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if cfgFile == "" {
				return nil
			}
			v.SetConfigFile(cfgFile)
			return v.ReadInConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg config
			if err := v.Unmarshal(&cfg); err != nil {
				return err
			}
			if cfg.Output == "" {
				cfg.Output = outputName(args[0])
			}
			return execute(args[0], cfg, cmd.OutOrStdout())
		},
	}

	v.SetDefault("log_level", "info")
	v.SetDefault("nprocs", 1)
	v.SetDefault("cond_tol", 0.0)
	v.SetDefault("min_window", 2)
	v.SetEnvPrefix("GODIIS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	flags := cmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "YAML config file")
	flags.StringP("output", "o", "", "output file (default <input>.out)")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.Int("nprocs", 1, "workers for the B matrix")
	flags.Float64("cond-tol", 0, "condition number limit, 0 for the default, negative to disable")
	flags.Int("min-window", 2, "smallest history to extrapolate from")
	for _, name := range []string{"output", "log-level", "nprocs", "cond-tol", "min-window"} {
		_ = v.BindPFlag(strings.ReplaceAll(name, "-", "_"), flags.Lookup(name))
	}
	return cmd
}

// outputName replaces the extension of the input file name by "out".
func outputName(inpFname string) string {
	ext := filepath.Ext(inpFname)
	return strings.TrimSuffix(inpFname, ext) + ".out"
}

func newLogger(out io.Writer, level string) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(lvl)
	return logger, nil
}

func execute(inpFname string, cfg config, stdout io.Writer) error {
	file, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer file.Close()
	fmt.Fprintln(stdout, "Output file: ", cfg.Output)

	logger, err := newLogger(file, cfg.LogLevel)
	if err != nil {
		return err
	}
	logger.Info("Starting godiis...")

	inpData, err := ReadFileLines(inpFname)
	if err != nil {
		logger.WithError(err).Error("Cannot read input file")
		return err
	}
	fmt.Fprintln(file, "Input file content:")
	printOutputDelimiter(file)
	for _, line := range inpData {
		fmt.Fprintln(file, line)
	}
	printOutputDelimiter(file)

	inp, err := processInput(inpData)
	if err != nil {
		logger.WithError(err).Error("Parsing input")
		return err
	}
	if inp.NProcs > 0 {
		cfg.NProcs = inp.NProcs
	}
	if cfg.NProcs > runtime.GOMAXPROCS(0) {
		runtime.GOMAXPROCS(cfg.NProcs)
	}
	logger.WithFields(logrus.Fields{
		"slots":   len(inp.Slots),
		"complex": inp.Complex,
		"nprocs":  cfg.NProcs,
	}).Info("Parsing input done")

	ok, err := run(inp, cfg, file, logger)
	if err != nil {
		logger.WithError(err).Error("Building history")
		return err
	}
	if !ok {
		logger.Warn("No extrapolation, newest states kept")
	}
	logger.Info("Exiting godiis...")
	fmt.Fprintln(stdout, "godiis done.")
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "godiis:", err)
		os.Exit(1)
	}
}
