// Command djtl lexes, parses, checks and renders Django templates, and serves
// them for preview.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/deicod/godtl"
	"github.com/deicod/godtl/parser"
	"github.com/deicod/godtl/runtime"
)

const defaultConfig = "djtl.yaml"

// app holds the state shared by the subcommands
type app struct {
	configPath string
	verbose    bool

	cfg    *config
	logger *slog.Logger
	env    *runtime.Environment
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "djtl",
		Short:         "A tool to lex, parse, check and render Django templates",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd, stderr)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&a.configPath, "config", defaultConfig, "Path to the configuration file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(a.lexCmd(), a.parseCmd(), a.checkCmd(), a.renderCmd(), a.serveCmd())
	return root
}

func (a *app) setup(cmd *cobra.Command, stderr io.Writer) error {
	cfg, err := loadConfig(a.configPath, cmd.Flags().Changed("config"))
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := slog.LevelInfo
	if a.verbose || cfg.Debug {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(a.logger)

	a.env, err = cfg.environment(a.logger)
	return err
}

// report prints err as a diagnostic when it points into source
func report(w io.Writer, err error, source string) {
	if d, ok := godtl.NewDiagnostic(err, source); ok {
		fmt.Fprint(w, d)
		return
	}
	fmt.Fprintf(w, "error: %v\n", err)
}

// templateSource returns the text of the template err points into, which may
// be an included or parent template rather than name itself.
func templateSource(env *runtime.Environment, err error, name string) string {
	var parseErr *parser.ParseError
	var runtimeErr *runtime.Error
	switch {
	case errors.As(err, &parseErr) && parseErr.Name != "":
		name = parseErr.Name
	case errors.As(err, &runtimeErr) && runtimeErr.Name != "":
		name = runtimeErr.Name
	}
	source, loadErr := env.Loader().Load(name)
	if loadErr != nil {
		return ""
	}
	return source
}

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}
