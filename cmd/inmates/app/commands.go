// Package app implements the inmates command tree.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"inmates/internal/inmates/bootstrap"
	"inmates/internal/inmates/metrics"
	"inmates/internal/inmates/models"
	"inmates/internal/inmates/service"
	"inmates/internal/platform/config"
	"inmates/internal/platform/logger"
)

// Exit codes. A lookup where some provider failed still exits 0.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitInvalid = 2
)

// usageError marks failures caused by the invocation rather than the lookup.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// options holds the persistent flag values.
type options struct {
	jurisdictions []string
	timeout       time.Duration
	json          bool
	logLevel      string
}

// lookupFunc runs one lookup against the service. Tests swap the service.
type lookupFunc func(ctx context.Context, svc *service.Service, js []models.Jurisdiction) (models.Result, error)

// Execute runs the command tree and returns the process exit code.
func Execute(args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCmd(nil)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	return exitCode(err)
}

func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var usage *usageError
	var invalid *models.InvalidQueryError
	if errors.As(err, &usage) || errors.As(err, &invalid) {
		return ExitInvalid
	}
	return ExitFailure
}

// NewRootCmd builds the command tree. A nil newService builds the real
// provider stack from the environment.
func NewRootCmd(newService func(cfg config.Config, log *slog.Logger) (*service.Service, error)) *cobra.Command {
	if newService == nil {
		newService = defaultService
	}
	opts := &options{}

	root := &cobra.Command{
		Use:           "inmates",
		Short:         "Look up inmates across state and federal prison systems",
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `inmates queries the Texas Department of Criminal Justice and the Federal
Bureau of Prisons concurrently and prints the merged matches. A source that
fails is reported alongside the matches from the sources that answered.`,
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})
	root.PersistentFlags().StringSliceVarP(&opts.jurisdictions, "jurisdiction", "j", nil, "Restrict the lookup to these jurisdictions (texas, federal)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 60*time.Second, "Overall lookup deadline")
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "Print the result as JSON")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "error", "Log level written to stderr")

	root.AddCommand(&cobra.Command{
		Use:     "id <number>",
		Short:   "Look up an inmate by number",
		Example: "  inmates id 01234567\n  inmates id 12345678 --jurisdiction federal",
		Args:    exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLookup(cmd, opts, newService, func(ctx context.Context, svc *service.Service, js []models.Jurisdiction) (models.Result, error) {
				return svc.QueryByID(ctx, args[0], js...)
			})
		},
	})

	root.AddCommand(&cobra.Command{
		Use:     "name <first> <last>",
		Short:   "Look up inmates by name",
		Example: "  inmates name John Smith\n  inmates name \"\" Smith --json",
		Args:    exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLookup(cmd, opts, newService, func(ctx context.Context, svc *service.Service, js []models.Jurisdiction) (models.Result, error) {
				return svc.QueryByName(ctx, args[0], args[1], js...)
			})
		},
	})

	root.AddCommand(newTokenCmd())
	return root
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return &usageError{err: err}
		}
		return nil
	}
}

func runLookup(cmd *cobra.Command, opts *options, newService func(config.Config, *slog.Logger) (*service.Service, error), lookup lookupFunc) error {
	js, err := parseJurisdictions(opts.jurisdictions)
	if err != nil {
		return report(cmd, err)
	}

	cfg, err := config.FromEnv()
	if err != nil {
		return report(cmd, &usageError{err: fmt.Errorf("invalid configuration: %w", err)})
	}
	log := logger.NewWithWriter(cmd.ErrOrStderr(), opts.logLevel, "text")

	svc, err := newService(cfg, log)
	if err != nil {
		return report(cmd, err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	result, err := lookup(ctx, svc, js)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return report(cmd, err)
	}

	if opts.json {
		if werr := writeJSON(cmd.OutOrStdout(), result); werr != nil {
			return werr
		}
	} else if werr := writeTable(cmd.OutOrStdout(), result); werr != nil {
		return werr
	}

	if err != nil {
		return report(cmd, fmt.Errorf("lookup incomplete: %w", err))
	}
	return nil
}

func report(cmd *cobra.Command, err error) error {
	fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
	return err
}

func parseJurisdictions(names []string) ([]models.Jurisdiction, error) {
	js := make([]models.Jurisdiction, 0, len(names))
	for _, name := range names {
		j, err := models.ParseJurisdiction(name)
		if err != nil {
			return nil, err
		}
		js = append(js, j)
	}
	return js, nil
}

// defaultService builds the uncached, unaudited lookup stack.
func defaultService(cfg config.Config, log *slog.Logger) (*service.Service, error) {
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	coord, err := bootstrap.Coordinator(cfg.Providers, log, m)
	if err != nil {
		return nil, err
	}
	return service.New(coord, service.WithLogger(log), service.WithMetrics(m))
}
