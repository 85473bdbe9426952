package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shirou/gopsutil/v3/process"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/srediag/shm-pool/internal/config"
	"github.com/srediag/shm-pool/pkg/health"
	"github.com/srediag/shm-pool/pkg/pool"
)

// NewOfficeCommand returns the ticket-office root command.
func NewOfficeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ticket-office [total_tickets] [segment_name] [token_name]",
		Short: "Create a ticket pool and report on it until it is sold out",
		Long: `ticket-office creates a named shared memory segment holding the ticket
counters and a named token guarding them, then prints a report every period
until every ticket is sold or it is interrupted. Both names are removed on
exit. Buyers attach with the same names.`,
		Args: cobra.MaximumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ownerConfig(cmd, args)
			if err != nil {
				return err
			}
			return runOffice(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}
	addCommonFlags(cmd.PersistentFlags())
	cmd.Flags().Duration("period", 0, "report period (default $SHMPOOL_REPORT_PERIOD or 1s)")
	cmd.Flags().String("admin-addr", "", "serve /live, /ready, /state and /metrics on this address")

	cmd.AddCommand(newCleanCommand(), newStatusCommand())
	return silence(cmd)
}

func ownerConfig(cmd *cobra.Command, args []string) (*config.OwnerConfig, error) {
	cfg, err := config.LoadOwner()
	if err != nil {
		return nil, err
	}
	if err := applyCommonFlags(cmd.Flags(), &cfg.Names, &cfg.LogConfig); err != nil {
		return nil, err
	}
	if len(args) > 0 {
		if cfg.Total, err = config.ParseTotal(args[0]); err != nil {
			return nil, err
		}
		applyNameArgs(args[1:], &cfg.Names)
	}
	if cmd.Flags().Changed("period") {
		if cfg.ReportPeriod, err = cmd.Flags().GetDuration("period"); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("admin-addr") {
		if cfg.AdminAddr, err = cmd.Flags().GetString("admin-addr"); err != nil {
			return nil, err
		}
	}
	return cfg, cfg.Verify()
}

func runOffice(ctx context.Context, cfg *config.OwnerConfig, out io.Writer) (err error) {
	log, err := newLogger(cfg.LogConfig)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := withSignals(ctx)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := pool.NewOwnerMetrics(reg)

	owner, err := pool.Create(ctx, pool.OwnerConfig{Names: poolNames(cfg.Names), Total: cfg.Total},
		pool.WithLogger(log), pool.WithMetrics(metrics))
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, owner.Teardown())
	}()

	g, gctx := errgroup.WithContext(ctx)
	adminCtx, stopAdmin := context.WithCancel(gctx)
	defer stopAdmin()
	g.Go(func() error {
		defer stopAdmin()
		return owner.ReportLoop(gctx, cfg.ReportPeriod, out)
	})
	if cfg.AdminAddr != "" {
		srv := health.NewServer(cfg.AdminAddr, owner, reg, log)
		g.Go(func() error { return srv.Run(adminCtx) })
	}
	err = g.Wait()
	if interrupted(ctx) {
		_, _ = io.WriteString(out, "\n")
		log.Info("interrupted", zap.Stringer("state", owner.State()))
	}
	return err
}

func newCleanCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clean [segment_name] [token_name]",
		Short: "Remove a segment and token left behind by a ticket office that crashed",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			names, _, err := namesConfig(cmd, args)
			if err != nil {
				return err
			}
			removed, err := pool.Remove(poolNames(names))
			for _, r := range removed {
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s %s\n", r.Kind, r.Path)
			}
			if err == nil && len(removed) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to remove")
			}
			return err
		},
	}
}

func newStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [segment_name] [token_name]",
		Short: "Print the counters of a running pool",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			names, lc, err := namesConfig(cmd, args)
			if err != nil {
				return err
			}
			log, err := newLogger(lc)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			timeout, _ := cmd.Flags().GetDuration("timeout")
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			st, pid, err := pool.Inspect(ctx, poolNames(names), pool.WithLogger(log))
			if err != nil {
				return err
			}
			return writeStatus(cmd.OutOrStdout(), st, pid)
		},
	}
	cmd.Flags().Duration("timeout", 5*time.Second, "how long to wait for the token")
	return cmd
}

func writeStatus(w io.Writer, st pool.State, pid int64) error {
	running := "not running"
	if ok, err := process.PidExists(int32(pid)); err == nil && ok {
		running = "running"
	}
	if _, err := fmt.Fprintf(w, "Owner PID: %d (%s)\nTotal tickets: %d\n", pid, running, st.Total); err != nil {
		return err
	}
	if err := pool.WriteReport(w, st); err != nil {
		return err
	}
	if st.Available <= 0 {
		return pool.WriteSoldOut(w)
	}
	return nil
}

// namesConfig loads the names shared by clean and status.
func namesConfig(cmd *cobra.Command, args []string) (config.Names, config.LogConfig, error) {
	cfg, err := config.LoadConsumer()
	if err != nil {
		return config.Names{}, config.LogConfig{}, err
	}
	if err := applyCommonFlags(cmd.Flags(), &cfg.Names, &cfg.LogConfig); err != nil {
		return config.Names{}, config.LogConfig{}, err
	}
	applyNameArgs(args, &cfg.Names)
	return cfg.Names, cfg.LogConfig, cfg.Names.Verify()
}
