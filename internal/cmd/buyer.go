package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/srediag/shm-pool/internal/config"
	"github.com/srediag/shm-pool/pkg/pool"
	"github.com/srediag/shm-pool/pkg/swarm"
)

// NewBuyerCommand returns the buyer root command.
func NewBuyerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "buyer [segment_name] [token_name]",
		Short: "Buy tickets from a running ticket office",
		Long: `buyer attaches to the pool a ticket office created and reads one
purchase per line from standard input. At most 5 tickets are granted per
purchase. It stops when the pool is sold out or its input ends.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := consumerConfig(cmd, args)
			if err != nil {
				return err
			}
			return runBuyer(cmd.Context(), cfg, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	addCommonFlags(cmd.PersistentFlags())
	cmd.PersistentFlags().Duration("pacing", 0, "pause between purchases (default $SHMPOOL_PACING or 2s)")

	cmd.AddCommand(newSwarmCommand())
	return silence(cmd)
}

func consumerConfig(cmd *cobra.Command, args []string) (*config.ConsumerConfig, error) {
	cfg, err := config.LoadConsumer()
	if err != nil {
		return nil, err
	}
	if err := applyConsumerFlags(cmd, args, cfg); err != nil {
		return nil, err
	}
	return cfg, cfg.Verify()
}

func applyConsumerFlags(cmd *cobra.Command, args []string, cfg *config.ConsumerConfig) (err error) {
	if err := applyCommonFlags(cmd.Flags(), &cfg.Names, &cfg.LogConfig); err != nil {
		return err
	}
	applyNameArgs(args, &cfg.Names)
	if cmd.Flags().Changed("pacing") {
		cfg.Pacing, err = cmd.Flags().GetDuration("pacing")
	}
	return err
}

func runBuyer(ctx context.Context, cfg *config.ConsumerConfig, in io.Reader, out io.Writer) (err error) {
	log, err := newLogger(cfg.LogConfig)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := withSignals(ctx)
	defer stop()

	c, err := pool.Attach(ctx, pool.ConsumerConfig{Names: poolNames(cfg.Names), Pacing: cfg.Pacing},
		pool.WithLogger(log))
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, c.Detach())
	}()

	err = c.Run(ctx, in, out)
	if interrupted(ctx) {
		_, _ = io.WriteString(out, "\n")
	}
	return err
}

func newSwarmCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "swarm [segment_name] [token_name]",
		Short: "Run many concurrent buyers with random amounts",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadSwarm()
			if err != nil {
				return err
			}
			if err := applyConsumerFlags(cmd, args, &cfg.ConsumerConfig); err != nil {
				return err
			}
			fs := cmd.Flags()
			if fs.Changed("clients") {
				cfg.Clients, _ = fs.GetInt("clients")
			}
			if fs.Changed("requests") {
				cfg.Requests, _ = fs.GetInt("requests")
			}
			if fs.Changed("max-amount") {
				cfg.MaxAmount, _ = fs.GetInt64("max-amount")
			}
			if fs.Changed("rate") {
				cfg.Rate, _ = fs.GetFloat64("rate")
			}
			if err := cfg.Verify(); err != nil {
				return err
			}
			seed, _ := fs.GetUint64("seed")
			return runSwarm(cmd.Context(), cfg, seed, cmd.OutOrStdout())
		},
	}
	fs := cmd.Flags()
	fs.Int("clients", 0, "simulated buyers (default $SHMPOOL_SWARM_CLIENTS or 4)")
	fs.Int("requests", 0, "purchases per buyer (default $SHMPOOL_SWARM_REQUESTS or 10)")
	fs.Int64("max-amount", 0, "largest random purchase (default $SHMPOOL_SWARM_MAX_AMOUNT or 7)")
	fs.Float64("rate", 0, "purchases per second across all buyers, 0 for no limit")
	fs.Uint64("seed", 1, "seed for the random amounts")
	return cmd
}

func runSwarm(ctx context.Context, cfg *config.SwarmConfig, seed uint64, out io.Writer) error {
	log, err := newLogger(cfg.LogConfig)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := withSignals(ctx)
	defer stop()

	metrics := pool.NewMetrics(prometheus.NewRegistry())
	sum, err := swarm.Run(ctx, swarm.Config{
		Names:     poolNames(cfg.Names),
		Clients:   cfg.Clients,
		Requests:  cfg.Requests,
		MaxAmount: cfg.MaxAmount,
		Rate:      cfg.Rate,
		Seed:      seed,
		Logger:    log,
	}, pool.WithLogger(log), pool.WithMetrics(metrics))

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CLIENT\tATTEMPTS\tTRANSACTIONS\tTICKETS\tSOLD OUT")
	for _, c := range sum.Clients {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%t\n", c.ID, c.Attempts, c.Transactions, c.Granted, c.SoldOut)
	}
	fmt.Fprintf(tw, "TOTAL\t\t%d\t%d\t\n", sum.Transactions, sum.Granted)
	err = multierr.Append(err, tw.Flush())

	counts := metrics.RequestCounts()
	fmt.Fprint(out, "\nOUTCOMES:")
	for k := pool.OutcomeGranted; k <= pool.OutcomeFailed; k++ {
		fmt.Fprintf(out, " %s=%d", k, counts[k])
	}
	_, werr := fmt.Fprintln(out)
	return multierr.Append(err, werr)
}
