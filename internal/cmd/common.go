// Package cmd holds the ticket-office and buyer commands.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/srediag/shm-pool/internal/config"
	"github.com/srediag/shm-pool/internal/logging"
	"github.com/srediag/shm-pool/pkg/pool"
)

const (
	flagDir      = "dir"
	flagLogLevel = "log-level"
	flagLogDev   = "log-dev"
)

// addCommonFlags registers the flags every command shares.
func addCommonFlags(fs *pflag.FlagSet) {
	fs.String(flagDir, "", "shared memory directory (default $SHMPOOL_SHM_DIR or /dev/shm)")
	fs.String(flagLogLevel, "", "log level: debug, info, warn or error (default $SHMPOOL_LOG_LEVEL or warn)")
	fs.Bool(flagLogDev, false, "human-readable development logs")
}

// applyCommonFlags overlays the flags the user actually set on values
// loaded from the environment.
func applyCommonFlags(fs *pflag.FlagSet, names *config.Names, lc *config.LogConfig) error {
	if fs.Changed(flagDir) {
		v, err := fs.GetString(flagDir)
		if err != nil {
			return err
		}
		names.Dir = v
	}
	if fs.Changed(flagLogLevel) {
		v, err := fs.GetString(flagLogLevel)
		if err != nil {
			return err
		}
		lc.LogLevel = v
	}
	if fs.Changed(flagLogDev) {
		v, err := fs.GetBool(flagLogDev)
		if err != nil {
			return err
		}
		lc.Development = v
	}
	return nil
}

// applyNameArgs takes the segment and token names from positional args.
func applyNameArgs(args []string, names *config.Names) {
	if len(args) > 0 {
		names.Segment = args[0]
	}
	if len(args) > 1 {
		names.Token = args[1]
	}
}

func poolNames(n config.Names) pool.Names {
	return pool.Names{Segment: n.Segment, Token: n.Token, Dir: n.Dir}
}

func newLogger(lc config.LogConfig) (*zap.Logger, error) {
	return logging.New(logging.Config{Level: lc.LogLevel, Development: lc.Development})
}

// withSignals cancels ctx on SIGINT or SIGTERM. The handler does nothing
// else; callers tear down after their loops return.
func withSignals(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

// interrupted reports whether ctx ended because of a signal rather than
// because the work finished.
func interrupted(ctx context.Context) bool {
	return ctx.Err() != nil
}

func silence(cmd *cobra.Command) *cobra.Command {
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	return cmd
}
