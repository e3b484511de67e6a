// Command poisonctl lists, replays and purges estimate jobs that exhausted
// their attempts.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/platewise/api/internal/config"
	"github.com/platewise/api/internal/logger"
	"github.com/platewise/api/internal/model"
	"github.com/platewise/api/internal/queue"
	"github.com/platewise/api/internal/service"
	"github.com/platewise/api/internal/store"
	"github.com/platewise/api/internal/worker"
)

// poisonOps is the subset of PoisonService the commands use
type poisonOps interface {
	List(page, size int) ([]model.PoisonedJob, error)
	Get(estimateID string) (*model.PoisonedJob, error)
	Replay(ctx context.Context, estimateID string) error
	Purge(estimateID string) error
}

// opener builds the service lazily so --help works without redis or a database
type opener func(ctx context.Context) (poisonOps, func(), error)

func main() {
	if err := newRootCmd(openService).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(open opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "poisonctl",
		Short:         "Inspect and replay poisoned estimate jobs",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	var (
		page, size int
		asJSON     bool
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List poisoned jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ops, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			jobs, err := ops.List(page, size)
			if err != nil {
				return err
			}
			return printJobs(cmd.OutOrStdout(), jobs, asJSON)
		},
	}
	list.Flags().IntVar(&page, "page", 1, "page number, starting at 1")
	list.Flags().IntVar(&size, "size", 30, "page size")
	list.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")

	show := &cobra.Command{
		Use:   "show <estimate-id>",
		Short: "Show one poisoned job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			job, err := ops.Get(args[0])
			if err != nil {
				return err
			}
			return printJobs(cmd.OutOrStdout(), []model.PoisonedJob{*job}, true)
		},
	}

	replay := &cobra.Command{
		Use:   "replay <estimate-id>",
		Short: "Reset a failed estimate and queue it again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			if err := ops.Replay(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "replayed %s\n", args[0])
			return nil
		},
	}

	purge := &cobra.Command{
		Use:   "purge <estimate-id>",
		Short: "Delete a poisoned job; the estimate stays failed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			if err := ops.Purge(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %s\n", args[0])
			return nil
		},
	}

	root.AddCommand(list, show, replay, purge)
	return root
}

func printJobs(w io.Writer, jobs []model.PoisonedJob, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(jobs)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ESTIMATE\tRETRIED\tFAILED AT\tERROR")
	for _, j := range jobs {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", j.EstimateID, j.Retried, j.LastFailed.Format(time.RFC3339), j.LastError)
	}
	return tw.Flush()
}

func openService(ctx context.Context) (poisonOps, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	zl, err := logger.New(cfg.Server.LogLevel, cfg.Server.Env)
	if err != nil {
		return nil, nil, err
	}

	db, err := store.Open(ctx, &cfg.Database, zl)
	if err != nil {
		return nil, nil, err
	}

	redisOpt := worker.RedisOpt(&cfg.Redis)
	inspector := asynq.NewInspector(redisOpt)
	asynqClient := asynq.NewClient(redisOpt)
	jobQueue := queue.NewAsynqQueue(asynqClient, queue.Options{
		Queue:             cfg.Worker.Queue,
		MaxAttempts:       cfg.Worker.MaxAttempts,
		VisibilityTimeout: cfg.Worker.VisibilityTimeout,
	})

	svc := service.NewPoisonService(
		store.NewEstimateRepo(db),
		queue.NewInspector(inspector, cfg.Worker.Queue),
		jobQueue,
		zl.Named("poisonctl"),
	)

	closeFn := func() {
		asynqClient.Close()
		inspector.Close()
		db.Close()
		_ = zl.Sync()
	}
	zl.Debug("poison queue opened", zap.String("queue", cfg.Worker.Queue))
	return svc, closeFn, nil
}
