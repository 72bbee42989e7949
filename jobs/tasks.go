package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/wardbook/wardbook/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskBundleResync re-runs the role bundle sync over every account.
	TaskBundleResync = "authz:bundle_resync"
)

// BundleResyncer re-applies the role bundle table to all stored accounts.
type BundleResyncer interface {
	ResyncBundles(ctx context.Context) (int, error)
}

// NewBundleResyncTask constructs the resync task. It carries no payload; the
// sync is idempotent and always covers every account.
func NewBundleResyncTask() *asynq.Task {
	return asynq.NewTask(TaskBundleResync, nil)
}

// NewBundleResyncHandler returns the handler for TaskBundleResync. The
// nightly run repairs drift between account roles and stored bundles, for
// example after a bundle table change shipped without a migration.
func NewBundleResyncHandler(resyncer BundleResyncer, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track(TaskBundleResync)
		n, err := resyncer.ResyncBundles(ctx)
		if err != nil {
			logger.Error("bundle resync failed", slog.Any("error", err))
			return tracker.End(err)
		}
		metrics.AddSyncedAccounts(n)
		logger.Info("bundle resync complete", slog.Int("accounts", n))
		return tracker.End(nil)
	}
}
