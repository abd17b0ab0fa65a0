package service

import (
	"context"
	"time"

	"farmlink/internal/database"
	"farmlink/internal/domain"
	"farmlink/internal/metrics"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// txRunner executes ledger transactions with a per-operation timeout and
// replays them a bounded number of times on transient store failures.
// Business-rule errors and everything else abort immediately.
type txRunner struct {
	db       *gorm.DB
	log      logrus.FieldLogger
	attempts int
	timeout  time.Duration
}

func newTxRunner(db *gorm.DB, log logrus.FieldLogger, attempts int, timeout time.Duration) *txRunner {
	if attempts <= 0 {
		attempts = 1
	}
	return &txRunner{db: db, log: log, attempts: attempts, timeout: timeout}
}

func (r *txRunner) run(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	start := time.Now()
	defer func() { metrics.TxDuration.WithLabelValues(op).Observe(time.Since(start).Seconds()) }()

	b := backoff.WithContext(
		backoff.WithMaxRetries(newExponential(), uint64(r.attempts-1)),
		ctx,
	)
	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := r.db.WithContext(ctx).Transaction(fn)
		if err == nil {
			return nil
		}
		if domain.IsBusiness(err) || !database.IsTransient(err) {
			return backoff.Permanent(err)
		}
		metrics.TxRetries.WithLabelValues(op).Inc()
		r.log.WithFields(logrus.Fields{"operation": op, "attempt": attempt}).WithError(err).Warn("transient store failure, retrying")
		return err
	}, b)
}

// read runs fn outside a transaction with the operation timeout applied.
func (r *txRunner) read(ctx context.Context, fn func(db *gorm.DB) error) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	return fn(r.db.WithContext(ctx))
}

func newExponential() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 0
	return b
}
