package backup

import (
	"context"
	"time"

	"dynamodb-backup-export/internal/logging"

	apperrors "dynamodb-backup-export/internal/errors"
)

// Decision is the outcome of one poll probe.
type Decision int

const (
	// Continue means the resource is still in an expected transitional
	// state and polling should go on.
	Continue Decision = iota
	// Done means the awaited condition holds.
	Done
)

// ProbeFunc checks a resource once. Returning an error ends the wait:
// unexpected statuses and service failures are fatal, not transient.
type ProbeFunc func(ctx context.Context) (Decision, error)

// Poller repeatedly probes a resource until its condition holds. It has
// no timeout of its own; external eventual consistency can take minutes
// and the invoker's deadline is the only upper bound.
type Poller struct {
	interval time.Duration
	logger   *logging.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewPoller creates a poller that checks at the given interval.
func NewPoller(interval time.Duration, logger *logging.Logger) *Poller {
	return &Poller{
		interval: interval,
		logger:   logger,
		sleep:    sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Wait probes immediately, then keeps probing at the poll interval until
// the probe reports Done or fails.
func (p *Poller) Wait(ctx context.Context, resource string, probe ProbeFunc) error {
	for {
		decision, err := probe(ctx)
		if err != nil {
			return err
		}
		if decision == Done {
			return nil
		}

		p.logger.Debugf("Waiting %s before next check of %s", p.interval, resource)
		if err := p.sleep(ctx, p.interval); err != nil {
			return apperrors.NewAppError(apperrors.ErrorTypeInterruption,
				"wait for "+resource+" canceled", err)
		}
	}
}
