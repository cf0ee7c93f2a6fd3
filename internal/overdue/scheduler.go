package overdue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"library-backend/internal/platform/apierr"
)

// Runner は Scheduler から起動される処理（*Scanner が満たす）。
type Runner interface {
	RunOnce(ctx context.Context) (ScanResult, error)
}

// Scheduler は毎日決まった時刻に Runner を起動する。
type Scheduler struct {
	runner  Runner
	hour    int
	minute  int
	loc     *time.Location
	timeout time.Duration
	logger  *zap.SugaredLogger
	next    func(now time.Time) time.Time
	stopCh  chan struct{}
	done    chan struct{}
	once    sync.Once
	started atomic.Bool
}

func NewScheduler(runner Runner, hour, minute int, loc *time.Location, timeout time.Duration, logger *zap.SugaredLogger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	s := &Scheduler{
		runner:  runner,
		hour:    hour,
		minute:  minute,
		loc:     loc,
		timeout: timeout,
		logger:  logger,
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	s.next = func(now time.Time) time.Time { return NextRun(now, s.hour, s.minute, s.loc) }
	return s
}

// NextRun は now より後で最初に来る hour:minute（loc 基準）。
func NextRun(now time.Time, hour, minute int, loc *time.Location) time.Time {
	local := now.In(loc)
	y, m, d := local.Date()
	next := time.Date(y, m, d, hour, minute, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(y, m, d+1, hour, minute, 0, 0, loc)
	}
	return next
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	if s.started.CompareAndSwap(false, true) {
		go s.run()
	}
}

// Stop は実行中の走査の終了を待ってから戻る。
func (s *Scheduler) Stop() {
	s.once.Do(func() { close(s.stopCh) })
	if s.started.Load() {
		<-s.done
	}
}

func (s *Scheduler) run() {
	defer close(s.done)
	for {
		next := s.next(time.Now())
		s.logger.Infof("Next overdue scan at %s", next.Format(time.RFC3339))
		timer := time.NewTimer(time.Until(next))

		select {
		case <-timer.C:
			s.trigger()
		case <-s.stopCh:
			timer.Stop()
			return
		}
	}
}

func (s *Scheduler) trigger() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.runner.RunOnce(ctx); err != nil {
		if errors.Is(err, apierr.ErrScanInProgress) {
			s.logger.Warn("Skipping overdue scan: previous run still in progress")
			return
		}
		s.logger.Errorf("Overdue scan failed: %v", err)
	}
}
