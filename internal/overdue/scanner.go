package overdue

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"library-backend/internal/loans"
	"library-backend/internal/platform/apierr"
	"library-backend/internal/platform/clock"
	"library-backend/internal/platform/metrics"
)

// OverdueFinder は loans.Store が満たす。
type OverdueFinder interface {
	FindOverdue(ctx context.Context, cutoff time.Time) ([]loans.Loan, error)
}

type Options struct {
	ThresholdDays int
	Message       string
	Location      *time.Location
}

type ScanResult struct {
	Cutoff     string   `json:"cutoff"`
	Overdue    int      `json:"overdue"`
	Recipients []string `json:"recipients"`
	Notified   bool     `json:"notified"`
}

// Scanner は延滞中の貸出を探して借り手に通知する。スケジュールは持たない。
type Scanner struct {
	loans    OverdueFinder
	notifier Notifier
	opts     Options
	clock    clock.Clock
	log      *zap.SugaredLogger
	running  atomic.Bool
}

func NewScanner(finder OverdueFinder, notifier Notifier, opts Options, log *zap.SugaredLogger) *Scanner {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Scanner{
		loans:    finder,
		notifier: notifier,
		opts:     opts,
		clock:    clock.Real{},
		log:      log,
	}
}

// Cutoff は「今日の0時 − しきい値日数」。これより前の貸出日が延滞。
func (s *Scanner) Cutoff() time.Time {
	return clock.StartOfDay(s.clock.Now().In(s.opts.Location)).AddDate(0, 0, -s.opts.ThresholdDays)
}

// RunOnce は1回分の走査。実行中に呼ばれたら ErrScanInProgress。
// 通知に失敗してもリトライはしない（次回の走査で同じ貸出が再度対象になる）。
func (s *Scanner) RunOnce(ctx context.Context) (ScanResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		return ScanResult{}, apierr.ErrScanInProgress
	}
	defer s.running.Store(false)

	cutoff := s.Cutoff()
	res := ScanResult{Cutoff: clock.Date(cutoff), Recipients: []string{}}

	overdue, err := s.loans.FindOverdue(ctx, cutoff)
	if err != nil {
		metrics.OverdueScans.WithLabelValues("error").Inc()
		return res, fmt.Errorf("find overdue loans: %w", err)
	}
	res.Overdue = len(overdue)
	res.Recipients = DistinctEmails(overdue)
	metrics.OverdueLoans.Set(float64(res.Overdue))

	if len(res.Recipients) == 0 {
		metrics.OverdueRecipients.Set(0)
		metrics.OverdueScans.WithLabelValues("empty").Inc()
		s.log.Infow("overdue scan finished", "cutoff", res.Cutoff, "overdue", 0)
		return res, nil
	}

	if err := s.notifier.Send(ctx, s.opts.Message, res.Recipients); err != nil {
		metrics.OverdueScans.WithLabelValues("notify_failed").Inc()
		s.log.Errorw("overdue notification failed", "cutoff", res.Cutoff, "recipients", len(res.Recipients), "error", err)
		return res, fmt.Errorf("notify overdue customers: %w", err)
	}

	res.Notified = true
	metrics.OverdueRecipients.Set(float64(len(res.Recipients)))
	metrics.OverdueScans.WithLabelValues("notified").Inc()
	s.log.Infow("overdue scan finished", "cutoff", res.Cutoff, "overdue", res.Overdue, "recipients", len(res.Recipients))
	return res, nil
}

// DistinctEmails は重複を除いたメールアドレス（大文字小文字は区別しない、初出順）。
func DistinctEmails(ls []loans.Loan) []string {
	seen := make(map[string]struct{}, len(ls))
	out := make([]string, 0, len(ls))
	for _, l := range ls {
		email := strings.TrimSpace(l.CustomerEmail)
		if email == "" {
			continue
		}
		key := strings.ToLower(email)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, email)
	}
	return out
}
