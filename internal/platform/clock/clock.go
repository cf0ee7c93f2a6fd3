package clock

import "time"

type Clock interface{ Now() time.Time }

type Real struct{}

func (Real) Now() time.Time { return time.Now() }

// Fixed はテスト用。
type Fixed time.Time

func (f Fixed) Now() time.Time { return time.Time(f) }

// Date は t のローカル日付を "2006-01-02" で返す。
func Date(t time.Time) string { return t.Format(time.DateOnly) }

// StartOfDay は t と同じタイムゾーンでの 00:00。
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
