// Package monitoring exposes a process-wide error reporter. Dispatch and
// transport code report failures here; the concrete backend is installed at
// startup with Init.
package monitoring

import "time"

// Monitor defines methods used for error reporting.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	Recover()
	Flush(timeout time.Duration)
}

type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) Recover()                                  {}
func (NopMonitor) Flush(time.Duration)                       {}

var current Monitor = NopMonitor{}

// Init sets the global monitor implementation. A nil monitor is ignored.
func Init(m Monitor) {
	if m != nil {
		current = m
	}
}

// CaptureException records a non-nil error with optional tags such as
// order_id or carrier_id.
func CaptureException(err error, tags map[string]string) {
	if err == nil || current == nil {
		return
	}
	current.CaptureException(err, tags)
}

// Recover captures panics in goroutines.
func Recover() {
	if current != nil {
		current.Recover()
	}
}

// Flush flushes buffered events.
func Flush(d time.Duration) {
	if current != nil {
		current.Flush(d)
	}
}
