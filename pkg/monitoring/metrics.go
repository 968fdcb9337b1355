package monitoring

import "time"

// Reporter receives metrics emitted by the resource manager.
// Labels use the form "name;key:value", e.g. "redis_connections;status:dialed"
type Reporter interface {
	Counter(label string, val float64)
	Inc(label string)
	Histogram(label string, val float64)
	Gauge(label string, val float64)
	Timer(label string) Timer
}

// Timer measures time between its creation and Done call
type Timer struct {
	start time.Time
	done  func(time.Duration)
}

// NewTimer starts timer, done receives measured duration
func NewTimer(done func(time.Duration)) Timer {
	return Timer{start: time.Now(), done: done}
}

// Done stops the timer and reports elapsed time
func (t Timer) Done() {
	if t.done != nil {
		t.done(time.Since(t.start))
	}
}

// NopReporter drops every metric
type NopReporter struct {
}

func (n NopReporter) Counter(_ string, _ float64) {
}

func (n NopReporter) Inc(_ string) {
}

func (n NopReporter) Histogram(_ string, _ float64) {
}

func (n NopReporter) Gauge(_ string, _ float64) {
}

func (n NopReporter) Timer(_ string) Timer {
	return Timer{}
}

var reporter Reporter = &NopReporter{}

// Report returns registered reporter
func Report() Reporter {
	return reporter
}

// RegisterReporter replaces the process wide reporter
func RegisterReporter(r Reporter) {
	reporter = r
}
