package cbconv

// Progress receives conversion events. Calls are made synchronously from
// worker goroutines, possibly concurrently, and must return quickly.
type Progress interface {
	Report(msg string)
	ReportPercent(msg string, percent float64)
}

type nopProgress struct{}

func (nopProgress) Report(string)                 {}
func (nopProgress) ReportPercent(string, float64) {}
