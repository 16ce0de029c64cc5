package domain

// ProgressPhase is the stage a fetch is in.
type ProgressPhase string

const (
	PhaseDownloading ProgressPhase = "downloading"
	PhaseMerging     ProgressPhase = "merging"
	PhaseFinished    ProgressPhase = "finished"
)

// ProgressEvent is a raw progress notification from the extraction engine.
type ProgressEvent struct {
	Phase   ProgressPhase
	Percent float64
	Label   string
}

// ProgressSink receives progress events. Implementations must not block
// the caller for longer than it takes to enqueue the event.
type ProgressSink interface {
	Report(ev ProgressEvent)
}

// ProgressFunc adapts a function to a ProgressSink.
type ProgressFunc func(ev ProgressEvent)

// Report calls f(ev).
func (f ProgressFunc) Report(ev ProgressEvent) {
	f(ev)
}
