package synthesis

// Monitor provides hooks to observe a synthesis run.
// Hooks for URLs and partials may be called concurrently from pool workers.
type Monitor interface {
	Start(req Request)
	URLResolved(url string, textual bool, err error)
	Chunked(chunks, droppedChunks int)
	PartialDone(index int, err error)
	Finish(result *Result, err error)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ Request)                    {}
func (n *noopMonitor) URLResolved(_ string, _ bool, _ error) {}
func (n *noopMonitor) Chunked(_, _ int)                   {}
func (n *noopMonitor) PartialDone(_ int, _ error)         {}
func (n *noopMonitor) Finish(_ *Result, _ error)          {}

// MultiMonitor fans every hook out to each monitor in order.
type MultiMonitor []Monitor

var _ Monitor = MultiMonitor(nil)

func (mm MultiMonitor) Start(req Request) {
	for _, m := range mm {
		m.Start(req)
	}
}

func (mm MultiMonitor) URLResolved(url string, textual bool, err error) {
	for _, m := range mm {
		m.URLResolved(url, textual, err)
	}
}

func (mm MultiMonitor) Chunked(chunks, droppedChunks int) {
	for _, m := range mm {
		m.Chunked(chunks, droppedChunks)
	}
}

func (mm MultiMonitor) PartialDone(index int, err error) {
	for _, m := range mm {
		m.PartialDone(index, err)
	}
}

func (mm MultiMonitor) Finish(result *Result, err error) {
	for _, m := range mm {
		m.Finish(result, err)
	}
}
