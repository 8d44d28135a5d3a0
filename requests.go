package main

type requestKind int

const (
	reqAnalyze requestKind = iota
	reqSession
	reqChat
	reqAIPreview
	reqAIDownload
	reqTokens
	requestKindCount
)

// requestTracker stamps every asynchronous operation with a monotonic
// generation per kind. A response carrying a generation older than the latest
// issued one belongs to a superseded request and is dropped, so out-of-order
// completions cannot clobber newer state.
type requestTracker struct {
	gen [requestKindCount]int
}

func (t *requestTracker) begin(kind requestKind) int {
	t.gen[kind]++
	return t.gen[kind]
}

func (t *requestTracker) stale(kind requestKind, gen int) bool {
	return gen != t.gen[kind]
}
