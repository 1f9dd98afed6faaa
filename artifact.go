package logging

import (
	"bytes"

	"github.com/goccy/go-json"
	"go.uber.org/atomic"
)

// ArtifactCollector receives every emitted record as a generic hook payload.
// Implementations are responsible for their own concurrency safety: the
// facility fires hooks from whatever goroutine is logging, without locking.
type ArtifactCollector interface {
	FireHook(event string, record map[string]interface{}, workerID string)
}

// collectorBox wraps the interface value so the binding fits an atomic
// pointer swap.
type collectorBox struct {
	collector ArtifactCollector
}

// artifactWriter forwards each record to the bound collector. It is attached
// to every logger; with no collector bound it discards records. Delivery
// never fails the emission.
type artifactWriter struct {
	ref      *atomic.Pointer[collectorBox]
	workerID *atomic.String
}

func newArtifactWriter(ref *atomic.Pointer[collectorBox], workerID *atomic.String) *artifactWriter {
	return &artifactWriter{ref: ref, workerID: workerID}
}

func (w *artifactWriter) Write(p []byte) (int, error) {
	box := w.ref.Load()
	if box == nil || box.collector == nil {
		return len(p), nil
	}

	record := make(map[string]interface{}, 8)
	dec := json.NewDecoder(bytes.NewReader(p))
	dec.UseNumber()
	if err := dec.Decode(&record); err != nil {
		// A record the writer cannot decode is not the collector's problem.
		return len(p), nil
	}

	box.collector.FireHook(artifactHookName, record, w.workerID.Load())
	return len(p), nil
}
