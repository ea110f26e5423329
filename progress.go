package ftpq

import "io"

// ProgressFunc receives transfer progress as a fraction in [0, 1]. The
// sequence a transfer emits never decreases and reaches exactly 1 only
// when the transfer completes successfully.
type ProgressFunc func(fraction float64)

// ProgressReader wraps an io.Reader and reports progress via a callback.
type ProgressReader struct {
	// Reader is the underlying reader
	Reader io.Reader

	// Callback is called after each Read with the total bytes transferred
	Callback func(bytesTransferred int64)

	// total tracks the total bytes read
	total int64
}

// Read implements io.Reader.
func (pr *ProgressReader) Read(p []byte) (int, error) {
	n, err := pr.Reader.Read(p)
	pr.total += int64(n)
	if pr.Callback != nil && n > 0 {
		pr.Callback(pr.total)
	}
	return n, err
}

// ProgressWriter wraps an io.Writer and reports progress via a callback.
type ProgressWriter struct {
	// Writer is the underlying writer
	Writer io.Writer

	// Callback is called after each Write with the total bytes transferred
	Callback func(bytesTransferred int64)

	// total tracks the total bytes written
	total int64
}

// Write implements io.Writer.
func (pw *ProgressWriter) Write(p []byte) (int, error) {
	n, err := pw.Writer.Write(p)
	pw.total += int64(n)
	if pw.Callback != nil && n > 0 {
		pw.Callback(pw.total)
	}
	return n, err
}

// asymptoteScale shapes the progress curve when the total size is unknown.
// The fraction is done/(done+asymptoteScale), which climbs toward 1
// without reaching it until finish.
const asymptoteScale = 4 * transferChunkSize

// progressTracker turns cumulative byte counts into the monotone fraction
// handed to a ProgressFunc. total <= 0 means the size is unknown.
type progressTracker struct {
	fn    ProgressFunc
	total int64
	last  float64
}

func newProgressTracker(fn ProgressFunc, total int64) *progressTracker {
	return &progressTracker{fn: fn, total: total}
}

func (t *progressTracker) update(done int64) {
	if t.fn == nil {
		return
	}

	var fraction float64
	if t.total > 0 {
		fraction = float64(done) / float64(t.total)
		if fraction > 1 {
			fraction = 1
		}
	} else {
		fraction = float64(done) / float64(done+asymptoteScale)
	}

	if fraction < t.last {
		fraction = t.last
	}
	t.last = fraction
	t.fn(fraction)
}

// finish emits the terminal 1.0. Called only on successful completion.
func (t *progressTracker) finish() {
	if t.fn == nil || t.last == 1 {
		return
	}
	t.last = 1
	t.fn(1)
}
