// Package ratelimit throttles transfer bandwidth with a token bucket.
// The bucket holds one second of burst, so short spikes pass while the
// average rate holds.
package ratelimit

import (
	"io"
	"sync"
	"time"
)

// Limiter is a token bucket counted in bytes.
type Limiter struct {
	rate   float64 // refill rate, bytes per second
	burst  float64 // bucket capacity
	tokens float64
	last   time.Time
	mu     sync.Mutex
}

// New returns a limiter refilling at bytesPerSecond. A zero or negative
// rate returns nil, and a nil Limiter disables throttling in NewReader and
// NewWriter.
func New(bytesPerSecond int64) *Limiter {
	if bytesPerSecond <= 0 {
		return nil
	}

	rate := float64(bytesPerSecond)
	return &Limiter{
		rate:   rate,
		burst:  rate,
		tokens: rate,
		last:   time.Now(),
	}
}

// refill credits tokens for the time since the last update. Callers hold mu.
func (rl *Limiter) refill(now time.Time) {
	rl.tokens += now.Sub(rl.last).Seconds() * rl.rate
	if rl.tokens > rl.burst {
		rl.tokens = rl.burst
	}
	rl.last = now
}

// take blocks until n tokens are available, sleeping at most one second so
// a large request cannot stall a transfer indefinitely.
func (rl *Limiter) take(n int) {
	if rl == nil || n <= 0 {
		return
	}

	rl.mu.Lock()
	rl.refill(time.Now())

	need := float64(n)
	if rl.tokens >= need {
		rl.tokens -= need
		rl.mu.Unlock()
		return
	}

	wait := time.Duration((need - rl.tokens) / rl.rate * float64(time.Second))
	if wait > time.Second {
		wait = time.Second
	}
	rl.mu.Unlock()

	time.Sleep(wait)

	rl.mu.Lock()
	rl.refill(time.Now())
	if rl.tokens >= need {
		rl.tokens -= need
	} else {
		// The capped wait did not cover the request. Drain the bucket
		// and move on rather than oversleep.
		rl.tokens = 0
	}
	rl.mu.Unlock()
}

type reader struct {
	r       io.Reader
	limiter *Limiter
}

// NewReader wraps r so reads drain the limiter. A nil limiter returns r
// unchanged.
func NewReader(r io.Reader, limiter *Limiter) io.Reader {
	if limiter == nil {
		return r
	}
	return &reader{r: r, limiter: limiter}
}

// readChunkSize keeps single waits short for better pacing accuracy.
const readChunkSize = 8 * 1024

func (r *reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	readSize := len(p)
	if readSize > readChunkSize {
		readSize = readChunkSize
	}

	r.limiter.take(readSize)
	return r.r.Read(p[:readSize])
}

type writer struct {
	w       io.Writer
	limiter *Limiter
}

// NewWriter wraps w so writes drain the limiter before touching the
// underlying writer, applying backpressure to the producer. A nil limiter
// returns w unchanged.
func NewWriter(w io.Writer, limiter *Limiter) io.Writer {
	if limiter == nil {
		return w
	}
	return &writer{w: w, limiter: limiter}
}

const writeChunkSize = 64 * 1024

func (w *writer) Write(p []byte) (int, error) {
	var total int
	for total < len(p) {
		chunk := len(p) - total
		if chunk > writeChunkSize {
			chunk = writeChunkSize
		}

		w.limiter.take(chunk)

		n, err := w.w.Write(p[total : total+chunk])
		total += n
		if err != nil {
			return total, err
		}
	}

	return total, nil
}
