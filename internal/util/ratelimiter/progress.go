package ratelimiter

import (
	"io"
	"time"
)

// ProgressFunc receives bytes read so far and the expected total (-1 if unknown)
type ProgressFunc func(read, total int64)

// ProgressReader reports read progress at most once per interval.
// The final report at EOF is never throttled.
type ProgressReader struct {
	r       io.Reader
	total   int64
	read    int64
	limiter *Limiter
	fn      ProgressFunc
	done    bool
}

// NewProgressReader wraps r; fn may be nil
func NewProgressReader(r io.Reader, total int64, interval time.Duration, fn ProgressFunc) *ProgressReader {
	return &ProgressReader{
		r:       r,
		total:   total,
		limiter: New(interval),
		fn:      fn,
	}
}

// Read implements io.Reader
func (p *ProgressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)

	if p.fn == nil || p.done {
		return n, err
	}
	if err == io.EOF {
		p.done = true
		p.fn(p.read, p.total)
	} else if n > 0 {
		if ok, _ := p.limiter.Allow(); ok {
			p.fn(p.read, p.total)
		}
	}
	return n, err
}

// BytesRead returns the number of bytes read so far
func (p *ProgressReader) BytesRead() int64 {
	return p.read
}
