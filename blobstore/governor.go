package blobstore

import (
	"context"
	"io"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// GovernorConfig holds transfer limits.
type GovernorConfig struct {
	// MaxConcurrentTransfers bounds the number of Put and Open streams in
	// flight. If 0, defaults to 1.
	MaxConcurrentTransfers int64

	// BytesPerSec is the maximum combined transfer throughput.
	// If 0, unlimited.
	BytesPerSec int64
}

// Governor limits the concurrency and throughput of blob transfers. Backup
// and restore traffic competes with foreground work for disk and network
// bandwidth; wrapping a Store puts a ceiling on it.
type Governor struct {
	sem     *semaphore.Weighted
	limiter *rate.Limiter
}

// NewGovernor creates a governor with the given limits.
func NewGovernor(cfg GovernorConfig) *Governor {
	if cfg.MaxConcurrentTransfers <= 0 {
		cfg.MaxConcurrentTransfers = 1
	}

	g := &Governor{
		sem: semaphore.NewWeighted(cfg.MaxConcurrentTransfers),
	}
	if cfg.BytesPerSec > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(cfg.BytesPerSec), int(cfg.BytesPerSec))
	}
	return g
}

// Wrap returns a Store whose Put and Open streams are governed. Delete and
// List pass through untouched.
func (g *Governor) Wrap(s Store) Store {
	return &governedStore{inner: s, g: g}
}

// waitBytes blocks until the rate limit admits n bytes. Bursts larger than
// the limiter burst are split.
func (g *Governor) waitBytes(ctx context.Context, n int) error {
	if g.limiter == nil || n <= 0 {
		return nil
	}
	for n > 0 {
		chunk := n
		if burst := g.limiter.Burst(); chunk > burst {
			chunk = burst
		}
		if err := g.limiter.WaitN(ctx, chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

type governedStore struct {
	inner Store
	g     *Governor
}

func (s *governedStore) Put(ctx context.Context, name string, r io.Reader) error {
	if err := s.g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.g.sem.Release(1)

	return s.inner.Put(ctx, name, &meteredReader{ctx: ctx, r: r, g: s.g})
}

func (s *governedStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := s.g.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	rc, err := s.inner.Open(ctx, name)
	if err != nil {
		s.g.sem.Release(1)
		return nil, err
	}
	return &governedReadCloser{
		meteredReader: meteredReader{ctx: ctx, r: rc, g: s.g},
		rc:            rc,
		release:       func() { s.g.sem.Release(1) },
	}, nil
}

func (s *governedStore) Delete(ctx context.Context, name string) error {
	return s.inner.Delete(ctx, name)
}

func (s *governedStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

// meteredReader charges each read against the governor's rate limit.
type meteredReader struct {
	ctx context.Context
	r   io.Reader
	g   *Governor
}

func (m *meteredReader) Read(p []byte) (int, error) {
	n, err := m.r.Read(p)
	if n > 0 {
		if werr := m.g.waitBytes(m.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}

// governedReadCloser releases the transfer slot on Close. Close is
// idempotent; the slot is released once.
type governedReadCloser struct {
	meteredReader
	rc       io.ReadCloser
	release  func()
	released bool
}

func (g *governedReadCloser) Close() error {
	err := g.rc.Close()
	if !g.released {
		g.released = true
		g.release()
	}
	return err
}
