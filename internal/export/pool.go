package export

import (
	"context"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/sync/errgroup"

	"github.com/rfratto/kraam/internal/game"
)

// Pool writes subgames of a single parent game in the background. The parent
// game must not be modified while the Pool is in use.
type Pool struct {
	log  log.Logger
	g    *game.Game
	opts Options

	// inline is set when exports run on the calling goroutine.
	inline bool
	eg     *errgroup.Group
	ctx    context.Context

	mut     sync.Mutex
	written int
}

// NewPool creates a Pool exporting subgames of g with at most workers
// concurrent writes. With workers <= 1, Submit writes synchronously. The
// Pool stops accepting work once ctx is canceled or an export failed.
func NewPool(ctx context.Context, l log.Logger, g *game.Game, workers int, o Options) *Pool {
	if l == nil {
		l = log.NewNopLogger()
	}
	eg, ctx := errgroup.WithContext(ctx)
	p := &Pool{
		log:    log.With(l, "component", "export"),
		g:      g,
		opts:   o,
		inline: workers <= 1,
		eg:     eg,
		ctx:    ctx,
	}
	if !p.inline {
		p.eg.SetLimit(workers)
	}
	return p
}

// Context returns a context which is canceled once an export failed or the
// context passed to NewPool is canceled.
func (p *Pool) Context() context.Context { return p.ctx }

// Submit queues c to be written to path. c is copied, so callers may keep
// modifying it. Submit blocks while all workers are busy. In synchronous
// mode, the error of the write is returned directly. Otherwise errors are
// reported by Wait, and by Submit once the pool stopped.
func (p *Pool) Submit(path string, c game.Set) error {
	if err := p.ctx.Err(); err != nil {
		if _, waitErr := p.Wait(); waitErr != nil {
			return waitErr
		}
		return err
	}

	c = c.Clone()
	job := func() error {
		if err := p.ctx.Err(); err != nil {
			return err
		}
		if err := Subgame(p.g, c, path, p.opts); err != nil {
			return err
		}
		level.Debug(p.log).Log("msg", "exported subgame", "path", path, "vertices", c.Len())

		p.mut.Lock()
		p.written++
		p.mut.Unlock()
		return nil
	}

	if p.inline {
		return job()
	}
	p.eg.Go(job)
	return nil
}

// Wait blocks until all submitted exports finished and returns the first
// error encountered. It returns the number of subgames successfully written.
func (p *Pool) Wait() (int, error) {
	err := p.eg.Wait()

	p.mut.Lock()
	defer p.mut.Unlock()
	return p.written, err
}
