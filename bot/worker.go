package bot

import (
	"context"
	"sync"
)

// pool is a set of reusable workers running commands.
type pool struct {
	// ctx bounds the lifetime of the workers.
	ctx   context.Context
	works chan chan func(context.Context)
	// wg counts queued and running work.
	wg sync.WaitGroup
}

// enqueue runs work on a worker with the given context. If there is no pool,
// the work runs immediately.
func (b *Bot) enqueue(ctx context.Context, work func(context.Context)) {
	p := b.pool.Load()
	if p == nil {
		work(ctx)
		return
	}
	p.wg.Add(1)
	run := func(context.Context) {
		defer p.wg.Done()
		work(ctx)
	}
	var w chan func(context.Context)
	// Get a worker if one exists. Otherwise, spawn a new one.
	select {
	case w = <-p.works:
	default:
		w = make(chan func(context.Context), 1)
		go worker(p.ctx, p.works, w)
	}
	// Send it work.
	select {
	case <-ctx.Done():
		p.wg.Done()
	case w <- run:
	}
}

// worker runs works for a while. The provided context is passed to each work.
func worker(ctx context.Context, works chan chan func(context.Context), ch chan func(context.Context)) {
	for {
		select {
		case <-ctx.Done():
			return
		case work := <-ch:
			work(ctx)
			// Replace ourselves in the pool if it needs additional capacity.
			// Otherwise, we're done.
			select {
			case works <- ch:
			default:
				return
			}
		}
	}
}
