package render

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"golang.org/x/sync/singleflight"
)

// ErrPoolClosed is returned by Render after Shutdown.
var ErrPoolClosed = errors.New("render: pool is shut down")

// browser is the pooled process handle: the chromedp browser context
// plus the cancels needed to tear it down.
type browser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	cancelAlloc context.CancelFunc
}

// Pool manages a single long-lived headless Chromium process shared by
// all jobs. Concurrent acquires during a launch share one in-flight
// launch; on disconnect the handle is cleared so the next acquire
// relaunches. Each Render opens its own tab, so only the process is
// shared.
type Pool struct {
	execPath string

	mu     sync.Mutex
	cur    *browser
	closed bool

	launchGroup singleflight.Group

	// launch is swappable in tests.
	launch func() (*browser, error)
}

func NewPool(execPath string) *Pool {
	p := &Pool{execPath: execPath}
	p.launch = p.launchChromium
	return p
}

// acquire returns the connected browser context, launching the process
// if needed. Concurrent callers share a single launch via singleflight.
func (p *Pool) acquire(ctx context.Context) (context.Context, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	if b := p.cur; b != nil && b.ctx.Err() == nil {
		p.mu.Unlock()
		return b.ctx, nil
	}
	p.mu.Unlock()

	v, err, _ := p.launchGroup.Do("launch", func() (any, error) {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, ErrPoolClosed
		}
		// Another waiter may have installed a live handle already.
		if b := p.cur; b != nil && b.ctx.Err() == nil {
			p.mu.Unlock()
			return b, nil
		}
		p.mu.Unlock()

		b, err := p.launch()
		if err != nil {
			return nil, fmt.Errorf("render: launch browser: %w", err)
		}

		p.mu.Lock()
		p.cur = b
		p.mu.Unlock()

		// Clear the cached handle when the process disconnects so the
		// next acquire relaunches, and release the dead handle's
		// allocator so crashed processes do not pile up across
		// relaunches. Both cancels are idempotent under Shutdown.
		go func() {
			<-b.ctx.Done()
			p.mu.Lock()
			if p.cur == b {
				p.cur = nil
				if !p.closed {
					log.Printf("[render] browser disconnected, next acquire relaunches")
				}
			}
			p.mu.Unlock()
			b.cancel()
			b.cancelAlloc()
		}()

		log.Printf("[render] browser launched")
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	b := v.(*browser)
	if b.ctx.Err() != nil {
		return nil, fmt.Errorf("render: browser disconnected during launch")
	}
	return b.ctx, nil
}

func (p *Pool) launchChromium() (*browser, error) {
	opts := chromedp.DefaultExecAllocatorOptions[:]
	if p.execPath != "" {
		opts = append(opts, chromedp.ExecPath(p.execPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	// Start the process eagerly so a broken install fails here, not on
	// the first render.
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		cancelAlloc()
		return nil, err
	}

	return &browser{ctx: browserCtx, cancel: cancel, cancelAlloc: cancelAlloc}, nil
}

// Render opens an isolated tab on the pooled process, sets the markup
// as the document and prints it to PDF. The tab is always closed, even
// on error; only the process itself outlives the call.
func (p *Pool) Render(ctx context.Context, markup string) ([]byte, error) {
	browserCtx, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}

	tabCtx, cancelTab := chromedp.NewContext(browserCtx)
	defer cancelTab()

	// Respect the caller's deadline, not just the browser lifetime.
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var pdf []byte
	err = chromedp.Run(tabCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, markup).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
			if err != nil {
				return err
			}
			pdf = buf
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("render: print document: %w", err)
	}
	return pdf, nil
}

// Shutdown closes the pooled process. Invoked on graceful termination;
// in-flight renders abort and surface as recoverable errors to their
// jobs.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	p.closed = true
	b := p.cur
	p.cur = nil
	p.mu.Unlock()

	if b != nil {
		b.cancel()
		b.cancelAlloc()
		log.Printf("[render] browser shut down")
	}
}
