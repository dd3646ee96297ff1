// Package pdf renders invoices to PDF through headless Chrome.
package pdf

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"produceledger/pkg/logger"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	purchaseTemplate = "purchase_invoice.html"
	salesTemplate    = "sales_invoice.html"

	// A4 in inches
	paperWidth  = 8.27
	paperHeight = 11.7
)

// Config configures the Chrome instance.
type Config struct {
	// ChromePath overrides the browser binary; empty uses the one on PATH
	ChromePath string
	Timeout    time.Duration
}

// Renderer turns invoice views into PDF bytes. One browser process is shared;
// each render gets its own tab.
type Renderer struct {
	cfg       Config
	templates *template.Template

	allocCtx    context.Context
	allocCancel context.CancelFunc

	// toPDF is swapped out in tests
	toPDF func(ctx context.Context, html []byte) ([]byte, error)
}

// NewRenderer parses the embedded templates and prepares the browser allocator.
// Chrome itself starts lazily on the first render.
func NewRenderer(cfg Config) (*Renderer, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse pdf templates: %w", err)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.DisableGPU,
		chromedp.NoSandbox,
	)
	if cfg.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ChromePath))
	}
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)

	r := &Renderer{cfg: cfg, templates: tmpl, allocCtx: allocCtx, allocCancel: cancel}
	r.toPDF = r.printChrome
	return r, nil
}

// Close stops the browser.
func (r *Renderer) Close() {
	if r.allocCancel != nil {
		r.allocCancel()
	}
}

// RenderPurchaseInvoice renders a purchase invoice view.
func (r *Renderer) RenderPurchaseInvoice(ctx context.Context, view *PurchaseView) ([]byte, error) {
	return r.render(ctx, purchaseTemplate, view)
}

// RenderSalesInvoice renders a sales invoice view.
func (r *Renderer) RenderSalesInvoice(ctx context.Context, view *SalesView) ([]byte, error) {
	return r.render(ctx, salesTemplate, view)
}

func (r *Renderer) render(ctx context.Context, name string, data any) ([]byte, error) {
	html, err := r.renderHTML(name, data)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	out, err := r.toPDF(ctx, html)
	if err != nil {
		return nil, fmt.Errorf("print %s: %w", name, err)
	}
	logger.Debug(ctx, "pdf rendered", "template", name, "bytes", len(out), "duration", time.Since(start))
	return out, nil
}

func (r *Renderer) renderHTML(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("execute %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// printChrome loads the HTML into a blank tab and prints it.
func (r *Renderer) printChrome(ctx context.Context, html []byte) ([]byte, error) {
	tabCtx, cancel := chromedp.NewContext(r.allocCtx)
	defer cancel()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, r.cfg.Timeout)
	defer cancelTimeout()
	// abandon the tab when the caller goes away
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var pdf []byte
	err := chromedp.Run(tabCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, string(html)).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(paperWidth).
				WithPaperHeight(paperHeight).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, err
	}
	return pdf, nil
}
