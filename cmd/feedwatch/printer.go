package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dshills/feedcore/internal/collection/bindable"
	"github.com/dshills/feedcore/internal/collection/tracking"
	"github.com/dshills/feedcore/internal/dispatch"
)

const (
	colorReset  = "\x1b[0m"
	colorRed    = "\x1b[31m"
	colorGreen  = "\x1b[32m"
	colorYellow = "\x1b[33m"
	colorCyan   = "\x1b[36m"
	colorBold   = "\x1b[1m"
)

// printer writes change sets as diff-like lines. It is only used from
// the printer dispatcher.
type printer struct {
	out   io.Writer
	color bool
}

func newPrinter(out io.Writer, color bool) *printer {
	return &printer{out: out, color: color}
}

func (p *printer) print(cs tracking.ChangeSet[string]) {
	for _, c := range cs {
		switch c.Kind {
		case tracking.Add:
			for i, item := range c.NewItems {
				p.line(colorGreen, "+ [%d] %s", c.NewIndex+i, item)
			}
		case tracking.Remove:
			for i, item := range c.OldItems {
				p.line(colorRed, "- [%d] %s", c.OldIndex+i, item)
			}
		case tracking.Replace:
			for i := range c.NewItems {
				p.line(colorYellow, "~ [%d] %s -> %s", c.NewIndex+i, c.OldItems[i], c.NewItems[i])
			}
		case tracking.Move:
			p.line(colorCyan, "> [%d] -> [%d] %s", c.OldIndex, c.NewIndex, strings.Join(c.OldItems, ", "))
		case tracking.Reset:
			p.line(colorBold, "* reset (%d items)", len(c.NewItems))
			p.items(c.NewItems)
		}
	}
}

// follow lists the items of view, then prints each change set applied to
// it. Both happen on q, the dispatcher of view, so the listing and the
// first change set cannot overlap.
func (p *printer) follow(ctx context.Context, q *dispatch.Queue, view *bindable.View[string]) (unsubscribe func(), err error) {
	subscribed := make(chan func(), 1)
	err = q.Invoke(ctx, func() {
		items := view.Items()
		p.line(colorBold, "= %d items", len(items))
		p.items(items)
		subscribed <- view.Subscribe(p.print)
	})
	if err != nil {
		return nil, err
	}
	return <-subscribed, nil
}

func (p *printer) items(items []string) {
	for i, item := range items {
		p.line("", "  [%d] %s", i, item)
	}
}

func (p *printer) line(color, format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	if p.color && color != "" {
		text = color + text + colorReset
	}
	fmt.Fprintln(p.out, text)
}
