// Package htmldom serves a static html snapshot as a harvest.Document.
// A snapshot cannot navigate, clicks succeed without changing anything.
package htmldom

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/PuerkitoBio/goquery"

	"github.com/hoanhv-vvt/thamdinh-extensions/harvest"
)

var _ harvest.Document = (*Document)(nil)

type Document struct {
	doc *goquery.Document
}

func New(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}

	return &Document{doc: doc}, nil
}

func Open(path string) (*Document, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	defer fd.Close()

	return New(fd)
}

func FromGoquery(doc *goquery.Document) *Document {
	return &Document{doc: doc}
}

func (d *Document) QueryAll(ctx context.Context, selector string) ([]harvest.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sel := d.doc.Find(selector)
	ans := make([]harvest.Element, 0, sel.Length())

	sel.Each(func(_ int, s *goquery.Selection) {
		ans = append(ans, element{sel: s})
	})

	return ans, nil
}

type element struct {
	sel *goquery.Selection
}

func (e element) Attribute(_ context.Context, name string) (string, error) {
	return e.sel.AttrOr(name, ""), nil
}

func (e element) Click(context.Context) error {
	return nil
}
