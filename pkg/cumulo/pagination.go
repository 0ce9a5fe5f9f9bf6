package cumulo

import (
	"context"
	"errors"
	"fmt"

	"github.com/cumulo-io/cumulo-client/internal/constants"
)

// Page is one fetched page of a paginated listing. NextToken is the opaque
// continuation cursor; empty means the listing is complete.
type Page struct {
	Items     []AttributeTree
	NextToken string
}

// ListFunc fetches one page of a listing. An empty token requests the first
// page.
type ListFunc func(ctx context.Context, token string) (*Page, error)

// PageResult is one streamed page or a terminal error.
type PageResult struct {
	Items []AttributeTree
	Err   error
}

// CollectionOptions tunes enumeration behavior.
type CollectionOptions struct {
	// MaxPages caps how many pages the bulk helpers (All, ForEach, EachPage,
	// Stream) fetch. 0 means no cap.
	MaxPages int
}

// collectionState is the enumeration position of a Collection.
type collectionState int

const (
	// stateStart: nothing fetched yet.
	stateStart collectionState = iota
	// stateYielding: a page is buffered, possibly with a continuation token.
	stateYielding
	// stateDone: terminal; the cursor chain is exhausted.
	stateDone
)

// Collection is a lazy, cursor-driven sequence of attribute trees produced
// by successive list calls. Items are yielded in exactly the order the
// service returns them; no local re-sorting. A fetch failure is surfaced to
// the caller and never silently turned into an empty sequence.
//
// A Collection is exhausted once the service stops returning a continuation
// token; re-enumerating requires Reset or a fresh Collection. Instances are
// not safe for concurrent use.
type Collection struct {
	fetch   ListFunc
	opts    CollectionOptions
	state   collectionState
	buf     []AttributeTree
	pos     int
	token   string
	fetched int
}

// NewCollection creates a Collection over fetch.
func NewCollection(fetch ListFunc) *Collection {
	return &Collection{fetch: fetch}
}

// NewCollectionWithOptions creates a Collection with enumeration options.
func NewCollectionWithOptions(fetch ListFunc, opts *CollectionOptions) *Collection {
	collection := NewCollection(fetch)

	if opts != nil {
		collection.opts = *opts
	}

	return collection
}

// HasNext reports whether another item may be available. It never issues a
// network call, so before the first fetch it is optimistic: Next can still
// return ErrNoMoreItems when the listing turns out to be empty.
func (c *Collection) HasNext() bool {
	if c.pos < len(c.buf) {
		return true
	}

	switch c.state {
	case stateStart:
		return true
	case stateYielding:
		return c.token != ""
	default:
		return false
	}
}

// Next returns the next item, fetching the next page when the buffered one
// is exhausted. Returns ErrNoMoreItems once the cursor chain ends. A fetch
// error leaves the position unchanged, so the caller may retry Next.
func (c *Collection) Next(ctx context.Context) (AttributeTree, error) {
	for c.pos >= len(c.buf) {
		switch c.state {
		case stateDone:
			return nil, ErrNoMoreItems
		case stateStart:
			err := c.fetchPage(ctx, "")
			if err != nil {
				return nil, err
			}
		case stateYielding:
			if c.token == "" {
				c.state = stateDone

				return nil, ErrNoMoreItems
			}

			err := c.fetchPage(ctx, c.token)
			if err != nil {
				return nil, err
			}
		}
	}

	item := c.buf[c.pos]
	c.pos++

	return item, nil
}

// All fetches every remaining item into a slice. Honors MaxPages.
func (c *Collection) All(ctx context.Context) ([]AttributeTree, error) {
	var items []AttributeTree

	err := c.ForEach(ctx, func(item AttributeTree) error {
		items = append(items, item)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return items, nil
}

// ForEach applies fn to every remaining item in service order. Stops early
// when fn returns an error. Honors MaxPages.
func (c *Collection) ForEach(ctx context.Context, fn func(item AttributeTree) error) error {
	for {
		if c.pagesCapped() && c.pos >= len(c.buf) {
			return nil
		}

		item, err := c.Next(ctx)
		if errors.Is(err, ErrNoMoreItems) {
			return nil
		}

		if err != nil {
			return err
		}

		err = fn(item)
		if err != nil {
			return err
		}
	}
}

// EachPage applies fn to every remaining page. When items have already been
// consumed through Next, the first delivered page holds the unread remainder
// of the current buffer. Honors MaxPages.
func (c *Collection) EachPage(ctx context.Context, fn func(page *Page) error) error {
	for {
		if c.pos < len(c.buf) {
			page := &Page{Items: c.buf[c.pos:], NextToken: c.token}
			c.pos = len(c.buf)

			err := fn(page)
			if err != nil {
				return err
			}

			continue
		}

		if c.state == stateDone || c.pagesCapped() {
			return nil
		}

		token := ""

		if c.state == stateYielding {
			if c.token == "" {
				c.state = stateDone

				return nil
			}

			token = c.token
		}

		err := c.fetchPage(ctx, token)
		if err != nil {
			return err
		}

		page := &Page{Items: c.buf, NextToken: c.token}
		c.pos = len(c.buf)

		err = fn(page)
		if err != nil {
			return err
		}
	}
}

// Stream fetches pages in a background goroutine and delivers them on the
// returned channel. The channel is closed after the final page or after a
// single terminal PageResult carrying the error. The Collection must not be
// used directly while streaming.
func (c *Collection) Stream(ctx context.Context) <-chan PageResult {
	results := make(chan PageResult, constants.SmallBufferSize)

	go func() {
		defer close(results)

		err := c.EachPage(ctx, func(page *Page) error {
			select {
			case results <- PageResult{Items: page.Items}:
				return nil
			case <-ctx.Done():
				return fmt.Errorf("streaming pages: %w", ctx.Err())
			}
		})
		if err != nil {
			select {
			case results <- PageResult{Err: err}:
			case <-ctx.Done():
			}
		}
	}()

	return results
}

// Reset returns the Collection to its start state so enumeration begins
// again from the first page. Order across passes is only stable if the
// remote data did not change in between.
func (c *Collection) Reset() {
	c.state = stateStart
	c.buf = nil
	c.pos = 0
	c.token = ""
	c.fetched = 0
}

// PagesFetched returns how many pages the current enumeration has fetched.
func (c *Collection) PagesFetched() int {
	return c.fetched
}

func (c *Collection) pagesCapped() bool {
	return c.opts.MaxPages > 0 && c.fetched >= c.opts.MaxPages
}

func (c *Collection) fetchPage(ctx context.Context, token string) error {
	page, err := c.fetch(ctx, token)
	if err != nil {
		return fmt.Errorf("fetching page: %w", err)
	}

	if page == nil {
		page = &Page{}
	}

	c.fetched++
	c.buf = page.Items
	c.pos = 0
	c.token = page.NextToken
	c.state = stateYielding

	if page.NextToken == "" && len(page.Items) == 0 {
		c.state = stateDone
	}

	return nil
}
