package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/S0me0neR0man/ourtable/internal/config"
	"github.com/S0me0neR0man/ourtable/internal/document"
	"github.com/S0me0neR0man/ourtable/internal/record"
	"github.com/S0me0neR0man/ourtable/internal/table"
)

const (
	displayCounter = 100
	maxBatch       = 64
	loadBatch      = 1024
)

// Checker runs random edits on a document and compares it with a plain byte slice
type Checker struct {
	doc  *document.Document
	conf *config.Config

	// model is guarded by the document lock
	model []byte
	rnd   *rand.Rand

	toDisplay chan string
	wg        sync.WaitGroup

	sugar *zap.SugaredLogger
}

func NewChecker(doc *document.Document, conf *config.Config, logger *zap.Logger) *Checker {
	seed := conf.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	c := &Checker{
		doc:       doc,
		conf:      conf,
		rnd:       rand.New(rand.NewSource(seed)),
		toDisplay: make(chan string),
		sugar:     logger.Sugar(),
	}
	c.sugar.Infow("new checker", "seed", seed, "records", conf.Records, "operations", conf.Operations, "readers", conf.Readers)
	return c
}

// Go loads the document and runs the writer and readers until ctx is done
// or all operations are finished
func (c *Checker) Go(ctx context.Context) error {
	if err := c.load(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.wg.Add(1)
	go c.display(ctx)

	// c.rnd belongs to the writer once it runs
	seeds := make([]int64, c.conf.Readers)
	for i := range seeds {
		seeds[i] = c.rnd.Int63()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return c.write(gctx)
	})
	for _, seed := range seeds {
		rnd := rand.New(rand.NewSource(seed))
		g.Go(func() error {
			return c.read(gctx, rnd)
		})
	}

	err := g.Wait()
	cancel()
	c.wg.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (c *Checker) load() error {
	const msg = "load:"
	for loaded := 0; loaded < c.conf.Records; {
		n := c.conf.Records - loaded
		if n > loadBatch {
			n = loadBatch
		}
		entries := c.entries(n)
		pre, err := c.doc.Append(entries)
		if err != nil {
			return fmt.Errorf("%s %w", msg, err)
		}
		if pre != loaded {
			return fmt.Errorf("%s appended at %d, expected %d", msg, pre, loaded)
		}
		c.model = append(c.model, entries...)
		loaded += n
	}
	c.sugar.Infow("loaded", "records", c.conf.Records, "document", c.doc.String())
	return c.doc.Check()
}

func (c *Checker) display(ctx context.Context) {
	defer c.wg.Done()
	c.sugar.Infow("display start")

	for {
		select {
		case <-ctx.Done():
			c.sugar.Infow("display done")
			return
		case s := <-c.toDisplay:
			n, err := fmt.Fprint(os.Stdout, s)
			if err != nil {
				c.sugar.Fatalw("fprint stdout", "err", err, "n", n)
			}
		}
	}
}

func (c *Checker) show(ctx context.Context, s string) {
	select {
	case <-ctx.Done():
	case c.toDisplay <- s:
	}
}

// write is the only goroutine changing the document
func (c *Checker) write(ctx context.Context) error {
	c.sugar.Infow("write start")
	for op := 1; c.conf.Operations == 0 || op <= c.conf.Operations; op++ {
		select {
		case <-ctx.Done():
			c.sugar.Infow("write done", "operations", op-1)
			return ctx.Err()
		default:
		}

		var kind string
		err := c.doc.Update(func(a table.Access) error {
			kind = c.edit(a)
			return nil
		})
		if err != nil {
			return err
		}
		if err := c.doc.Check(); err != nil {
			return fmt.Errorf("after %s, operation %d: %w", kind, op, err)
		}
		if op%displayCounter == 0 {
			c.show(ctx, kind)
		}
	}
	c.sugar.Infow("write done", "operations", c.conf.Operations)
	return nil
}

// edit applies a random change to the table and the model, returns its display letter
func (c *Checker) edit(a table.Access) string {
	size := len(c.model) / record.Size
	switch n := c.rnd.Intn(10); {
	case size == 0 || n < 3 && size < 2*c.conf.Records+maxBatch:
		pre := c.rnd.Intn(size + 1)
		entries := c.entries(c.rnd.Intn(maxBatch) + 1)
		a.Insert(pre, entries)
		c.model = insertModel(c.model, pre, entries)
		return "I"
	case n < 6:
		pre := c.rnd.Intn(size)
		count := c.count(size - pre)
		a.Delete(pre, count)
		c.model = deleteModel(c.model, pre, count)
		return "D"
	case n < 8:
		pre := c.rnd.Intn(size)
		count := c.count(size - pre)
		entries := c.entries(c.rnd.Intn(maxBatch))
		a.Replace(pre, entries, count)
		c.model = insertModel(deleteModel(c.model, pre, count), pre, entries)
		return "R"
	default:
		pre := c.rnd.Intn(size)
		offset := c.rnd.Intn(record.Size - 4)
		value := c.rnd.Uint32()
		a.Write4(pre, offset&^3, value)
		i := pre*record.Size + offset&^3
		c.model[i], c.model[i+1], c.model[i+2], c.model[i+3] = byte(value>>24), byte(value>>16), byte(value>>8), byte(value)
		return "W"
	}
}

// read compares random ranges of the document with the model
func (c *Checker) read(ctx context.Context, rnd *rand.Rand) error {
	c.sugar.Infow("read start")
	count := 0
	for {
		select {
		case <-ctx.Done():
			c.sugar.Infow("read done", "views", count)
			return nil
		default:
		}

		err := c.doc.View(func(r document.Reader) error {
			size := r.Size()
			if size*record.Size != len(c.model) {
				return fmt.Errorf("size %d, model %d", size, len(c.model)/record.Size)
			}
			if size == 0 {
				return nil
			}
			pre := rnd.Intn(size)
			n := rnd.Intn(size-pre) + 1
			if n > maxBatch {
				n = maxBatch
			}
			got := r.Entries(pre, n)
			want := c.model[pre*record.Size : (pre+n)*record.Size]
			if !bytes.Equal(want, got) {
				return fmt.Errorf("entries %d..%d differ", pre, pre+n-1)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		count++
		if count%displayCounter == 0 {
			c.show(ctx, "V")
		}
	}
}

func (c *Checker) entries(n int) []byte {
	entries := make([]byte, n*record.Size)
	c.rnd.Read(entries)
	return entries
}

func (c *Checker) count(limit int) int {
	if limit > maxBatch {
		limit = maxBatch
	}
	return c.rnd.Intn(limit) + 1
}

func insertModel(model []byte, pre int, entries []byte) []byte {
	i := pre * record.Size
	model = append(model, entries...)
	copy(model[i+len(entries):], model[i:])
	copy(model[i:], entries)
	return model
}

func deleteModel(model []byte, pre, count int) []byte {
	i := pre * record.Size
	return append(model[:i], model[i+count*record.Size:]...)
}
