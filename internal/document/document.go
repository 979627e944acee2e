// Package document owns a node table and guards it with a read/write lock.
// All positions are validated here, the table trusts its callers.
package document

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/S0me0neR0man/ourtable/internal/config"
	"github.com/S0me0neR0man/ourtable/internal/record"
	"github.com/S0me0neR0man/ourtable/internal/table"
)

type GUIDType string

var (
	ErrNoSuchNode      = errors.New("no such node")
	ErrInvalidPosition = errors.New("invalid update position")
	ErrMisaligned      = errors.New("entries are not a multiple of the record size")
	ErrInvalidOffset   = errors.New("invalid field offset")
	ErrInvalidValue    = errors.New("value does not fit the field")
	ErrClosed          = errors.New("document closed")
)

// Reader read access to the table, safe for concurrent use inside View
type Reader interface {
	Read1(pre, offset int) uint8
	Read2(pre, offset int) uint16
	Read4(pre, offset int) uint32
	Read5(pre, offset int) uint64
	Entries(pre, count int) []byte
	Size() int
}

// Document the owning context of a table
type Document struct {
	guid GUIDType
	meta *table.MetaData

	mu     sync.RWMutex
	table  *table.Table
	closed bool

	sugar *zap.SugaredLogger
}

// New creates an empty document
func New(name string, conf *config.Config, logger *zap.Logger) *Document {
	return Open(&table.MetaData{Name: name}, conf, logger)
}

// Open creates a document for meta, meta.Size empty records are allocated
func Open(meta *table.MetaData, conf *config.Config, logger *zap.Logger) *Document {
	d := &Document{
		guid:  GUIDType(uuid.New().String()),
		meta:  meta,
		table: table.NewTable(meta, conf.BlockPower, logger),
		sugar: logger.Sugar(),
	}
	d.sugar.Infow("open document", "guid", d.guid, "name", meta.Name, "size", meta.Size)
	return d
}

func (d *Document) Guid() GUIDType {
	return d.guid
}

func (d *Document) Name() string {
	return d.meta.Name
}

// View runs f with shared access, any number of views may run at the same time
func (d *Document) View(f func(Reader) error) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrClosed
	}
	return f(d.table.Cursor())
}

// Update runs f with exclusive access
func (d *Document) Update(f func(table.Access) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}
	return f(d.table)
}

// Size returns the number of nodes
func (d *Document) Size() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.meta.Size
}

// Read returns the field of node pre
func (d *Document) Read(pre, offset int, width record.Width) (uint64, error) {
	const msg = "read:"
	var value uint64
	err := d.View(func(r Reader) error {
		if err := d.checkNode(pre); err != nil {
			return fmt.Errorf("%s %w", msg, err)
		}
		if err := checkField(offset, width); err != nil {
			return fmt.Errorf("%s %w", msg, err)
		}
		switch width {
		case record.Width1:
			value = uint64(r.Read1(pre, offset))
		case record.Width2:
			value = uint64(r.Read2(pre, offset))
		case record.Width4:
			value = uint64(r.Read4(pre, offset))
		case record.Width5:
			value = r.Read5(pre, offset)
		}
		return nil
	})
	return value, err
}

// Write replaces the field of node pre
func (d *Document) Write(pre, offset int, width record.Width, value uint64) error {
	const msg = "write:"
	return d.Update(func(a table.Access) error {
		if err := d.checkNode(pre); err != nil {
			return fmt.Errorf("%s %w", msg, err)
		}
		if err := checkField(offset, width); err != nil {
			return fmt.Errorf("%s %w", msg, err)
		}
		if value > record.Mask(width) {
			return fmt.Errorf("%s value %#x exceeds %d bytes: %w", msg, value, width, ErrInvalidValue)
		}
		switch width {
		case record.Width1:
			a.Write1(pre, offset, uint8(value))
		case record.Width2:
			a.Write2(pre, offset, uint16(value))
		case record.Width4:
			a.Write4(pre, offset, uint32(value))
		case record.Width5:
			a.Write5(pre, offset, value)
		}
		return nil
	})
}

// Entries returns count nodes starting at pre
func (d *Document) Entries(pre, count int) ([]byte, error) {
	const msg = "entries:"
	var entries []byte
	err := d.View(func(r Reader) error {
		if err := d.checkRange(pre, count); err != nil {
			return fmt.Errorf("%s %w", msg, err)
		}
		entries = r.Entries(pre, count)
		return nil
	})
	return entries, err
}

// Insert inserts entries before node pre, pre equal to size appends
func (d *Document) Insert(pre int, entries []byte) error {
	const msg = "insert:"
	return d.Update(func(a table.Access) error {
		if pre < 0 || pre > d.meta.Size {
			return fmt.Errorf("%s pre %d, size %d: %w", msg, pre, d.meta.Size, ErrInvalidPosition)
		}
		if !record.Aligned(entries) {
			return fmt.Errorf("%s %d bytes: %w", msg, len(entries), ErrMisaligned)
		}
		a.Insert(pre, entries)
		d.sugar.Debugw(msg, "guid", d.guid, "pre", pre, "count", record.Count(entries), "size", d.meta.Size)
		return nil
	})
}

// Append appends entries and returns the pre value of the first one
func (d *Document) Append(entries []byte) (int, error) {
	const msg = "append:"
	var pre int
	err := d.Update(func(a table.Access) error {
		if !record.Aligned(entries) {
			return fmt.Errorf("%s %d bytes: %w", msg, len(entries), ErrMisaligned)
		}
		pre = d.meta.Size
		a.Insert(pre, entries)
		d.sugar.Debugw(msg, "guid", d.guid, "pre", pre, "count", record.Count(entries), "size", d.meta.Size)
		return nil
	})
	return pre, err
}

// Delete removes count nodes starting at pre
func (d *Document) Delete(pre, count int) error {
	const msg = "delete:"
	return d.Update(func(a table.Access) error {
		if err := d.checkRange(pre, count); err != nil {
			return fmt.Errorf("%s %w", msg, err)
		}
		a.Delete(pre, count)
		d.sugar.Debugw(msg, "guid", d.guid, "pre", pre, "count", count, "size", d.meta.Size)
		return nil
	})
}

// Replace replaces count nodes starting at pre with entries
func (d *Document) Replace(pre int, entries []byte, count int) error {
	const msg = "replace:"
	return d.Update(func(a table.Access) error {
		if err := d.checkRange(pre, count); err != nil {
			return fmt.Errorf("%s %w", msg, err)
		}
		if !record.Aligned(entries) {
			return fmt.Errorf("%s %d bytes: %w", msg, len(entries), ErrMisaligned)
		}
		a.Replace(pre, entries, count)
		d.sugar.Debugw(msg, "guid", d.guid, "pre", pre, "count", count, "with", record.Count(entries), "size", d.meta.Size)
		return nil
	})
}

// Check verifies the table structure
func (d *Document) Check() error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if err := d.table.Check(); err != nil {
		return fmt.Errorf("document %s: %w", d.guid, err)
	}
	return nil
}

// Close releases the table, all following calls return ErrClosed
func (d *Document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}
	if err := d.table.Flush(true); err != nil {
		return err
	}
	d.closed = true
	d.sugar.Infow("close document", "guid", d.guid, "name", d.meta.Name, "size", d.meta.Size, "dirty", d.meta.Dirty)
	return d.table.Close()
}

// String is Stringer implementation
func (d *Document) String() string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return fmt.Sprintf("%s %s %v", d.meta.Name, d.guid, d.table)
}

// checkNode the caller must hold the lock
func (d *Document) checkNode(pre int) error {
	if pre < 0 || pre >= d.meta.Size {
		return fmt.Errorf("pre %d, size %d: %w", pre, d.meta.Size, ErrNoSuchNode)
	}
	return nil
}

// checkRange the caller must hold the lock, an empty range may start at size
func (d *Document) checkRange(pre, count int) error {
	if count < 0 || pre < 0 || pre+count > d.meta.Size || (count > 0 && pre >= d.meta.Size) {
		return fmt.Errorf("pre %d, count %d, size %d: %w", pre, count, d.meta.Size, ErrNoSuchNode)
	}
	return nil
}

func checkField(offset int, width record.Width) error {
	switch width {
	case record.Width1, record.Width2, record.Width4, record.Width5:
	default:
		return fmt.Errorf("width %d: %w", width, ErrInvalidOffset)
	}
	if offset < 0 || offset >= record.Size || offset%8+int(width) > 8 {
		return fmt.Errorf("offset %d, width %d: %w", offset, width, ErrInvalidOffset)
	}
	return nil
}
