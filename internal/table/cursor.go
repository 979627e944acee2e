package table

import (
	"github.com/S0me0neR0man/ourtable/internal/record"
)

// Cursor reads a table with its own current block.
// Any number of cursors may read the same table as long as nobody writes it.
type Cursor struct {
	t       *Table
	current int
}

// Cursor returns a cursor starting at the current block of the table
func (t *Table) Cursor() *Cursor {
	return &Cursor{t: t, current: t.current}
}

func (c *Cursor) Read1(pre, offset int) uint8 {
	return uint8(c.read(pre, offset, record.Width1))
}

func (c *Cursor) Read2(pre, offset int) uint16 {
	return uint16(c.read(pre, offset, record.Width2))
}

func (c *Cursor) Read4(pre, offset int) uint32 {
	return uint32(c.read(pre, offset, record.Width4))
}

func (c *Cursor) Read5(pre, offset int) uint64 {
	return c.read(pre, offset, record.Width5)
}

// Entries returns count records starting at pre
func (c *Cursor) Entries(pre, count int) []byte {
	entries := make([]byte, count*record.Size)
	for i := 0; i < count; i++ {
		w0, w1 := c.t.locate(pre+i, &c.current).get(pre + i)
		record.Put(entries, i, w0, w1)
	}
	return entries
}

func (c *Cursor) Size() int {
	return c.t.meta.Size
}

func (c *Cursor) read(pre, offset int, width record.Width) uint64 {
	return record.Read(c.t.locate(pre, &c.current).value(pre, offset), offset, width)
}
