package table

import (
	"github.com/S0me0neR0man/ourtable/internal/record"
)

// Access positional access to the node table.
// Callers guarantee valid pre values and offsets, nothing is checked here.
type Access interface {
	Read1(pre, offset int) uint8
	Read2(pre, offset int) uint16
	Read4(pre, offset int) uint32
	Read5(pre, offset int) uint64

	Write1(pre, offset int, value uint8)
	Write2(pre, offset int, value uint16)
	Write4(pre, offset int, value uint32)
	Write5(pre, offset int, value uint64)

	Insert(pre int, entries []byte)
	Delete(pre, count int)
	Replace(pre int, entries []byte, count int)
	Set(pre int, entries []byte)
	Entries(pre, count int) []byte

	Flush(all bool) error
	Close() error
	Lock(exclusive bool) bool

	Size() int
}

var _ Access = (*Table)(nil)

func (t *Table) Read1(pre, offset int) uint8 {
	return uint8(t.read(pre, offset, record.Width1))
}

func (t *Table) Read2(pre, offset int) uint16 {
	return uint16(t.read(pre, offset, record.Width2))
}

func (t *Table) Read4(pre, offset int) uint32 {
	return uint32(t.read(pre, offset, record.Width4))
}

// Read5 returns a 40 bit value
func (t *Table) Read5(pre, offset int) uint64 {
	return t.read(pre, offset, record.Width5)
}

func (t *Table) Write1(pre, offset int, value uint8) {
	t.write(pre, offset, record.Width1, uint64(value))
}

func (t *Table) Write2(pre, offset int, value uint16) {
	t.write(pre, offset, record.Width2, uint64(value))
}

func (t *Table) Write4(pre, offset int, value uint32) {
	t.write(pre, offset, record.Width4, uint64(value))
}

// Write5 stores the lower 40 bits of value
func (t *Table) Write5(pre, offset int, value uint64) {
	t.write(pre, offset, record.Width5, value)
}

func (t *Table) read(pre, offset int, width record.Width) uint64 {
	return record.Read(t.block(pre).value(pre, offset), offset, width)
}

func (t *Table) write(pre, offset int, width record.Width, value uint64) {
	b := t.block(pre)
	b.setValue(pre, offset, record.Write(b.value(pre, offset), offset, width, value))
	t.meta.Dirty = true
}

// Replace replaces count records at pre with entries.
// Surplus entries are inserted, surplus records are deleted.
func (t *Table) Replace(pre int, entries []byte, count int) {
	n := record.Count(entries)
	last := pre + n
	if count < n {
		last = pre + count
	}
	t.Set(pre, entries[:(last-pre)*record.Size])

	if diff := count - n; diff < 0 {
		t.Insert(last, entries[(last-pre)*record.Size:])
	} else if diff > 0 {
		t.Delete(last, diff)
	}
}

// Set overwrites records starting at pre with entries, the size is not changed
func (t *Table) Set(pre int, entries []byte) {
	n := record.Count(entries)
	if n == 0 {
		return
	}
	t.copy(entries, pre, pre+n)
	t.meta.Dirty = true
}

// Entries returns count records starting at pre, the result can be passed to Insert
func (t *Table) Entries(pre, count int) []byte {
	entries := make([]byte, count*record.Size)
	for i := 0; i < count; i++ {
		w0, w1 := t.block(pre + i).get(pre + i)
		record.Put(entries, i, w0, w1)
	}
	return entries
}

// Flush nothing to write in main memory
func (t *Table) Flush(all bool) error {
	return nil
}

// Close nothing to release, blocks go with the table
func (t *Table) Close() error {
	return nil
}

// Lock always succeeds, locking is done by the owner of the table
func (t *Table) Lock(exclusive bool) bool {
	return true
}
