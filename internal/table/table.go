// Package table main memory storage of the node table.
// Records are kept in pre order in a list of fixed size blocks,
// so inserts and deletes only move the records of a single block.
package table

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/S0me0neR0man/ourtable/internal/record"
)

const (
	DefaultBlockPower = 12
	MaxBlockPower     = 24
)

// MetaData the part of the document meta data the table depends on
type MetaData struct {
	Name  string
	Size  int
	Dirty bool
}

// Table the in-memory node table.
//
// IMPORTANT: Table does not provide thread safety, the owner must hold a lock
type Table struct {
	meta     *MetaData
	blocks   []*block
	current  int
	capacity int

	sugar *zap.SugaredLogger
}

// NewTable creates a table with 1 << power records per block.
// If meta.Size is not zero, the table is populated with empty records.
func NewTable(meta *MetaData, power int, logger *zap.Logger) *Table {
	sugar := logger.Sugar()
	if power < 0 || power > MaxBlockPower {
		sugar.Warnw("block power out of range", "name", meta.Name, "power", power, "default", DefaultBlockPower)
		power = DefaultBlockPower
	}
	t := &Table{
		meta:     meta,
		capacity: 1 << power,
		sugar:    sugar,
	}
	if meta.Size > 0 {
		t.blocks = newBlocks(meta.Size, 0, t.capacity)
	}
	t.sugar.Debugw("new table", "name", meta.Name, "size", meta.Size, "capacity", t.capacity, "blocks", len(t.blocks))
	return t
}

// Size returns the number of records
func (t *Table) Size() int {
	return t.meta.Size
}

// Blocks returns the number of blocks
func (t *Table) Blocks() int {
	return len(t.blocks)
}

// Capacity returns the number of records per block
func (t *Table) Capacity() int {
	return t.capacity
}

// Insert inserts entries at pre. The length of entries must be a multiple of record.Size.
func (t *Table) Insert(pre int, entries []byte) {
	count := record.Count(entries)
	if count == 0 {
		return
	}

	if pre == t.meta.Size {
		// append entries, add blocks for what does not fit into the last one
		bs := len(t.blocks)
		if bs == 0 || t.blocks[bs-1].full(t.meta.Size) {
			t.blocks = append(t.blocks, newBlocks(count, pre, t.capacity)...)
		} else if free := t.blocks[bs-1].free(t.meta.Size); free < count {
			t.blocks = append(t.blocks, newBlocks(count-free, pre+free, t.capacity)...)
		}
	} else {
		b := t.block(pre)
		c := t.current + 1
		list := b.insert(pre, count, t.firstPre(c))
		if list != nil {
			t.blocks = append(t.blocks[:c], append(list, t.blocks[c:]...)...)
			c += len(list)
			t.sugar.Debugw("split block", "firstPre", b.firstPre, "new", len(list))
		}
		t.updateFirstPre(c, count)
	}

	t.meta.Size += count
	t.meta.Dirty = true
	t.copy(entries, pre, pre+count)
	t.sugar.Debugw("insert", "pre", pre, "count", count, "size", t.meta.Size, "blocks", len(t.blocks))
}

// Delete removes count records starting at pre
func (t *Table) Delete(pre, count int) {
	if count <= 0 {
		return
	}

	t.block(pre)
	c := t.current
	for deleted := 0; deleted < count; {
		b := t.blocks[c]
		// the next block has not been touched yet
		boundary := t.firstPre(c+1) - deleted
		used := boundary - b.firstPre
		n := b.delete(pre, count-deleted, boundary)
		deleted += n
		if c+1 < len(t.blocks) {
			t.blocks[c+1].firstPre -= deleted
		}
		if n == used {
			t.sugar.Debugw("drop block", "firstPre", b.firstPre)
			t.blocks = append(t.blocks[:c], t.blocks[c+1:]...)
		} else {
			c++
		}
	}
	// blocks[c] was adjusted in the last round
	t.updateFirstPre(c+1, -count)

	t.meta.Size -= count
	t.meta.Dirty = true
	if t.current >= len(t.blocks) {
		t.current = len(t.blocks) - 1
	}
	if t.current < 0 {
		t.current = 0
	}
	t.sugar.Debugw("delete", "pre", pre, "count", count, "size", t.meta.Size, "blocks", len(t.blocks))
}

// copy overwrites the records first..last-1 with entries
func (t *Table) copy(entries []byte, first, last int) {
	for i, pre := 0, first; pre < last; i, pre = i+1, pre+1 {
		w0, w1 := record.Get(entries, i)
		t.block(pre).set(pre, w0, w1)
	}
}

// block returns the block holding pre and makes it the current one
func (t *Table) block(pre int) *block {
	return t.locate(pre, &t.current)
}

// locate returns the block holding pre and stores its index in current.
// Neighbours of the current block are checked first, sequential
// access hits them in nearly all cases.
func (t *Table) locate(pre int, current *int) *block {
	c := *current
	if c >= len(t.blocks) {
		c = len(t.blocks) - 1
	}
	fp, np := t.firstPre(c), t.firstPre(c+1)
	if pre >= np {
		c++
		fp, np = np, t.firstPre(c+1)
	} else if pre < fp {
		c--
		fp, np = t.firstPre(c), fp
	} else {
		return t.blocks[c]
	}

	if pre >= np || pre < fp {
		// binary search
		l, h := 0, len(t.blocks)-1
		for l <= h {
			if pre >= np {
				l = c + 1
			} else if pre < fp {
				h = c - 1
			} else {
				break
			}
			c = int(uint(l+h) >> 1)
			fp, np = t.firstPre(c), t.firstPre(c+1)
		}
	}
	*current = c
	return t.blocks[c]
}

// firstPre returns the first pre value of block i, the table size for the block after the last one
func (t *Table) firstPre(i int) int {
	if i < len(t.blocks) {
		return t.blocks[i].firstPre
	}
	return t.meta.Size
}

// updateFirstPre moves the firstPre values of block i and all following blocks
func (t *Table) updateFirstPre(i, delta int) {
	for ; i < len(t.blocks); i++ {
		t.blocks[i].firstPre += delta
	}
}

// Check verifies that the blocks cover 0..size-1 without gaps and none of them is empty
func (t *Table) Check() error {
	const msg = "check:"
	if len(t.blocks) == 0 {
		if t.meta.Size != 0 {
			return fmt.Errorf("%s no blocks for %d records", msg, t.meta.Size)
		}
		return nil
	}
	if t.blocks[0].firstPre != 0 {
		return fmt.Errorf("%s first block starts at %d", msg, t.blocks[0].firstPre)
	}
	for i, b := range t.blocks {
		used := t.firstPre(i+1) - b.firstPre
		if used <= 0 {
			return fmt.Errorf("%s block %d at %d is empty (next %d)", msg, i, b.firstPre, t.firstPre(i+1))
		}
		if used > b.capacity() {
			return fmt.Errorf("%s block %d at %d holds %d records, capacity %d", msg, i, b.firstPre, used, b.capacity())
		}
	}
	if t.current < 0 || t.current >= len(t.blocks) {
		return fmt.Errorf("%s current block %d out of %d", msg, t.current, len(t.blocks))
	}
	return nil
}

// String is Stringer implementation
func (t *Table) String() string {
	var sb strings.Builder
	for i, b := range t.blocks {
		if i > 0 {
			sb.WriteString(" ")
		}
		fmt.Fprintf(&sb, "%d..%d", b.firstPre, t.firstPre(i+1)-1)
	}
	return fmt.Sprintf("Table[size: %d, current: %d, blocks: %s]", t.meta.Size, t.current, sb.String())
}
