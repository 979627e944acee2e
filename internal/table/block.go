package table

import (
	"fmt"

	"github.com/S0me0neR0man/ourtable/internal/record"
)

// block a bounded run of records, two words per record.
// The number of used records is not stored: it is the distance
// to the firstPre of the next block (or to the table size).
//
// IMPORTANT: block does not provide thread safety
type block struct {
	firstPre int
	data     []uint64
}

func newBlock(firstPre, capacity int) *block {
	return &block{
		firstPre: firstPre,
		data:     make([]uint64, capacity*record.Words),
	}
}

// newBlocks returns the minimal number of blocks to hold count records
// starting at firstPre, the last one possibly partial
func newBlocks(count, firstPre, capacity int) []*block {
	list := make([]*block, 0, (count+capacity-1)/capacity)
	for c := 0; c < count; c += capacity {
		list = append(list, newBlock(firstPre+c, capacity))
	}
	return list
}

func (b *block) capacity() int {
	return len(b.data) / record.Words
}

func (b *block) String() string {
	return fmt.Sprintf("%d", b.firstPre)
}

// index returns the position of the word holding offset of record pre
func (b *block) index(pre, offset int) int {
	return (pre-b.firstPre)*record.Words + record.Word(offset)
}

// value returns the word holding offset of record pre
func (b *block) value(pre, offset int) uint64 {
	return b.data[b.index(pre, offset)]
}

// setValue replaces the word holding offset of record pre
func (b *block) setValue(pre, offset int, word uint64) {
	b.data[b.index(pre, offset)] = word
}

// get returns both words of record pre
func (b *block) get(pre int) (uint64, uint64) {
	i := (pre - b.firstPre) * record.Words
	return b.data[i], b.data[i+1]
}

// set replaces both words of record pre
func (b *block) set(pre int, w0, w1 uint64) {
	i := (pre - b.firstPre) * record.Words
	b.data[i], b.data[i+1] = w0, w1
}

// free returns the number of unused slots, size is the end of the block
func (b *block) free(size int) int {
	return b.capacity() - (size - b.firstPre)
}

// full reports whether no record can be appended, size is the end of the block
func (b *block) full(size int) bool {
	return b.free(size) <= 0
}

// delete removes up to remaining records starting at pre, but never
// beyond boundary. Returns the number of removed records.
func (b *block) delete(pre, remaining, boundary int) int {
	n := boundary - pre
	if remaining < n {
		n = remaining
	}
	from := (pre - b.firstPre) * record.Words
	to := (boundary - b.firstPre) * record.Words
	copy(b.data[from:], b.data[from+n*record.Words:to])
	return n
}

// insert opens count empty slots at pre, boundary is the end of the block.
// Returns nil if the records fit into the block. Otherwise the block is filled up
// and the overflowing records are moved to new blocks, which must be placed
// directly after this one.
func (b *block) insert(pre, count, boundary int) []*block {
	capacity := b.capacity()
	local, used := pre-b.firstPre, boundary-b.firstPre
	if used+count <= capacity {
		copy(b.data[(local+count)*record.Words:], b.data[local*record.Words:used*record.Words])
		return nil
	}

	list := newBlocks(used+count-capacity, b.firstPre+capacity, capacity)
	// backwards, records move to higher positions only
	for i := used - 1; i >= local; i-- {
		w0, w1 := b.data[i*record.Words], b.data[i*record.Words+1]
		p := i + count
		if p < capacity {
			b.data[p*record.Words], b.data[p*record.Words+1] = w0, w1
			continue
		}
		p -= capacity
		nb := list[p/capacity]
		nb.set(nb.firstPre+p%capacity, w0, w1)
	}
	return list
}
