// Package record reads and writes sub-fields of fixed-width node records
package record

import (
	"encoding/binary"
)

// Record layout. All words stored in BigEndian notation.
//
// [0:8] word 0, offsets 0..7, offset 0 is the most significant byte
//
// [8:16] word 1, offsets 8..15
const (
	Size  = 16
	Power = 4
	Words = 2
)

// Width the number of bytes of a sub-field
type Width int

const (
	Width1 Width = 1
	Width2 Width = 2
	Width4 Width = 4
	Width5 Width = 5
)

// Mask returns the value mask for width
func Mask(width Width) uint64 {
	return 1<<(uint(width)<<3) - 1
}

// Word returns the index of the word holding offset
func Word(offset int) int {
	return offset >> 3
}

// Shift returns the bit shift of a field inside its word.
// The field ends at byte 7 (or 15), so the base is the last byte minus the width.
func Shift(offset int, width Width) uint {
	last := 7
	if offset >= 8 {
		last = 15
	}
	return uint(last+1-int(width)-offset) << 3
}

// Read extracts the field at offset from word
func Read(word uint64, offset int, width Width) uint64 {
	return word >> Shift(offset, width) & Mask(width)
}

// Write returns word with the field at offset replaced by value.
// Bits of value beyond width are dropped.
func Write(word uint64, offset int, width Width, value uint64) uint64 {
	shift, mask := Shift(offset, width), Mask(width)
	return word&^(mask<<shift) | (value&mask)<<shift
}

// Count returns the number of whole records in entries
func Count(entries []byte) int {
	return len(entries) >> Power
}

// Aligned reports whether entries holds whole records only
func Aligned(entries []byte) bool {
	return len(entries)&(Size-1) == 0
}

// Get returns both words of record i in entries
func Get(entries []byte, i int) (uint64, uint64) {
	o := i << Power
	return binary.BigEndian.Uint64(entries[o : o+8]), binary.BigEndian.Uint64(entries[o+8 : o+16])
}

// Put stores both words as record i in entries
func Put(entries []byte, i int, w0, w1 uint64) {
	o := i << Power
	binary.BigEndian.PutUint64(entries[o:o+8], w0)
	binary.BigEndian.PutUint64(entries[o+8:o+16], w1)
}
