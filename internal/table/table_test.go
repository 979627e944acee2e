package table

import (
	"log"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/S0me0neR0man/ourtable/internal/record"
)

var (
	once   sync.Once
	logger *zap.Logger
)

func getTestLogger() *zap.Logger {
	once.Do(func() {
		var err error
		logger, err = zap.NewProduction()
		if err != nil {
			log.Fatal(err)
		}
	})

	return logger
}

// model the expected table content, one pair of words per record
type model [][2]uint64

func (m model) insert(pre int, entries []byte) model {
	add := make(model, record.Count(entries))
	for i := range add {
		add[i][0], add[i][1] = record.Get(entries, i)
	}
	res := make(model, 0, len(m)+len(add))
	res = append(res, m[:pre]...)
	res = append(res, add...)
	return append(res, m[pre:]...)
}

func (m model) delete(pre, count int) model {
	res := make(model, 0, len(m)-count)
	res = append(res, m[:pre]...)
	return append(res, m[pre+count:]...)
}

// makeEntries returns count records, every record is unique for a given id
func makeEntries(id, count int) []byte {
	entries := make([]byte, count*record.Size)
	for i := 0; i < count; i++ {
		v := uint64(id)<<20 | uint64(i)
		record.Put(entries, i, v<<8|0x11, ^v)
	}
	return entries
}

func newTestTable(power int) (*Table, *MetaData) {
	meta := &MetaData{Name: "test"}
	return NewTable(meta, power, getTestLogger()), meta
}

func requireModel(t *testing.T, tbl *Table, m model) {
	t.Helper()
	require.NoError(t, tbl.Check(), "%v", tbl)
	require.Equal(t, len(m), tbl.Size())
	for pre, words := range m {
		w0, w1 := record.Get(tbl.Entries(pre, 1), 0)
		require.Equal(t, words[0], w0, "pre=%d %v", pre, tbl)
		require.Equal(t, words[1], w1, "pre=%d %v", pre, tbl)
	}
}

func firstPres(tbl *Table) []int {
	res := make([]int, len(tbl.blocks))
	for i, b := range tbl.blocks {
		res[i] = b.firstPre
	}
	return res
}

func TestTable_InsertDeleteScenario(t *testing.T) {
	tbl, meta := newTestTable(2)
	require.Equal(t, 4, tbl.Capacity())
	require.Equal(t, 0, tbl.Blocks())

	entries := makeEntries(1, 10)
	tbl.Insert(0, entries)
	require.Equal(t, 10, meta.Size)
	require.Equal(t, []int{0, 4, 8}, firstPres(tbl))
	require.Equal(t, "Table[size: 10, current: 2, blocks: 0..3 4..7 8..9]", tbl.String())
	m := model{}.insert(0, entries)
	requireModel(t, tbl, m)

	tbl.Delete(2, 3)
	require.Equal(t, 7, meta.Size)
	require.Equal(t, []int{0, 2, 5}, firstPres(tbl))
	requireModel(t, tbl, m.delete(2, 3))
}

func TestTable_DeleteEmptiesBlocks(t *testing.T) {
	tests := []struct {
		name      string
		pre       int
		count     int
		firstPres []int
	}{
		{"whole middle block", 4, 4, []int{0, 4}},
		{"whole first block", 0, 4, []int{0, 4}},
		{"whole last block", 8, 2, []int{0, 4}},
		{"across two blocks", 2, 6, []int{0, 2}},
		{"across all blocks", 1, 8, []int{0, 1}},
		{"tail of table", 3, 7, []int{0}},
		{"everything", 0, 10, []int{}},
		{"single record", 9, 1, []int{0, 4, 8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, _ := newTestTable(2)
			entries := makeEntries(2, 10)
			tbl.Insert(0, entries)

			tbl.Delete(tt.pre, tt.count)
			require.Equal(t, tt.firstPres, firstPres(tbl))
			requireModel(t, tbl, model{}.insert(0, entries).delete(tt.pre, tt.count))
		})
	}
}

func TestTable_InsertSplitsBlock(t *testing.T) {
	tbl, _ := newTestTable(2)
	entries := makeEntries(3, 10)
	tbl.Insert(0, entries)
	m := model{}.insert(0, entries)

	add := makeEntries(4, 3)
	tbl.Insert(5, add)
	m = m.insert(5, add)
	require.Equal(t, []int{0, 4, 8, 11}, firstPres(tbl))
	requireModel(t, tbl, m)

	// fits into the free slots of the split block
	add = makeEntries(5, 1)
	tbl.Insert(10, add)
	m = m.insert(10, add)
	require.Equal(t, []int{0, 4, 8, 12}, firstPres(tbl))
	requireModel(t, tbl, m)

	// more than one block overflows
	add = makeEntries(6, 9)
	tbl.Insert(1, add)
	m = m.insert(1, add)
	require.Equal(t, 7, tbl.Blocks())
	requireModel(t, tbl, m)
}

func TestTable_Append(t *testing.T) {
	tbl, _ := newTestTable(2)
	m := model{}
	for i, n := range []int{1, 2, 1, 5, 4, 3} {
		entries := makeEntries(i, n)
		tbl.Insert(tbl.Size(), entries)
		m = m.insert(len(m), entries)
		requireModel(t, tbl, m)
	}
	// appends fill up the last block before new blocks are added
	require.Equal(t, []int{0, 4, 8, 12}, firstPres(tbl))
}

func TestTable_InsertDeleteInverse(t *testing.T) {
	tbl, _ := newTestTable(3)
	entries := makeEntries(7, 50)
	tbl.Insert(0, entries)

	for _, pre := range []int{0, 1, 7, 8, 9, 25, 49, 50} {
		before := tbl.Entries(0, tbl.Size())
		tbl.Insert(pre, makeEntries(8, 13))
		require.NoError(t, tbl.Check())
		tbl.Delete(pre, 13)
		require.NoError(t, tbl.Check())
		require.Equal(t, before, tbl.Entries(0, tbl.Size()), "pre=%d", pre)
	}
}

func TestTable_OrderPreservation(t *testing.T) {
	tbl, _ := newTestTable(2)
	tbl.Insert(0, makeEntries(9, 20))
	a, b := 5, 12
	ra, rb := tbl.Entries(a, 1), tbl.Entries(b, 1)

	tbl.Insert(3, makeEntries(10, 6))
	require.Equal(t, ra, tbl.Entries(a+6, 1))
	require.Equal(t, rb, tbl.Entries(b+6, 1))

	tbl.Insert(19, makeEntries(11, 2))
	require.Equal(t, ra, tbl.Entries(a+6, 1))
	require.Equal(t, rb, tbl.Entries(b+6, 1))

	tbl.Delete(0, 6)
	require.Equal(t, ra, tbl.Entries(a, 1))
	require.Equal(t, rb, tbl.Entries(b, 1))

	tbl.Delete(b+1, 4)
	require.Equal(t, ra, tbl.Entries(a, 1))
	require.Equal(t, rb, tbl.Entries(b, 1))
}

func TestTable_AccessOrder(t *testing.T) {
	tbl, _ := newTestTable(3)
	tbl.Insert(0, makeEntries(12, 100))
	tbl.Delete(17, 9)
	tbl.Insert(40, makeEntries(13, 21))
	size := tbl.Size()

	forward := make([]byte, 0, size*record.Size)
	for pre := 0; pre < size; pre++ {
		forward = append(forward, tbl.Entries(pre, 1)...)
	}

	backward := make([]byte, size*record.Size)
	for pre := size - 1; pre >= 0; pre-- {
		copy(backward[pre*record.Size:], tbl.Entries(pre, 1))
	}
	require.Equal(t, forward, backward)

	random := make([]byte, size*record.Size)
	for _, pre := range rand.New(rand.NewSource(1)).Perm(size) {
		copy(random[pre*record.Size:], tbl.Entries(pre, 1))
		// the located block is cached
		require.LessOrEqual(t, tbl.blocks[tbl.current].firstPre, pre)
		require.Less(t, pre, tbl.firstPre(tbl.current+1))
	}
	require.Equal(t, forward, random)
}

func TestTable_RandomEdits(t *testing.T) {
	for _, power := range []int{0, 1, 2, 4} {
		rnd := rand.New(rand.NewSource(int64(power) + 42))
		tbl, _ := newTestTable(power)
		m := model{}

		for op := 0; op < 400; op++ {
			if len(m) == 0 || rnd.Intn(3) > 0 {
				pre := rnd.Intn(len(m) + 1)
				entries := makeEntries(op, rnd.Intn(9)+1)
				tbl.Insert(pre, entries)
				m = m.insert(pre, entries)
			} else {
				pre := rnd.Intn(len(m))
				count := rnd.Intn(len(m)-pre) + 1
				tbl.Delete(pre, count)
				m = m.delete(pre, count)
			}
			require.NoError(t, tbl.Check(), "power=%d op=%d %v", power, op, tbl)
		}
		requireModel(t, tbl, m)
	}
}

func TestTable_Prepopulated(t *testing.T) {
	meta := &MetaData{Name: "populated", Size: 9}
	tbl := NewTable(meta, 2, getTestLogger())
	require.Equal(t, []int{0, 4, 8}, firstPres(tbl))
	require.NoError(t, tbl.Check())
	require.Equal(t, make([]byte, 9*record.Size), tbl.Entries(0, 9))

	tbl.Write4(8, 12, 0xCAFEBABE)
	require.EqualValues(t, 0xCAFEBABE, tbl.Read4(8, 12))
}

func TestNewTable_blockPower(t *testing.T) {
	tbl, _ := newTestTable(-1)
	require.Equal(t, 1<<DefaultBlockPower, tbl.Capacity())

	tbl, _ = newTestTable(MaxBlockPower + 1)
	require.Equal(t, 1<<DefaultBlockPower, tbl.Capacity())

	tbl, _ = newTestTable(0)
	require.Equal(t, 1, tbl.Capacity())
}

func TestNewTable_warnsOnBlockPower(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	logger := zap.New(core)

	NewTable(&MetaData{Name: "bad"}, MaxBlockPower+1, logger)
	NewTable(&MetaData{Name: "good"}, MaxBlockPower, logger)

	warnings := logs.FilterMessage("block power out of range").All()
	require.Len(t, warnings, 1)
	require.Equal(t, "bad", warnings[0].ContextMap()["name"])
	require.EqualValues(t, MaxBlockPower+1, warnings[0].ContextMap()["power"])
}

func TestTable_RandomEditsPrepopulated(t *testing.T) {
	for _, power := range []int{0, 1, 2, 3, 4, 6} {
		for seed := int64(0); seed < 30; seed++ {
			rnd := rand.New(rand.NewSource(seed*31 + int64(power)))
			size := rnd.Intn(40)
			tbl := NewTable(&MetaData{Name: "random", Size: size}, power, getTestLogger())
			m := make(model, size)

			for op := 0; op < 300; op++ {
				switch n := rnd.Intn(4); {
				case len(m) == 0 || n == 0:
					pre := rnd.Intn(len(m) + 1)
					entries := makeEntries(op, rnd.Intn(9)+1)
					tbl.Insert(pre, entries)
					m = m.insert(pre, entries)
				case n == 1:
					entries := makeEntries(op, rnd.Intn(5)+1)
					tbl.Insert(len(m), entries)
					m = m.insert(len(m), entries)
				case n == 2:
					pre := rnd.Intn(len(m))
					count := rnd.Intn(len(m)-pre) + 1
					tbl.Delete(pre, count)
					m = m.delete(pre, count)
				default:
					pre := rnd.Intn(len(m))
					count := rnd.Intn(len(m)-pre) + 1
					entries := makeEntries(op, rnd.Intn(9))
					tbl.Replace(pre, entries, count)
					m = m.delete(pre, count).insert(pre, entries)
				}
				require.NoError(t, tbl.Check(), "power=%d seed=%d op=%d %v", power, seed, op, tbl)
				require.Equal(t, len(m), tbl.Size())
			}
			requireModel(t, tbl, m)
			require.Equal(t, tbl.Entries(0, tbl.Size()), tbl.Cursor().Entries(0, tbl.Size()))
		}
	}
}

func TestTable_CheckDetectsDamage(t *testing.T) {
	tbl, meta := newTestTable(2)
	tbl.Insert(0, makeEntries(14, 10))
	require.NoError(t, tbl.Check())

	tbl.blocks[1].firstPre = tbl.blocks[2].firstPre
	require.Error(t, tbl.Check())
	tbl.blocks[1].firstPre = 4

	meta.Size = 13
	require.Error(t, tbl.Check())
	meta.Size = 10

	tbl.blocks[0].firstPre = 1
	require.Error(t, tbl.Check())
}
