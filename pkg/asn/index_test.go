package asn

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rangeFile = `"10","20","AS1 First Net"
30,40,"AS2 Second, Inc"

41,50,"AS3 Third"
`

func testIndex(t *testing.T) *Index {
	rows, err := ParseRows(strings.NewReader(rangeFile))
	require.NoError(t, err)
	idx, err := Build(rows, KeepFirst)
	require.NoError(t, err)
	return idx
}

func TestParseRows(t *testing.T) {
	rows, err := ParseRows(strings.NewReader(rangeFile))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, Row{Line: 1, Low: 10, High: 20, Tag: "AS1", Name: "First Net"}, rows[0])
	assert.Equal(t, "Second  Inc", rows[1].Name, "commas in the name become spaces")
	assert.Equal(t, 4, rows[2].Line, "blank lines still count towards line numbers")
}

func TestParseRowsMalformed(t *testing.T) {
	testCases := []struct {
		input string
		line  int
		msg   string
	}{
		{"x,20,AS1 A\n", 1, "non integer low"},
		{"10,20,AS1 A\n10,y,AS2 B\n", 2, "non integer high"},
		{"10,20\n", 1, "missing owner column"},
		{"10,4294967296,AS1 A\n", 1, "high exceeds 32 bits"},
	}

	for _, testCase := range testCases {
		_, err := ParseRows(strings.NewReader(testCase.input))
		var malformed *MalformedRangeError
		require.True(t, errors.As(err, &malformed), testCase.msg)
		assert.Equal(t, testCase.line, malformed.Line, testCase.msg)
	}
}

func TestBuildMalformed(t *testing.T) {
	testCases := []struct {
		rows []Row
		msg  string
	}{
		{[]Row{{Low: 20, High: 10, Tag: "AS1"}}, "low greater than high"},
		{[]Row{{Low: 1, High: 2, Tag: "1"}}, "missing AS prefix"},
		{[]Row{{Low: 1, High: 2, Tag: "ASx"}}, "non numeric AS"},
		{[]Row{{Low: 1, High: 2, Tag: "AS"}}, "empty AS number"},
	}

	for _, testCase := range testCases {
		_, err := Build(testCase.rows, KeepFirst)
		var malformed *MalformedRangeError
		assert.True(t, errors.As(err, &malformed), testCase.msg)
	}
}

func TestLookupMembership(t *testing.T) {
	idx := testIndex(t)

	for _, r := range idx.Ranges() {
		low, ok := idx.Lookup(r.Low)
		require.True(t, ok)
		high, ok := idx.Lookup(r.High)
		require.True(t, ok)
		assert.Equal(t, r.Number, low.Number)
		assert.Equal(t, r.Number, high.Number)
	}

	testCases := []struct {
		ip    uint32
		found bool
		asn   uint32
		msg   string
	}{
		{0, false, 0, "below the lowest range"},
		{9, false, 0, "just below a range"},
		{10, true, 1, "range low boundary"},
		{15, true, 1, "inside a range"},
		{20, true, 1, "range high boundary"},
		{21, false, 0, "just above a range"},
		{25, false, 0, "gap between ranges"},
		{40, true, 2, "adjacent range high"},
		{41, true, 3, "adjacent range low"},
		{50, true, 3, "highest range high"},
		{51, false, 0, "above the highest range"},
		{math.MaxUint32, false, 0, "top of the address space"},
	}

	for _, testCase := range testCases {
		r, ok := idx.Lookup(testCase.ip)
		assert.Equal(t, testCase.found, ok, testCase.msg)
		assert.Equal(t, testCase.asn, r.Number, testCase.msg)
	}
}

func TestLookupAddressSpaceEdges(t *testing.T) {
	idx, err := Build([]Row{
		{Low: math.MaxUint32 - 5, High: math.MaxUint32, Tag: "AS9"},
		{Low: 0, High: 5, Tag: "AS8"},
	}, KeepFirst)
	require.NoError(t, err)

	r, ok := idx.Lookup(0)
	assert.True(t, ok)
	assert.EqualValues(t, 8, r.Number)

	r, ok = idx.Lookup(math.MaxUint32)
	assert.True(t, ok)
	assert.EqualValues(t, 9, r.Number)

	_, ok = idx.Lookup(6)
	assert.False(t, ok)
}

func TestEmptyIndex(t *testing.T) {
	idx, err := Build(nil, KeepFirst)
	require.NoError(t, err)
	_, ok := idx.Lookup(10)
	assert.False(t, ok)
	assert.Equal(t, 0, idx.Len())
}

func TestKeepFirstOverlap(t *testing.T) {
	testCases := []struct {
		rows  []Row
		ip    uint32
		asn   uint32
		count int
		msg   string
	}{
		{
			[]Row{{Low: 10, High: 30, Tag: "AS1"}, {Low: 20, High: 40, Tag: "AS2"}},
			25, 1, 2, "first range owns the shared addresses",
		},
		{
			[]Row{{Low: 10, High: 30, Tag: "AS1"}, {Low: 20, High: 40, Tag: "AS2"}},
			31, 2, 2, "second range keeps its remainder",
		},
		{
			[]Row{{Low: 20, High: 30, Tag: "AS2"}, {Low: 10, High: 50, Tag: "AS1"}},
			25, 2, 3, "nested range listed first wins",
		},
		{
			[]Row{{Low: 20, High: 30, Tag: "AS2"}, {Low: 10, High: 50, Tag: "AS1"}},
			45, 1, 3, "enclosing range keeps the far side",
		},
		{
			[]Row{{Low: 10, High: 50, Tag: "AS1"}, {Low: 20, High: 30, Tag: "AS2"}},
			25, 1, 1, "range nested in an earlier range is shadowed",
		},
		{
			[]Row{{Low: 10, High: 20, Tag: "AS1"}, {Low: 10, High: 20, Tag: "AS1"}},
			15, 1, 1, "duplicate rows collapse",
		},
	}

	for _, testCase := range testCases {
		idx, err := Build(testCase.rows, KeepFirst)
		require.NoError(t, err, testCase.msg)
		r, ok := idx.Lookup(testCase.ip)
		assert.True(t, ok, testCase.msg)
		assert.Equal(t, testCase.asn, r.Number, testCase.msg)
		assert.Equal(t, testCase.count, idx.Len(), testCase.msg)

		ranges := idx.Ranges()
		for i := 1; i < len(ranges); i++ {
			assert.True(t, ranges[i-1].High < ranges[i].Low, testCase.msg)
		}
	}
}

func TestRejectOverlap(t *testing.T) {
	_, err := Build([]Row{
		{Line: 1, Low: 10, High: 50, Tag: "AS1"},
		{Line: 2, Low: 60, High: 70, Tag: "AS3"},
		{Line: 3, Low: 20, High: 30, Tag: "AS2"},
	}, Reject)
	var overlap *OverlapError
	require.True(t, errors.As(err, &overlap))
	assert.Equal(t, 1, overlap.First.Line)
	assert.Equal(t, 3, overlap.Second.Line)

	_, err = Build([]Row{
		{Low: 10, High: 100, Tag: "AS1"},
		{Low: 20, High: 30, Tag: "AS2"},
		{Low: 40, High: 50, Tag: "AS3"},
	}, Reject)
	assert.True(t, errors.As(err, &overlap), "second nested range must also be caught")

	idx, err := Build([]Row{
		{Low: 21, High: 30, Tag: "AS2"},
		{Low: 10, High: 20, Tag: "AS1"},
	}, Reject)
	require.NoError(t, err, "adjacent ranges do not overlap")
	r, ok := idx.Lookup(21)
	assert.True(t, ok)
	assert.EqualValues(t, 2, r.Number)
}

func TestParseOverlapPolicy(t *testing.T) {
	policy, err := ParseOverlapPolicy("first")
	assert.NoError(t, err)
	assert.Equal(t, KeepFirst, policy)

	policy, err = ParseOverlapPolicy("reject")
	assert.NoError(t, err)
	assert.Equal(t, Reject, policy)

	_, err = ParseOverlapPolicy("last")
	assert.Error(t, err)
}

func TestBatchLookup(t *testing.T) {
	idx := testIndex(t)

	results := idx.BatchLookup([]uint32{15, 25, 15, 45})
	assert.Len(t, results, 3)
	assert.EqualValues(t, 1, results[15].Number)
	assert.Nil(t, results[25])
	assert.EqualValues(t, 3, results[45].Number)
}

func TestBuildIsDeterministic(t *testing.T) {
	rows := []Row{
		{Low: 10, High: 30, Tag: "AS1"},
		{Low: 20, High: 40, Tag: "AS2"},
		{Low: 5, High: 12, Tag: "AS3"},
	}
	first, err := Build(rows, KeepFirst)
	require.NoError(t, err)
	second, err := Build(rows, KeepFirst)
	require.NoError(t, err)
	assert.Equal(t, first.Ranges(), second.Ranges())
}

func TestMap(t *testing.T) {
	idx := testIndex(t)

	var out bytes.Buffer
	require.NoError(t, Map(idx, []uint32{45, 15, 25, 15}, &out))

	expected := "0.0.0.15,1,First Net\n" +
		"0.0.0.25,NA,NA\n" +
		"0.0.0.45,3,Third\n"
	assert.Equal(t, expected, out.String())
}

type fixedLookuper map[uint32]Range

func (f fixedLookuper) Lookup(ip uint32) (Range, bool) {
	r, ok := f[ip]
	return r, ok
}

func TestChain(t *testing.T) {
	idx := testIndex(t)
	fallback := fixedLookuper{25: {Low: 25, High: 25, Number: 99, Name: "Fallback"}}

	chain := Chain{idx, nil, fallback}

	r, ok := chain.Lookup(15)
	assert.True(t, ok)
	assert.EqualValues(t, 1, r.Number, "primary index answers first")

	r, ok = chain.Lookup(25)
	assert.True(t, ok)
	assert.EqualValues(t, 99, r.Number, "fallback fills the gap")

	_, ok = chain.Lookup(60)
	assert.False(t, ok)
}
