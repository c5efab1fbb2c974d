package asn

import (
	"bufio"
	"container/heap"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Index is an immutable, sorted set of disjoint ASN ranges. It is safe for
// concurrent lookups.
type Index struct {
	ranges []Range
	lows   []uint32
}

// ParseRows reads a MaxMind GeoIPASNum2 style CSV: low,high,"AS<n> <name>".
// Quotes are stripped and commas inside the name become spaces. Blank lines
// are skipped.
func ParseRows(r io.Reader) ([]Row, error) {
	var rows []Row

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(strings.Replace(scanner.Text(), `"`, "", -1))
		if line == "" {
			continue
		}

		fields := strings.Split(line, ",")
		if len(fields) < 3 {
			return nil, &MalformedRangeError{Line: lineNum, Reason: "expected low,high,AS<number> <name>"}
		}

		low, err := strconv.ParseUint(strings.TrimSpace(fields[0]), 10, 32)
		if err != nil {
			return nil, &MalformedRangeError{Line: lineNum, Reason: "invalid low address " + strconv.Quote(fields[0])}
		}
		high, err := strconv.ParseUint(strings.TrimSpace(fields[1]), 10, 32)
		if err != nil {
			return nil, &MalformedRangeError{Line: lineNum, Reason: "invalid high address " + strconv.Quote(fields[1])}
		}

		owner := strings.SplitN(strings.TrimSpace(strings.Join(fields[2:], " ")), " ", 2)
		row := Row{
			Line: lineNum,
			Low:  uint32(low),
			High: uint32(high),
			Tag:  owner[0],
		}
		if len(owner) == 2 {
			row.Name = owner[1]
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

// parseTag turns "AS<number>" into the number
func parseTag(tag string) (uint32, bool) {
	if !strings.HasPrefix(tag, "AS") {
		return 0, false
	}
	num, err := strconv.ParseUint(tag[2:], 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(num), true
}

// Build validates rows and constructs an Index. Rows do not need to be
// sorted. Overlapping rows are resolved according to policy.
func Build(rows []Row, policy OverlapPolicy) (*Index, error) {
	ranges := make([]Range, len(rows))
	for i, row := range rows {
		line := row.Line
		if line == 0 {
			line = i + 1
		}
		if row.Low > row.High {
			return nil, &MalformedRangeError{Line: line, Reason: "low address is greater than high address"}
		}
		num, ok := parseTag(row.Tag)
		if !ok {
			return nil, &MalformedRangeError{Line: line, Reason: "invalid AS tag " + strconv.Quote(row.Tag)}
		}
		ranges[i] = Range{Low: row.Low, High: row.High, Number: num, Name: row.Name}
	}

	var disjoint []Range
	switch policy {
	case Reject:
		if err := checkOverlap(rows); err != nil {
			return nil, err
		}
		disjoint = ranges
		sort.Slice(disjoint, func(i, j int) bool { return disjoint[i].Low < disjoint[j].Low })
	default:
		disjoint = keepFirst(ranges)
	}

	idx := &Index{
		ranges: disjoint,
		lows:   make([]uint32, len(disjoint)),
	}
	for i, r := range disjoint {
		idx.lows[i] = r.Low
	}
	return idx, nil
}

// checkOverlap returns an OverlapError for the first pair of rows sharing
// an address
func checkOverlap(rows []Row) error {
	order := make([]int, len(rows))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return rows[order[i]].Low < rows[order[j]].Low })

	for k := 1; k < len(order); k++ {
		prev, cur := order[k-1], order[k]
		if rows[cur].Low <= rows[prev].High {
			first, second := prev, cur
			if second < first {
				first, second = second, first
			}
			return &OverlapError{First: rows[first], Second: rows[second]}
		}
		// carry the widest range forward so nested ranges are caught
		if rows[prev].High > rows[cur].High {
			order[k] = prev
		}
	}
	return nil
}

type (
	// active is a range currently covering the sweep position
	active struct {
		order int
		end   uint64 // exclusive
	}

	// activeHeap orders active ranges by input position
	activeHeap []active
)

func (h activeHeap) Len() int            { return len(h) }
func (h activeHeap) Less(i, j int) bool  { return h[i].order < h[j].order }
func (h activeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *activeHeap) Push(x interface{}) { *h = append(*h, x.(active)) }
func (h *activeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// keepFirst sweeps over every range boundary. Each elementary segment
// between boundaries goes to the earliest listed range covering it.
// Coordinates are widened to uint64 so High+1 never wraps.
func keepFirst(ranges []Range) []Range {
	if len(ranges) == 0 {
		return nil
	}

	byLow := make([]int, len(ranges))
	points := make([]uint64, 0, 2*len(ranges))
	for i, r := range ranges {
		byLow[i] = i
		points = append(points, uint64(r.Low), uint64(r.High)+1)
	}
	sort.SliceStable(byLow, func(i, j int) bool { return ranges[byLow[i]].Low < ranges[byLow[j]].Low })
	sort.Slice(points, func(i, j int) bool { return points[i] < points[j] })

	var out []Range
	h := &activeHeap{}
	next := 0
	for k := 0; k+1 < len(points); k++ {
		start, end := points[k], points[k+1]
		if start == end {
			continue
		}
		for next < len(byLow) && uint64(ranges[byLow[next]].Low) <= start {
			idx := byLow[next]
			heap.Push(h, active{order: idx, end: uint64(ranges[idx].High) + 1})
			next++
		}
		for h.Len() > 0 && (*h)[0].end <= start {
			heap.Pop(h)
		}
		if h.Len() == 0 {
			continue
		}

		owner := ranges[(*h)[0].order]
		if n := len(out); n > 0 && uint64(out[n-1].High)+1 == start &&
			out[n-1].Number == owner.Number && out[n-1].Name == owner.Name {
			out[n-1].High = uint32(end - 1)
			continue
		}
		out = append(out, Range{
			Low:    uint32(start),
			High:   uint32(end - 1),
			Number: owner.Number,
			Name:   owner.Name,
		})
	}
	return out
}

// Len returns the number of disjoint ranges held by the index
func (idx *Index) Len() int {
	return len(idx.ranges)
}

// Ranges returns a copy of the disjoint ranges, ascending by Low
func (idx *Index) Ranges() []Range {
	out := make([]Range, len(idx.ranges))
	copy(out, idx.ranges)
	return out
}

// Lookup finds the range containing ip
func (idx *Index) Lookup(ip uint32) (Range, bool) {
	p := sort.Search(len(idx.lows), func(i int) bool { return idx.lows[i] >= ip })
	if p == len(idx.lows) || idx.lows[p] != ip {
		p--
	}
	if p < 0 {
		return Range{}, false
	}
	if candidate := idx.ranges[p]; candidate.Contains(ip) {
		return candidate, true
	}
	return Range{}, false
}

// BatchLookup looks up every address once. Unresolved addresses map to nil.
func (idx *Index) BatchLookup(ips []uint32) map[uint32]*Range {
	return batchLookup(idx, ips)
}

func batchLookup(l Lookuper, ips []uint32) map[uint32]*Range {
	results := make(map[uint32]*Range, len(ips))
	for _, ip := range ips {
		if _, seen := results[ip]; seen {
			continue
		}
		if r, ok := l.Lookup(ip); ok {
			found := r
			results[ip] = &found
		} else {
			results[ip] = nil
		}
	}
	return results
}
