package syncer

import "fmt"

// BlockRange is an inclusive block range.
type BlockRange struct {
	From uint64
	To   uint64
}

// Len returns the number of blocks in the range.
func (r BlockRange) Len() uint64 {
	return r.To - r.From + 1
}

// SplitRange cuts [from, to] into windows of at most size blocks.
func SplitRange(from, to, size uint64) ([]BlockRange, error) {
	if size == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("to block must be >= from block")
	}

	var out []BlockRange
	for start := from; ; start += size {
		end := to
		if to-start >= size {
			end = start + size - 1
		}
		out = append(out, BlockRange{From: start, To: end})
		if end == to {
			return out, nil
		}
	}
}

// missingInRange returns the block numbers of r absent from have, ascending.
// have must be sorted ascending and lie within r.
func missingInRange(r BlockRange, have []uint64) []uint64 {
	var missing []uint64
	i := 0
	for n := r.From; ; n++ {
		for i < len(have) && have[i] < n {
			i++
		}
		if i >= len(have) || have[i] != n {
			missing = append(missing, n)
		}
		if n == r.To {
			return missing
		}
	}
}
