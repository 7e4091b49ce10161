package bag

import "sync"

// Distributor is a fixed permutation of level indices in which level l
// appears l+1 times, spread as evenly as possible. Walking it gives higher
// levels proportionally more visits without any randomness.
type Distributor struct {
	levels int
	order  []int
}

var (
	distributorsMu sync.Mutex
	distributors   = make(map[int]*Distributor)
)

// DistributorFor returns the shared table for the given level count. Tables
// are built once and never mutated afterwards.
func DistributorFor(levels int) *Distributor {
	distributorsMu.Lock()
	defer distributorsMu.Unlock()

	if d, ok := distributors[levels]; ok {
		return d
	}
	d := newDistributor(levels)
	distributors[levels] = d
	return d
}

func newDistributor(levels int) *Distributor {
	size := levels * (levels + 1) / 2
	order := make([]int, size)
	for i := range order {
		order[i] = -1
	}

	index := size
	for rank := levels; rank > 0; rank-- {
		step := size / rank
		for n := 0; n < rank; n++ {
			index = (step + index) % size
			for order[index] >= 0 {
				index = (index + 1) % size
			}
			order[index] = rank - 1
		}
	}
	return &Distributor{levels: levels, order: order}
}

// Len is the table length.
func (d *Distributor) Len() int { return len(d.order) }

// Levels is the number of distinct levels in the table.
func (d *Distributor) Levels() int { return d.levels }

// At returns the level at position i, wrapping around the table.
func (d *Distributor) At(i int) int {
	return d.order[i%len(d.order)]
}
