package parmap

// collector assembles the final ordered outcome sequence from
// completions that arrive in arbitrary order. Slots are pre-allocated
// and index-addressed; the dispatcher guarantees each index is written
// at most once, by exactly one goroutine, so no two writes race on the
// same slot.
type collector[R any] struct {
	slots   []Outcome[R]
	written []bool
}

func newCollector[R any](n int) *collector[R] {
	c := &collector[R]{
		slots:   make([]Outcome[R], n),
		written: make([]bool, n),
	}
	for i := range c.slots {
		c.slots[i].Index = i
	}
	return c
}

// collect places one completed item at its original index.
func (c *collector[R]) collect(index int, value R, err error) {
	c.slots[index].Value = value
	c.slots[index].Err = err
	c.written[index] = true
}

// finalize returns the sequence in submission order plus the indices of
// items that never completed. Only valid after all dispatch goroutines
// have been joined.
func (c *collector[R]) finalize() ([]Outcome[R], []int) {
	var unfinished []int
	for i, done := range c.written {
		if !done {
			unfinished = append(unfinished, i)
		}
	}
	return c.slots, unfinished
}
