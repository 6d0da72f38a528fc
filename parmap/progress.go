package parmap

import (
	"sync"

	"github.com/schollz/progressbar/v3"
)

// ProgressBar returns a ProgressFunc that renders a terminal progress
// bar advancing once per completed item, whatever order completions
// arrive in. The adapter serializes bar updates internally, as required
// of progress callbacks.
func ProgressBar(total int, description string) ProgressFunc {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
	)

	var mu sync.Mutex
	return func(index int, err error) {
		mu.Lock()
		defer mu.Unlock()
		_ = bar.Add(1)
	}
}
