// Package picker draws a random candidate satisfying the minimum size.
package picker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"

	"github.com/go-pkgz/repeater/v2"

	"github.com/umputun/randpic/pkg/imgmeta"
)

// ErrExhausted is returned when no drawn candidate passed the size filter
// within the attempt budget. Callers treat it as a signal that the backing
// candidate list has gone stale.
var ErrExhausted = errors.New("no candidate passed size filtering")

// Selector picks a random candidate whose real on-disk dimensions are at
// least MinWidth x MinHeight. Files whose dimensions can't be determined are
// accepted, unknown formats are not this tool's problem; files that can't
// be read at all are rejected.
type Selector struct {
	MinWidth    int
	MinHeight   int
	MaxAttempts int // defaults to 50
	Verbose     bool
}

// Select draws candidates at random until one is acceptable or the attempt
// budget runs out.
func (s *Selector) Select(ctx context.Context, candidates []string) (string, error) {
	if len(candidates) == 0 {
		return "", fmt.Errorf("no candidates to select from")
	}

	attempts := s.MaxAttempts
	if attempts <= 0 {
		attempts = 50
	}

	var picked string
	retrier := repeater.NewFixed(attempts, 0)
	err := retrier.Do(ctx, func() error {
		path := candidates[rand.IntN(len(candidates))]

		dims, known, err := imgmeta.SniffFile(path)
		if err != nil {
			// unreadable or vanished file, never accepted
			if s.Verbose {
				log.Printf("[DEBUG] reject %s: %v", path, err)
			}
			return ErrExhausted
		}
		if !known {
			// fail-open: indeterminate dimensions are acceptable
			if s.Verbose {
				log.Printf("[DEBUG] accept %s: dimensions unknown", path)
			}
			picked = path
			return nil
		}
		if !dims.AtLeast(s.MinWidth, s.MinHeight) {
			if s.Verbose {
				log.Printf("[DEBUG] reject %s: %s below %dx%d", path, dims, s.MinWidth, s.MinHeight)
			}
			return ErrExhausted
		}

		picked = path
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w after %d attempts", ErrExhausted, attempts)
	}
	return picked, nil
}
