// Package cherrypick keeps the per-chapter selection of pages a user wants
// fetched or downloaded.
package cherrypick

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
)

var ErrBadRange = errors.New("invalid pick range")

// Range is an inclusive span of 0-based page indices.
type Range struct {
	Start    int
	End      int
	Positive bool
}

func (r Range) Contains(i int) bool {
	return i >= r.Start && i <= r.End
}

func (r Range) String() string {
	prefix := ""
	if !r.Positive {
		prefix = "!"
	}
	if r.Start == r.End {
		return fmt.Sprintf("%s%d", prefix, r.Start+1)
	}
	if r.End == math.MaxInt {
		return fmt.Sprintf("%s%d-", prefix, r.Start+1)
	}
	return fmt.Sprintf("%s%d-%d", prefix, r.Start+1, r.End+1)
}

// CherryPick is an ordered list of ranges. Later ranges override earlier
// ones for the indices they cover.
type CherryPick struct {
	mu     sync.RWMutex
	ranges []Range
	anchor int
	// anchored is false until the first range is added.
	anchored bool
}

func New(ranges ...Range) *CherryPick {
	c := &CherryPick{}
	for _, r := range ranges {
		c.Add(r)
	}
	return c
}

// Add appends r, normalising a reversed span.
func (c *CherryPick) Add(r Range) {
	if r.Start > r.End {
		r.Start, r.End = r.End, r.Start
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ranges = append(c.ranges, r)
	c.anchor = r.End
	c.anchored = true
}

// Extend adds a range from the last anchor to i. Without an anchor it adds
// the single index. A single-index range sitting at the anchor is replaced
// by the extended one.
func (c *CherryPick) Extend(i int, positive bool) {
	c.mu.Lock()
	if !c.anchored {
		c.mu.Unlock()
		c.Add(Range{Start: i, End: i, Positive: positive})
		return
	}
	start, end := min(c.anchor, i), max(c.anchor, i)
	if n := len(c.ranges); n > 0 {
		last := c.ranges[n-1]
		if last.Start == last.End && last.Start == c.anchor {
			c.ranges = c.ranges[:n-1]
		}
	}
	c.ranges = append(c.ranges, Range{Start: start, End: end, Positive: positive})
	c.anchor = i
	c.mu.Unlock()
}

// Remove drops every single-index range at i.
func (c *CherryPick) Remove(i int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.ranges[:0]
	for _, r := range c.ranges {
		if r.Start == i && r.End == i {
			continue
		}
		kept = append(kept, r)
	}
	c.ranges = kept
}

func (c *CherryPick) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ranges = nil
	c.anchored = false
	c.anchor = 0
}

// Ranges returns a copy of the ranges in insertion order.
func (c *CherryPick) Ranges() []Range {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Range(nil), c.ranges...)
}

func (c *CherryPick) HasPicks() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ranges) > 0
}

// Picked reports whether index i is selected. The last range containing i
// decides. An index no range covers is selected only when every range is an
// exclusion.
func (c *CherryPick) Picked(i int) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	anyPositive := false
	for j := len(c.ranges) - 1; j >= 0; j-- {
		r := c.ranges[j]
		if r.Contains(i) {
			return r.Positive
		}
		if r.Positive {
			anyPositive = true
		}
	}
	return !anyPositive
}

func (c *CherryPick) String() string {
	rs := c.Ranges()
	parts := make([]string, len(rs))
	for i, r := range rs {
		parts[i] = r.String()
	}
	return strings.Join(parts, ",")
}

// ParseRanges parses the 1-based user syntax "1-5,!3,8,10-". A leading "!"
// excludes the span; an open end runs to the last page.
func ParseRanges(s string) ([]Range, error) {
	var out []Range
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		r := Range{Positive: true}
		if strings.HasPrefix(tok, "!") {
			r.Positive = false
			tok = strings.TrimSpace(tok[1:])
		}
		lo, hi, isSpan := strings.Cut(tok, "-")
		start, err := parsePage(lo)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrBadRange, tok)
		}
		r.Start, r.End = start, start
		if isSpan {
			if strings.TrimSpace(hi) == "" {
				r.End = math.MaxInt
			} else {
				end, err := parsePage(hi)
				if err != nil || end < start {
					return nil, fmt.Errorf("%w: %q", ErrBadRange, tok)
				}
				r.End = end
			}
		}
		out = append(out, r)
	}
	return out, nil
}

func parsePage(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, ErrBadRange
	}
	return n - 1, nil
}
