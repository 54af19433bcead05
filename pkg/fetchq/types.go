package fetchq

import (
	"context"
	"fmt"
	"strings"
)

// Stage is the lifecycle state of a fetch unit.
type Stage int

const (
	// StagePending means the unit has not been fetched, or was aborted.
	StagePending Stage = iota
	// StageFetching means a fetch is in flight.
	StageFetching
	// StageDone means the unit holds its fetched bytes.
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StagePending:
		return "pending"
	case StageFetching:
		return "fetching"
	case StageDone:
		return "done"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Direction is the reading direction used to orient the lookahead window.
// The zero value is DirectionNext.
type Direction int

const (
	DirectionNext Direction = iota
	DirectionPrev
)

func (d Direction) String() string {
	if d == DirectionPrev {
		return "prev"
	}
	return "next"
}

// ParseDirection accepts "next", "prev" and the empty string (next).
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "next", "forward":
		return DirectionNext, nil
	case "prev", "previous", "backward":
		return DirectionPrev, nil
	}
	return DirectionNext, fmt.Errorf("%w: %q", ErrInvalidDirection, s)
}

// Node is the visual element a unit is rendered into.
type Node interface {
	Equal(other Node) bool
}

// Unit is a single image fetch state machine. The queue schedules units but
// never fetches by itself.
type Unit interface {
	Stage() Stage
	SetStage(Stage)
	// Start fetches the unit and blocks until it settles. The outcome is
	// reported only through a FetchFinished event. Start on a unit that is
	// not pending must return immediately.
	Start(ctx context.Context)
	// Abort cancels an in-flight fetch.
	Abort()
	// Size is the byte length of the fetched data, 0 before DONE.
	Size() int64
	Chapter() int
	Index() int
	Node() Node
}

// Unrenderer is implemented by units that hold rendering state which must be
// dropped on a chapter change.
type Unrenderer interface {
	Unrender()
}

// Selection is a per-chapter inclusion predicate.
type Selection interface {
	Picked(index int) bool
	HasPicks() bool
}

// SelectionResolver resolves the active selection of a chapter.
// It may return nil for "no selection".
type SelectionResolver interface {
	Selection(chapter int) Selection
}

// DownloadingChecker reports whether a bulk download currently owns fetching.
type DownloadingChecker interface {
	Downloading() bool
}

// DownloadingFunc adapts a plain function to DownloadingChecker.
type DownloadingFunc func() bool

func (f DownloadingFunc) Downloading() bool { return f() }

type neverDownloading struct{}

func (neverDownloading) Downloading() bool { return false }

type noSelection struct{}

func (noSelection) Selection(int) Selection { return nil }
