package fetchq

import "github.com/MapoMagpie/comic-looms/pkg/bus"

const (
	TopicFetchFinished    bus.Topic = "fetch.finished"
	TopicScheduleRequest  bus.Topic = "queue.schedule"
	TopicChapterChanged   bus.Topic = "chapter.changed"
	TopicCherryPickRange  bus.Topic = "cherrypick.range"
	TopicDoIntent         bus.Topic = "queue.intent"
	TopicFinishedReported bus.Topic = "queue.finished-report"
)

// FetchFinished is published by a unit once its fetch settles.
type FetchFinished struct {
	Index   int
	Success bool
	Unit    Unit
}

func (FetchFinished) Topic() bus.Topic { return TopicFetchFinished }

// ScheduleRequest asks the queue owning Unit's chapter to schedule around Index.
type ScheduleRequest struct {
	Index     int
	Unit      Unit
	Direction Direction
}

func (ScheduleRequest) Topic() bus.Topic { return TopicScheduleRequest }

// ChapterChanged signals that the reader switched chapters.
type ChapterChanged struct {
	Chapter int
}

func (ChapterChanged) Topic() bus.Topic { return TopicChapterChanged }

// CherryPickRange includes (Positive) or excludes an index of a chapter.
// Shift extends the range from the previous anchor.
type CherryPickRange struct {
	Chapter  int
	Index    int
	Positive bool
	Shift    bool
}

func (CherryPickRange) Topic() bus.Topic { return TopicCherryPickRange }

// DoIntent is published on every scheduling call, before any fetch starts.
type DoIntent struct {
	Index       int
	Queue       *Queue
	Downloading bool
}

func (DoIntent) Topic() bus.Topic { return TopicDoIntent }

// FinishedReported is published after a successful completion was recorded.
type FinishedReported struct {
	Index int
	Queue *Queue
}

func (FinishedReported) Topic() bus.Topic { return TopicFinishedReported }
