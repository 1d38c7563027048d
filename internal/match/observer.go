package match

import (
	"context"
	"sync"
	"time"

	"github.com/park285/cheese-match-server/internal/obslog"
	"github.com/park285/cheese-match-server/pkg/matchdto"
	"go.uber.org/zap"
)

// Observer is told about room changes while the room lock is held, so calls for one
// room arrive in mutation order. Implementations must not block or call back into
// the Manager.
type Observer interface {
	RoomChanged(s Summary)
	RoomRemoved(roomID string)
	GameFinished(g FinishedGame)
}

type nopObserver struct{}

func (nopObserver) RoomChanged(Summary)       {}
func (nopObserver) RoomRemoved(string)        {}
func (nopObserver) GameFinished(FinishedGame) {}

// RoomIndex mirrors room summaries outside the process.
type RoomIndex interface {
	Upsert(ctx context.Context, s matchdto.RoomSummary) error
	Remove(ctx context.Context, roomID string) error
}

// ResultArchive stores finished games.
type ResultArchive interface {
	SaveResult(ctx context.Context, g FinishedGame) error
}

type observerJob struct {
	name   string
	roomID string
	run    func(ctx context.Context) error
}

// AsyncObserver feeds a RoomIndex and a ResultArchive from one background worker.
// Jobs are dropped with a warning when the queue is full.
type AsyncObserver struct {
	index   RoomIndex
	archive ResultArchive
	jobs    chan observerJob
	timeout time.Duration

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewAsyncObserver accepts nil for either sink.
func NewAsyncObserver(index RoomIndex, archive ResultArchive, queue int) *AsyncObserver {
	if queue <= 0 {
		queue = 256
	}
	return &AsyncObserver{
		index:   index,
		archive: archive,
		jobs:    make(chan observerJob, queue),
		timeout: 5 * time.Second,
		stop:    make(chan struct{}),
	}
}

func (a *AsyncObserver) Start(ctx context.Context) {
	a.wg.Add(1)
	go a.loop(ctx)
}

// Stop flushes queued jobs and waits for the worker.
func (a *AsyncObserver) Stop() {
	a.stopOnce.Do(func() { close(a.stop) })
	a.wg.Wait()
}

func (a *AsyncObserver) loop(ctx context.Context) {
	defer a.wg.Done()
	for {
		select {
		case <-ctx.Done():
			a.drain()
			return
		case <-a.stop:
			a.drain()
			return
		case j := <-a.jobs:
			a.run(j)
		}
	}
}

func (a *AsyncObserver) drain() {
	for {
		select {
		case j := <-a.jobs:
			a.run(j)
		default:
			return
		}
	}
}

func (a *AsyncObserver) run(j observerJob) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	if err := j.run(ctx); err != nil {
		obslog.L().Warn("observer_job_error", zap.String("job", j.name), zap.String("room_id", j.roomID), zap.Error(err))
	}
}

func (a *AsyncObserver) enqueue(j observerJob) {
	select {
	case a.jobs <- j:
	default:
		obslog.L().Warn("observer_queue_full", zap.String("job", j.name), zap.String("room_id", j.roomID))
	}
}

func (a *AsyncObserver) RoomChanged(s Summary) {
	if a.index == nil {
		return
	}
	dto := SummaryDTO(s)
	a.enqueue(observerJob{name: "index_upsert", roomID: s.RoomID, run: func(ctx context.Context) error {
		return a.index.Upsert(ctx, dto)
	}})
}

func (a *AsyncObserver) RoomRemoved(roomID string) {
	if a.index == nil {
		return
	}
	a.enqueue(observerJob{name: "index_remove", roomID: roomID, run: func(ctx context.Context) error {
		return a.index.Remove(ctx, roomID)
	}})
}

func (a *AsyncObserver) GameFinished(g FinishedGame) {
	if a.archive == nil {
		return
	}
	a.enqueue(observerJob{name: "archive_save", roomID: g.RoomID, run: func(ctx context.Context) error {
		return a.archive.SaveResult(ctx, g)
	}})
}
