package match

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/park285/cheese-match-server/internal/msgcat"
	"github.com/park285/cheese-match-server/internal/rules"
	"github.com/park285/cheese-match-server/pkg/matchdto"
)

type recordingSender struct {
	mu     sync.Mutex
	frames map[string][]matchdto.Outbound
}

func newRecordingSender() *recordingSender {
	return &recordingSender{frames: map[string][]matchdto.Outbound{}}
}

func (s *recordingSender) Send(connID string, ev matchdto.Outbound) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames[connID] = append(s.frames[connID], ev)
}

func (s *recordingSender) events(connID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, f := range s.frames[connID] {
		out = append(out, f.Event)
	}
	return out
}

func (s *recordingSender) last(connID string) matchdto.Outbound {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.frames[connID]
	if len(list) == 0 {
		return matchdto.Outbound{}
	}
	return list[len(list)-1]
}

func (s *recordingSender) reset() {
	s.mu.Lock()
	s.frames = map[string][]matchdto.Outbound{}
	s.mu.Unlock()
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recordingObserver struct {
	mu       sync.Mutex
	changed  []Summary
	removed  []string
	finished []FinishedGame
}

func (o *recordingObserver) RoomChanged(s Summary) {
	o.mu.Lock()
	o.changed = append(o.changed, s)
	o.mu.Unlock()
}

func (o *recordingObserver) RoomRemoved(id string) {
	o.mu.Lock()
	o.removed = append(o.removed, id)
	o.mu.Unlock()
}

func (o *recordingObserver) GameFinished(g FinishedGame) {
	o.mu.Lock()
	o.finished = append(o.finished, g)
	o.mu.Unlock()
}

func sequenceIDs(ids ...string) IDGenerator {
	var mu sync.Mutex
	i := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		id := ids[i%len(ids)]
		i++
		return id, nil
	}
}

type fixture struct {
	m     *Manager
	out   *recordingSender
	clock *fakeClock
	obs   *recordingObserver
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		out:   newRecordingSender(),
		clock: &fakeClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
		obs:   &recordingObserver{},
	}
	base := []Option{
		WithClock(f.clock.Now),
		WithObserver(f.obs),
		WithIDGenerator(sequenceIDs("AB12CD34", "ZZ99YY88", "QW12ER34", "PO09IU87")),
		WithCatalog(msgcat.MustDefault()),
	}
	f.m = NewManager(f.out, append(base, opts...)...)
	return f
}

func mv(s string) matchdto.MoveInput {
	raw, _ := json.Marshal(s)
	var in matchdto.MoveInput
	_ = json.Unmarshal(raw, &in)
	return in
}

func (f *fixture) readyRoom(t *testing.T) string {
	t.Helper()
	id, err := f.m.OpenRoom("A", "alice")
	if err != nil {
		t.Fatalf("OpenRoom: %v", err)
	}
	if _, err := f.m.JoinRoom(id, "B", "bob"); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	return id
}

func TestOpenThenJoinProducesReadyRoom(t *testing.T) {
	f := newFixture(t)
	id, err := f.m.OpenRoom("A", "alice")
	if err != nil || id != "AB12CD34" {
		t.Fatalf("OpenRoom: id=%q err=%v", id, err)
	}
	snap, err := f.m.Snapshot(id)
	if err != nil || snap.Status != "waiting" || snap.GameState != "waiting" || len(snap.Players) != 1 {
		t.Fatalf("unexpected room after open: %+v err=%v", snap, err)
	}

	snap, err = f.m.JoinRoom(id, "B", "bob")
	if err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	if snap.Status != "ready" || snap.GameState != "active" || len(snap.Players) != 2 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.Players[0].Side != "first" || snap.Players[1].Side != "second" {
		t.Fatalf("sides: %+v", snap.Players)
	}
	if snap.Players[0].Color != "white" || snap.Players[1].Color != "black" {
		t.Fatalf("colors: %+v", snap.Players)
	}
	for _, p := range snap.Players {
		if !p.Ready {
			t.Fatalf("both players should be ready: %+v", snap.Players)
		}
	}

	if got := f.out.events("A"); len(got) != 1 || got[0] != matchdto.EventOpponentJoined {
		t.Fatalf("creator events: %v", got)
	}
	if got := f.out.events("B"); len(got) != 0 {
		t.Fatalf("joiner should only get the ack, got %v", got)
	}
}

func TestJoinRejectionsInOrder(t *testing.T) {
	f := newFixture(t)
	if _, err := f.m.JoinRoom("NOPE0000", "B", "bob"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected room_not_found, got %v", err)
	}

	id, _ := f.m.OpenRoom("A", "alice")
	if _, err := f.m.JoinRoom(id, "A", "alice"); !errors.Is(err, ErrAlreadyJoined) {
		t.Fatalf("expected already_joined, got %v", err)
	}

	other, _ := f.m.OpenRoom("C", "carol")
	if _, err := f.m.JoinRoom(id, "C", "carol"); !errors.Is(err, ErrAlreadyInRoom) {
		t.Fatalf("expected already_in_room, got %v", err)
	} else if AsError(err).RoomID != other {
		t.Fatalf("already_in_room should name %s, got %+v", other, AsError(err))
	}

	if _, err := f.m.JoinRoom(id, "B", "bob"); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	// full wins over already_joined and already_in_room
	for _, conn := range []string{"A", "C", "D"} {
		if _, err := f.m.JoinRoom(id, conn, "x"); !errors.Is(err, ErrRoomFull) {
			t.Fatalf("%s: expected room_full, got %v", conn, err)
		}
	}
	snap, _ := f.m.Snapshot(id)
	if len(snap.Players) != 2 {
		t.Fatalf("rejections must not change the room: %+v", snap)
	}
}

func TestOpenRejectsSeatedConnection(t *testing.T) {
	f := newFixture(t)
	first, _ := f.m.OpenRoom("A", "alice")
	if _, err := f.m.OpenRoom("A", "alice"); !errors.Is(err, ErrAlreadyInRoom) {
		t.Fatalf("expected already_in_room, got %v", err)
	}
	if f.m.ActiveRooms() != 1 {
		t.Fatalf("rooms: %d", f.m.ActiveRooms())
	}
	if _, err := f.m.OpenRoom("", "x"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid_input, got %v", err)
	}
	if summaries := f.m.ListSummaries(); len(summaries) != 1 || summaries[0].RoomID != first {
		t.Fatalf("summaries: %+v", summaries)
	}
}

func TestIDCollisionsAreRetriedThenExhausted(t *testing.T) {
	f := newFixture(t, WithIDGenerator(sequenceIDs("AB12CD34", "AB12CD34", "ZZ99YY88")), WithMaxIDAttempts(3))
	a, _ := f.m.OpenRoom("A", "a")
	b, err := f.m.OpenRoom("B", "b")
	if err != nil || a == b || b != "ZZ99YY88" {
		t.Fatalf("collision not retried: a=%s b=%s err=%v", a, b, err)
	}

	g := newFixture(t, WithIDGenerator(sequenceIDs("AB12CD34")), WithMaxIDAttempts(4))
	if _, err := g.m.OpenRoom("A", "a"); err != nil {
		t.Fatalf("OpenRoom: %v", err)
	}
	_, err = g.m.OpenRoom("B", "b")
	if !errors.Is(err, ErrIDExhausted) || AsError(err).Kind != KindInternal {
		t.Fatalf("expected id_exhausted, got %v", err)
	}
}

func TestSubmitMoveValidationOrder(t *testing.T) {
	f := newFixture(t)
	if _, err := f.m.SubmitMove("AB12CD34", "A", mv("e2e4")); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected session_not_found, got %v", err)
	}

	id, _ := f.m.OpenRoom("A", "alice")
	if _, err := f.m.SubmitMove(id, "X", mv("e2e4")); !errors.Is(err, ErrNotAParticipant) {
		t.Fatalf("expected not_a_participant, got %v", err)
	}
	if _, err := f.m.SubmitMove(id, "A", mv("e2e4")); !errors.Is(err, ErrGameNotActive) {
		t.Fatalf("expected game_not_active while waiting, got %v", err)
	}

	f.m.JoinRoom(id, "B", "bob")
	if _, err := f.m.SubmitMove(id, "B", mv("e7e5")); !errors.Is(err, ErrOutOfTurn) {
		t.Fatalf("expected out_of_turn, got %v", err)
	}
	if _, err := f.m.SubmitMove(id, "A", mv("e2e5")); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("expected illegal_move, got %v", err)
	}
	if AsError(ErrIllegalMove).Kind != KindInvalidInput || AsError(ErrOutOfTurn).Kind != KindPermissionDenied {
		t.Fatalf("kinds")
	}
	moves, _ := f.m.BoardMoves(id)
	if len(moves) != 0 {
		t.Fatalf("rejected moves must not touch the board: %v", moves)
	}
}

func TestAcceptedMoveFanOut(t *testing.T) {
	f := newFixture(t)
	id := f.readyRoom(t)
	f.out.reset()

	out, err := f.m.SubmitMove(id, "A", mv("e2e4"))
	if err != nil {
		t.Fatalf("SubmitMove: %v", err)
	}
	if out.MoveCount != 1 || out.CurrentTurn != rules.Second || out.GameOver != nil || out.LastMove.SAN != "e4" {
		t.Fatalf("outcome: %+v", out)
	}

	if got := f.out.events("A"); len(got) != 1 || got[0] != matchdto.EventGameUpdate {
		t.Fatalf("mover events: %v", got)
	}
	if got := f.out.events("B"); len(got) != 2 || got[0] != matchdto.EventMove || got[1] != matchdto.EventGameUpdate {
		t.Fatalf("opponent events: %v", got)
	}
	echo, _ := json.Marshal(f.out.frames["B"][0].Data)
	if string(echo) != `"e2e4"` {
		t.Fatalf("raw move echo: %s", echo)
	}
	upd := f.out.last("B").Data.(matchdto.GameUpdate)
	if upd.MoveCount != 1 || upd.CurrentTurn != "second" || upd.GameOver != nil || upd.LastMove == nil || upd.LastMove.Player != "alice" {
		t.Fatalf("update: %+v", upd)
	}

	f.clock.Advance(time.Second)
	if _, err := f.m.SubmitMove(id, "B", mv("Nc6")); err != nil {
		t.Fatalf("SAN move: %v", err)
	}
	moves, _ := f.m.BoardMoves(id)
	if len(moves) != 2 || moves[1] != "b8c6" {
		t.Fatalf("moves: %v", moves)
	}
}

func TestCheckmateFinishesGame(t *testing.T) {
	f := newFixture(t)
	id := f.readyRoom(t)
	seq := []struct{ conn, move string }{{"A", "f2f3"}, {"B", "e7e5"}, {"A", "g2g4"}, {"B", "d8h4"}}
	var out MoveOutcome
	for _, s := range seq {
		var err error
		if out, err = f.m.SubmitMove(id, s.conn, mv(s.move)); err != nil {
			t.Fatalf("%s %s: %v", s.conn, s.move, err)
		}
	}
	if out.GameOver == nil || out.GameOver.Type != "checkmate" || out.GameOver.Winner != rules.Second {
		t.Fatalf("game over: %+v", out.GameOver)
	}
	if out.GameOver.Message != "Checkmate! Black wins!" {
		t.Fatalf("message: %q", out.GameOver.Message)
	}
	if _, err := f.m.SubmitMove(id, "A", mv("a2a3")); !errors.Is(err, ErrGameNotActive) {
		t.Fatalf("expected game_not_active after mate, got %v", err)
	}
	if len(f.obs.finished) != 1 || f.obs.finished[0].Result != ResultBlackWins || len(f.obs.finished[0].MovesUCI) != 4 {
		t.Fatalf("finished records: %+v", f.obs.finished)
	}
	if f.obs.finished[0].White != "alice" || f.obs.finished[0].Black != "bob" {
		t.Fatalf("names: %+v", f.obs.finished[0])
	}
}

func TestResetGame(t *testing.T) {
	f := newFixture(t)
	if f.m.ResetGame("AB12CD34") {
		t.Fatalf("reset of a missing room must be a no-op")
	}
	id := f.readyRoom(t)
	f.m.SubmitMove(id, "A", mv("e2e4"))
	f.out.reset()

	if !f.m.ResetGame(id) {
		t.Fatalf("ResetGame returned false")
	}
	for _, conn := range []string{"A", "B"} {
		got := f.out.events(conn)
		if len(got) != 2 || got[0] != matchdto.EventGameReset || got[1] != matchdto.EventGameUpdate {
			t.Fatalf("%s events: %v", conn, got)
		}
		upd := f.out.last(conn).Data.(matchdto.GameUpdate)
		if upd.MoveCount != 0 || upd.CurrentTurn != "first" || upd.LastMove != nil {
			t.Fatalf("update after reset: %+v", upd)
		}
	}
	if moves, _ := f.m.BoardMoves(id); len(moves) != 0 {
		t.Fatalf("board not reset: %v", moves)
	}
	if _, err := f.m.SubmitMove(id, "A", mv("d2d4")); err != nil {
		t.Fatalf("first side should move after reset: %v", err)
	}
}

func TestResetAfterFinishReactivates(t *testing.T) {
	f := newFixture(t)
	id := f.readyRoom(t)
	for i, m := range []string{"f2f3", "e7e5", "g2g4", "d8h4"} {
		conn := "A"
		if i%2 == 1 {
			conn = "B"
		}
		f.m.SubmitMove(id, conn, mv(m))
	}
	f.m.ResetGame(id)
	snap, _ := f.m.Snapshot(id)
	if snap.GameState != "active" {
		t.Fatalf("state after reset: %s", snap.GameState)
	}
}

func TestDisconnectNotifiesAndCleansUp(t *testing.T) {
	f := newFixture(t)
	id := f.readyRoom(t)
	f.out.reset()

	f.m.HandleDisconnect("A")
	got := f.out.events("B")
	if len(got) != 1 || got[0] != matchdto.EventPlayerDisconnected {
		t.Fatalf("remaining events: %v", got)
	}
	note := f.out.last("B").Data.(matchdto.PlayerDisconnected)
	if note.Player.ID != "A" || note.RemainingPlayers != 1 {
		t.Fatalf("notice: %+v", note)
	}
	snap, err := f.m.Snapshot(id)
	if err != nil || snap.Status != "waiting" || len(snap.Players) != 1 || snap.Players[0].Ready {
		t.Fatalf("room after disconnect: %+v err=%v", snap, err)
	}
	if _, err := f.m.SubmitMove(id, "B", mv("e2e4")); !errors.Is(err, ErrGameNotActive) {
		t.Fatalf("expected game_not_active with one player, got %v", err)
	}

	// unknown connection is a no-op
	f.m.HandleDisconnect("nobody")

	f.m.HandleDisconnect("B")
	if _, err := f.m.Snapshot(id); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("empty room must be removed, got %v", err)
	}
	if len(f.obs.removed) != 1 || f.obs.removed[0] != id {
		t.Fatalf("observer removals: %v", f.obs.removed)
	}
}

func TestRejoinAfterDisconnectTakesFreeSide(t *testing.T) {
	f := newFixture(t)
	id := f.readyRoom(t)
	f.m.HandleDisconnect("A")
	snap, err := f.m.JoinRoom(id, "C", "carol")
	if err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	var carol matchdto.Player
	for _, p := range snap.Players {
		if p.ID == "C" {
			carol = p
		}
	}
	if carol.Side != "first" || snap.GameState != "active" {
		t.Fatalf("rejoin: %+v", snap)
	}
}

func TestReclaimIdle(t *testing.T) {
	f := newFixture(t)
	idle, _ := f.m.OpenRoom("A", "a")
	f.clock.Advance(20 * time.Minute)
	fresh, _ := f.m.OpenRoom("B", "b")
	f.clock.Advance(11 * time.Minute)

	removed := f.m.ReclaimIdle(f.clock.Now(), 30*time.Minute)
	if len(removed) != 1 || removed[0] != idle {
		t.Fatalf("removed: %v", removed)
	}
	if _, err := f.m.Snapshot(fresh); err != nil {
		t.Fatalf("fresh room reclaimed: %v", err)
	}
	if _, err := f.m.Snapshot(idle); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("idle room survived: %v", err)
	}
}

func TestReclaimSkipsBusyRoom(t *testing.T) {
	f := newFixture(t)
	id, _ := f.m.OpenRoom("A", "a")
	f.clock.Advance(time.Hour)

	e, _ := f.m.reg.lookup(id)
	e.mu.Lock()
	removed := f.m.ReclaimIdle(f.clock.Now(), time.Minute)
	e.mu.Unlock()
	if len(removed) != 0 {
		t.Fatalf("locked room must be skipped: %v", removed)
	}
	if removed = f.m.ReclaimIdle(f.clock.Now(), time.Minute); len(removed) != 1 {
		t.Fatalf("room should be reclaimed once free: %v", removed)
	}
}

func TestStaleEntryIsNotFound(t *testing.T) {
	f := newFixture(t)
	id, _ := f.m.OpenRoom("A", "a")
	e, _ := f.m.reg.lookup(id)
	f.clock.Advance(time.Hour)
	f.m.ReclaimIdle(f.clock.Now(), time.Minute)

	err := f.m.reg.with(id, ErrRoomNotFound, func(*entry) error { return nil })
	if !errors.Is(err, ErrRoomNotFound) || !e.removed {
		t.Fatalf("expected tombstoned entry, err=%v removed=%v", err, e.removed)
	}
}

func TestConcurrentMovesAreSerialized(t *testing.T) {
	f := newFixture(t)
	id := f.readyRoom(t)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.m.SubmitMove(id, "A", mv("e2e4")); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			} else if !errors.Is(err, ErrOutOfTurn) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if accepted != 1 {
		t.Fatalf("exactly one move should be accepted, got %d", accepted)
	}
	if moves, _ := f.m.BoardMoves(id); len(moves) != 1 {
		t.Fatalf("moves: %v", moves)
	}
}

func TestEndToEndScenario(t *testing.T) {
	f := newFixture(t)
	id, err := f.m.OpenRoom("A", "alice")
	if err != nil || id != "AB12CD34" {
		t.Fatalf("room id: %q %v", id, err)
	}
	if _, err := f.m.JoinRoom(id, "B", "bob"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := f.m.SubmitMove(id, "A", mv("e2e4")); err != nil {
		t.Fatalf("move: %v", err)
	}
	before := f.out.last("A").Data.(matchdto.GameUpdate)
	if before.MoveCount != 1 || before.CurrentTurn != "second" || before.GameOver != nil {
		t.Fatalf("update: %+v", before)
	}

	countA := len(f.out.events("A"))
	if _, err := f.m.SubmitMove(id, "B", mv("e7e4")); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("expected illegal move, got %v", err)
	}
	if len(f.out.events("A")) != countA {
		t.Fatalf("illegal move must not be routed to the opponent")
	}
	moves, _ := f.m.BoardMoves(id)
	if len(moves) != 1 {
		t.Fatalf("state changed after illegal move: %v", moves)
	}
}

func TestResetFinishedGameWithOneSeatIsActive(t *testing.T) {
	f := newFixture(t)
	id := f.readyRoom(t)
	for i, m := range []string{"f2f3", "e7e5", "g2g4", "d8h4"} {
		conn := "A"
		if i%2 == 1 {
			conn = "B"
		}
		if _, err := f.m.SubmitMove(id, conn, mv(m)); err != nil {
			t.Fatalf("%s: %v", m, err)
		}
	}
	f.m.HandleDisconnect("B")
	if snap, _ := f.m.Snapshot(id); snap.GameState != "finished" {
		t.Fatalf("state before reset: %s", snap.GameState)
	}

	f.out.reset()
	if !f.m.ResetGame(id) {
		t.Fatalf("ResetGame returned false")
	}
	snap, _ := f.m.Snapshot(id)
	if snap.GameState != "active" || snap.Status != "waiting" || len(snap.Players) != 1 {
		t.Fatalf("room after reset: %+v", snap)
	}
	if got := f.out.events("A"); len(got) != 2 || got[0] != matchdto.EventGameReset || got[1] != matchdto.EventGameUpdate {
		t.Fatalf("events after reset: %v", got)
	}
	if _, err := f.m.SubmitMove(id, "A", mv("e2e4")); err != nil {
		t.Fatalf("move after reset: %v", err)
	}
}

func TestRepetitionDrawFinishesGame(t *testing.T) {
	f := newFixture(t)
	id := f.readyRoom(t)
	var out MoveOutcome
	for i, m := range []string{"Nf3", "Nf6", "Ng1", "Ng8", "Nf3", "Nf6", "Ng1", "Ng8"} {
		conn := "A"
		if i%2 == 1 {
			conn = "B"
		}
		var err error
		if out, err = f.m.SubmitMove(id, conn, mv(m)); err != nil {
			t.Fatalf("%s: %v", m, err)
		}
		if i < 7 && out.GameOver != nil {
			t.Fatalf("game over too early at %s: %+v", m, out.GameOver)
		}
	}
	if out.GameOver == nil || out.GameOver.Type != "draw" || out.GameOver.Winner != "" {
		t.Fatalf("game over: %+v", out.GameOver)
	}
	if out.GameOver.Message != "Game drawn by threefold repetition" {
		t.Fatalf("message: %q", out.GameOver.Message)
	}

	upd := f.out.last("A").Data.(matchdto.GameUpdate)
	if upd.GameOver == nil || upd.GameOver.Type != "draw" || upd.GameOver.Winner != "" || upd.MoveCount != 8 {
		t.Fatalf("update: %+v", upd)
	}
	if snap, _ := f.m.Snapshot(id); snap.GameState != "finished" {
		t.Fatalf("state: %s", snap.GameState)
	}
	if _, err := f.m.SubmitMove(id, "A", mv("e2e4")); !errors.Is(err, ErrGameNotActive) {
		t.Fatalf("expected game_not_active after draw, got %v", err)
	}

	if len(f.obs.finished) != 1 {
		t.Fatalf("finished records: %+v", f.obs.finished)
	}
	g := f.obs.finished[0]
	if g.Result != ResultDraw || g.Method != "threefold repetition" || len(g.MovesUCI) != 8 || g.MovesUCI[0] != "g1f3" {
		t.Fatalf("finished game: %+v", g)
	}
}

func TestAcceptedMovesRefreshIndex(t *testing.T) {
	f := newFixture(t)
	id := f.readyRoom(t)
	before := len(f.obs.changed)

	f.m.SubmitMove(id, "A", mv("e2e4"))
	f.m.SubmitMove(id, "B", mv("e7e5"))
	if _, err := f.m.SubmitMove(id, "B", mv("d7d5")); !errors.Is(err, ErrOutOfTurn) {
		t.Fatalf("expected out_of_turn, got %v", err)
	}

	if got := len(f.obs.changed) - before; got != 2 {
		t.Fatalf("room changes from two accepted moves: %d", got)
	}
	last := f.obs.changed[len(f.obs.changed)-1]
	if last.RoomID != id || last.ParticipantCount != 2 || last.Status != StatusReady {
		t.Fatalf("summary: %+v", last)
	}
}

// lockCheckingObserver records whether the room lock was held on every call.
type lockCheckingObserver struct {
	m        *Manager
	seen     map[string]*entry
	ops      []string
	unlocked []string
}

func (o *lockCheckingObserver) check(op, roomID string) {
	o.ops = append(o.ops, op+":"+roomID)
	e := o.seen[roomID]
	if e == nil {
		if got, ok := o.m.reg.lookup(roomID); ok {
			e = got
			o.seen[roomID] = e
		}
	}
	if e == nil {
		o.unlocked = append(o.unlocked, op+":"+roomID+" (unknown room)")
		return
	}
	if e.mu.TryLock() {
		e.mu.Unlock()
		o.unlocked = append(o.unlocked, op+":"+roomID)
	}
}

func (o *lockCheckingObserver) RoomChanged(s Summary)       { o.check("changed", s.RoomID) }
func (o *lockCheckingObserver) RoomRemoved(id string)       { o.check("removed", id) }
func (o *lockCheckingObserver) GameFinished(g FinishedGame) { o.check("finished", g.RoomID) }

func TestObserverCalledUnderRoomLock(t *testing.T) {
	obs := &lockCheckingObserver{seen: map[string]*entry{}}
	f := newFixture(t, WithObserver(obs))
	obs.m = f.m

	id := f.readyRoom(t)
	for i, m := range []string{"f2f3", "e7e5", "g2g4", "d8h4"} {
		conn := "A"
		if i%2 == 1 {
			conn = "B"
		}
		f.m.SubmitMove(id, conn, mv(m))
	}
	f.m.ResetGame(id)
	f.m.HandleDisconnect("A")
	f.m.HandleDisconnect("B")

	idle, _ := f.m.OpenRoom("C", "carol")
	f.clock.Advance(time.Hour)
	f.m.ReclaimIdle(f.clock.Now(), time.Minute)

	if len(obs.unlocked) != 0 {
		t.Fatalf("observer called without the room lock: %v", obs.unlocked)
	}
	want := []string{
		"changed:" + id, "changed:" + id,
		"changed:" + id, "changed:" + id, "changed:" + id, "changed:" + id, "finished:" + id,
		"changed:" + id,
		"changed:" + id, "removed:" + id,
		"changed:" + idle, "removed:" + idle,
	}
	if len(obs.ops) != len(want) {
		t.Fatalf("ops: %v", obs.ops)
	}
	for i := range want {
		if obs.ops[i] != want[i] {
			t.Fatalf("op %d = %s, want %s (all: %v)", i, obs.ops[i], want[i], obs.ops)
		}
	}
}
