package ttsqueue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// recordingPlayer logs playback order and can fail selected clips.
type recordingPlayer struct {
	mu     sync.Mutex
	played []string
	fail   map[string]bool

	release chan struct{} // when set, Play blocks until a receive
}

func (p *recordingPlayer) Play(ctx context.Context, audio []byte) error {
	if p.release != nil {
		select {
		case <-p.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	id := string(audio)

	p.mu.Lock()
	p.played = append(p.played, id)
	fail := p.fail[id]
	p.mu.Unlock()

	if fail {
		return errors.New("device busy")
	}
	return nil
}

func (p *recordingPlayer) playedIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.played))
	copy(out, p.played)
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestQueuePlaysInArrivalOrder(t *testing.T) {
	player := &recordingPlayer{}
	q := New(player, Callbacks{})
	defer q.Close()

	ids := []string{
		MessageID("alice", 1000),
		MessageID("bob", 1001),
		MessageID("alice", 1002),
	}
	for _, id := range ids {
		q.Enqueue(Item{MessageID: id, Audio: []byte(id)})
	}

	waitFor(t, func() bool { return len(player.playedIDs()) == 3 })

	got := player.playedIDs()
	for i, id := range ids {
		if got[i] != id {
			t.Fatalf("playback order[%d] = %q, want %q", i, got[i], id)
		}
	}
}

func TestQueueFailedPlaybackCompletes(t *testing.T) {
	id := MessageID("alice", 42)
	player := &recordingPlayer{fail: map[string]bool{id: true}}
	q := New(player, Callbacks{})
	defer q.Close()

	q.Enqueue(Item{MessageID: id, Audio: []byte(id)})

	waitFor(t, func() bool { return q.StateOf(id) == StateCompleted })

	next := MessageID("bob", 43)
	q.Enqueue(Item{MessageID: next, Audio: []byte(next)})

	waitFor(t, func() bool { return q.StateOf(next) == StateCompleted })
}

func TestQueueStateTransitions(t *testing.T) {
	player := &recordingPlayer{release: make(chan struct{})}
	q := New(player, Callbacks{})
	defer q.Close()

	id := MessageID("alice", 7)
	q.Enqueue(Item{MessageID: id, Audio: []byte(id)})

	waitFor(t, func() bool { return q.StateOf(id) == StatePlaying })

	player.release <- struct{}{}

	waitFor(t, func() bool { return q.StateOf(id) == StateCompleted })

	if got := q.StateOf("never-enqueued"); got != StateCompleted {
		t.Fatalf("unknown id state = %q, want %q", got, StateCompleted)
	}
}

func TestQueueCallbacks(t *testing.T) {
	var mu sync.Mutex
	var log []string

	player := &recordingPlayer{}
	q := New(player, Callbacks{
		OnSpeakingStarted: func(id string) {
			mu.Lock()
			log = append(log, "start:"+id)
			mu.Unlock()
		},
		OnSpeakingStopped: func(id string) {
			mu.Lock()
			log = append(log, "stop:"+id)
			mu.Unlock()
		},
		OnQueueChanged: func(depth int) {
			mu.Lock()
			log = append(log, "depth")
			mu.Unlock()
		},
	})
	defer q.Close()

	id := MessageID("alice", 9)
	q.Enqueue(Item{MessageID: id, Audio: []byte(id)})

	waitFor(t, func() bool { return q.StateOf(id) == StateCompleted })

	mu.Lock()
	defer mu.Unlock()

	var starts, stops, depths int
	for _, e := range log {
		switch {
		case e == "start:"+id:
			starts++
		case e == "stop:"+id:
			stops++
		case e == "depth":
			depths++
		}
	}

	if starts != 1 || stops != 1 {
		t.Fatalf("speaking callbacks = %d starts, %d stops, want 1 and 1", starts, stops)
	}
	if depths != 2 {
		t.Fatalf("queue change callbacks = %d, want 2 (enqueue and finish)", depths)
	}
}

func TestQueuePrunesFinishedState(t *testing.T) {
	player := &recordingPlayer{}
	q := New(player, Callbacks{})
	defer q.Close()

	total := completedHistory + 20
	var last string
	for i := 0; i < total; i++ {
		id := MessageID("alice", int64(i))
		if !q.Enqueue(Item{MessageID: id, Audio: []byte(id)}) {
			t.Fatalf("enqueue %d rejected", i)
		}
		waitFor(t, func() bool { return q.StateOf(id) == StateCompleted })
		last = id
	}

	q.mu.Lock()
	pending, remembered := len(q.states), len(q.recent)
	q.mu.Unlock()

	if pending != 0 {
		t.Fatalf("%d lifecycle entries retained after playback, want 0", pending)
	}
	if remembered != completedHistory {
		t.Fatalf("recent set holds %d ids, want %d", remembered, completedHistory)
	}

	// A recently finished id still counts as a duplicate.
	if q.Enqueue(Item{MessageID: last, Audio: []byte(last)}) {
		t.Fatal("recently finished id re-enqueued")
	}
	if got := q.StateOf(last); got != StateCompleted {
		t.Fatalf("finished id state = %q, want %q", got, StateCompleted)
	}

	// The oldest id fell out of the window and may enqueue again.
	oldest := MessageID("alice", 0)
	if !q.Enqueue(Item{MessageID: oldest, Audio: []byte(oldest)}) {
		t.Fatal("evicted id rejected as a duplicate")
	}
}

func TestQueueDropsDuplicateIDs(t *testing.T) {
	player := &recordingPlayer{}
	q := New(player, Callbacks{})
	defer q.Close()

	id := MessageID("alice", 5)
	if !q.Enqueue(Item{MessageID: id, Audio: []byte(id)}) {
		t.Fatal("first enqueue rejected")
	}
	if q.Enqueue(Item{MessageID: id, Audio: []byte(id)}) {
		t.Fatal("duplicate enqueue accepted")
	}
}
