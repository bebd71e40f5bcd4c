// Package ttsqueue orders synthesized speech playback on the receiving
// side. Utterances play strictly one at a time in arrival order, so
// overlapping speakers never talk over each other's translations.
package ttsqueue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/GiorgioBrux/raimu-sub001/internal/application/constant"
)

// State of one queued message.
type State string

const (
	StateQueued    State = "queued"
	StatePlaying   State = "playing"
	StateCompleted State = "completed"
)

// Player renders one clip to the audio output and blocks until playback
// ends or ctx is cancelled.
type Player interface {
	Play(ctx context.Context, audio []byte) error
}

// MessageID derives the stable queue identity of an utterance from its
// speaker and original capture timestamp. Retransmits map to the same id.
func MessageID(participantID string, timestamp int64) string {
	return fmt.Sprintf("%s-%d", participantID, timestamp)
}

// Item is one synthesized utterance awaiting playback.
type Item struct {
	MessageID string
	Audio     []byte
}

// Notifications. Callbacks run on the consumer goroutine; keep them short.
type Callbacks struct {
	// OnSpeakingStarted and OnSpeakingStopped bracket each item's playback.
	OnSpeakingStarted func(messageID string)
	OnSpeakingStopped func(messageID string)

	// OnQueueChanged fires whenever the pending depth moves.
	OnQueueChanged func(depth int)
}

// completedHistory bounds how many finished ids are remembered for
// duplicate suppression. Older ids fall out and would re-enqueue, which is
// harmless; the window only needs to cover network-level retransmits.
const completedHistory = 128

// Queue is a FIFO with a single consumer goroutine. Failed playback marks
// the item completed and moves on; one bad clip never stalls the queue.
type Queue struct {
	player Player
	cb     Callbacks

	mu sync.Mutex

	// states holds queued and playing items only; finished ids move to the
	// bounded recent set so a long call never accumulates state.
	states      map[string]State
	recent      map[string]struct{}
	recentOrder []string
	depth       int

	items  chan Item
	done   chan struct{}
	cancel context.CancelFunc
}

// New starts the consumer. Close releases it.
func New(player Player, cb Callbacks) *Queue {
	ctx, cancel := context.WithCancel(context.Background())

	q := &Queue{
		player: player,
		cb:     cb,
		states: make(map[string]State),
		recent: make(map[string]struct{}),
		items:  make(chan Item, 64),
		done:   make(chan struct{}),
		cancel: cancel,
	}

	go q.consume(ctx)

	return q
}

// Enqueue adds one item. Duplicate ids already seen are dropped.
func (q *Queue) Enqueue(item Item) bool {
	q.mu.Lock()
	_, pending := q.states[item.MessageID]
	_, finished := q.recent[item.MessageID]
	if pending || finished {
		q.mu.Unlock()
		return false
	}
	q.states[item.MessageID] = StateQueued
	q.depth++
	depth := q.depth
	q.mu.Unlock()

	q.notifyDepth(depth)

	select {
	case q.items <- item:
		return true
	default:
		// Queue saturated: complete immediately rather than block capture.
		q.finish(item.MessageID)
		slog.Warn("playback queue full, dropping clip", slog.String("message_id", item.MessageID))
		return false
	}
}

// StateOf reports an item's lifecycle state. Unknown ids report completed,
// matching the state they would reach eventually.
func (q *Queue) StateOf(messageID string) State {
	q.mu.Lock()
	defer q.mu.Unlock()

	if s, ok := q.states[messageID]; ok {
		return s
	}
	return StateCompleted
}

// Depth returns the number of items queued but not yet finished.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.depth
}

// Close stops the consumer after the in-flight item, if any, is cancelled.
func (q *Queue) Close() {
	q.cancel()
	<-q.done
}

func (q *Queue) consume(ctx context.Context) {
	defer close(q.done)

	for {
		select {
		case <-ctx.Done():
			return
		case item := <-q.items:
			q.play(ctx, item)
		}
	}
}

func (q *Queue) play(ctx context.Context, item Item) {
	q.setState(item.MessageID, StatePlaying)

	if q.cb.OnSpeakingStarted != nil {
		q.cb.OnSpeakingStarted(item.MessageID)
	}

	if err := q.player.Play(ctx, item.Audio); err != nil {
		slog.Warn(
			"playback failed",
			slog.String("message_id", item.MessageID),
			slog.Any(constant.Error, err),
		)
	}

	if q.cb.OnSpeakingStopped != nil {
		q.cb.OnSpeakingStopped(item.MessageID)
	}

	q.finish(item.MessageID)
}

func (q *Queue) setState(messageID string, s State) {
	q.mu.Lock()
	q.states[messageID] = s
	q.mu.Unlock()
}

func (q *Queue) finish(messageID string) {
	q.mu.Lock()
	delete(q.states, messageID)

	q.recent[messageID] = struct{}{}
	q.recentOrder = append(q.recentOrder, messageID)
	if len(q.recentOrder) > completedHistory {
		delete(q.recent, q.recentOrder[0])
		q.recentOrder = q.recentOrder[1:]
	}

	q.depth--
	depth := q.depth
	q.mu.Unlock()

	q.notifyDepth(depth)
}

func (q *Queue) notifyDepth(depth int) {
	if q.cb.OnQueueChanged != nil {
		q.cb.OnQueueChanged(depth)
	}
}
