// Package composer assembles the ordered card sequence for one practice
// session. It interleaves topics (A-B-C-A-B-C rather than A-A-B-B-C-C, which
// measurably improves retention) while keeping the most overdue cards near
// the front.
package composer

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Default tunables, overridable per Composer via options.
const (
	DefaultJitterProbability = 0.2
	DefaultMaxTopicRunLength = 1
)

// DueCard is the composer's view of one due card: just enough to order and
// interleave, nothing else.
type DueCard struct {
	ItemID uuid.UUID
	Topic  string
	DueAt  time.Time
}

// Composer produces interleaved session sequences. It is safe for concurrent
// use; the randomness source is guarded by a mutex.
type Composer struct {
	jitter float64
	maxRun int

	mu  sync.Mutex
	rng *rand.Rand
}

// Option customizes a Composer.
type Option func(*Composer)

// WithJitter sets the probability that a selection step ignores the nominal
// topic pick in favor of a random eligible one. Zero makes composition fully
// deterministic.
func WithJitter(p float64) Option {
	return func(c *Composer) {
		if p >= 0 && p <= 1 {
			c.jitter = p
		}
	}
}

// WithMaxTopicRunLength caps consecutive same-topic cards while at least two
// topics still hold due cards.
func WithMaxTopicRunLength(n int) Option {
	return func(c *Composer) {
		if n >= 1 {
			c.maxRun = n
		}
	}
}

// WithRand injects the randomness source. Tests pass a seeded source for
// reproducible sequences.
func WithRand(rng *rand.Rand) Option {
	return func(c *Composer) {
		c.rng = rng
	}
}

// New creates a Composer with the default jitter and run-length settings.
func New(opts ...Option) *Composer {
	c := &Composer{
		jitter: DefaultJitterProbability,
		maxRun: DefaultMaxTopicRunLength,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.rng == nil {
		c.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return c
}

// Compose selects up to targetCount cards from the due pool and orders them
// by weighted round-robin across topics: the nominal pick at each step is the
// topic whose head card is most overdue, with a jitter chance of taking a
// random eligible topic instead. No more than maxRun consecutive cards share
// a topic unless fewer than two topics still hold cards. An empty pool yields
// an empty sequence; a pool smaller than targetCount is returned whole.
func (c *Composer) Compose(dueCards []DueCard, targetCount int) []uuid.UUID {
	if targetCount <= 0 || len(dueCards) == 0 {
		return []uuid.UUID{}
	}

	queues, topics := partition(dueCards)

	sequence := make([]uuid.UUID, 0, min(targetCount, len(dueCards)))
	lastTopic := ""
	runLength := 0

	for len(sequence) < targetCount {
		eligible := eligibleTopics(queues, topics, lastTopic, runLength, c.maxRun)
		if len(eligible) == 0 {
			break
		}

		topic := c.pick(eligible, queues)

		card := queues[topic][0]
		queues[topic] = queues[topic][1:]
		sequence = append(sequence, card.ItemID)

		if topic == lastTopic {
			runLength++
		} else {
			lastTopic = topic
			runLength = 1
		}
	}

	return sequence
}

// Sequential returns up to targetCount cards in plain due order, for callers
// that ask for an uninterleaved session.
func (c *Composer) Sequential(dueCards []DueCard, targetCount int) []uuid.UUID {
	if targetCount <= 0 || len(dueCards) == 0 {
		return []uuid.UUID{}
	}

	sorted := sortedByDue(dueCards)
	if len(sorted) > targetCount {
		sorted = sorted[:targetCount]
	}

	sequence := make([]uuid.UUID, len(sorted))
	for i, card := range sorted {
		sequence[i] = card.ItemID
	}
	return sequence
}

// pick chooses the next topic: nominally the eligible topic with the most
// overdue head card, replaced by a uniformly random eligible topic with the
// configured jitter probability.
func (c *Composer) pick(eligible []string, queues map[string][]DueCard) string {
	if len(eligible) == 1 {
		return eligible[0]
	}

	if c.jitter > 0 {
		c.mu.Lock()
		roll := c.rng.Float64()
		var idx int
		if roll < c.jitter {
			idx = c.rng.Intn(len(eligible))
		} else {
			idx = -1
		}
		c.mu.Unlock()

		if idx >= 0 {
			return eligible[idx]
		}
	}

	nominal := eligible[0]
	for _, topic := range eligible[1:] {
		if headBefore(queues[topic][0], queues[nominal][0]) {
			nominal = topic
		}
	}
	return nominal
}

// partition groups the due pool by topic, each queue ordered most overdue
// first, and returns the topic names in deterministic first-appearance order.
func partition(dueCards []DueCard) (map[string][]DueCard, []string) {
	sorted := sortedByDue(dueCards)

	queues := make(map[string][]DueCard)
	var topics []string
	for _, card := range sorted {
		if _, seen := queues[card.Topic]; !seen {
			topics = append(topics, card.Topic)
		}
		queues[card.Topic] = append(queues[card.Topic], card)
	}
	return queues, topics
}

// eligibleTopics returns the topics still holding cards, excluding the one
// that would extend a same-topic run beyond maxRun - unless it is the only
// topic left, in which case the run-length constraint yields.
func eligibleTopics(
	queues map[string][]DueCard,
	topics []string,
	lastTopic string,
	runLength, maxRun int,
) []string {
	var remaining []string
	for _, topic := range topics {
		if len(queues[topic]) > 0 {
			remaining = append(remaining, topic)
		}
	}

	if len(remaining) < 2 {
		return remaining
	}

	if runLength < maxRun {
		return remaining
	}

	eligible := remaining[:0:0]
	for _, topic := range remaining {
		if topic != lastTopic {
			eligible = append(eligible, topic)
		}
	}
	return eligible
}

func sortedByDue(dueCards []DueCard) []DueCard {
	sorted := make([]DueCard, len(dueCards))
	copy(sorted, dueCards)
	sort.SliceStable(sorted, func(i, j int) bool {
		return headBefore(sorted[i], sorted[j])
	})
	return sorted
}

// headBefore orders cards by due time ascending, item ID as the
// deterministic tiebreak.
func headBefore(a, b DueCard) bool {
	if !a.DueAt.Equal(b.DueAt) {
		return a.DueAt.Before(b.DueAt)
	}
	return a.ItemID.String() < b.ItemID.String()
}
