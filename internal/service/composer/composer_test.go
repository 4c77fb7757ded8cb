package composer_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/revisely/scheduler/internal/service/composer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// duePool builds count cards per topic, each topic's cards spaced a minute
// apart starting from base.
func duePool(base time.Time, countPerTopic int, topics ...string) []composer.DueCard {
	var pool []composer.DueCard
	for ti, topic := range topics {
		for i := 0; i < countPerTopic; i++ {
			pool = append(pool, composer.DueCard{
				ItemID: uuid.New(),
				Topic:  topic,
				DueAt:  base.Add(time.Duration(i)*time.Minute + time.Duration(ti)*time.Second),
			})
		}
	}
	return pool
}

// topicOf maps a composed sequence back to topics.
func topicOf(pool []composer.DueCard) map[uuid.UUID]string {
	m := make(map[uuid.UUID]string, len(pool))
	for _, card := range pool {
		m[card.ItemID] = card.Topic
	}
	return m
}

func TestComposeEmptyPool(t *testing.T) {
	t.Parallel()

	c := composer.New()
	assert.Empty(t, c.Compose(nil, 10))
	assert.Empty(t, c.Compose([]composer.DueCard{}, 10))
}

func TestComposeZeroTarget(t *testing.T) {
	t.Parallel()

	c := composer.New()
	pool := duePool(time.Now().UTC(), 2, "algebra")
	assert.Empty(t, c.Compose(pool, 0))
}

func TestComposePoolSmallerThanTarget(t *testing.T) {
	t.Parallel()

	c := composer.New()
	pool := duePool(time.Now().UTC(), 2, "algebra", "geometry")

	sequence := c.Compose(pool, 20)
	assert.Len(t, sequence, 4)

	seen := make(map[uuid.UUID]bool)
	for _, id := range sequence {
		assert.False(t, seen[id], "duplicate card %s in sequence", id)
		seen[id] = true
	}
}

func TestComposeNeverRepeatsTopicWhileOthersRemain(t *testing.T) {
	t.Parallel()

	// Deterministic composition: jitter off.
	c := composer.New(composer.WithJitter(0))
	pool := duePool(time.Now().UTC(), 4, "algebra", "geometry", "calculus")
	topics := topicOf(pool)

	sequence := c.Compose(pool, 12)
	require.Len(t, sequence, 12)

	for i := 1; i < len(sequence); i++ {
		assert.NotEqual(t, topics[sequence[i-1]], topics[sequence[i]],
			"consecutive same-topic cards at positions %d and %d", i-1, i)
	}
}

func TestComposeRunLengthYieldsOnExhaustion(t *testing.T) {
	t.Parallel()

	c := composer.New(composer.WithJitter(0))

	// One algebra card, four geometry cards: once algebra runs out the
	// remaining geometry cards must still all be scheduled back to back.
	base := time.Now().UTC()
	pool := append(
		duePool(base, 1, "algebra"),
		duePool(base.Add(time.Millisecond), 4, "geometry")...,
	)

	sequence := c.Compose(pool, 5)
	assert.Len(t, sequence, 5)
}

func TestComposeMostOverdueTopicLeads(t *testing.T) {
	t.Parallel()

	c := composer.New(composer.WithJitter(0))
	base := time.Now().UTC()

	overdue := composer.DueCard{ItemID: uuid.New(), Topic: "geometry", DueAt: base.Add(-time.Hour)}
	pool := append(duePool(base, 3, "algebra"), overdue)
	topics := topicOf(pool)

	sequence := c.Compose(pool, 4)
	require.NotEmpty(t, sequence)
	assert.Equal(t, "geometry", topics[sequence[0]])
}

func TestComposeJitterIsReproducibleWithSeededSource(t *testing.T) {
	t.Parallel()

	base := time.Now().UTC()
	pool := duePool(base, 5, "algebra", "geometry", "calculus")

	first := composer.New(
		composer.WithJitter(0.5),
		composer.WithRand(rand.New(rand.NewSource(42))),
	).Compose(pool, 15)

	second := composer.New(
		composer.WithJitter(0.5),
		composer.WithRand(rand.New(rand.NewSource(42))),
	).Compose(pool, 15)

	assert.Equal(t, first, second)
}

func TestComposeWithJitterStillInterleaves(t *testing.T) {
	t.Parallel()

	// The run-length constraint holds regardless of jitter rolls.
	c := composer.New(
		composer.WithJitter(1),
		composer.WithRand(rand.New(rand.NewSource(7))),
	)
	pool := duePool(time.Now().UTC(), 5, "algebra", "geometry", "calculus")
	topics := topicOf(pool)

	sequence := c.Compose(pool, 15)
	require.Len(t, sequence, 15)

	for i := 1; i < len(sequence); i++ {
		prev, cur := topics[sequence[i-1]], topics[sequence[i]]
		if prev == cur {
			// Only allowed once a single topic remains, and from then on
			// every card must belong to it.
			for j := i; j < len(sequence); j++ {
				assert.Equal(t, cur, topics[sequence[j]],
					"same-topic run at %d but topic changed again at %d", i, j)
			}
			break
		}
	}
}

func TestSequentialReturnsPlainDueOrder(t *testing.T) {
	t.Parallel()

	c := composer.New()
	base := time.Now().UTC()

	pool := []composer.DueCard{
		{ItemID: uuid.New(), Topic: "a", DueAt: base.Add(2 * time.Hour)},
		{ItemID: uuid.New(), Topic: "b", DueAt: base},
		{ItemID: uuid.New(), Topic: "a", DueAt: base.Add(time.Hour)},
	}

	sequence := c.Sequential(pool, 10)
	require.Len(t, sequence, 3)
	assert.Equal(t, pool[1].ItemID, sequence[0])
	assert.Equal(t, pool[2].ItemID, sequence[1])
	assert.Equal(t, pool[0].ItemID, sequence[2])

	truncated := c.Sequential(pool, 2)
	assert.Len(t, truncated, 2)
}
