package domain_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/revisely/scheduler/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	t.Parallel()

	session := newTestSession(t, 5)
	now := time.Now().UTC()

	topics := map[uuid.UUID]string{
		session.CardSequence[0]: "algebra",
		session.CardSequence[1]: "algebra",
		session.CardSequence[2]: "geometry",
		session.CardSequence[3]: "geometry",
		session.CardSequence[4]: "geometry",
	}

	ratings := []domain.Rating{
		domain.RatingGood,
		domain.RatingAgain,
		domain.RatingEasy,
		domain.RatingHard,
		domain.RatingGood,
	}

	for i, rating := range ratings {
		session.Responses = append(session.Responses, domain.CardResponse{
			ItemID:         session.CardSequence[i],
			Rating:         rating,
			ElapsedSeconds: 10,
			RecordedAt:     now,
		})
	}
	session.Cursor = 5
	session.Status = domain.SessionCompleted
	session.CompletedAt = now

	summary := session.Summarize(func(itemID string) string {
		id, err := uuid.Parse(itemID)
		require.NoError(t, err)
		return topics[id]
	})

	assert.Equal(t, session.ID.String(), summary.SessionID)
	assert.Equal(t, 5, summary.CardsCompleted)
	assert.Equal(t, 5, summary.TotalCards)

	// Good, Easy, Good are correct: 3 of 5.
	assert.InDelta(t, 0.6, summary.Accuracy, 1e-9)
	assert.Equal(t, 50, summary.TotalSeconds)
	assert.InDelta(t, 10.0, summary.AverageSeconds, 1e-9)

	assert.Equal(t, 2, summary.RatingCounts[domain.RatingGood])
	assert.Equal(t, 1, summary.RatingCounts[domain.RatingAgain])

	algebra := summary.Topics["algebra"]
	assert.Equal(t, 2, algebra.Presented)
	assert.Equal(t, 1, algebra.Correct)
	assert.Equal(t, 20, algebra.TotalSeconds)

	geometry := summary.Topics["geometry"]
	assert.Equal(t, 3, geometry.Presented)
	assert.Equal(t, 2, geometry.Correct)
}

func TestSummarizeUnknownTopicFallsBackToGeneral(t *testing.T) {
	t.Parallel()

	session := newTestSession(t, 1)
	session.Responses = []domain.CardResponse{{
		ItemID:         session.CardSequence[0],
		Rating:         domain.RatingGood,
		ElapsedSeconds: 5,
		RecordedAt:     time.Now().UTC(),
	}}
	session.Cursor = 1
	session.Status = domain.SessionCompleted
	session.CompletedAt = time.Now().UTC()

	summary := session.Summarize(func(string) string { return "" })

	general, ok := summary.Topics["general"]
	require.True(t, ok)
	assert.Equal(t, 1, general.Presented)
}

func TestSummarizeEmptySession(t *testing.T) {
	t.Parallel()

	session, err := domain.NewPracticeSession(uuid.New(), uuid.New(), nil, false)
	require.NoError(t, err)

	summary := session.Summarize(nil)

	assert.Zero(t, summary.CardsCompleted)
	assert.Zero(t, summary.Accuracy)
	assert.Zero(t, summary.AverageSeconds)
	assert.Empty(t, summary.Topics)
}
