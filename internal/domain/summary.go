package domain

import "time"

// TopicPerformance aggregates one topic's results within a session.
type TopicPerformance struct {
	Presented    int `json:"presented"`
	Correct      int `json:"correct"`
	TotalSeconds int `json:"total_seconds"`
}

// SessionSummary is the roll-up emitted when a session completes. It is
// consumed by the external analytics aggregator and never stored by the core.
type SessionSummary struct {
	SessionID      string                      `json:"session_id"`
	StudentID      string                      `json:"student_id"`
	CourseID       string                      `json:"course_id"`
	CardsCompleted int                         `json:"cards_completed"`
	TotalCards     int                         `json:"total_cards"`
	Accuracy       float64                     `json:"accuracy"` // fraction of ratings >= Good
	TotalSeconds   int                         `json:"total_seconds"`
	AverageSeconds float64                     `json:"average_seconds"`
	RatingCounts   map[Rating]int              `json:"rating_counts"`
	Topics         map[string]TopicPerformance `json:"topics"`
	StartedAt      time.Time                   `json:"started_at"`
	CompletedAt    time.Time                   `json:"completed_at"`
}

// Summarize computes the summary of a session's recorded responses.
// topicOf maps item IDs to topics; unknown items fall under "general".
func (p *PracticeSession) Summarize(topicOf func(itemID string) string) *SessionSummary {
	summary := &SessionSummary{
		SessionID:      p.ID.String(),
		StudentID:      p.StudentID.String(),
		CourseID:       p.CourseID.String(),
		CardsCompleted: len(p.Responses),
		TotalCards:     len(p.CardSequence),
		RatingCounts:   make(map[Rating]int, 4),
		Topics:         make(map[string]TopicPerformance),
		StartedAt:      p.StartedAt,
		CompletedAt:    p.CompletedAt,
	}

	correct := 0
	for _, resp := range p.Responses {
		summary.RatingCounts[resp.Rating]++
		summary.TotalSeconds += resp.ElapsedSeconds

		topic := "general"
		if topicOf != nil {
			if t := topicOf(resp.ItemID.String()); t != "" {
				topic = t
			}
		}

		perf := summary.Topics[topic]
		perf.Presented++
		perf.TotalSeconds += resp.ElapsedSeconds
		if resp.Rating.Correct() {
			perf.Correct++
			correct++
		}
		summary.Topics[topic] = perf
	}

	if len(p.Responses) > 0 {
		summary.Accuracy = float64(correct) / float64(len(p.Responses))
		summary.AverageSeconds = float64(summary.TotalSeconds) / float64(len(p.Responses))
	}

	return summary
}
