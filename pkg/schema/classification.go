package schema

// Category is the triage tier assigned to an inbound event.
type Category string

const (
	CategoryUrgent       Category = "urgent"
	CategoryHighPriority Category = "high_priority"
	CategoryRoutine      Category = "routine"
	CategoryLowPriority  Category = "low_priority"
)

// Sentiment is the coarse tone of an event's content.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Classification is the deterministic triage result for an inbound event.
// Re-classifying the same content always yields the same result.
type Classification struct {
	Category        Category  `json:"category"`
	UrgencyScore    int       `json:"urgency_score"`
	ComplexityScore int       `json:"complexity_score"`
	Sentiment       Sentiment `json:"sentiment"`
	MatchedKeywords []string  `json:"matched_keywords,omitempty"`
}
