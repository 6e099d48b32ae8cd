package triage

import (
	"testing"

	"github.com/relayworks/relay/pkg/schema"
	"github.com/stretchr/testify/assert"
)

func TestClassifier_DefaultIsRoutineNeutral(t *testing.T) {
	cls := NewClassifier().Classify("hello there")

	assert.Equal(t, schema.CategoryRoutine, cls.Category)
	assert.Equal(t, 0, cls.UrgencyScore)
	assert.Equal(t, 0, cls.ComplexityScore)
	assert.Equal(t, schema.SentimentNeutral, cls.Sentiment)
	assert.Empty(t, cls.MatchedKeywords)
}

func TestClassifier_UrgentKeywordScoresFour(t *testing.T) {
	cls := NewClassifier().Classify("URGENT: server down")

	assert.Equal(t, schema.CategoryUrgent, cls.Category)
	// base +1 plus the urgent bonus +3
	assert.Equal(t, 4, cls.UrgencyScore)
	assert.Contains(t, cls.MatchedKeywords, "urgent")
}

func TestClassifier_HighPriorityKeywordScoresThree(t *testing.T) {
	cls := NewClassifier().Classify("deadline for the report is tomorrow")

	assert.Equal(t, schema.CategoryHighPriority, cls.Category)
	assert.Equal(t, 3, cls.UrgencyScore)
}

func TestClassifier_HighestTierWins(t *testing.T) {
	cls := NewClassifier().Classify("important deadline, also an emergency")

	assert.Equal(t, schema.CategoryUrgent, cls.Category)
	// emergency (1+3) + important (1+2) + deadline (1+2)
	assert.Equal(t, 10, cls.UrgencyScore)
}

func TestClassifier_LowPriorityCategory(t *testing.T) {
	cls := NewClassifier().Classify("just a general question")

	assert.Equal(t, schema.CategoryLowPriority, cls.Category)
	assert.Equal(t, 2, cls.UrgencyScore)
}

func TestClassifier_CaseInsensitive(t *testing.T) {
	a := NewClassifier().Classify("ASAP please")
	b := NewClassifier().Classify("asap please")
	assert.Equal(t, a, b)
	assert.Equal(t, schema.CategoryUrgent, a.Category)
}

func TestClassifier_UrgencyMonotonicallyNonDecreasing(t *testing.T) {
	c := NewClassifier()
	contents := []string{
		"status",
		"status update",
		"status update with deadline",
		"status update with deadline, urgent",
		"status update with deadline, urgent emergency",
	}
	prev := -1
	for _, content := range contents {
		cls := c.Classify(content)
		assert.GreaterOrEqual(t, cls.UrgencyScore, prev, "content %q", content)
		prev = cls.UrgencyScore
	}
}

func TestClassifier_CategoryClosure(t *testing.T) {
	known := map[schema.Category]bool{
		schema.CategoryUrgent:       true,
		schema.CategoryHighPriority: true,
		schema.CategoryRoutine:      true,
		schema.CategoryLowPriority:  true,
	}
	for _, content := range []string{
		"", "urgent", "deadline", "check in later", "question about info",
		"complex detailed research analysis investigation", "great success",
	} {
		cls := NewClassifier().Classify(content)
		assert.True(t, known[cls.Category], "content %q produced category %q", content, cls.Category)
	}
}

func TestClassifier_ComplexityIndicators(t *testing.T) {
	cls := NewClassifier().Classify("we need a detailed analysis and research investigation")
	assert.Equal(t, 4, cls.ComplexityScore)
}

func TestClassifier_SentimentMajorityVote(t *testing.T) {
	c := NewClassifier()

	assert.Equal(t, schema.SentimentPositive, c.Classify("great work, excellent success").Sentiment)
	assert.Equal(t, schema.SentimentNegative, c.Classify("terrible problem, another failure").Sentiment)
	// tie goes neutral
	assert.Equal(t, schema.SentimentNeutral, c.Classify("good result but a problem remains").Sentiment)
}

func TestPriorityFor_Bands(t *testing.T) {
	assert.Equal(t, schema.PriorityLow, PriorityFor(0))
	assert.Equal(t, schema.PriorityMedium, PriorityFor(1))
	assert.Equal(t, schema.PriorityMedium, PriorityFor(2))
	assert.Equal(t, schema.PriorityHigh, PriorityFor(3))
	assert.Equal(t, schema.PriorityHigh, PriorityFor(4))
	assert.Equal(t, schema.PriorityCritical, PriorityFor(5))
	assert.Equal(t, schema.PriorityCritical, PriorityFor(9))
}
