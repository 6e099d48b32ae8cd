package triage

import (
	"strings"

	"github.com/relayworks/relay/pkg/schema"
)

// categoryRule is one tier of the triage table. Tiers are checked in
// declaration order; the highest matched tier wins the category.
type categoryRule struct {
	category schema.Category
	keywords []string
	bonus    int // extra urgency beyond the +1 per keyword hit
}

// The rule tables are static. Classification is a pure function of content.
var categoryRules = []categoryRule{
	{schema.CategoryUrgent, []string{"urgent", "asap", "emergency", "critical"}, 3},
	{schema.CategoryHighPriority, []string{"important", "priority", "deadline"}, 2},
	{schema.CategoryRoutine, []string{"follow up", "update", "check"}, 0},
	{schema.CategoryLowPriority, []string{"general", "info", "question"}, 0},
}

var complexityIndicators = []string{"complex", "detailed", "analysis", "research", "investigation"}

var (
	positiveWords = []string{"good", "great", "excellent", "positive", "success"}
	negativeWords = []string{"bad", "terrible", "problem", "issue", "failure"}
)

// categoryTier orders categories for the highest-tier-wins rule.
var categoryTier = map[schema.Category]int{
	schema.CategoryUrgent:       3,
	schema.CategoryHighPriority: 2,
	schema.CategoryRoutine:      1,
	schema.CategoryLowPriority:  0,
}

// Classifier assigns a category, urgency and complexity score, and
// sentiment to raw event content. Deterministic and side-effect free.
type Classifier struct{}

func NewClassifier() *Classifier { return &Classifier{} }

// Classify runs the rule tables over the content.
func (c *Classifier) Classify(content string) schema.Classification {
	lower := strings.ToLower(content)

	result := schema.Classification{
		Category:  schema.CategoryRoutine,
		Sentiment: schema.SentimentNeutral,
	}

	matchedTier := -1
	for _, rule := range categoryRules {
		for _, keyword := range rule.keywords {
			if !strings.Contains(lower, keyword) {
				continue
			}
			result.MatchedKeywords = append(result.MatchedKeywords, keyword)
			result.UrgencyScore += 1 + rule.bonus
			if categoryTier[rule.category] > matchedTier {
				matchedTier = categoryTier[rule.category]
				result.Category = rule.category
			}
		}
	}

	for _, indicator := range complexityIndicators {
		if strings.Contains(lower, indicator) {
			result.ComplexityScore++
		}
	}

	positive, negative := 0, 0
	for _, w := range positiveWords {
		if strings.Contains(lower, w) {
			positive++
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(lower, w) {
			negative++
		}
	}
	switch {
	case positive > negative:
		result.Sentiment = schema.SentimentPositive
	case negative > positive:
		result.Sentiment = schema.SentimentNegative
	}

	return result
}

// PriorityFor maps an urgency score to an action priority.
func PriorityFor(urgencyScore int) schema.Priority {
	switch {
	case urgencyScore >= 5:
		return schema.PriorityCritical
	case urgencyScore >= 3:
		return schema.PriorityHigh
	case urgencyScore >= 1:
		return schema.PriorityMedium
	default:
		return schema.PriorityLow
	}
}
