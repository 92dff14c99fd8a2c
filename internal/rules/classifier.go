package rules

import (
	"strings"

	"alertrelay/pkg/models"
)

// DefaultActiveTitles are the titles that mean a threat is in progress.
var DefaultActiveTitles = []string{
	"ירי רקטות וטילים",
	"חדירת כלי טיס עוין",
}

// Classifier decides whether an alert is active or an update.
type Classifier interface {
	Classify(msg *models.AlertMessage) models.Classification
}

// TitleClassifier marks alerts active when their title is a trigger phrase.
type TitleClassifier struct {
	titles map[string]struct{}
}

// NewTitleClassifier builds a classifier over the given titles, falling back
// to DefaultActiveTitles when none are given.
func NewTitleClassifier(titles []string) *TitleClassifier {
	if len(titles) == 0 {
		titles = DefaultActiveTitles
	}
	set := make(map[string]struct{}, len(titles))
	for _, t := range titles {
		if t = strings.TrimSpace(t); t != "" {
			set[t] = struct{}{}
		}
	}
	return &TitleClassifier{titles: set}
}

// Classify compares the trimmed title exactly.
func (c *TitleClassifier) Classify(msg *models.AlertMessage) models.Classification {
	if msg == nil {
		return models.ClassUpdate
	}
	if _, ok := c.titles[strings.TrimSpace(msg.Title)]; ok {
		return models.ClassActive
	}
	return models.ClassUpdate
}
