package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alertrelay/pkg/models"
)

func TestTitleClassifierDefaults(t *testing.T) {
	c := NewTitleClassifier(nil)
	assert.Equal(t, models.ClassActive, c.Classify(&models.AlertMessage{Title: "ירי רקטות וטילים"}))
	assert.Equal(t, models.ClassActive, c.Classify(&models.AlertMessage{Title: " חדירת כלי טיס עוין "}))
	assert.Equal(t, models.ClassUpdate, c.Classify(&models.AlertMessage{Title: "האירוע הסתיים"}))
	assert.Equal(t, models.ClassUpdate, c.Classify(nil))
}

func TestTitleClassifierCustomTitles(t *testing.T) {
	c := NewTitleClassifier([]string{"drill"})
	assert.Equal(t, models.ClassActive, c.Classify(&models.AlertMessage{Title: "drill"}))
	assert.Equal(t, models.ClassUpdate, c.Classify(&models.AlertMessage{Title: "ירי רקטות וטילים"}))
}

const threatRule = `
title: Earthquake by threat id
id: 7a3c1f0e-0000-4000-8000-000000000001
logsource:
  product: alertrelay
detection:
  selection:
    threatId: '3'
  condition: selection
level: high
`

const updateRule = `
title: Drill notice is informational
id: 7a3c1f0e-0000-4000-8000-000000000002
tags:
  - alertrelay.update
detection:
  selection:
    title: 'drill'
  condition: selection
`

const windowsRule = `
title: Not for us
logsource:
  product: windows
detection:
  selection:
    EventID: 1
  condition: selection
`

func writeRules(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"threat.yml":  threatRule,
		"update.yaml": updateRule,
		"windows.yml": windowsRule,
		"broken.yml":  "detection: [",
		"notes.txt":   "ignored",
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func TestSigmaClassifierLoadStats(t *testing.T) {
	_, stats, err := NewSigmaClassifier(writeRules(t), nil)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalFiles)
	assert.Equal(t, 2, stats.Loaded)
	assert.Equal(t, 1, stats.SkippedDatasource)
	assert.Equal(t, 1, stats.SkippedInvalid)
}

func TestSigmaClassifierMatches(t *testing.T) {
	c, _, err := NewSigmaClassifier(writeRules(t), NewTitleClassifier([]string{"drill", "ירי רקטות וטילים"}))
	require.NoError(t, err)

	assert.Equal(t, models.ClassActive, c.Classify(&models.AlertMessage{Title: "רעידת אדמה", ThreatID: "3"}))
	assert.Equal(t, models.ClassUpdate, c.Classify(&models.AlertMessage{Title: "drill", ThreatID: "0"}))
	assert.Equal(t, models.ClassActive, c.Classify(&models.AlertMessage{Title: "ירי רקטות וטילים", ThreatID: "0"}))
	assert.Equal(t, models.ClassUpdate, c.Classify(&models.AlertMessage{Title: "other", ThreatID: "0"}))
}

func TestSigmaClassifierRejectsNonYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rule.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))
	_, _, err := NewSigmaClassifier(path, nil)
	assert.Error(t, err)
}

func TestSigmaClassifierNeedsOnlyRulesAndFallback(t *testing.T) {
	loaded, _, err := NewSigmaClassifier(writeRules(t), nil)
	require.NoError(t, err)

	c := &SigmaClassifier{rules: loaded.rules, fallback: loaded.fallback}
	assert.Equal(t, models.ClassActive, c.Classify(&models.AlertMessage{Title: "רעידת אדמה", ThreatID: "3"}))
	assert.Equal(t, models.ClassActive, c.Classify(&models.AlertMessage{Title: "חדירת כלי טיס עוין", ThreatID: "0"}))
	assert.Equal(t, models.ClassUpdate, c.Classify(nil))
}
