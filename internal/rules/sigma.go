package rules

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	sigma "github.com/bradleyjkemp/sigma-go"
	sigmaevaluator "github.com/bradleyjkemp/sigma-go/evaluator"

	"alertrelay/pkg/models"
)

// updateTag marks a rule whose match forces the update classification.
const updateTag = "alertrelay.update"

// SigmaLoadStats tracks the number of loaded and skipped rules.
type SigmaLoadStats struct {
	TotalFiles        int
	Loaded            int
	SkippedComplex    int
	SkippedDatasource int
	SkippedInvalid    int
}

type compiledSigmaRule struct {
	rule  sigma.Rule
	eval  *sigmaevaluator.RuleEvaluator
	class models.Classification
}

// SigmaClassifier evaluates Sigma rules against alert payloads. The first
// matching rule decides; with no match the fallback classifier decides.
type SigmaClassifier struct {
	rules    []compiledSigmaRule
	fallback Classifier
}

// NewSigmaClassifier loads Sigma rules from a file or directory.
// Unsupported or complex rules are skipped and included in stats.
func NewSigmaClassifier(path string, fallback Classifier) (*SigmaClassifier, SigmaLoadStats, error) {
	var stats SigmaLoadStats

	resolved, err := filepath.Abs(path)
	if err != nil {
		return nil, stats, fmt.Errorf("resolve rule path: %w", err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, stats, fmt.Errorf("stat rule path: %w", err)
	}

	var files []string
	if info.IsDir() {
		err = filepath.WalkDir(resolved, func(filePath string, entry fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if !entry.IsDir() && isYAMLFile(filePath) {
				files = append(files, filePath)
			}
			return nil
		})
		if err != nil {
			return nil, stats, fmt.Errorf("walk rule directory: %w", err)
		}
	} else {
		if !isYAMLFile(resolved) {
			return nil, stats, fmt.Errorf("rule file must end with .yml or .yaml: %s", resolved)
		}
		files = append(files, resolved)
	}

	stats.TotalFiles = len(files)
	compiled := make([]compiledSigmaRule, 0, len(files))
	for _, ruleFile := range files {
		rule, err := parseSigmaRuleFile(ruleFile)
		if err != nil {
			stats.SkippedInvalid++
			continue
		}
		if !isAlertCompatible(rule) {
			stats.SkippedDatasource++
			continue
		}
		if ok, _ := isSimpleSingleEventRule(rule); !ok {
			stats.SkippedComplex++
			continue
		}
		compiled = append(compiled, compiledSigmaRule{
			rule:  rule,
			eval:  sigmaevaluator.ForRule(rule),
			class: classFromRule(rule),
		})
		stats.Loaded++
	}

	if fallback == nil {
		fallback = NewTitleClassifier(nil)
	}
	return &SigmaClassifier{rules: compiled, fallback: fallback}, stats, nil
}

// Classify evaluates rules in load order.
func (c *SigmaClassifier) Classify(msg *models.AlertMessage) models.Classification {
	if msg == nil {
		return models.ClassUpdate
	}
	event := sigmaEventFrom(msg)
	for _, rule := range c.rules {
		res, err := rule.eval.Matches(context.Background(), event)
		if err != nil {
			continue
		}
		if res.Match {
			return rule.class
		}
	}
	return c.fallback.Classify(msg)
}

func parseSigmaRuleFile(path string) (sigma.Rule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return sigma.Rule{}, fmt.Errorf("read sigma rule %s: %w", path, err)
	}
	rule, err := sigma.ParseRule(raw)
	if err != nil {
		return sigma.Rule{}, fmt.Errorf("parse sigma rule %s: %w", path, err)
	}
	return rule, nil
}

func isYAMLFile(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".yml") || strings.HasSuffix(lower, ".yaml")
}

func isAlertCompatible(rule sigma.Rule) bool {
	product := strings.ToLower(strings.TrimSpace(rule.Logsource.Product))
	return product == "" || product == "alertrelay"
}

func isSimpleSingleEventRule(rule sigma.Rule) (bool, string) {
	if rule.Detection.Timeframe > 0 {
		return false, "timeframe is not supported"
	}
	for _, cond := range rule.Detection.Conditions {
		if cond.Aggregation != nil {
			return false, "aggregation condition is not supported"
		}
		if !isSimpleSearchExpression(cond.Search) {
			return false, "complex condition expression is not supported"
		}
	}
	for _, search := range rule.Detection.Searches {
		if len(search.Keywords) > 0 {
			return false, "keyword search is not supported"
		}
		if len(search.EventMatchers) == 0 {
			return false, "search has no event matchers"
		}
	}
	return true, ""
}

func isSimpleSearchExpression(expr sigma.SearchExpr) bool {
	switch e := expr.(type) {
	case sigma.SearchIdentifier:
		return true
	case sigma.And:
		for _, child := range e {
			if !isSimpleSearchExpression(child) {
				return false
			}
		}
		return true
	case sigma.Or:
		for _, child := range e {
			if !isSimpleSearchExpression(child) {
				return false
			}
		}
		return true
	case sigma.Not:
		return isSimpleSearchExpression(e.Expr)
	default:
		return false
	}
}

func sigmaEventFrom(msg *models.AlertMessage) map[string]interface{} {
	buf := make(map[string]interface{}, len(msg.Raw)+7)
	for k := range msg.Raw {
		buf[k] = msg.Field(k)
	}
	buf["id"] = msg.ID
	buf["alertTitle"] = msg.AlertTitle
	buf["title"] = strings.TrimSpace(msg.Title)
	buf["time"] = msg.Time
	buf["citiesIds"] = msg.CitiesIDs
	buf["threatId"] = msg.ThreatID
	buf["desc"] = msg.Desc
	return buf
}

func classFromRule(rule sigma.Rule) models.Classification {
	for _, tag := range rule.Tags {
		if strings.EqualFold(strings.TrimSpace(tag), updateTag) {
			return models.ClassUpdate
		}
	}
	return models.ClassActive
}
