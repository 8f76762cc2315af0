package manifest

import (
	"encoding/json"
	"maps"
	"os"
	"path/filepath"
)

const defaultRulesName = "rules.json"

// defaultRules is the fallback rules configuration used when a template
// ships no rules file, or ships one that cannot be parsed.
var defaultRules = map[string]any{
	"segmentation.enabled":             false,
	"segmentation.prefer":              []any{"removebg", "rembg"},
	"segmentation.timeoutMs":           float64(6000),
	"segmentation.fallback":            "raw",
	"segmentation.minSubjectAreaRatio": 0.08,
	"segmentation.featherPx":           float64(2),
	"segmentation.decontam":            true,
}

// RulesResult carries the effective rules for a template and how they
// were obtained.
type RulesResult struct {
	Rules       map[string]any
	Loaded      bool
	DefaultUsed bool
}

// LoadRules loads the rules file named by assets.rules (default
// "rules.json") from the template root. Rules are advisory: a missing file,
// malformed JSON or a non-object document all fall back to the built-in
// defaults, and loading never fails.
func (l *Loader) LoadRules(doc *Document) RulesResult {
	name := defaultRulesName
	if doc != nil && doc.Assets != nil && doc.Assets.Rules != nil && *doc.Assets.Rules != "" {
		name = *doc.Assets.Rules
	}
	path := filepath.Join(l.templateDir, name)

	data, err := os.ReadFile(path)
	if err != nil {
		return fallbackRules()
	}

	var rules map[string]any
	if err := json.Unmarshal(data, &rules); err != nil || rules == nil {
		l.logger.Warn("rules file unusable, using defaults", "path", path)
		return fallbackRules()
	}

	return RulesResult{Rules: rules, Loaded: true}
}

func fallbackRules() RulesResult {
	return RulesResult{Rules: maps.Clone(defaultRules), DefaultUsed: true}
}
