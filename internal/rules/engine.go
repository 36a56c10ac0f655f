// Package rules provides a YAML-based rules engine mapping counterparty
// keywords to ledger account and VAT rate suggestions. The engine feeds the
// matcher's new-contact proposal path: without a matching rule a proposal
// falls back to the generic revenue/expense account for the transaction
// direction.
package rules

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/rumor-ml/commons.systems/bankimport/internal/domain"
)

//go:embed rules.yaml
var embeddedRules []byte

// MatchType defines how patterns are matched against counterparty text
type MatchType string

const (
	// MatchTypeExact requires the pattern to match the entire text exactly
	MatchTypeExact MatchType = "exact"
	// MatchTypeContains requires the pattern to be a substring of the text
	MatchTypeContains MatchType = "contains"
)

// Rule maps a counterparty/description keyword to a ledger account hint.
//
// Rules should be created via YAML loading (NewEngine, LoadEmbedded,
// LoadFromFile), which validates all invariants:
//   - Priority in range [0, 999]
//   - AccountType a valid domain type
//   - VATRate in range [0, 100]
//   - ConfidenceBoost in range [0, 40]
//   - Pattern non-empty after trimming
//   - MatchType "exact" or "contains"
type Rule struct {
	Name            string    `yaml:"name"`
	Pattern         string    `yaml:"pattern"`
	MatchType       MatchType `yaml:"match_type"`
	Priority        int       `yaml:"priority"`
	AccountCode     string    `yaml:"account_code"`
	AccountName     string    `yaml:"account_name"`
	AccountType     string    `yaml:"account_type"`
	VATRate         float64   `yaml:"vat_rate"`
	ConfidenceBoost int       `yaml:"confidence_boost"`
}

// RuleSet represents the top-level YAML structure
type RuleSet struct {
	Rules []Rule `yaml:"rules"`
}

// MatchResult contains the account suggestion a matched rule carries.
type MatchResult struct {
	AccountCode     string
	AccountName     string
	AccountType     domain.AccountType
	VATRate         decimal.Decimal
	ConfidenceBoost int
	RuleName        string // for diagnostics
}

// Engine performs rule matching on counterparty and description text
type Engine struct {
	rules []Rule // sorted by priority (highest first)
}

// NewEngine creates a rules engine from YAML data
func NewEngine(rulesData []byte) (*Engine, error) {
	var ruleSet RuleSet
	if err := yaml.Unmarshal(rulesData, &ruleSet); err != nil {
		return nil, fmt.Errorf("failed to parse YAML rules (check syntax, indentation, and field names): %w", err)
	}

	for i, rule := range ruleSet.Rules {
		if !domain.ValidateAccountType(domain.AccountType(rule.AccountType)) {
			return nil, fmt.Errorf("rule %d (%s): invalid account type %q", i, rule.Name, rule.AccountType)
		}
		if rule.Priority < 0 || rule.Priority > 999 {
			return nil, fmt.Errorf("rule %d (%s): priority must be in [0,999], got %d", i, rule.Name, rule.Priority)
		}
		if rule.VATRate < 0 || rule.VATRate > 100 {
			return nil, fmt.Errorf("rule %d (%s): vat rate must be in [0,100], got %f", i, rule.Name, rule.VATRate)
		}
		if rule.ConfidenceBoost < 0 || rule.ConfidenceBoost > 40 {
			return nil, fmt.Errorf("rule %d (%s): confidence boost must be in [0,40], got %d", i, rule.Name, rule.ConfidenceBoost)
		}
		if rule.MatchType != MatchTypeExact && rule.MatchType != MatchTypeContains {
			return nil, fmt.Errorf("rule %d (%s): invalid match_type %q (must be 'exact' or 'contains')", i, rule.Name, rule.MatchType)
		}
		if strings.TrimSpace(rule.Pattern) == "" {
			return nil, fmt.Errorf("rule %d (%s): pattern cannot be empty", i, rule.Name)
		}
		if rule.AccountCode == "" {
			return nil, fmt.Errorf("rule %d (%s): account code cannot be empty", i, rule.Name)
		}
	}

	// Sort rules by priority (highest first). SliceStable preserves YAML
	// file order for rules with equal priority, keeping matching
	// deterministic.
	sortedRules := make([]Rule, len(ruleSet.Rules))
	copy(sortedRules, ruleSet.Rules)
	sort.SliceStable(sortedRules, func(i, j int) bool {
		return sortedRules[i].Priority > sortedRules[j].Priority
	})

	return &Engine{rules: sortedRules}, nil
}

// LoadEmbedded loads the embedded rules.yaml file
func LoadEmbedded() (*Engine, error) {
	engine, err := NewEngine(embeddedRules)
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded rules (possible binary corruption): %w", err)
	}
	return engine, nil
}

// LoadFromFile loads rules from a filesystem path
func LoadFromFile(path string) (*Engine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	engine, err := NewEngine(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules from %q: %w", path, err)
	}
	return engine, nil
}

// Match applies rules to the counterparty and description text of a
// transaction and returns the first match in priority order. Rules with
// equal priority apply in YAML file order. Returns (nil, false) if no rule
// matches.
func (e *Engine) Match(counterparty, description string) (*MatchResult, bool) {
	haystacks := []string{
		strings.ToLower(strings.TrimSpace(counterparty)),
		strings.ToLower(strings.TrimSpace(description)),
	}

	for _, rule := range e.rules {
		pattern := strings.ToLower(strings.TrimSpace(rule.Pattern))

		matched := false
		for _, text := range haystacks {
			if text == "" {
				continue
			}
			switch rule.MatchType {
			case MatchTypeExact:
				matched = text == pattern
			case MatchTypeContains:
				matched = strings.Contains(text, pattern)
			}
			if matched {
				break
			}
		}

		if matched {
			return &MatchResult{
				AccountCode:     rule.AccountCode,
				AccountName:     rule.AccountName,
				AccountType:     domain.AccountType(rule.AccountType),
				VATRate:         decimal.NewFromFloat(rule.VATRate),
				ConfidenceBoost: rule.ConfidenceBoost,
				RuleName:        rule.Name,
			}, true
		}
	}

	return nil, false
}

// Rules returns a copy of the rules in priority order, for inspection.
func (e *Engine) Rules() []Rule {
	result := make([]Rule, len(e.rules))
	copy(result, e.rules)
	return result
}
