package mapping

import (
	"fmt"
	"sync"

	"github.com/c360/i3xbridge/errors"
)

// Match is one successful topic match: the rule that claimed the topic
// and the captured placeholder values.
type Match struct {
	Rule     *CompiledRule
	Captures map[string]string
}

// Engine holds mapping rules in insertion order and routes topics to
// them. Safe for concurrent use. First-inserted rule wins when several
// patterns match the same topic.
type Engine struct {
	mu    sync.RWMutex
	rules []*CompiledRule
}

// NewEngine creates an empty Engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Add compiles and appends a rule. Adding an id that already exists
// fails with a conflict; use Update to replace in place.
func (e *Engine) Add(rule Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	pattern, err := CompilePattern(rule.TopicPattern)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, existing := range e.rules {
		if existing.Rule.ID == rule.ID {
			return errors.WrapConflict(
				fmt.Errorf("%w: rule %q", errors.ErrDuplicateID, rule.ID),
				"mapping", "Add", "add rule")
		}
	}
	e.rules = append(e.rules, &CompiledRule{Rule: rule, Pattern: pattern})
	return nil
}

// Update replaces an existing rule, keeping its position in match
// order. Returns the previous rule.
func (e *Engine) Update(rule Rule) (Rule, error) {
	if err := rule.Validate(); err != nil {
		return Rule{}, err
	}
	pattern, err := CompilePattern(rule.TopicPattern)
	if err != nil {
		return Rule{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for i, existing := range e.rules {
		if existing.Rule.ID == rule.ID {
			prev := existing.Rule
			e.rules[i] = &CompiledRule{Rule: rule, Pattern: pattern}
			return prev, nil
		}
	}
	return Rule{}, errors.WrapNotFound(
		fmt.Errorf("%w: rule %q", errors.ErrRuleNotFound, rule.ID),
		"mapping", "Update", "update rule")
}

// Remove deletes a rule by id and returns it.
func (e *Engine) Remove(id string) (Rule, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, existing := range e.rules {
		if existing.Rule.ID == id {
			removed := existing.Rule
			e.rules = append(e.rules[:i], e.rules[i+1:]...)
			return removed, nil
		}
	}
	return Rule{}, errors.WrapNotFound(
		fmt.Errorf("%w: rule %q", errors.ErrRuleNotFound, id),
		"mapping", "Remove", "remove rule")
}

// Get returns a rule by id.
func (e *Engine) Get(id string) (Rule, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, existing := range e.rules {
		if existing.Rule.ID == id {
			return existing.Rule, true
		}
	}
	return Rule{}, false
}

// List returns all rules in match order.
func (e *Engine) List() []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Rule, len(e.rules))
	for i, existing := range e.rules {
		out[i] = existing.Rule
	}
	return out
}

// Len returns the number of rules.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.rules)
}

// MatchTopic returns the first rule matching the topic, or (zero, false)
// when no rule matches.
func (e *Engine) MatchTopic(topic string) (Match, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, rule := range e.rules {
		if captures, ok := rule.Pattern.Match(topic); ok {
			return Match{Rule: rule, Captures: captures}, true
		}
	}
	return Match{}, false
}

// MatchAll returns every rule matching the topic, in match order.
func (e *Engine) MatchAll(topic string) []Match {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var matches []Match
	for _, rule := range e.rules {
		if captures, ok := rule.Pattern.Match(topic); ok {
			matches = append(matches, Match{Rule: rule, Captures: captures})
		}
	}
	return matches
}

// SubscriptionTopics returns the deduplicated MQTT subscription strings
// for every rule, in rule order.
func (e *Engine) SubscriptionTopics() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	seen := make(map[string]struct{}, len(e.rules))
	var topics []string
	for _, rule := range e.rules {
		topic := rule.Pattern.SubscriptionTopic()
		if _, dup := seen[topic]; dup {
			continue
		}
		seen[topic] = struct{}{}
		topics = append(topics, topic)
	}
	return topics
}
