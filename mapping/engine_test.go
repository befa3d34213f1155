package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/i3xbridge/errors"
)

func testRule(id, pattern string) Rule {
	return Rule{ID: id, TopicPattern: pattern, Codec: "json"}
}

func TestEngineFirstMatchWins(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.Add(testRule("specific", "f1/sensors/{id}")))
	require.NoError(t, e.Add(testRule("generic", "{site}/sensors/{id}")))

	m, ok := e.MatchTopic("f1/sensors/s01")
	require.True(t, ok)
	assert.Equal(t, "specific", m.Rule.Rule.ID)

	m, ok = e.MatchTopic("f2/sensors/s01")
	require.True(t, ok)
	assert.Equal(t, "generic", m.Rule.Rule.ID)
}

func TestEngineMatchAll(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.Add(testRule("a", "f1/sensors/{id}")))
	require.NoError(t, e.Add(testRule("b", "{site}/sensors/{id}")))
	require.NoError(t, e.Add(testRule("c", "other/{x}")))

	matches := e.MatchAll("f1/sensors/s01")
	require.Len(t, matches, 2)
	assert.Equal(t, "a", matches[0].Rule.Rule.ID)
	assert.Equal(t, "b", matches[1].Rule.Rule.ID)

	assert.Empty(t, e.MatchAll("nothing/here"))
}

func TestEngineNoMatch(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.Add(testRule("a", "f1/sensors/{id}")))

	_, ok := e.MatchTopic("f1/actuators/s01")
	assert.False(t, ok)
}

func TestEngineDuplicateID(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.Add(testRule("a", "x/{y}")))
	err := e.Add(testRule("a", "z/{y}"))
	assert.ErrorIs(t, err, errors.ErrDuplicateID)
	assert.True(t, errors.IsConflict(err))
	assert.Equal(t, 1, e.Len())
}

func TestEngineUpdateKeepsOrder(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.Add(testRule("first", "{a}/x")))
	require.NoError(t, e.Add(testRule("second", "{a}/{b}")))

	prev, err := e.Update(testRule("first", "{a}/y"))
	require.NoError(t, err)
	assert.Equal(t, "{a}/x", prev.TopicPattern)

	// "first" still shadows "second" for topics both match.
	m, ok := e.MatchTopic("q/y")
	require.True(t, ok)
	assert.Equal(t, "first", m.Rule.Rule.ID)

	_, err = e.Update(testRule("ghost", "{a}/z"))
	assert.ErrorIs(t, err, errors.ErrRuleNotFound)
}

func TestEngineRemove(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.Add(testRule("a", "x/{y}")))

	removed, err := e.Remove("a")
	require.NoError(t, err)
	assert.Equal(t, "a", removed.ID)
	assert.Equal(t, 0, e.Len())

	_, err = e.Remove("a")
	assert.ErrorIs(t, err, errors.ErrRuleNotFound)
}

func TestEngineListAndGet(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.Add(testRule("a", "x/{y}")))
	require.NoError(t, e.Add(testRule("b", "z/{y}")))

	rules := e.List()
	require.Len(t, rules, 2)
	assert.Equal(t, "a", rules[0].ID)
	assert.Equal(t, "b", rules[1].ID)

	rule, ok := e.Get("b")
	require.True(t, ok)
	assert.Equal(t, "z/{y}", rule.TopicPattern)

	_, ok = e.Get("nope")
	assert.False(t, ok)
}

func TestEngineValidatesRules(t *testing.T) {
	e := NewEngine()
	assert.Error(t, e.Add(Rule{TopicPattern: "x/{y}", Codec: "json"}))
	assert.Error(t, e.Add(Rule{ID: "a", Codec: "json"}))
	assert.Error(t, e.Add(Rule{ID: "a", TopicPattern: "x/{y}"}))
	assert.Error(t, e.Add(testRule("a", "x/{}/y")))
}

func TestEngineSubscriptionTopics(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.Add(testRule("a", "f1/sensors/{id}")))
	require.NoError(t, e.Add(testRule("b", "f1/sensors/{other}")))
	require.NoError(t, e.Add(testRule("c", "{site}/status")))

	assert.Equal(t, []string{"f1/sensors/+", "+/status"}, e.SubscriptionTopics())
}
