// Package mapper turns a matched, decoded MQTT message into the
// element identity and value triple the store understands.
package mapper

import (
	"strings"
	"time"

	"github.com/c360/i3xbridge/mapping"
	"github.com/c360/i3xbridge/pkg/timestamp"
	"github.com/c360/i3xbridge/types"
)

// Result is one mapped message: the instance to upsert and its
// value/quality/timestamp triple. Quality is nil when the rule has no
// quality extractor or it did not resolve to a string.
type Result struct {
	ElementID string
	Value     types.Value
	Timestamp string
	Quality   *string
	Instance  types.ObjectInstance
}

// Map applies a rule to a decoded message. receiveTime is the fallback
// when the payload carries no usable timestamp.
func Map(rule mapping.Rule, topic string, captures map[string]string, decoded types.Value, receiveTime time.Time) Result {
	elementID := mapping.Render(rule.ElementIDTemplate, captures)
	if elementID == "" {
		elementID = strings.ReplaceAll(topic, "/", ".")
	}

	value := decoded
	if rule.ValueExtractor != "" {
		if extracted, ok := mapping.Resolve(decoded, rule.ValueExtractor); ok && !extracted.IsNull() {
			value = extracted
		}
	}

	ts := timestamp.Format(receiveTime)
	if rule.TimestampExtractor != "" {
		if raw, ok := mapping.Resolve(decoded, rule.TimestampExtractor); ok {
			if s, isStr := raw.AsString(); isStr {
				ts = s
			} else if n, isNum := raw.AsNumber(); isNum {
				ts = timestamp.FormatMillis(n)
			}
		}
	}

	var quality *string
	if rule.QualityExtractor != "" {
		if raw, ok := mapping.Resolve(decoded, rule.QualityExtractor); ok {
			if s, isStr := raw.AsString(); isStr {
				quality = &s
			}
		}
	}

	namespaceURI := mapping.Render(rule.NamespaceURI, captures)
	if namespaceURI == "" {
		namespaceURI = captures["namespace"]
	}
	if namespaceURI == "" {
		namespaceURI = types.DefaultNamespace
	}

	typeID := mapping.Render(rule.ObjectTypeID, captures)
	if typeID == "" {
		typeID = types.TypeGenericTag
	}

	displayName := mapping.Render(rule.DisplayNameTemplate, captures)
	if displayName == "" {
		displayName = elementID
	}

	return Result{
		ElementID: elementID,
		Value:     value,
		Timestamp: ts,
		Quality:   quality,
		Instance: types.ObjectInstance{
			ElementID:     elementID,
			DisplayName:   displayName,
			TypeID:        typeID,
			NamespaceURI:  namespaceURI,
			IsComposition: false,
		},
	}
}
