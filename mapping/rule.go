package mapping

import (
	"fmt"

	"github.com/c360/i3xbridge/codec"
	"github.com/c360/i3xbridge/errors"
)

// CodecOptions carries per-rule decode hints.
type CodecOptions struct {
	// Endian is "big" (default) or "little" for multi-byte numerics.
	Endian string `json:"endian,omitempty" yaml:"endian,omitempty"`
}

// DecomposeConfig enables recursive payload decomposition for a rule.
type DecomposeConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	// Strategy is "abelara", "flat", or "auto" (default).
	Strategy string `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	// Root optionally narrows decomposition to a sub-tree via a path
	// expression.
	Root string `json:"root,omitempty" yaml:"root,omitempty"`
	// ChildIDStrategy "path" honors a _path field on child mappings.
	ChildIDStrategy string `json:"childIdStrategy,omitempty" yaml:"childIdStrategy,omitempty"`
	// MaxDepth bounds recursion; 0 means unlimited. Default 10.
	MaxDepth *int `json:"maxDepth,omitempty" yaml:"maxDepth,omitempty"`
	// ExcludeFields are keys never materialized as children or leaves.
	ExcludeFields []string `json:"excludeFields,omitempty" yaml:"excludeFields,omitempty"`
}

// Rule maps one topic pattern to the full decode-and-map treatment of
// its messages. Template fields render {key} against topic captures;
// extractor fields are path expressions over the decoded value.
type Rule struct {
	ID           string            `json:"id" yaml:"id"`
	TopicPattern string            `json:"topicPattern" yaml:"topicPattern"`
	Codec        string            `json:"codec" yaml:"codec"`
	CodecOptions CodecOptions      `json:"codecOptions,omitempty" yaml:"codecOptions,omitempty"`
	Extraction   *codec.Extraction `json:"extraction,omitempty" yaml:"extraction,omitempty"`

	NamespaceURI        string `json:"namespaceUri,omitempty" yaml:"namespaceUri,omitempty"`
	ObjectTypeID        string `json:"objectTypeId,omitempty" yaml:"objectTypeId,omitempty"`
	ElementIDTemplate   string `json:"elementIdTemplate,omitempty" yaml:"elementIdTemplate,omitempty"`
	DisplayNameTemplate string `json:"displayNameTemplate,omitempty" yaml:"displayNameTemplate,omitempty"`

	ValueExtractor     string `json:"valueExtractor,omitempty" yaml:"valueExtractor,omitempty"`
	TimestampExtractor string `json:"timestampExtractor,omitempty" yaml:"timestampExtractor,omitempty"`
	QualityExtractor   string `json:"qualityExtractor,omitempty" yaml:"qualityExtractor,omitempty"`

	Decompose *DecomposeConfig `json:"decompose,omitempty" yaml:"decompose,omitempty"`
}

// Validate checks the fields a rule cannot function without.
func (r *Rule) Validate() error {
	if r.ID == "" {
		return errors.WrapInvalid(
			fmt.Errorf("rule id is required"),
			"mapping", "Validate", "validate rule")
	}
	if r.TopicPattern == "" {
		return errors.WrapInvalid(
			fmt.Errorf("rule %q: topicPattern is required", r.ID),
			"mapping", "Validate", "validate rule")
	}
	if r.Codec == "" {
		return errors.WrapInvalid(
			fmt.Errorf("rule %q: codec is required", r.ID),
			"mapping", "Validate", "validate rule")
	}
	return nil
}

// CompiledRule pairs a rule with its compiled topic pattern.
type CompiledRule struct {
	Rule    Rule
	Pattern *Pattern
}
