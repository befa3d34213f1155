// Package mapping routes MQTT topics to mapping rules.
//
// A rule names a topic pattern such as "{site}/sensors/temp/{id}",
// where each {name} placeholder matches exactly one topic segment. The
// Engine keeps rules in insertion order and answers "which rule handles
// this topic" with first-match-wins semantics.
//
// The package also hosts the two small expression languages the rest of
// the pipeline shares: literal {key} template rendering and a minimal
// dot-path subset for pulling fields out of decoded payloads.
package mapping
