// Package ingest runs the per-message pipeline: match the topic to a
// rule, extract and decode the payload, map it to an element, optionally
// decompose it into components, and upsert everything into the store.
package ingest

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/c360/i3xbridge/codec"
	"github.com/c360/i3xbridge/decompose"
	"github.com/c360/i3xbridge/mapper"
	"github.com/c360/i3xbridge/mapping"
	"github.com/c360/i3xbridge/metric"
	"github.com/c360/i3xbridge/store"
	"github.com/c360/i3xbridge/types"
)

// Stats is a point-in-time snapshot of pipeline counters.
type Stats struct {
	Received   uint64 `json:"received"`
	Processed  uint64 `json:"processed"`
	NoMatch    uint64 `json:"noMatch"`
	Errors     uint64 `json:"errors"`
	Decomposed uint64 `json:"decomposed"`
}

// Pipeline processes raw MQTT messages into the store. One Pipeline
// serves all rules; it is safe for concurrent delivery.
type Pipeline struct {
	engine  *mapping.Engine
	codecs  *codec.Registry
	objects *store.Store
	metrics *metric.Metrics
	logger  *slog.Logger

	received   atomic.Uint64
	processed  atomic.Uint64
	noMatch    atomic.Uint64
	errors     atomic.Uint64
	decomposed atomic.Uint64
}

// New creates a Pipeline. metrics may be nil when Prometheus is not
// wired, e.g. in tests.
func New(engine *mapping.Engine, codecs *codec.Registry, objects *store.Store, metrics *metric.Metrics) *Pipeline {
	return &Pipeline{
		engine:  engine,
		codecs:  codecs,
		objects: objects,
		metrics: metrics,
		logger:  slog.Default().With("component", "ingest"),
	}
}

// HandleMessage runs one (topic, payload) pair through the pipeline.
// A data message never fails loudly: unroutable or undecodable input
// is counted and dropped.
func (p *Pipeline) HandleMessage(topic string, payload []byte) {
	p.received.Add(1)
	if p.metrics != nil {
		p.metrics.MessagesReceived.Inc()
	}

	match, ok := p.engine.MatchTopic(topic)
	if !ok {
		p.noMatch.Add(1)
		if p.metrics != nil {
			p.metrics.RecordDropped("no_match")
		}
		return
	}
	rule := match.Rule.Rule

	extracted := codec.Extract(payload, rule.Extraction)

	endian := rule.CodecOptions.Endian
	if endian == "" && rule.Extraction != nil {
		endian = rule.Extraction.Endian
	}
	decoded, err := p.codecs.Decode(rule.Codec, extracted, codec.Options{Endian: endian})
	if err != nil {
		p.errors.Add(1)
		if p.metrics != nil {
			p.metrics.RecordDropped("decode_failed")
			p.metrics.RecordDecodeError(rule.Codec)
		}
		p.logger.Debug("message dropped",
			"topic", topic,
			"rule_id", rule.ID,
			"codec", rule.Codec,
			"payload_len", len(payload),
			"error", err)
		return
	}

	result := mapper.Map(rule, topic, match.Captures, decoded, time.Now())
	if result.ElementID == "" {
		p.errors.Add(1)
		if p.metrics != nil {
			p.metrics.RecordDropped("empty_element_id")
		}
		return
	}

	var children []decompose.Entry
	if rule.Decompose != nil && rule.Decompose.Enabled {
		children = decompose.Decompose(decoded, *rule.Decompose, decompose.Parent{
			ElementID:    result.ElementID,
			NamespaceURI: result.Instance.NamespaceURI,
		})
	}

	quality := ""
	if result.Quality != nil {
		quality = *result.Quality
	}

	primary := result.Instance
	primary.IsComposition = len(children) > 0
	p.objects.Upsert(result.ElementID, types.ObjectValue{
		Value:     result.Value,
		Timestamp: result.Timestamp,
		Quality:   quality,
	}, &primary)

	for i := range children {
		child := &children[i]
		p.objects.Upsert(child.Instance.ElementID, types.ObjectValue{
			Value:     child.Value,
			Timestamp: result.Timestamp,
			Quality:   quality,
		}, &child.Instance)
		p.objects.AddRelationship(child.ParentID, child.Instance.ElementID, types.RelHasComponent)
		p.objects.AddRelationship(child.Instance.ElementID, child.ParentID, types.RelComponentOf)
	}
	if len(children) > 0 {
		p.decomposed.Add(uint64(len(children)))
		if p.metrics != nil {
			p.metrics.DecomposedChildren.Add(float64(len(children)))
		}
	}

	p.processed.Add(1)
	if p.metrics != nil {
		p.metrics.RecordProcessed(rule.ID)
	}
}

// Stats returns the pipeline counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Received:   p.received.Load(),
		Processed:  p.processed.Load(),
		NoMatch:    p.noMatch.Load(),
		Errors:     p.errors.Load(),
		Decomposed: p.decomposed.Load(),
	}
}
