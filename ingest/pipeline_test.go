package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/i3xbridge/codec"
	"github.com/c360/i3xbridge/mapping"
	"github.com/c360/i3xbridge/store"
	"github.com/c360/i3xbridge/types"
)

func intPtr(i int) *int { return &i }

func newPipeline(t *testing.T, rules ...mapping.Rule) (*Pipeline, *store.Store) {
	t.Helper()
	engine := mapping.NewEngine()
	for _, r := range rules {
		require.NoError(t, engine.Add(r))
	}
	objects := store.New()
	return New(engine, codec.NewBuiltinRegistry(), objects, nil), objects
}

func TestFloat32SingleValue(t *testing.T) {
	p, objects := newPipeline(t, mapping.Rule{
		ID:           "temps",
		TopicPattern: "{site}/sensors/temp/{id}",
		Codec:        "float32",
		Extraction: &codec.Extraction{
			ByteOffset: intPtr(0),
			ByteLength: intPtr(4),
			Endian:     "big",
		},
		ElementIDTemplate: "temp.{site}.{id}",
	})

	p.HandleMessage("f1/sensors/temp/s01", []byte{0x42, 0x1C, 0x00, 0x00})

	v, ok := objects.GetValue("temp.f1.s01")
	require.True(t, ok)
	n, _ := v.Value.AsNumber()
	assert.Equal(t, 39.0, n)
	assert.Empty(t, v.Quality)
	assert.NotEmpty(t, v.Timestamp)

	assert.False(t, objects.HasChildren("temp.f1.s01"))
	assert.True(t, objects.HasChildren("temp.f1"))
	assert.True(t, objects.HasChildren("temp"))

	inst, ok := objects.GetInstance("temp.f1")
	require.True(t, ok)
	assert.Equal(t, types.TypePlaceholder, inst.TypeID)

	stats := p.Stats()
	assert.Equal(t, uint64(1), stats.Received)
	assert.Equal(t, uint64(1), stats.Processed)
	assert.Equal(t, uint64(0), stats.Errors)
}

func TestJSONWithPathExtraction(t *testing.T) {
	p, objects := newPipeline(t, mapping.Rule{
		ID:                 "json",
		TopicPattern:       "plant/{id}",
		Codec:              "json",
		ElementIDTemplate:  "plant.{id}",
		ValueExtractor:     "$.temperature",
		TimestampExtractor: "$.ts",
	})

	p.HandleMessage("plant/s01",
		[]byte(`{"temperature":23.5,"ts":"2026-02-02T10:30:45.123Z","status":"ok"}`))

	v, ok := objects.GetValue("plant.s01")
	require.True(t, ok)
	n, _ := v.Value.AsNumber()
	assert.Equal(t, 23.5, n)
	assert.Equal(t, "2026-02-02T10:30:45.123Z", v.Timestamp)
	assert.Empty(t, v.Quality)
}

func TestNoMatchIsSilent(t *testing.T) {
	p, objects := newPipeline(t, mapping.Rule{
		ID: "r", TopicPattern: "a/{x}", Codec: "json",
	})

	p.HandleMessage("other/topic/entirely", []byte(`1`))

	stats := p.Stats()
	assert.Equal(t, uint64(1), stats.Received)
	assert.Equal(t, uint64(1), stats.NoMatch)
	assert.Equal(t, uint64(0), stats.Errors)
	assert.Empty(t, objects.GetAllValues())
}

func TestDecodeFailureDropsMessage(t *testing.T) {
	p, objects := newPipeline(t, mapping.Rule{
		ID: "r", TopicPattern: "a/{x}", Codec: "float32",
	})

	p.HandleMessage("a/b", []byte{0x01, 0x02})

	stats := p.Stats()
	assert.Equal(t, uint64(1), stats.Errors)
	assert.Equal(t, uint64(0), stats.Processed)
	assert.Empty(t, objects.GetAllValues())
}

func TestExtractionOutOfRangeBecomesDecodeError(t *testing.T) {
	p, _ := newPipeline(t, mapping.Rule{
		ID: "r", TopicPattern: "a/{x}", Codec: "uint8",
		Extraction: &codec.Extraction{ByteOffset: intPtr(100)},
	})

	p.HandleMessage("a/b", []byte{0x01})
	assert.Equal(t, uint64(1), p.Stats().Errors)
}

func TestEndianFromExtractionSpec(t *testing.T) {
	p, objects := newPipeline(t, mapping.Rule{
		ID: "r", TopicPattern: "a/{x}", Codec: "uint16",
		Extraction:        &codec.Extraction{Endian: "little"},
		ElementIDTemplate: "a.{x}",
	})

	p.HandleMessage("a/b", []byte{0x01, 0x00})
	v, ok := objects.GetValue("a.b")
	require.True(t, ok)
	n, _ := v.Value.AsNumber()
	assert.Equal(t, 1.0, n)
}

func TestDecomposition(t *testing.T) {
	p, objects := newPipeline(t, mapping.Rule{
		ID:                "d",
		TopicPattern:      "plant/{line}",
		Codec:             "json",
		ElementIDTemplate: "plant.{line}",
		Decompose:         &mapping.DecomposeConfig{Enabled: true, Strategy: "auto"},
	})

	p.HandleMessage("plant/line1", []byte(`{
		"Value": {
			"_name": "OEE",
			"_model": "Models/Component/KPI",
			"Value": 87.7,
			"UnitsOfMeasure": "%"
		}
	}`))

	child, ok := objects.GetInstance("plant.line1.value")
	require.True(t, ok)
	assert.Equal(t, "KPI", child.TypeID)
	assert.Equal(t, "OEE", child.DisplayName)

	v, ok := objects.GetValue("plant.line1.value")
	require.True(t, ok)
	want := types.Map(map[string]types.Value{
		"Value":          types.Number(87.7),
		"UnitsOfMeasure": types.String("%"),
	})
	assert.True(t, want.Equal(v.Value), "got %v", v.Value.ToAny())

	// Component edges run both ways.
	assert.Contains(t, objects.GetRelatedElementIDs("plant.line1", types.RelHasComponent), "plant.line1.value")
	assert.Contains(t, objects.GetRelatedElementIDs("plant.line1.value", types.RelComponentOf), "plant.line1")

	primary, ok := objects.GetInstance("plant.line1")
	require.True(t, ok)
	assert.True(t, primary.IsComposition)

	assert.GreaterOrEqual(t, p.Stats().Decomposed, uint64(1))
}

func TestFirstRuleWins(t *testing.T) {
	p, objects := newPipeline(t,
		mapping.Rule{ID: "first", TopicPattern: "a/{x}", Codec: "utf8", ElementIDTemplate: "first.{x}"},
		mapping.Rule{ID: "second", TopicPattern: "{y}/b", Codec: "utf8", ElementIDTemplate: "second.{y}"},
	)

	p.HandleMessage("a/b", []byte("hello"))

	_, ok := objects.GetValue("first.b")
	assert.True(t, ok)
	_, ok = objects.GetValue("second.a")
	assert.False(t, ok)
}

func TestQualityExtractorStored(t *testing.T) {
	p, objects := newPipeline(t, mapping.Rule{
		ID: "r", TopicPattern: "a/{x}", Codec: "json",
		ElementIDTemplate: "a.{x}",
		QualityExtractor:  "$.q",
	})

	p.HandleMessage("a/b", []byte(`{"v":1,"q":"Uncertain"}`))
	v, ok := objects.GetValue("a.b")
	require.True(t, ok)
	assert.Equal(t, "Uncertain", v.Quality)
}
