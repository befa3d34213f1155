package subscription

import (
	"encoding/json"

	"github.com/c360/i3xbridge/types"
)

// StreamFrame renders one value change as the JSON body of an SSE data
// frame: an array holding a single object keyed by elementId. An absent
// quality is reported as "Good" on the stream.
func StreamFrame(ov types.ObjectValue) ([]byte, error) {
	frame := []map[string]map[string][]types.VQT{
		{ov.ElementID: {"data": {types.StreamVQT(ov)}}},
	}
	return json.Marshal(frame)
}
