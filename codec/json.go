package codec

import (
	"encoding/json"
)

// JSON is the standard-library JSON codec.
//
// It is the most portable option and is what trace readers outside Go are
// most likely to handle. NaN and Inf values are not representable.
type JSON struct{}

// Marshal encodes the value to JSON.
func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal decodes the JSON data into v.
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Name returns the unique name of the codec ("json").
func (JSON) Name() string { return "json" }

// Default is the codec used for new trace segments and remote requests.
//
// Existing segments are self-describing; changing Default does not affect
// how they are read.
var Default Codec = GoJSON{}
