package codec

import (
	"encoding/json"
)

// JSON is the standard-library JSON codec.
//
// It is the most portable option: any struct, map, or slice that
// encoding/json handles round-trips, and the persisted bytes are readable by
// any JSON tooling. Time values, channels, and funcs are not supported.
type JSON struct{}

// Marshal encodes the value to JSON.
func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal decodes the JSON data into v.
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Name returns the unique name of the codec ("json").
func (JSON) Name() string { return "json" }

// Default is the codec used when none is configured.
//
// Newly created stores persist the default codec's name in their meta
// namespace; existing stores are opened with whatever codec they recorded.
var Default Codec = GoJSON{}
