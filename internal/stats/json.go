package stats

import (
	"encoding/json"
	"math"
)

// Float is a float64 that encodes NaN and ±Inf as JSON null
type Float float64

// MarshalJSON implements json.Marshaler
func (f Float) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonNum(float64(f)))
}

// IsNaN reports whether f is missing
func (f Float) IsNaN() bool { return math.IsNaN(float64(f)) }

func jsonNum(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func jsonNums(vals []float64) []interface{} {
	out := make([]interface{}, len(vals))
	for i, v := range vals {
		out[i] = jsonNum(v)
	}
	return out
}

// MarshalJSON implements json.Marshaler
func (s Summary) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"count":  s.Count,
		"mean":   jsonNum(s.Mean),
		"std":    jsonNum(s.Std),
		"min":    jsonNum(s.Min),
		"q25":    jsonNum(s.Q25),
		"median": jsonNum(s.Median),
		"q75":    jsonNum(s.Q75),
		"max":    jsonNum(s.Max),
	})
}

// MarshalJSON implements json.Marshaler
func (m Matrix) MarshalJSON() ([]byte, error) {
	rows := make([][]interface{}, len(m.Values))
	for i, r := range m.Values {
		rows[i] = jsonNums(r)
	}
	return json.Marshal(struct {
		Names  []string        `json:"names"`
		Values [][]interface{} `json:"values"`
	}{m.Names, rows})
}

// MarshalJSON implements json.Marshaler
func (r GroupRow) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Key    []string      `json:"key"`
		Values []interface{} `json:"values"`
	}{r.Key, jsonNums(r.Values)})
}
