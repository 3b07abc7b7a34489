package emotion

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gorm.io/datatypes"
)

// Dimensions is the fixed component order of a Vector.
var Dimensions = [Size]string{
	"joy",
	"sadness",
	"anger",
	"fear",
	"surprise",
	"disgust",
	"trust",
	"anticipation",
	"curiosity",
	"confusion",
	"frustration",
	"contentment",
	"excitement",
	"anxiety",
	"affection",
	"pride",
	"embarrassment",
	"empathy",
}

const (
	Size    = 18
	Neutral = 0.5
)

type Vector [Size]float64

func NeutralVector() Vector {
	var v Vector
	for i := range v {
		v[i] = Neutral
	}
	return v
}

func Index(name string) (int, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, d := range Dimensions {
		if d == name {
			return i, true
		}
	}
	return -1, false
}

func (v Vector) Get(name string) (float64, bool) {
	i, ok := Index(name)
	if !ok {
		return 0, false
	}
	return v[i], true
}

func (v Vector) Map() map[string]float64 {
	out := make(map[string]float64, Size)
	for i, d := range Dimensions {
		out[d] = v[i]
	}
	return out
}

// FromMap builds a normalized vector. Missing names become Neutral.
func FromMap(m map[string]float64) Vector {
	v := NeutralVector()
	for k, val := range m {
		if i, ok := Index(k); ok {
			v[i] = val
		}
	}
	return v.Normalize()
}

// Normalize replaces NaN with Neutral and clamps every component to [0,1].
func (v Vector) Normalize() Vector {
	for i, x := range v {
		v[i] = normalize(x)
	}
	return v
}

func (v Vector) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Map())
}

// UnmarshalJSON accepts a name to value object. Values may be numbers or numeric strings.
// Unknown names are ignored; missing or unparseable ones become Neutral.
func (v *Vector) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("emotion vector: %w", err)
	}
	out := NeutralVector()
	for k, r := range raw {
		i, ok := Index(k)
		if !ok {
			continue
		}
		if f, ok := parseComponent(r); ok {
			out[i] = f
		}
	}
	*v = out.Normalize()
	return nil
}

func parseComponent(r json.RawMessage) (float64, bool) {
	var f float64
	if err := json.Unmarshal(r, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(r, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func (v Vector) JSON() datatypes.JSON {
	b, _ := json.Marshal(v.Map())
	return datatypes.JSON(b)
}

// FromJSON decodes a stored state. Empty or null input yields the neutral vector.
func FromJSON(j datatypes.JSON) (Vector, error) {
	s := strings.TrimSpace(string(j))
	if s == "" || s == "null" {
		return NeutralVector(), nil
	}
	var v Vector
	if err := json.Unmarshal(j, &v); err != nil {
		return NeutralVector(), err
	}
	return v, nil
}

func normalize(x float64) float64 {
	if math.IsNaN(x) {
		return Neutral
	}
	return clamp01(x)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// round1 rounds to one decimal on the decimal value. Snapping to 1e-9 first keeps sums such
// as 0.35+0.3 (0.6499999...) on their halfway point.
func round1(x float64) float64 {
	return math.Round(math.Round(x*1e9)/1e8) / 10
}
