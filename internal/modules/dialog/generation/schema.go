package generation

import (
	"encoding/json"
	"sync"

	"github.com/invopop/jsonschema"
)

// emotionReading mirrors emotion.Dimensions and only exists to reflect the response schema.
type emotionReading struct {
	Joy           float64 `json:"joy" jsonschema:"required,minimum=0,maximum=1"`
	Sadness       float64 `json:"sadness" jsonschema:"required,minimum=0,maximum=1"`
	Anger         float64 `json:"anger" jsonschema:"required,minimum=0,maximum=1"`
	Fear          float64 `json:"fear" jsonschema:"required,minimum=0,maximum=1"`
	Surprise      float64 `json:"surprise" jsonschema:"required,minimum=0,maximum=1"`
	Disgust       float64 `json:"disgust" jsonschema:"required,minimum=0,maximum=1"`
	Trust         float64 `json:"trust" jsonschema:"required,minimum=0,maximum=1"`
	Anticipation  float64 `json:"anticipation" jsonschema:"required,minimum=0,maximum=1"`
	Curiosity     float64 `json:"curiosity" jsonschema:"required,minimum=0,maximum=1"`
	Confusion     float64 `json:"confusion" jsonschema:"required,minimum=0,maximum=1"`
	Frustration   float64 `json:"frustration" jsonschema:"required,minimum=0,maximum=1"`
	Contentment   float64 `json:"contentment" jsonschema:"required,minimum=0,maximum=1"`
	Excitement    float64 `json:"excitement" jsonschema:"required,minimum=0,maximum=1"`
	Anxiety       float64 `json:"anxiety" jsonschema:"required,minimum=0,maximum=1"`
	Affection     float64 `json:"affection" jsonschema:"required,minimum=0,maximum=1"`
	Pride         float64 `json:"pride" jsonschema:"required,minimum=0,maximum=1"`
	Embarrassment float64 `json:"embarrassment" jsonschema:"required,minimum=0,maximum=1"`
	Empathy       float64 `json:"empathy" jsonschema:"required,minimum=0,maximum=1"`
}

var (
	emotionSchemaOnce sync.Once
	emotionSchemaText string
)

func emotionSchema() string {
	emotionSchemaOnce.Do(func() {
		reflector := jsonschema.Reflector{
			AllowAdditionalProperties:  false,
			DoNotReference:             true,
			RequiredFromJSONSchemaTags: true,
		}
		schema := reflector.Reflect(&emotionReading{})
		schema.Version = ""
		b, err := json.Marshal(schema)
		if err != nil {
			return
		}
		emotionSchemaText = string(b)
	})
	return emotionSchemaText
}
