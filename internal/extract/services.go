package extract

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/furgoplaza/enrich-cli/internal/model"
)

// ParseServices parses a model reply into the closed service map. Keys
// outside the vocabulary are dropped; vocabulary keys the reply omits or
// sets to anything other than boolean true come back false. A reply with
// no parseable JSON object yields the all-false map, never an error.
func ParseServices(reply string) map[string]bool {
	obj, err := FirstJSONObject(reply)
	if err != nil {
		zap.L().Debug("services reply did not contain JSON, defaulting all to false",
			zap.String("reply", reply),
		)
		return model.NormalizeServices(nil)
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		zap.L().Debug("services reply is not a JSON object, defaulting all to false",
			zap.String("reply", reply),
		)
		return model.NormalizeServices(nil)
	}

	parsed := make(map[string]bool, len(model.ServiceKeys))
	for _, key := range model.ServiceKeys {
		b, ok := raw[key].(bool)
		parsed[key] = ok && b
	}

	return model.NormalizeServices(parsed)
}
