package postgres

import (
	"encoding/json"

	"github.com/oklog/ulid/v2"
)

func generateID() string {
	return ulid.Make().String()
}

func toJSON(v any) string {
	if v == nil {
		return "{}"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func fromJSON(s string, v any) {
	if s == "" {
		return
	}
	_ = json.Unmarshal([]byte(s), v)
}
