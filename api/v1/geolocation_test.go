package v1

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGeolocationString(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "object", raw: `{"country":"US"}`, want: `{"country":"US"}`},
		{name: "string holding object", raw: `"{\"country\":\"US\"}"`, want: `{"country":"US"}`},
		{name: "null", raw: `null`, want: ""},
		{name: "empty", raw: ``, want: ""},
		{name: "padded object", raw: "  {\"country\":\"CA\"} ", want: `{"country":"CA"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, geolocationString(json.RawMessage(tt.raw)))
		})
	}
}
