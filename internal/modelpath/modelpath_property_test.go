//go:build property
// +build property

package modelpath

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestModelPathProperties checks that a value nested under a dotted path is
// always found again at that path.
func TestModelPathProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("nested value round trips", prop.ForAll(
		func(keys []string, value string) bool {
			if len(keys) == 0 {
				return true
			}
			var model interface{} = value
			for i := len(keys) - 1; i >= 0; i-- {
				model = map[string]interface{}{keys[i]: model}
			}

			got, ok := Get(model, strings.Join(keys, "."))
			return ok && got == value
		},
		gen.SliceOf(gen.Identifier()),
		gen.AlphaString(),
	))

	properties.Property("missing paths are absent", prop.ForAll(
		func(key string) bool {
			got, ok := Get(map[string]interface{}{}, key)
			return !ok && got == nil
		},
		gen.Identifier(),
	))

	properties.TestingRun(t)
}
