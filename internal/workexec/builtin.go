package workexec

import (
	"context"
	"fmt"
)

// RegisterBuiltins installs the two development/test executors used by
// Maestro's own integration tests (spec §8, scenario S3's "boom" executor):
// a no-op "noop" kind and a "fail" kind that always raises, to exercise the
// interpreter's fail-fast/skip-rest path deterministically. Neither is a
// product feature; both mirror the injectable fakes tako's
// internal/engine/test_helpers.go registers for engine tests.
func RegisterBuiltins(r *Registry) {
	r.Register("noop", func(_ context.Context, config map[string]any) (any, error) {
		return config, nil
	})
	r.Register("fail", func(_ context.Context, config map[string]any) (any, error) {
		reason, _ := config["reason"].(string)
		if reason == "" {
			reason = "work task configured to fail"
		}
		return nil, fmt.Errorf("%s", reason)
	})
}
