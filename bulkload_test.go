package bulkload

import (
	"errors"
	"fmt"
	"testing"

	"github.com/zero-day-ai/bulkload/loaderr"
)

func TestIsRejected(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"schema cycle", loaderr.New("run", loaderr.CodeSchemaCycleViolation, ""), true},
		{"unstashable", fmt.Errorf("plan: %w", loaderr.New("plan", loaderr.CodeUnstashableCycle, "")), true},
		{"invalid input", loaderr.New("run", loaderr.CodeInvalidInput, ""), true},
		{"checkpoint", loaderr.New("run", loaderr.CodeCheckpointUnavailable, ""), true},
		{"cancelled", loaderr.New("run", loaderr.CodeCancelled, ""), false},
		{"plain", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRejected(tt.err); got != tt.want {
				t.Errorf("IsRejected(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
