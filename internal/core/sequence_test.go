package core_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"accounting-engine/internal/core"
)

func TestFormatDocumentNumber(t *testing.T) {
	at := time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		mask string
		seq  int64
		want string
	}{
		{core.DefaultFormatMask, 42, "INV/2026/000042"},
		{"{prefix}-{month}-{seq}", 7, "INV-03-7"},
		{"{prefix}{seq:4d}", 7, "INV0007"},
		{"{prefix}{seq:04d}", 12345, "INV12345"},
		{"{prefix}/{unknown}/{seq}", 1, "INV/{unknown}/1"},
		{"FIXED", 9, "FIXED"},
	}
	for _, tt := range tests {
		t.Run(tt.mask, func(t *testing.T) {
			assert.Equal(t, tt.want, core.FormatDocumentNumber(tt.mask, "INV", tt.seq, at))
		})
	}
}
