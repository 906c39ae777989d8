package log

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestToFields(t *testing.T) {
	now := time.Now()
	err := errors.New("boom")

	tests := []struct {
		name  string
		input []any
	}{
		{"empty input", []any{}},
		{"string-int-bool", []any{"a", "x", "b", 123, "c", true}},
		{"time type", []any{"t", now}},
		{"float type", []any{"pi", 3.14}},
		{"bytes", []any{"data", []byte("xyz")}},
		{"error only", []any{err}},
		{"multiple errors", []any{err, errors.New("again")}},
		{"mixed field types", []any{"msg", "ok", zap.String("x", "y"), "num", 42}},
		{"odd number of args", []any{"key1", "val1", "key2"}},
		{"non-string key", []any{123, "value", true, 99}},
		{"nil values", []any{"a", nil, "b", (*int)(nil)}},
		{"map value", []any{"a", map[string]string{"xyz": "123"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := toFields(tt.input...)

			if fields == nil && len(tt.input) > 0 {
				t.Errorf("nil fields for non-empty input: %v", tt.input)
			}

			for _, f := range fields {
				if f.Key == "" {
					t.Errorf("field has empty key: %+v", f)
				}
			}
		})
	}
}

func TestOptionsValidate(t *testing.T) {
	opts := NewOptions()
	assert.Empty(t, opts.Validate())

	opts.Level = "loud"
	opts.Format = "xml"
	assert.Len(t, opts.Validate(), 2)
}

func TestSetLevelSharedByDerivedLoggers(t *testing.T) {
	opts := NewOptions()
	opts.OutputPaths = []string{"stderr"}
	l := NewLogger(opts).(*zapLogger)
	child := l.WithName("router").WithValues("vin", "V1").(*zapLogger)

	require.NoError(t, l.level.UnmarshalText([]byte("debug")))
	assert.True(t, child.core.Core().Enabled(zapcore.DebugLevel))

	require.NoError(t, l.level.UnmarshalText([]byte("error")))
	assert.False(t, child.core.Core().Enabled(zapcore.WarnLevel))
}

func TestPrintfLoggerDoesNotPanic(t *testing.T) {
	p := NewPrintfLogger(NewNopLogger(), false)
	p.Printf("connected to %s", "broker")
	p.Println("subscribed", 3)
	NewPrintfLogger(NewNopLogger(), true).Println("boom")
}
