package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalRequest(t *testing.T) {
	r, err := UnmarshalRequest([]byte(`{"type":"inject_pins","data":{"a":true,"b":false}}`))
	require.NoError(t, err)
	assert.Equal(t, InjectPins{A: true, B: false}, r)

	r, err = UnmarshalRequest([]byte(`{"type":"reset"}`))
	require.NoError(t, err)
	assert.Equal(t, Reset{}, r)
}

func TestUnmarshalRequest_Errors(t *testing.T) {
	tests := map[string]string{
		"not json":     `inject`,
		"unknown type": `{"type":"explode"}`,
		"missing data": `{"type":"inject_value"}`,
		"bad data":     `{"type":"inject_value","data":{"value":-3}}`,
	}
	for name, line := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := UnmarshalRequest([]byte(line))
			assert.Error(t, err)
		})
	}
}

func TestMarshalRequest_DataOnlyWhenNeeded(t *testing.T) {
	b, err := MarshalRequest(Status{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"status"}`, string(b))

	b, err = MarshalRequest(InjectValue{Value: 512})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"inject_value","data":{"value":512}}`, string(b))
}
