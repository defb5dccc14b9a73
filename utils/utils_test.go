package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type provider struct {
	ServiceID string `json:"Service ID"`
	Name      string `json:"Name"`
}

func TestDecodeRecord(t *testing.T) {
	t.Run("struct", func(t *testing.T) {
		p, err := DecodeRecord[provider](map[string]any{"Service ID": "A", "Name": "Alpha", "Other": 1})
		require.NoError(t, err)
		assert.Equal(t, provider{ServiceID: "A", Name: "Alpha"}, p)
	})

	t.Run("pointer", func(t *testing.T) {
		p, err := DecodeRecord[*provider](map[string]any{"Service ID": "B"})
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, "B", p.ServiceID)
	})

	t.Run("nil record", func(t *testing.T) {
		_, err := DecodeRecord[provider](nil)
		assert.Error(t, err)
	})

	t.Run("non struct type", func(t *testing.T) {
		_, err := DecodeRecord[map[string]any](map[string]any{"a": 1})
		assert.Error(t, err)
	})

	t.Run("type mismatch", func(t *testing.T) {
		_, err := DecodeRecord[provider](map[string]any{"Service ID": 5})
		assert.Error(t, err)
	})
}

func TestMust(t *testing.T) {
	assert.Equal(t, 3, Must(3, nil))
	assert.Panics(t, func() { Must(0, assert.AnError) })
}
