package title

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	got, err := Parse(" duke ")
	require.NoError(t, err)
	assert.Equal(t, Duke, got)

	got, err = Parse("SCIENTIST")
	require.NoError(t, err)
	assert.Equal(t, Scientist, got)

	_, err = Parse("Traitor")
	assert.ErrorIs(t, err, ErrUnknownTitle)
}

func TestDefaultDuration(t *testing.T) {
	assert.Equal(t, 200*time.Second, Duke.DefaultDuration())
	assert.Equal(t, 300*time.Second, Justice.DefaultDuration())
	assert.Equal(t, 300*time.Second, Architect.DefaultDuration())
	assert.Equal(t, 200*time.Second, Scientist.DefaultDuration())
}

func TestValid(t *testing.T) {
	for _, tt := range All() {
		assert.True(t, tt.Valid(), string(tt))
		assert.NotEmpty(t, tt.Buff())
	}
	assert.False(t, Title("Fool").Valid())
}
