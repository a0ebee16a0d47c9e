package serializer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/orchestrator/xerrors"
)

func TestNew(t *testing.T) {
	s, err := New("")
	require.NoError(t, err)
	assert.Equal(t, "json", s.Name())

	s, err = New("msgpack")
	require.NoError(t, err)
	assert.Equal(t, "msgpack", s.Name())

	_, err = New("gob")
	assert.ErrorIs(t, err, ErrUnsupportedSerializer)
	assert.True(t, xerrors.Is(err, xerrors.ErrInvalidInput))
}

func TestMessagePackIsCompact(t *testing.T) {
	v := map[string]any{"consumer": "c", "provider": "p", "allowed": true}

	j, err := JSONSerializer{}.Marshal(v)
	require.NoError(t, err)
	m, err := MessagePackSerializer{}.Marshal(v)
	require.NoError(t, err)
	assert.Less(t, len(m), len(j))

	var out map[string]any
	require.NoError(t, MessagePackSerializer{}.Unmarshal(m, &out))
	assert.Equal(t, true, out["allowed"])
}
