package msg

import (
	"testing"

	"github.com/google/uuid"
	"gotest.tools/v3/assert"
)

func TestEnvelope(t *testing.T) {
	pid, err := uuid.NewUUID()
	assert.NilError(t, err)

	m := New(pid, 42.5)
	assert.Equal(t, m.PID(), pid)
	assert.Equal(t, m.Payload(), 42.5)
}
