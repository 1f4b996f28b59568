package logging

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewWithWriter_Verbosity(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, 0).WithName("session")

	log.Info("measurement complete", "value", 1.5)
	log.V(1).Info("point added")
	log.Error(errors.New("boom"), "remote failed")

	out := buf.String()
	assert.Contains(t, out, `imagery-compare/session`)
	assert.Contains(t, out, `"msg"="measurement complete"`)
	assert.NotContains(t, out, "point added")
	assert.Contains(t, out, "boom")

	buf.Reset()
	log = NewWithWriter(&buf, 1)
	log.V(1).Info("point added")
	assert.Contains(t, buf.String(), "point added")
}
