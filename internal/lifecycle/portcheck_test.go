package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReclaimAttemptedRejectsUnparseableAddr(t *testing.T) {
	_, ok := reclaimAttempted("not-an-addr")
	assert.False(t, ok)
}

func TestProbePortDetectsFreePort(t *testing.T) {
	assert.NoError(t, ProbePort("127.0.0.1:0"))
}
