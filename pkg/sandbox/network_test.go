package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNetwork_DisallowedHostRejected(t *testing.T) {
	n := newNetwork([]string{"example.com"})
	_, err := n.HTTPGet("https://evil.example/data")
	require.Error(t, err)
	var secErr *SecurityError
	assert.ErrorAs(t, err, &secErr)
}

func TestNetwork_RevokedRejectsRequests(t *testing.T) {
	n := newNetwork([]string{"example.com"})
	n.revoke()
	_, err := n.HTTPGet("https://example.com/data")
	require.Error(t, err)
	var secErr *SecurityError
	assert.ErrorAs(t, err, &secErr)
}

func TestNetwork_InvalidURLIsRuntimeError(t *testing.T) {
	n := newNetwork([]string{"example.com"})
	_, err := n.HTTPGet("://not-a-url")
	require.Error(t, err)
	var runErr *RuntimeError
	assert.ErrorAs(t, err, &runErr)
}
