package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestFilesystem_RevokedAfterCallbackReturns(t *testing.T) {
	root := t.TempDir()
	surface := NewSurface(nil, false, nil)

	var leaked *FileSystem
	_, err := RequestFilesystem(surface, root, nil, func(fs *FileSystem) (string, error) {
		leaked = fs
		return "ok", nil
	})
	require.NoError(t, err)

	_, err = leaked.Access("x.txt")
	require.Error(t, err)
	var secErr *SecurityError
	assert.ErrorAs(t, err, &secErr)
}

func TestRequestExecPermission_RevokedAfterCallbackReturns(t *testing.T) {
	surface := NewSurface(nil, false, nil)

	var leaked *ProcessPermission
	_, err := RequestExecPermission(surface, []string{"echo"}, func(p *ProcessPermission) (string, error) {
		leaked = p
		return "ok", nil
	})
	require.NoError(t, err)

	_, err = leaked.Exec("echo", []string{"hi"}, "", 0)
	require.Error(t, err)
}

func TestRequestNetwork_RevokedAfterCallbackReturns(t *testing.T) {
	surface := NewSurface(nil, false, nil)

	var leaked *Network
	_, err := RequestNetwork(surface, []string{"example.com"}, func(n *Network) (string, error) {
		leaked = n
		return "ok", nil
	})
	require.NoError(t, err)

	_, err = leaked.HTTPGet("https://example.com")
	require.Error(t, err)
}

func TestClassify_FactoryProducesOpaqueValue(t *testing.T) {
	surface := NewSurface(nil, false, nil)
	c := Classify(surface, "secret")
	assert.Equal(t, "Classified(***)", c.String())
}
