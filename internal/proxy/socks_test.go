package proxy

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSocksClient(t *testing.T) {
	c, err := NewSocksClient("127.0.0.1:1080")
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, c.Timeout)
	assert.IsType(t, &http.Transport{}, c.Transport)

	_, err = NewSocksClient("")
	assert.Error(t, err)
}

func TestSocksClientUnreachableProxy(t *testing.T) {
	// Port 1 on loopback refuses connections.
	c, err := NewSocksClient("127.0.0.1:1")
	require.NoError(t, err)

	_, err = c.Get("http://example.invalid/")
	assert.Error(t, err)
}
