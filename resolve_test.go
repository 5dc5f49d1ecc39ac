/*
Copyright NetFoundry Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

https://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package xlisten

import (
	"crypto/tls"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// shortTempDir returns a temp dir with a short path: t.TempDir() embeds the
// subtest name, which can push unix socket paths past the sun_path limit.
func shortTempDir(t *testing.T) string {
	dir, err := os.MkdirTemp("", "x")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return dir
}

func newTestListeners(t *testing.T, count int) []net.Listener {
	var listeners []net.Listener

	for i := 0; i < count; i++ {
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		t.Cleanup(func() { _ = listener.Close() })
		listeners = append(listeners, listener)
	}

	return listeners
}

func closeBindPoints(bindPoints []*bindPoint) {
	for _, bp := range bindPoints {
		bp.close()
	}
}

func Test_resolveBindPoints(t *testing.T) {

	t.Run("inherited listeners ignore every listen spec and preserve name and ordinal order", func(t *testing.T) {
		listeners := newTestListeners(t, 3)

		source := StaticListenerSource{
			"web":   {listeners[0], listeners[1]},
			"admin": {listeners[2]},
		}

		bindPoints, err := resolveBindPoints([]string{"127.0.0.1:0", "unix:///tmp/ignored.sock"}, nil, "", source)

		req := require.New(t)
		req.NoError(err)
		req.Len(bindPoints, 3)

		req.Equal("sd-listen:admin-0/", bindPoints[0].url)
		req.Equal("sd-listen:web-0/", bindPoints[1].url)
		req.Equal("sd-listen:web-1/", bindPoints[2].url)

		req.Equal(listeners[2], bindPoints[0].listener)
		req.Equal(listeners[0], bindPoints[1].listener)
		req.Equal(listeners[1], bindPoints[2].listener)
	})

	t.Run("a TLS configuration applies uniformly to every inherited listener", func(t *testing.T) {
		listeners := newTestListeners(t, 2)

		source := StaticListenerSource{
			"web": {listeners[0], listeners[1]},
		}

		tlsConfig := &tls.Config{}
		bindPoints, err := resolveBindPoints(nil, tlsConfig, "/api", source)

		req := require.New(t)
		req.NoError(err)
		req.Len(bindPoints, 2)

		req.Equal("sd-listen+tls:web-0/api", bindPoints[0].url)
		req.Equal("sd-listen+tls:web-1/api", bindPoints[1].url)

		for _, bp := range bindPoints {
			req.Equal(tlsConfig, bp.tlsConfig)
		}
	})

	t.Run("a named group with no listeners falls through to the listen specs", func(t *testing.T) {
		source := StaticListenerSource{
			"web": {},
		}

		bindPoints, err := resolveBindPoints([]string{"127.0.0.1:0"}, nil, "", source)

		req := require.New(t)
		req.NoError(err)
		req.Len(bindPoints, 1)
		req.True(strings.HasPrefix(bindPoints[0].url, "http://"))

		closeBindPoints(bindPoints)
	})

	t.Run("an empty source falls through to the listen specs", func(t *testing.T) {
		bindPoints, err := resolveBindPoints([]string{"127.0.0.1:0"}, nil, "", StaticListenerSource{})

		req := require.New(t)
		req.NoError(err)
		req.Len(bindPoints, 1)
		req.True(strings.HasPrefix(bindPoints[0].url, "http://"))

		closeBindPoints(bindPoints)
	})
}

func Test_resolveExplicit(t *testing.T) {

	t.Run("a single bare address with a TLS configuration is terminated", func(t *testing.T) {
		bindPoints, err := resolveExplicit([]string{"127.0.0.1:0"}, &tls.Config{}, "")

		req := require.New(t)
		req.NoError(err)
		req.Len(bindPoints, 1)
		req.True(strings.HasPrefix(bindPoints[0].url, "https://"))
		req.NotNil(bindPoints[0].tlsConfig)

		closeBindPoints(bindPoints)
	})

	t.Run("multiple bare addresses stay plaintext under a TLS configuration", func(t *testing.T) {
		bindPoints, err := resolveExplicit([]string{"127.0.0.1:0", "127.0.0.1:0"}, &tls.Config{}, "")

		req := require.New(t)
		req.NoError(err)
		req.Len(bindPoints, 2)

		for _, bp := range bindPoints {
			req.True(strings.HasPrefix(bp.url, "http://"), "expected plaintext url, got [%s]", bp.url)
			req.Nil(bp.tlsConfig)
		}

		closeBindPoints(bindPoints)
	})

	t.Run("explicit tls prefixes are terminated among multiple specs", func(t *testing.T) {
		bindPoints, err := resolveExplicit([]string{"tls://127.0.0.1:0", "127.0.0.1:0"}, &tls.Config{}, "")

		req := require.New(t)
		req.NoError(err)
		req.Len(bindPoints, 2)

		req.True(strings.HasPrefix(bindPoints[0].url, "https://"))
		req.NotNil(bindPoints[0].tlsConfig)

		req.True(strings.HasPrefix(bindPoints[1].url, "http://"))
		req.Nil(bindPoints[1].tlsConfig)

		closeBindPoints(bindPoints)
	})

	t.Run("a tls prefix without a TLS configuration is an error", func(t *testing.T) {
		bindPoints, err := resolveExplicit([]string{"tls://127.0.0.1:0"}, nil, "")

		req := require.New(t)
		req.Error(err)
		req.Nil(bindPoints)
	})

	t.Run("unix specs are never terminated regardless of TLS configuration", func(t *testing.T) {
		socketPath := filepath.Join(shortTempDir(t), "test.sock")

		bindPoints, err := resolveExplicit([]string{"unix://" + socketPath}, &tls.Config{}, "")

		req := require.New(t)
		req.NoError(err)
		req.Len(bindPoints, 1)
		req.Equal(socketPath, bindPoints[0].url)
		req.Nil(bindPoints[0].tlsConfig)

		closeBindPoints(bindPoints)
	})

	t.Run("an absolute path is an implicit unix spec", func(t *testing.T) {
		socketPath := filepath.Join(t.TempDir(), "implicit.sock")

		bindPoints, err := resolveExplicit([]string{socketPath}, nil, "")

		req := require.New(t)
		req.NoError(err)
		req.Len(bindPoints, 1)
		req.Equal(socketPath, bindPoints[0].url)

		closeBindPoints(bindPoints)
	})

	t.Run("every spec produces a distinct bound address", func(t *testing.T) {
		specs := []string{"127.0.0.1:0", "127.0.0.1:0", "127.0.0.1:0"}

		bindPoints, err := resolveExplicit(specs, nil, "")

		req := require.New(t)
		req.NoError(err)
		req.Len(bindPoints, len(specs))

		seen := map[string]struct{}{}
		for _, bp := range bindPoints {
			addr := bp.listener.Addr().String()
			_, dup := seen[addr]
			req.False(dup, "duplicate bound address [%s]", addr)
			seen[addr] = struct{}{}
		}

		closeBindPoints(bindPoints)
	})

	t.Run("a failure mid-pass releases every listener already opened", func(t *testing.T) {
		req := require.New(t)

		//occupy a port so the third spec cannot bind
		blocker, err := net.Listen("tcp", "127.0.0.1:0")
		req.NoError(err)
		defer func() { _ = blocker.Close() }()

		busyAddr := blocker.Addr().String()

		tmpDir := shortTempDir(t)
		firstSocket := filepath.Join(tmpDir, "first.sock")
		secondSocket := filepath.Join(tmpDir, "second.sock")

		specs := []string{
			"unix://" + firstSocket,
			"unix://" + secondSocket,
			busyAddr,
			"127.0.0.1:0",
		}

		bindPoints, err := resolveExplicit(specs, nil, "")

		req.Error(err)
		req.Contains(err.Error(), busyAddr)
		req.Nil(bindPoints)

		//the first two listeners were released, their paths can be bound again
		for _, socketPath := range []string{firstSocket, secondSocket} {
			listener, err := net.Listen("unix", socketPath)
			req.NoError(err, "socket path [%s] was not released", socketPath)
			_ = listener.Close()
		}
	})
}
