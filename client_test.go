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
	"context"
	"io"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type hostEchoHandler struct{}

func (h *hostEchoHandler) Binding() string {
	return "host-echo"
}

func (h *hostEchoHandler) RootPath() string {
	return "/"
}

func (h *hostEchoHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	writer.WriteHeader(http.StatusOK)
	_, _ = writer.Write([]byte(request.Host))
}

func Test_NewClient(t *testing.T) {

	t.Run("an empty socket path leaves the connection function untouched", func(t *testing.T) {
		client := NewClient(ClientOptions{})

		require.Nil(t, client.Transport)
	})

	t.Run("options come from the environment", func(t *testing.T) {
		t.Setenv(UnixSocketEnv, "/run/test.sock")

		require.Equal(t, "/run/test.sock", ClientOptionsFromEnv().UnixSocketPath)
	})

	t.Run("a configured socket path redirects every request to the socket", func(t *testing.T) {
		socketPath := filepath.Join(t.TempDir(), "c.sock")

		config := &ServerConfig{
			Name:        "test",
			ListenSpecs: []string{"unix://" + socketPath},
			Source:      StaticListenerSource{},
		}

		server, err := NewServer(config, &hostEchoHandler{})
		require.NoError(t, err)
		require.Equal(t, socketPath, server.Instances[0].URL)

		server.Start()
		t.Cleanup(func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second*15)
			defer cancel()
			_ = server.Shutdown(ctx)
		})

		client := NewClient(ClientOptions{UnixSocketPath: socketPath})

		//the url host is never dialed, it only rides along for virtual hosting
		resp, err := client.Get("http://virtual.example/anything")

		req := require.New(t)
		req.NoError(err)
		defer func() { _ = resp.Body.Close() }()

		body, err := io.ReadAll(resp.Body)
		req.NoError(err)

		req.Equal(http.StatusOK, resp.StatusCode)
		req.Equal("virtual.example", string(body))
	})
}
