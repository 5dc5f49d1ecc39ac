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
	"net"
	"net/http"
	"os"
)

// UnixSocketEnv is the environment variable consulted by ClientOptionsFromEnv for the Unix socket path a client
// should dial. Empty or unset leaves dialing untouched.
const UnixSocketEnv = "XLISTEN_UNIX_SOCKET"

// ClientOptions configures NewClient. UnixSocketPath, when non-empty, redirects connection establishment for every
// request to the given Unix domain socket. The request URL keeps its meaning: scheme, host, and path still drive TLS
// verification, virtual hosting, and routing on the server side; only the physical connection bypasses DNS and TCP.
type ClientOptions struct {
	UnixSocketPath string
}

// ClientOptionsFromEnv builds ClientOptions from the process environment.
func ClientOptionsFromEnv() ClientOptions {
	return ClientOptions{
		UnixSocketPath: os.Getenv(UnixSocketEnv),
	}
}

// NewClient creates an http.Client. With no Unix socket path configured the client is entirely default, its
// connection function unmodified. With a path configured, the transport is the default transport with only its dial
// function replaced: every connection goes to the fixed socket path regardless of the address the request URL implies.
// A dial failure surfaces to the caller as an ordinary connection error; there is no fallback to network dialing.
func NewClient(options ClientOptions) *http.Client {
	client := &http.Client{}

	if options.UnixSocketPath == "" {
		return client
	}

	socketPath := options.UnixSocketPath
	dialer := &net.Dialer{}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = func(ctx context.Context, _, _ string) (net.Conn, error) {
		return dialer.DialContext(ctx, "unix", socketPath)
	}

	client.Transport = transport

	return client
}
