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
	"crypto/tls"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

const (
	// DefaultReadHeaderTimeout bounds reading of request headers on every Instance. Not configurable.
	DefaultReadHeaderTimeout = 10 * time.Second

	// DefaultIdleTimeout bounds how long a keep-alive connection may sit idle on every Instance. Not configurable.
	DefaultIdleTimeout = 60 * time.Second
)

// Instance is one bound, running endpoint of a Server: the listener (TLS-wrapped when the endpoint is terminated),
// the http.Server accepting on it, and the identifying URL reported in logs and request contexts. Instances are
// created during server construction and only ever torn down via shutdown.
type Instance struct {
	// URL identifies the endpoint for operators: http://addr/, https://addr/, a Unix socket path, or
	// sd-listen[+tls]:<name>-<ordinal>/<base> for inherited listeners.
	URL string

	listener net.Listener
	server   *http.Server
	config   *ServerConfig
}

// newInstance assembles an Instance from a resolved bindPoint. This is pure construction: TLS wrapping of an open
// listener cannot fail here, handshake problems surface per connection once the instance is serving. The bindPoint's
// TLS configuration is applied exactly once, nothing upstream wraps the listener.
func newInstance(bp *bindPoint, handler http.Handler, config *ServerConfig, errorLog *log.Logger) *Instance {
	listener := bp.listener
	if bp.tlsConfig != nil {
		listener = tls.NewListener(listener, bp.tlsConfig)
	}

	instance := &Instance{
		URL:      bp.url,
		listener: listener,
		config:   config,
	}

	instance.server = &http.Server{
		ReadTimeout:       config.Options.ReadTimeout,
		WriteTimeout:      config.Options.WriteTimeout,
		MaxHeaderBytes:    config.Options.MaxHeaderBytes,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		IdleTimeout:       DefaultIdleTimeout,
		Handler:           handler,
		ErrorLog:          errorLog,
		BaseContext:       instance.newBaseContext,
	}

	return instance
}

// Addr returns the local address of the instance's listener.
func (instance *Instance) Addr() net.Addr {
	return instance.listener.Addr()
}

func (instance *Instance) newBaseContext(_ net.Listener) context.Context {
	endpointContext := &EndpointContext{
		Endpoint: instance.URL,
		Config:   instance.config,
	}

	return context.WithValue(context.Background(), EndpointContextKey, endpointContext)
}

// serve blocks accepting connections until the instance is shut down. Orderly shutdown is not an error.
func (instance *Instance) serve() error {
	err := instance.server.Serve(instance.listener)

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrapf(err, "error serving [%s]", instance.URL)
	}

	return nil
}

// shutdown gracefully stops this instance only: its own http.Server and its own listener, never a sibling's.
func (instance *Instance) shutdown(ctx context.Context) error {
	err := instance.server.Shutdown(ctx)

	//http.Server.Shutdown only closes listeners registered by Serve; an instance that never served still holds one
	_ = instance.listener.Close()

	return err
}
