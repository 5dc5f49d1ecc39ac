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
	"log"
	"net/http"
	"sync"

	"github.com/michaelquigley/pfxlog"
	"github.com/openziti/foundation/v2/debugz"
	"github.com/openziti/xlisten/middleware"
)

// Server owns the ordered set of Instances serving one logical HTTP service. All Instances share the root handler and
// the server's TLS configuration; each Instance has its own listener and http.Server and is started and shut down
// independently of its siblings.
type Server struct {
	Instances []*Instance

	// OnHandlerPanic, when set, replaces the default log-and-continue behavior for panics escaping a handler.
	OnHandlerPanic func(writer http.ResponseWriter, request *http.Request, panicVal interface{})

	Handle       http.Handler
	ServerConfig *ServerConfig

	logWriter *io.PipeWriter
}

// NewServer creates a Server from a ServerConfig and the Handlers it will host. Endpoint resolution runs here, once:
// inherited listeners from the config's ListenerSource, or failing that the config's listen specs, become the
// server's Instances. Any listener that cannot be acquired fails construction; listeners already opened for earlier
// specs are released before the error is returned.
func NewServer(config *ServerConfig, handlers ...Handler) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	rootHandler, err := buildRootHandler(handlers)
	if err != nil {
		return nil, err
	}

	logWriter := pfxlog.Logger().Writer()

	server := &Server{
		ServerConfig: config,
		logWriter:    logWriter,
	}

	server.Handle = server.wrapHandler(rootHandler)

	bindPoints, err := resolveBindPoints(config.ListenSpecs, config.TLSConfig(), config.BasePath, config.listenerSource())
	if err != nil {
		_ = logWriter.Close()
		return nil, err
	}

	errorLog := log.New(logWriter, "", 0)

	for _, bp := range bindPoints {
		server.Instances = append(server.Instances, newInstance(bp, server.Handle, config, errorLog))
	}

	return server, nil
}

// NewServerFromRegistry creates a Server hosting every Handler in the registry, in registration order.
func NewServerFromRegistry(config *ServerConfig, registry Registry) (*Server, error) {
	return NewServer(config, registry.Handlers()...)
}

// URLs returns the identifying URL of each Instance in resolution order.
func (server *Server) URLs() []string {
	var urls []string
	for _, instance := range server.Instances {
		urls = append(urls, instance.URL)
	}
	return urls
}

func (server *Server) wrapHandler(handler http.Handler) http.Handler {
	//innermost/bottom -> outermost/top
	handler = server.wrapPanicRecovery(handler)
	handler = middleware.NewCompressionHandler(handler)
	return handler
}

// wrapPanicRecovery wraps a http.Handler with another http.Handler that provides recovery.
func (server *Server) wrapPanicRecovery(handler http.Handler) http.Handler {
	wrappedHandler := http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		defer func() {
			if panicVal := recover(); panicVal != nil {
				if server.OnHandlerPanic != nil {
					server.OnHandlerPanic(writer, request, panicVal)
					return
				}
				pfxlog.Logger().Errorf("panic caught by server handler: %v\n%v", panicVal, debugz.GenerateLocalStack())
			}
		}()

		handler.ServeHTTP(writer, request)
	})

	return wrappedHandler
}

// Start begins serving on every Instance. Each Instance accepts on its own goroutine; serve failures after startup
// are logged, they do not stop sibling Instances.
func (server *Server) Start() {
	logger := pfxlog.Logger()

	for _, instance := range server.Instances {
		localInstance := instance
		logger.Infof("starting server [%s] to listen and serve on %s", server.ServerConfig.Name, localInstance.URL)

		go func() {
			if err := localInstance.serve(); err != nil {
				logger.Errorf("error serving instance [%s]: %v", localInstance.URL, err)
			}
		}()
	}
}

// Shutdown stops every Instance. Instances shut down concurrently and independently, each closing only its own
// listener and http.Server. The first error encountered, if any, is returned once all Instances have stopped.
func (server *Server) Shutdown(ctx context.Context) error {
	_ = server.logWriter.Close()

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for _, instance := range server.Instances {
		localInstance := instance
		wg.Add(1)

		go func() {
			defer wg.Done()

			if err := localInstance.shutdown(ctx); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				} else {
					pfxlog.Logger().Errorf("error shutting down instance [%s]: %v", localInstance.URL, err)
				}
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	return firstErr
}
