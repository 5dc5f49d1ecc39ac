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
	"fmt"
	"net/http"
	"strings"

	"github.com/michaelquigley/pfxlog"
	"github.com/pkg/errors"
)

// Handler is a http.Handler with enough metadata to be mounted on a Server: a binding that uniquely names it and the
// URL path prefix it claims. Handlers can be as complex or as simple as necessary - using other libraries or only the
// standard http Go capabilities.
type Handler interface {
	http.Handler
	Binding() string
	RootPath() string
}

// DefaultHandler is a Handler that can volunteer to receive requests no other Handler claims.
type DefaultHandler interface {
	Handler
	IsDefault() bool
}

// buildRootHandler produces the single http.Handler shared by every Instance of a Server. Requests are forwarded to
// the first Handler whose RootPath prefixes the request path; the selected Handler is stored on the request context
// under HandlerContextKey for downstream logging. Unmatched requests go to the default Handler (see getDefault).
func buildRootHandler(handlers []Handler) (http.Handler, error) {
	defaultHandler, err := getDefault(handlers)

	if err != nil {
		return nil, err
	}

	seenPaths := map[string]Handler{}

	for _, handler := range handlers {
		if existing, ok := seenPaths[handler.RootPath()]; ok {
			return nil, fmt.Errorf("duplicate root path [%s] detected for both bindings [%s] and [%s]", handler.RootPath(), handler.Binding(), existing.Binding())
		}
		seenPaths[handler.RootPath()] = handler
	}

	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		for _, handler := range handlers {
			if strings.HasPrefix(request.URL.Path, handler.RootPath()) {
				//store this Handler on the request context, useful for logging by downstream http handlers
				ctx := context.WithValue(request.Context(), HandlerContextKey, handler)
				handler.ServeHTTP(writer, request.WithContext(ctx))
				return
			}
		}

		if defaultHandler != nil {
			ctx := context.WithValue(request.Context(), HandlerContextKey, defaultHandler)
			defaultHandler.ServeHTTP(writer, request.WithContext(ctx))
			return
		}

		writer.WriteHeader(http.StatusNotFound)
		_, _ = writer.Write([]byte{})
	}), nil
}

// getDefault determines from a slice of Handler which will act as the default handler should a request not match any
// handler. The default is determined in one of two ways:
// 1) a handler declares itself the default
// 2) no handler declares itself the default
//
// If a handler declares itself the default, only one is allowed to do so and if another
// handler does so, it will generate an error. If no handler declares itself, the
// last handler will be used.
func getDefault(handlers []Handler) (Handler, error) {
	var defaults []Handler

	if len(handlers) == 0 {
		return nil, errors.New("no handlers provided")
	}

	for _, handler := range handlers {
		if curHandler, ok := handler.(DefaultHandler); ok {
			if curHandler.IsDefault() {
				defaults = append(defaults, curHandler)
			}
		}
	}

	if len(defaults) == 0 {
		lastHandler := handlers[len(handlers)-1]
		pfxlog.Logger().Warnf("no default handlers were found, using the last handler [Binding: %s, Type: %T] as the default", lastHandler.Binding(), lastHandler)
		return lastHandler, nil
	}

	if len(defaults) > 1 {
		var names []string
		for _, handler := range defaults {
			names = append(names, fmt.Sprintf("[Binding: %s, Type: %T]", handler.Binding(), handler))
		}

		return nil, errors.New("too many default handlers found, ensure that only one handler is marked as the default: " + strings.Join(names, ","))
	}

	return defaults[0], nil
}
