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

import "context"

type ContextKey string

const (
	HandlerContextKey  = ContextKey("xlisten.Handler.ContextKey")
	EndpointContextKey = ContextKey("xlisten.Endpoint.ContextKey")
)

// EndpointContext is attached to the base context of every request served by an Instance. It identifies which of the
// server's endpoints accepted the connection.
type EndpointContext struct {
	// Endpoint is the identifying URL of the Instance that served the request.
	Endpoint string
	Config   *ServerConfig
}

// HandlerFromRequestContext is a utility function to retrieve the Handler the root handler deferred to, during
// downstream http.Handler processing, from the http.Request context.
func HandlerFromRequestContext(ctx context.Context) Handler {
	if val := ctx.Value(HandlerContextKey); val != nil {
		if handler, ok := val.(Handler); ok {
			return handler
		}
	}
	return nil
}

// EndpointFromRequestContext is a utility function to retrieve the *EndpointContext for the Instance that served a
// request. Useful for logging which of several bound endpoints traffic arrived on.
func EndpointFromRequestContext(ctx context.Context) *EndpointContext {
	if val := ctx.Value(EndpointContextKey); val != nil {
		if endpointContext, ok := val.(*EndpointContext); ok {
			return endpointContext
		}
	}
	return nil
}
