/*
	Copyright NetFoundry, Inc.

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
	"fmt"

	"github.com/sirupsen/logrus"
)

// Registry describes a registry of binding to Handler registrations
type Registry interface {
	Add(handler Handler) error
	Get(binding string) Handler
	Handlers() []Handler
}

// RegistryMap is a basic Registry implementation backed by a simple mapping of binding (string) to Handler instances.
// Insertion order is preserved, it determines mounting order on a Server.
type RegistryMap struct {
	handlers map[string]Handler
	ordered  []Handler
}

// NewRegistryMap creates a new RegistryMap
func NewRegistryMap() *RegistryMap {
	return &RegistryMap{
		handlers: map[string]Handler{},
	}
}

// Add adds a handler to the registry. Errors if a previous handler with the same binding is registered.
func (registry *RegistryMap) Add(handler Handler) error {
	logrus.Debugf("adding handler with binding: %v", handler.Binding())
	if _, ok := registry.handlers[handler.Binding()]; ok {
		return fmt.Errorf("binding [%s] already registered", handler.Binding())
	}

	registry.handlers[handler.Binding()] = handler
	registry.ordered = append(registry.ordered, handler)

	return nil
}

// Get retrieves a handler based on a binding or nil if no handler for the binding is registered
func (registry *RegistryMap) Get(binding string) Handler {
	return registry.handlers[binding]
}

// Handlers returns every registered handler in registration order.
func (registry *RegistryMap) Handlers() []Handler {
	return registry.ordered
}
