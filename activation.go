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
	"net"

	"github.com/coreos/go-systemd/v22/activation"
)

// ListenerSource supplies zero or more pre-opened, named listener groups handed to the process by a service manager.
// The returned mapping is symbolic name to the listeners sharing that name, in the order the manager passed them; the
// ordinal of a listener is its index in that slice. An empty mapping means no listeners were provided and is not an
// error. The process owns the underlying sockets; a Server wraps them but the listeners remain responsible for
// closing their own file descriptors.
type ListenerSource interface {
	Listeners() (map[string][]net.Listener, error)
}

// SystemdListenerSource acquires listeners via the systemd socket activation protocol (LISTEN_FDS/LISTEN_FDNAMES).
// It is the ListenerSource used when a ServerConfig does not supply one. Anything that speaks the same descriptor
// passing convention works, systemd itself is not required.
type SystemdListenerSource struct{}

var _ ListenerSource = SystemdListenerSource{}

func (SystemdListenerSource) Listeners() (map[string][]net.Listener, error) {
	return activation.ListenersWithNames()
}

// StaticListenerSource is a ListenerSource backed by a fixed mapping. Useful for handing a Server listeners obtained
// by some other means, and for tests.
type StaticListenerSource map[string][]net.Listener

var _ ListenerSource = StaticListenerSource{}

func (s StaticListenerSource) Listeners() (map[string][]net.Listener, error) {
	return s, nil
}
