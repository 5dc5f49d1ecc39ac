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

	"github.com/pkg/errors"
)

// bindPoint is one resolved listening endpoint: an open listener, the TLS configuration to terminate it with (nil for
// plaintext and Unix socket endpoints), and the identifying URL reported for it. The listener is not yet TLS-wrapped;
// wrapping happens exactly once, in newInstance.
type bindPoint struct {
	listener  net.Listener
	tlsConfig *tls.Config
	url       string
}

func (bp *bindPoint) close() {
	_ = bp.listener.Close()
}

// SpecKind classifies a listen spec string. See ParseListenSpec.
type SpecKind int

const (
	SpecTCP SpecKind = iota
	SpecTLS
	SpecUnix
)

// ParseListenSpec classifies a listen spec string and returns its kind plus the address with any scheme prefix
// stripped. Classification of a bare host:port depends on context (a lone bare spec is promoted to SpecTLS when the
// server has a TLS configuration), so bare addresses are reported as SpecTCP here.
func ParseListenSpec(spec string) (SpecKind, string) {
	switch {
	case strings.HasPrefix(spec, "unix://"):
		return SpecUnix, strings.TrimPrefix(spec, "unix://")
	case filepath.IsAbs(spec):
		return SpecUnix, spec
	case strings.HasPrefix(spec, "tls://"):
		return SpecTLS, strings.TrimPrefix(spec, "tls://")
	case strings.HasPrefix(spec, "http://"):
		return SpecTCP, strings.TrimPrefix(spec, "http://")
	default:
		return SpecTCP, spec
	}
}

// listenUnix binds a Unix domain socket at path, unlinking a stale socket file left behind by a previous process.
// Binding failure is fatal to resolution, same as any other listen spec.
func listenUnix(path string) (net.Listener, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "could not remove stale socket file [%s]", path)
	}

	return net.Listen("unix", path)
}
