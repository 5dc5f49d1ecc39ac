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
	"fmt"
	"net"
	"sort"
	"strings"

	"github.com/michaelquigley/pfxlog"
	"github.com/pkg/errors"
)

// resolveBindPoints produces the ordered set of endpoints a server will bind. Inherited listeners from the
// ListenerSource take absolute precedence: if the source supplies any, every listen spec is ignored and one bindPoint
// is produced per inherited listener. Otherwise each listen spec is opened in order. A source query failure or any
// listen failure aborts resolution; there is no fallback from one strategy to the other.
func resolveBindPoints(specs []string, tlsConfig *tls.Config, basePath string, source ListenerSource) ([]*bindPoint, error) {
	inherited, err := source.Listeners()

	if err != nil {
		return nil, errors.Wrap(err, "error querying inherited listeners")
	}

	//a named group may be present but empty, only actual listeners suppress the listen specs
	inheritedCount := 0
	for _, listeners := range inherited {
		inheritedCount += len(listeners)
	}

	if inheritedCount > 0 {
		return resolveInherited(inherited, tlsConfig, basePath), nil
	}

	return resolveExplicit(specs, tlsConfig, basePath)
}

// resolveInherited wraps listeners handed down by a service manager. The mapping is iterated in sorted name order so
// resolution is stable run to run; within a name the manager's ordering is preserved and becomes the ordinal in the
// identifying URL. The server's TLS configuration, when present, applies uniformly to every inherited listener. There
// is no per-listener override.
func resolveInherited(inherited map[string][]net.Listener, tlsConfig *tls.Config, basePath string) []*bindPoint {
	names := make([]string, 0, len(inherited))
	for name := range inherited {
		names = append(names, name)
	}
	sort.Strings(names)

	var bindPoints []*bindPoint

	for _, name := range names {
		for i, listener := range inherited[name] {
			scheme := "sd-listen"
			if tlsConfig != nil {
				scheme = "sd-listen+tls"
			}

			bindPoints = append(bindPoints, &bindPoint{
				listener:  listener,
				tlsConfig: tlsConfig,
				url:       fmt.Sprintf("%s:%s-%d/%s", scheme, name, i, strings.TrimPrefix(basePath, "/")),
			})

			pfxlog.Logger().Debugf("resolved inherited listener [%s-%d] on %v", name, i, listener.Addr())
		}
	}

	return bindPoints
}

// resolveExplicit opens one listener per listen spec. Binding is all or nothing: when any spec fails to bind, every
// listener already opened in this pass is closed before the error is returned.
//
// A bare host:port is normally plaintext, but when it is the only spec and a TLS configuration is present it is
// treated as if it carried a tls:// prefix. With two or more specs only explicit tls:// prefixes are terminated,
// TLS configuration or not.
func resolveExplicit(specs []string, tlsConfig *tls.Config, basePath string) ([]*bindPoint, error) {
	var bindPoints []*bindPoint

	closeAll := func() {
		for _, bp := range bindPoints {
			bp.close()
		}
	}

	for _, spec := range specs {
		kind, addr := ParseListenSpec(spec)

		if kind == SpecTCP && len(specs) == 1 && tlsConfig != nil {
			kind = SpecTLS
		}

		switch kind {
		case SpecUnix:
			listener, err := listenUnix(addr)
			if err != nil {
				closeAll()
				return nil, errors.Wrapf(err, "error listening on [%s]", spec)
			}

			bindPoints = append(bindPoints, &bindPoint{
				listener: listener,
				url:      addr,
			})

		case SpecTLS:
			if tlsConfig == nil {
				closeAll()
				return nil, errors.Errorf("listen spec [%s] requires a TLS configuration and none was provided", spec)
			}

			listener, err := net.Listen("tcp", addr)
			if err != nil {
				closeAll()
				return nil, errors.Wrapf(err, "error listening on [%s]", spec)
			}

			bindPoints = append(bindPoints, &bindPoint{
				listener:  listener,
				tlsConfig: tlsConfig,
				url:       fmt.Sprintf("https://%s%s/", listener.Addr(), basePath),
			})

		default:
			listener, err := net.Listen("tcp", addr)
			if err != nil {
				closeAll()
				return nil, errors.Wrapf(err, "error listening on [%s]", spec)
			}

			bindPoints = append(bindPoints, &bindPoint{
				listener: listener,
				url:      fmt.Sprintf("http://%s%s/", listener.Addr(), basePath),
			})
		}
	}

	return bindPoints, nil
}
