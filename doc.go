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

/*
Package xlisten provides facilities to stand up a single logical HTTP service on many listening endpoints at once,
acquiring those endpoints either from explicit listen addresses or from sockets inherited from a service manager.

Basics

A Server is built from a ServerConfig. The ServerConfig names the endpoints to bind as a list of listen specs:

	tls://host:port    - TCP, terminated with the server's TLS configuration
	unix://path        - Unix domain socket at path
	/absolute/path     - shorthand for unix:///absolute/path
	http://host:port   - plain TCP
	host:port          - plain TCP

If the process was handed pre-opened sockets by a service manager (systemd socket activation or anything speaking the
same protocol), those sockets win: every listen spec is ignored and one Instance is created per inherited socket
instead. Inherited sockets are addressed by the symbolic name the service manager assigned plus a zero-based ordinal
within that name. The acquisition mechanism sits behind the ListenerSource interface so tests and alternative service
managers can supply their own.

Each resolved endpoint becomes one Instance: the (possibly TLS-wrapped) listener, the http.Server serving it, and an
identifying URL that shows up in logs and on every request context (see EndpointFromRequestContext). All Instances of
one Server share a single root handler, built from the Handler implementations registered for the server, selected per
request by URL path prefix.

A lone listen spec with no scheme prefix is bound with TLS whenever the server has a TLS configuration; with two or
more listen specs only explicit tls:// prefixes are terminated. Unix socket endpoints are never terminated with TLS.

The package also provides NewClient, which builds an http.Client that can be pointed at a Unix domain socket while the
request URLs keep their ordinary scheme and host. This is for talking to servers bound via unix:// specs without
giving up virtual hosting or path routing.
*/
package xlisten
