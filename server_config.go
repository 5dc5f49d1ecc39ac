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
	"strings"
	"time"

	"github.com/michaelquigley/pfxlog"
	"github.com/openziti/identity"
	"github.com/pkg/errors"
)

const (
	MinTLSVersion = tls.VersionTLS12
	MaxTLSVersion = tls.VersionTLS13

	DefaultWriteTimeout   = time.Second * 10
	DefaultReadTimeout    = time.Second * 5
	DefaultMaxHeaderBytes = 4096

	DefaultListenSpec = "127.0.0.1:8080"
)

// TlsVersionMap is a map of configuration strings to TLS version identifiers
var TlsVersionMap = map[string]int{
	"TLS1.0": tls.VersionTLS10,
	"TLS1.1": tls.VersionTLS11,
	"TLS1.2": tls.VersionTLS12,
	"TLS1.3": tls.VersionTLS13,
}

// ReverseTlsVersionMap is a map of TLS version identifiers to configuration strings
var ReverseTlsVersionMap = map[int]string{
	tls.VersionTLS10: "TLS1.0",
	tls.VersionTLS11: "TLS1.1",
	tls.VersionTLS12: "TLS1.2",
	tls.VersionTLS13: "TLS1.3",
}

// ServerConfig is the configuration used to create a Server. ListenSpecs name the endpoints to bind; see
// ParseListenSpec for the accepted forms. When the ListenerSource supplies inherited listeners the specs are ignored
// entirely. Identity, when present, supplies the single TLS configuration shared read-only across every Instance of
// the server.
type ServerConfig struct {
	Name        string
	ListenSpecs []string
	BasePath    string
	Options     Options

	Identity identity.Identity

	// Source supplies inherited listeners. Left nil, systemd socket activation is queried.
	Source ListenerSource

	tlsConfig *tls.Config
}

// Parse parses a configuration map to set all relevant ServerConfig values.
func (config *ServerConfig) Parse(configMap map[interface{}]interface{}) error {
	//parse name, required, string
	if nameInterface, ok := configMap["name"]; ok {
		if name, ok := nameInterface.(string); ok {
			config.Name = name
		} else {
			return errors.New("name is required to be a string")
		}
	} else {
		return errors.New("name is required")
	}

	//parse listen specs, array of strings
	if listenInterface, ok := configMap["listen"]; ok {
		if listenArrayInterfaces, ok := listenInterface.([]interface{}); ok {
			for i, specInterface := range listenArrayInterfaces {
				if spec, ok := specInterface.(string); ok {
					config.ListenSpecs = append(config.ListenSpecs, spec)
				} else {
					return fmt.Errorf("error parsing listen spec at index [%d]: not a string", i)
				}
			}
		} else {
			return errors.New("listen section must be an array")
		}
	}

	//parse basePath, optional, string
	if basePathInterface, ok := configMap["basePath"]; ok {
		if basePath, ok := basePathInterface.(string); ok {
			config.BasePath = normalizeBasePath(basePath)
		} else {
			return errors.New("could not use value for basePath, not a string")
		}
	}

	//parse identity, optional
	if identityInterface, ok := configMap["identity"]; ok {
		if identityMap, ok := identityInterface.(map[interface{}]interface{}); ok {
			identityConfig, err := parseIdentityConfig(identityMap, "identity")
			if err != nil {
				return fmt.Errorf("error parsing identity section: %v", err)
			}

			config.Identity, err = identity.LoadIdentity(*identityConfig)
			if err != nil {
				return fmt.Errorf("error loading identity: %v", err)
			}

			if err := config.Identity.WatchFiles(); err != nil {
				pfxlog.Logger().Warnf("could not enable file watching on server identity: %v", err)
			}
		} else {
			return errors.New("identity section must be a map if defined")
		}
	} //no else, optional, server is plaintext without one

	//parse options
	config.Options = Options{}
	config.Options.Default()

	if optionsInterface, ok := configMap["options"]; ok {
		if optionMap, ok := optionsInterface.(map[interface{}]interface{}); ok {
			if err := config.Options.Parse(optionMap); err != nil {
				return fmt.Errorf("error parsing options section: %v", err)
			}
		} //no else, options are optional
	}

	return nil
}

// Validate all ServerConfig values
func (config *ServerConfig) Validate() error {
	if config.Name == "" {
		return errors.New("name must not be empty")
	}

	if len(config.ListenSpecs) == 0 {
		config.ListenSpecs = []string{DefaultListenSpec}
	}

	//Parse normalizes too, but a ServerConfig built in code skips Parse
	config.BasePath = normalizeBasePath(config.BasePath)

	for i, spec := range config.ListenSpecs {
		if strings.TrimSpace(spec) == "" {
			return fmt.Errorf("invalid listen spec at index [%d]: must not be empty", i)
		}
	}

	if err := config.Options.TlsVersionOptions.Validate(); err != nil {
		return fmt.Errorf("invalid TLS version option: %v", err)
	}

	if err := config.Options.TimeoutOptions.Validate(); err != nil {
		return fmt.Errorf("invalid timeout option: %v", err)
	}

	return nil
}

// SetTLSConfig supplies the shared TLS configuration directly, for callers that do not use an identity section. The
// configuration is treated as immutable once the server is built.
func (config *ServerConfig) SetTLSConfig(tlsConfig *tls.Config) {
	config.tlsConfig = tlsConfig
}

// TLSConfig returns the single TLS configuration shared across all of the server's Instances, or nil when the server
// has neither an identity nor an explicitly supplied configuration.
func (config *ServerConfig) TLSConfig() *tls.Config {
	if config.tlsConfig != nil {
		return config.tlsConfig
	}

	if config.Identity == nil {
		return nil
	}

	tlsConfig := config.Identity.ServerTLSConfig()
	tlsConfig.ClientAuth = tls.RequestClientCert
	tlsConfig.MinVersion = uint16(config.Options.MinTLSVersion)
	tlsConfig.MaxVersion = uint16(config.Options.MaxTLSVersion)

	// make sure to listen to the expected protocols
	tlsConfig.NextProtos = append(tlsConfig.NextProtos, "h2", "http/1.1")

	config.tlsConfig = tlsConfig

	return config.tlsConfig
}

func (config *ServerConfig) listenerSource() ListenerSource {
	if config.Source != nil {
		return config.Source
	}

	return SystemdListenerSource{}
}

func normalizeBasePath(basePath string) string {
	basePath = strings.TrimSuffix(basePath, "/")

	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	return basePath
}

// Options is the shared options for a ServerConfig.
type Options struct {
	TimeoutOptions
	TlsVersionOptions
}

// Default provides defaults for all necessary values
func (options *Options) Default() {
	options.TimeoutOptions.Default()
	options.TlsVersionOptions.Default()
}

// Parse parses a configuration map
func (options *Options) Parse(optionsMap map[interface{}]interface{}) error {
	if err := options.TimeoutOptions.Parse(optionsMap); err != nil {
		return fmt.Errorf("error parsing options: %v", err)
	}

	if err := options.TlsVersionOptions.Parse(optionsMap); err != nil {
		return fmt.Errorf("error parsing options: %v", err)
	}

	return nil
}

// TimeoutOptions represents http timeout and size options. Header read and idle timeouts are fixed per instance (see
// DefaultReadHeaderTimeout, DefaultIdleTimeout) and are deliberately absent here.
type TimeoutOptions struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxHeaderBytes int
}

// Default defaults all HTTP timeout options
func (timeoutOptions *TimeoutOptions) Default() {
	timeoutOptions.WriteTimeout = DefaultWriteTimeout
	timeoutOptions.ReadTimeout = DefaultReadTimeout
	timeoutOptions.MaxHeaderBytes = DefaultMaxHeaderBytes
}

// Parse parses a config map
func (timeoutOptions *TimeoutOptions) Parse(config map[interface{}]interface{}) error {
	if interfaceVal, ok := config["readTimeout"]; ok {
		if readTimeoutStr, ok := interfaceVal.(string); ok {
			if readTimeout, err := time.ParseDuration(readTimeoutStr); err == nil {
				timeoutOptions.ReadTimeout = readTimeout
			} else {
				return fmt.Errorf("could not parse readTimeout %s as a duration (e.g. 1m): %v", readTimeoutStr, err)
			}
		} else {
			return errors.New("could not use value for readTimeout, not a string")
		}
	}

	if interfaceVal, ok := config["writeTimeout"]; ok {
		if writeTimeoutStr, ok := interfaceVal.(string); ok {
			if writeTimeout, err := time.ParseDuration(writeTimeoutStr); err == nil {
				timeoutOptions.WriteTimeout = writeTimeout
			} else {
				return fmt.Errorf("could not parse writeTimeout %s as a duration (e.g. 1m): %v", writeTimeoutStr, err)
			}
		} else {
			return errors.New("could not use value for writeTimeout, not a string")
		}
	}

	if interfaceVal, ok := config["maxHeaderBytes"]; ok {
		if maxHeaderBytes, ok := interfaceVal.(int); ok {
			timeoutOptions.MaxHeaderBytes = maxHeaderBytes
		} else {
			return errors.New("could not use value for maxHeaderBytes, not an integer")
		}
	}

	return nil
}

// Validate validates all settings and return nil or an error
func (timeoutOptions *TimeoutOptions) Validate() error {
	if timeoutOptions.WriteTimeout <= 0 {
		return fmt.Errorf("value [%s] for writeTimeout too low, must be positive", timeoutOptions.WriteTimeout.String())
	}

	if timeoutOptions.ReadTimeout <= 0 {
		return fmt.Errorf("value [%s] for readTimeout too low, must be positive", timeoutOptions.ReadTimeout.String())
	}

	if timeoutOptions.MaxHeaderBytes <= 0 {
		return fmt.Errorf("value [%d] for maxHeaderBytes too low, must be positive", timeoutOptions.MaxHeaderBytes)
	}

	return nil
}

// TlsVersionOptions represents TLS version options
type TlsVersionOptions struct {
	MinTLSVersion    int
	minTLSVersionStr string

	MaxTLSVersion    int
	maxTLSVersionStr string
}

// Default defaults TLS versions
func (tlsVersionOptions *TlsVersionOptions) Default() {
	tlsVersionOptions.MinTLSVersion = MinTLSVersion
	tlsVersionOptions.MaxTLSVersion = MaxTLSVersion
}

// Parse parses a config map
func (tlsVersionOptions *TlsVersionOptions) Parse(config map[interface{}]interface{}) error {
	if interfaceVal, ok := config["minTLSVersion"]; ok {
		var ok bool
		if tlsVersionOptions.minTLSVersionStr, ok = interfaceVal.(string); ok {
			if minTLSVersion, ok := TlsVersionMap[tlsVersionOptions.minTLSVersionStr]; ok {
				tlsVersionOptions.MinTLSVersion = minTLSVersion
			} else {
				return fmt.Errorf("could not use value for minTLSVersion, invalid value [%s]", tlsVersionOptions.minTLSVersionStr)
			}
		} else {
			return errors.New("could not use value for minTLSVersion, not an string")
		}
	}

	if interfaceVal, ok := config["maxTLSVersion"]; ok {
		var ok bool
		if tlsVersionOptions.maxTLSVersionStr, ok = interfaceVal.(string); ok {
			if maxTLSVersion, ok := TlsVersionMap[tlsVersionOptions.maxTLSVersionStr]; ok {
				tlsVersionOptions.MaxTLSVersion = maxTLSVersion
			} else {
				return fmt.Errorf("could not use value for maxTLSVersion, invalid value [%s]", tlsVersionOptions.maxTLSVersionStr)
			}
		} else {
			return errors.New("could not use value for maxTLSVersion, not an string")
		}
	}

	return nil
}

// Validate validates the configuration values and returns nil or error
func (tlsVersionOptions *TlsVersionOptions) Validate() error {
	if tlsVersionOptions.MinTLSVersion > tlsVersionOptions.MaxTLSVersion {
		return fmt.Errorf("minTLSVersion [%s] must be less than or equal to maxTLSVersion [%s]", tlsVersionOptions.minTLSVersionStr, tlsVersionOptions.maxTLSVersionStr)
	}

	return nil
}

func parseIdentityConfig(identityMap map[interface{}]interface{}, pathContext string) (*identity.Config, error) {
	idConfig, err := identity.NewConfigFromMap(identityMap)

	if err != nil {
		return nil, fmt.Errorf("error parsing identity: %v", err)
	}

	if err = idConfig.ValidateWithPathContext(pathContext); err != nil {
		return nil, fmt.Errorf("error parsing identity: %v", err)
	}

	return idConfig, nil
}
