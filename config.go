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
	"fmt"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// LoadConfigMap parses yaml configuration bytes into the map-of-interfaces form the Parse methods consume.
func LoadConfigMap(data []byte) (map[interface{}]interface{}, error) {
	raw := map[string]interface{}{}

	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "error parsing configuration")
	}

	return asConfigMap(raw), nil
}

// LoadServerConfig parses the named section of a yaml configuration document into a ServerConfig.
func LoadServerConfig(data []byte, section string) (*ServerConfig, error) {
	configMap, err := LoadConfigMap(data)

	if err != nil {
		return nil, err
	}

	sectionVal, ok := configMap[section]
	if !ok {
		return nil, errors.Errorf("section [%s] must be defined", section)
	}

	sectionMap, ok := sectionVal.(map[interface{}]interface{})
	if !ok {
		return nil, errors.Errorf("section [%s] must be a map", section)
	}

	config := &ServerConfig{}
	if err := config.Parse(sectionMap); err != nil {
		return nil, fmt.Errorf("error parsing section [%s]: %v", section, err)
	}

	return config, nil
}

func asConfigMap(m map[string]interface{}) map[interface{}]interface{} {
	out := make(map[interface{}]interface{}, len(m))
	for k, v := range m {
		out[k] = normalizeConfigValue(v)
	}
	return out
}

func normalizeConfigValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return asConfigMap(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = normalizeConfigValue(item)
		}
		return out
	default:
		return v
	}
}
