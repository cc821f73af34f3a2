package config

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// deserializer unmarshals raw bytes into v. Kept as data (spec.md §9 DESIGN
// NOTES "Config formats") so adding a format is adding one table entry.
type deserializer func(data []byte, v any) error

var deserializers = map[string]deserializer{
	"json": json.Unmarshal,
	"yaml": yaml.Unmarshal,
	"yml":  yaml.Unmarshal,
}

// supportedExtensions lists the extensions tried, in order, when a caller
// resolves a base path ("db-config") without naming an extension.
var supportedExtensions = []string{"json", "yaml", "yml"}

func decodeFile(ext string, data []byte, v any) error {
	d, ok := deserializers[ext]
	if !ok {
		return fmt.Errorf("unsupported config extension: %s", ext)
	}
	content := SubstituteEnvVars(string(data))
	return d([]byte(content), v)
}
