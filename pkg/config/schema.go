package config

import (
	"bytes"
	_ "embed"
	stdjson "encoding/json"
	"fmt"
	"sync"

	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "https://github.com/panbanda/thisifier/config.schema.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
		if err != nil {
			schemaErr = fmt.Errorf("failed to parse config schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, doc); err != nil {
			schemaErr = fmt.Errorf("failed to add config schema: %w", err)
			return
		}
		schema, schemaErr = c.Compile(schemaURL)
	})
	return schema, schemaErr
}

// ValidateFile checks the raw document at path against the config schema.
// Unknown keys and wrongly typed values are reported here, before they are
// silently dropped by unmarshalling.
func ValidateFile(path string) error {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), parserFor(path)); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return ValidateMap(k.Raw())
}

// ValidateMap checks a decoded config document against the schema.
func ValidateMap(raw map[string]any) error {
	sch, err := compiledSchema()
	if err != nil {
		return err
	}

	// Round-trip through JSON so every parser's number types become json.Number.
	data, err := stdjson.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}

	if err := sch.Validate(inst); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
