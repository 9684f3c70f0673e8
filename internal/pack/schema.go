package pack

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

const schemaBase = "https://customjukebox.invalid/schemas/"

const (
	schemaManifest         = "manifest.schema.json"
	schemaSoundDefinitions = "sound_definitions.schema.json"
	schemaItem             = "item.schema.json"
	schemaItemTexture      = "item_texture.schema.json"
)

var (
	schemasOnce sync.Once
	schemas     map[string]*jsonschema.Schema
	schemasErr  error
)

func loadSchemas() (map[string]*jsonschema.Schema, error) {
	schemasOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft7
		names := []string{schemaManifest, schemaSoundDefinitions, schemaItem, schemaItemTexture}
		for _, name := range names {
			b, err := schemaFS.ReadFile("schemas/" + name)
			if err != nil {
				schemasErr = err
				return
			}
			if err := c.AddResource(schemaBase+name, bytes.NewReader(b)); err != nil {
				schemasErr = fmt.Errorf("schema %s: %w", name, err)
				return
			}
		}
		out := make(map[string]*jsonschema.Schema, len(names))
		for _, name := range names {
			s, err := c.Compile(schemaBase + name)
			if err != nil {
				schemasErr = fmt.Errorf("compile %s: %w", name, err)
				return
			}
			out[name] = s
		}
		schemas = out
	})
	return schemas, schemasErr
}

// validateDocument checks a document against one of the embedded schemas.
// The validator wants plain decoded JSON, so v round-trips through encoding/json.
func validateDocument(schema string, v any) error {
	all, err := loadSchemas()
	if err != nil {
		return err
	}
	s, ok := all[schema]
	if !ok {
		return fmt.Errorf("unknown schema %s", schema)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}
	return s.Validate(doc)
}
