package persistence

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var documentSchemas embed.FS

// Document names a free-form JSON column validated before it is written.
type Document string

const (
	DocumentPostContent           Document = "post_content"
	DocumentProductSpecifications Document = "product_specifications"
	DocumentSiteSettings          Document = "site_settings"
)

// ErrInvalidDocument wraps every schema violation.
var ErrInvalidDocument = errors.New("invalid document")

// DocumentValidator validates JSON documents against the embedded schemas, compiling each once.
type DocumentValidator struct {
	mu    sync.RWMutex
	cache map[Document]*jsonschema.Schema
}

func NewDocumentValidator() *DocumentValidator {
	return &DocumentValidator{
		cache: make(map[Document]*jsonschema.Schema),
	}
}

// Validate decodes payload and checks it against the schema for doc.
func (v *DocumentValidator) Validate(doc Document, payload []byte) error {
	if len(bytes.TrimSpace(payload)) == 0 {
		return fmt.Errorf("%w: %s payload is required", ErrInvalidDocument, doc)
	}

	compiled, err := v.getOrCompile(doc)
	if err != nil {
		return err
	}

	var document any
	if err := json.Unmarshal(payload, &document); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrInvalidDocument, doc, err)
	}

	if err := compiled.Validate(document); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidDocument, doc, err)
	}
	return nil
}

func (v *DocumentValidator) getOrCompile(doc Document) (*jsonschema.Schema, error) {
	v.mu.RLock()
	compiled, ok := v.cache[doc]
	v.mu.RUnlock()
	if ok {
		return compiled, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	// another goroutine may have populated the cache while we were waiting
	if compiled, ok = v.cache[doc]; ok {
		return compiled, nil
	}

	raw, err := documentSchemas.ReadFile("schemas/" + string(doc) + ".json")
	if err != nil {
		return nil, fmt.Errorf("unknown document %q: %w", doc, err)
	}

	key := "memory://schemas/" + string(doc) + ".json"
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	if err := compiler.AddResource(key, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("register schema %s: %w", key, err)
	}

	newCompiled, err := compiler.Compile(key)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", key, err)
	}

	v.cache[doc] = newCompiled
	return newCompiled, nil
}
