// Package config loads the engine's three input documents (reference
// data, rubric selection, and the patient message) from disk, mirroring
// the teacher's YAML/JSON-with-env-expansion loader, and exposes JSON
// Schema generation/validation for the reference-data document shape.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"gopkg.in/yaml.v3"
	"mvdan.cc/sh/v3/shell"

	"github.com/aks8m/piqi-eval/pkg/refdata"
)

// LoadBundle reads a reference-data document (YAML or JSON, detected by
// extension) and unmarshals it into a refdata.Bundle. Environment
// variables are expanded using ${VAR}/$VAR syntax, including
// shell-style ${VAR:-default} forms, before parsing.
func LoadBundle(path string) (*refdata.Bundle, error) {
	data, err := readExpanded(path)
	if err != nil {
		return nil, err
	}

	var bundle refdata.Bundle
	if err := unmarshalByExt(path, data, &bundle); err != nil {
		return nil, err
	}
	return &bundle, nil
}

// LoadMessage reads a raw patient message. Unlike LoadBundle, no
// environment-variable expansion is performed: message payloads are
// patient data, not operator configuration.
func LoadMessage(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read message file: %w", err)
	}
	return data, nil
}

func readExpanded(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	expanded, err := shell.Expand(string(data), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to expand environment variables: %w", err)
	}
	return []byte(expanded), nil
}

func unmarshalByExt(path string, data []byte, v any) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return fmt.Errorf("unsupported file extension: %s (expected .yaml, .yml, or .json)", filepath.Ext(path))
	}
	return nil
}

// ValidationError is one JSON-Schema complaint about a reference-data
// document.
type ValidationError struct {
	Path    string
	Message string
}

// ValidationResult is the outcome of ValidateBundleFile.
type ValidationResult struct {
	Valid  bool
	Errors []ValidationError
}

// ValidateBundleFile validates a reference-data document against its
// generated JSON Schema, without building an Index (so a structurally
// malformed document never reaches the referential-integrity checks in
// refdata.Build).
func ValidateBundleFile(path string) (*ValidationResult, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var jsonData []byte
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
		jsonData, err = json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to convert YAML to JSON: %w", err)
		}
	case ".json":
		jsonData = raw
	default:
		return nil, fmt.Errorf("unsupported file extension: %s (expected .yaml, .yml, or .json)", filepath.Ext(path))
	}

	schema, err := BundleSchema()
	if err != nil {
		return nil, err
	}

	var configData any
	if err := json.Unmarshal(jsonData, &configData); err != nil {
		return nil, fmt.Errorf("failed to parse document as JSON: %w", err)
	}

	resolved, err := schema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve schema: %w", err)
	}

	result := &ValidationResult{Valid: true}
	if err := resolved.Validate(configData); err != nil {
		result.Valid = false
		result.Errors = []ValidationError{{Message: err.Error()}}
	}
	return result, nil
}

// BundleSchema generates the JSON Schema for the reference-data
// document shape, mirroring the teacher's generateSchema.
func BundleSchema() (*jsonschema.Schema, error) {
	schema, err := jsonschema.For[refdata.Bundle](nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate JSON schema: %w", err)
	}
	schema.Title = "PIQI Reference Data"
	schema.Description = "Reference-data bundle: entity model, code systems, value sets, rubrics and SAM descriptors."
	schema.Schema = "https://json-schema.org/draft/2020-12/schema"
	return schema, nil
}

// SchemaJSON renders BundleSchema as indented JSON text, mirroring the
// teacher's SchemaForEvalConfig.
func SchemaJSON() (string, error) {
	schema, err := BundleSchema()
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal schema: %w", err)
	}
	return string(data), nil
}
