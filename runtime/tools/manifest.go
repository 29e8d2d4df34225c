package tools

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

type (
	// Manifest is the YAML document declaring a set of tools. Example:
	//
	//	tools:
	//	  - name: searchCode
	//	    category: search
	//	    description: Search the indexed repository
	//	  - name: createFile
	//	    category: action
	Manifest struct {
		Tools []ManifestTool `yaml:"tools"`
	}

	// ManifestTool is one tool declaration within a manifest.
	ManifestTool struct {
		Name        string `yaml:"name"`
		Category    string `yaml:"category"`
		Description string `yaml:"description"`
		// PayloadSchema holds an inline JSON schema document for the tool
		// payload, serialized as a YAML string.
		PayloadSchema string `yaml:"payload_schema"`
	}
)

// LoadManifest parses a YAML manifest and registers every declared tool.
// Registration stops at the first invalid declaration.
func (r *Registry) LoadManifest(src io.Reader) error {
	raw, err := io.ReadAll(src)
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("parse manifest: %w", err)
	}
	for _, t := range m.Tools {
		d := Descriptor{
			Name:        Ident(t.Name),
			Category:    Category(t.Category),
			Description: t.Description,
		}
		if t.PayloadSchema != "" {
			d.PayloadSchema = []byte(t.PayloadSchema)
		}
		if err := r.Register(d); err != nil {
			return err
		}
	}
	return nil
}

// LoadManifestFile reads and registers the manifest at path.
func (r *Registry) LoadManifestFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()
	return r.LoadManifest(f)
}
