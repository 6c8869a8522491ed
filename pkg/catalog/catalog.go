// pkg/catalog/catalog.go
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

func LoadCatalog(path string) (*PolicyCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cat PolicyCatalog
	err = json.Unmarshal(data, &cat)
	return &cat, err
}

// ValidateFile checks a catalog file against the embedded JSON Schema.
func ValidateFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	schemaLoader := gojsonschema.NewStringLoader(catalogSchema)
	documentLoader := gojsonschema.NewStringLoader(string(data))

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("catalog is not valid JSON: %w", err)
	}
	if !result.Valid() {
		var msgs []string
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return fmt.Errorf("catalog failed schema validation: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// CrossCheck compares the catalog's document list with the policy files
// actually present in dir. It returns one message per discrepancy, sorted
// for stable output.
func CrossCheck(cat *PolicyCatalog, dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	onDisk := make(map[string]bool)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".md", ".txt":
			onDisk[entry.Name()] = true
		}
	}

	var problems []string
	listed := make(map[string]bool)
	for _, doc := range cat.Documents {
		listed[doc.File] = true
		if !onDisk[doc.File] {
			problems = append(problems, fmt.Sprintf("catalog lists %s but the file is missing", doc.File))
		}
	}
	for name := range onDisk {
		if !listed[name] {
			problems = append(problems, fmt.Sprintf("%s is on disk but not in the catalog", name))
		}
	}

	sort.Strings(problems)
	return problems, nil
}
