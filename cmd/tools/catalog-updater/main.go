// cmd/tools/catalog-updater/main.go
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"loan-underwriter/pkg/catalog"
)

var catalogPath string

func main() {
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)

	// Add command flags
	fileAdd := addCmd.String("file", "", "Policy file name (e.g., credit-standards.md)")
	title := addCmd.String("title", "", "Document title (e.g., Credit Standards)")
	category := addCmd.String("category", "", "Category (e.g., underwriting)")
	version := addCmd.String("version", "1.0.0", "Document version")
	effectiveDate := addCmd.String("effectiveDate", "", "Effective date (YYYY-MM-DD)")
	tags := addCmd.String("tags", "", "Comma-separated tags")

	// Update command flags
	fileUpdate := updateCmd.String("file", "", "Policy file name to update")
	field := updateCmd.String("field", "", "Field to update (title, category, version, effectiveDate, tags)")
	value := updateCmd.String("value", "", "New value for the field")

	// Validate command flags
	validateCmd.StringVar(&catalogPath, "path", "policies/policy-catalog.json", "Path to catalog file")
	policiesDir := validateCmd.String("policies", "", "Policy directory to cross-check against (optional)")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "add":
		addCmd.Parse(os.Args[2:])
		if *fileAdd == "" || *title == "" {
			fmt.Println("Error: file and title are required for add.")
			addCmd.Usage()
			os.Exit(1)
		}
		doc := catalog.Document{
			File:          *fileAdd,
			Title:         *title,
			Category:      *category,
			Version:       *version,
			EffectiveDate: *effectiveDate,
			Tags:          splitTags(*tags),
		}
		err := addDocument(&doc)
		if err != nil {
			fmt.Printf("Error adding document: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added document: %s\n", *fileAdd)

	case "update":
		updateCmd.Parse(os.Args[2:])
		if *fileUpdate == "" || *field == "" || *value == "" {
			fmt.Println("Error: file, field, and value are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		err := updateDocument(*fileUpdate, *field, *value)
		if err != nil {
			fmt.Printf("Error updating document: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated document %s, field %s to %s\n", *fileUpdate, *field, *value)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		err := validateCatalog(*policiesDir)
		if err != nil {
			fmt.Printf("Catalog validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Catalog validation passed.")

	case "help":
		fallthrough
	default:
		help()
	}
}

func addDocument(doc *catalog.Document) error {
	cat, err := catalog.LoadCatalog(catalogPath)
	if err != nil {
		// If file doesn't exist, create new catalog
		if os.IsNotExist(err) {
			cat = &catalog.PolicyCatalog{
				Version:     "1.0.0",
				LastUpdated: time.Now().Format(time.RFC3339),
				Documents:   []catalog.Document{},
			}
		} else {
			return fmt.Errorf("failed to load catalog: %w", err)
		}
	}

	// Check if document already exists
	for _, existing := range cat.Documents {
		if existing.File == doc.File {
			return fmt.Errorf("document %s already exists", doc.File)
		}
	}

	// Add new document
	cat.Documents = append(cat.Documents, *doc)
	cat.LastUpdated = time.Now().Format(time.RFC3339)

	// Save catalog
	return saveCatalog(cat, catalogPath)
}

func updateDocument(file, field, value string) error {
	cat, err := catalog.LoadCatalog(catalogPath)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	found := false
	for i := range cat.Documents {
		if cat.Documents[i].File == file {
			found = true
			switch field {
			case "title":
				cat.Documents[i].Title = value
			case "category":
				cat.Documents[i].Category = value
			case "version":
				cat.Documents[i].Version = value
			case "effectiveDate":
				cat.Documents[i].EffectiveDate = value
			case "tags":
				cat.Documents[i].Tags = splitTags(value)
			default:
				return fmt.Errorf("unknown field: %s", field)
			}
			break
		}
	}

	if !found {
		return fmt.Errorf("document %s not found", file)
	}

	cat.LastUpdated = time.Now().Format(time.RFC3339)
	return saveCatalog(cat, catalogPath)
}

func validateCatalog(policiesDir string) error {
	if err := catalog.ValidateFile(catalogPath); err != nil {
		return err
	}

	cat, err := catalog.LoadCatalog(catalogPath)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	files := make(map[string]bool)
	for _, doc := range cat.Documents {
		if files[doc.File] {
			return fmt.Errorf("duplicate document: %s", doc.File)
		}
		files[doc.File] = true
	}

	if policiesDir != "" {
		problems, err := catalog.CrossCheck(cat, policiesDir)
		if err != nil {
			return fmt.Errorf("cross-check failed: %w", err)
		}
		for _, problem := range problems {
			fmt.Printf("  %s\n", problem)
		}
		if len(problems) > 0 {
			return fmt.Errorf("catalog does not match policy directory (%d problems)", len(problems))
		}
	}

	fmt.Printf("Catalog validation passed. Found %d documents.\n", len(cat.Documents))
	return nil
}

// saveCatalog handles saving the catalog to file
func saveCatalog(cat *catalog.PolicyCatalog, path string) error {
	data, err := json.MarshalIndent(cat, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal catalog: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	err = os.WriteFile(path, data, 0644)
	if err != nil {
		return fmt.Errorf("failed to write catalog file: %w", err)
	}

	return nil
}

func splitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		if tag := strings.TrimSpace(part); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

func help() {
	fmt.Print(`
Usage: catalog-updater <command> [flags]

Commands:
  add      Add a new document to the policy catalog
  update   Update an existing document's field
  validate Validate the catalog file
  help     Show this help message

Examples:
  catalog-updater add -file credit-standards.md -title "Credit Standards" -category underwriting -tags "credit,scoring"
  catalog-updater update -file credit-standards.md -field version -value 1.1.0
  catalog-updater validate -path policies/policy-catalog.json -policies policies

Use 'catalog-updater <command> -h' for more information about a command.

`)
}
