// pkg/catalog/schema.go
package catalog

type PolicyCatalog struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated"`
	Documents   []Document `json:"documents"`
}

type Document struct {
	File          string   `json:"file"`
	Title         string   `json:"title"`
	Category      string   `json:"category"`
	Version       string   `json:"version"`
	EffectiveDate string   `json:"effectiveDate"`
	Tags          []string `json:"tags"`
}

// catalogSchema is the JSON Schema every catalog file must satisfy.
const catalogSchema = `{
	"type": "object",
	"required": ["version", "documents"],
	"properties": {
		"version": {"type": "string", "minLength": 1},
		"lastUpdated": {"type": "string"},
		"documents": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["file", "title"],
				"properties": {
					"file": {"type": "string", "minLength": 1},
					"title": {"type": "string", "minLength": 1},
					"category": {"type": "string"},
					"version": {"type": "string"},
					"effectiveDate": {"type": "string"},
					"tags": {"type": "array", "items": {"type": "string"}}
				}
			}
		}
	}
}`
