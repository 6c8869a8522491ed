// internal/oracle/schema.go
package oracle

import (
	"encoding/json"
	"fmt"
	"strings"

	"loan-underwriter/internal/common/errors"
	"loan-underwriter/internal/engine"

	"github.com/xeipuuv/gojsonschema"
)

// verdictSchema is the contract for the oracle's structured answer. Only
// compliant is mandatory: a non-compliant verdict without a reason falls
// back to a fixed string at render time rather than failing here.
const verdictSchema = `{
	"type": "object",
	"required": ["compliant"],
	"properties": {
		"compliant": {"type": "boolean"},
		"reason": {"type": "string"},
		"notes": {"type": "string"},
		"missing_information": {"type": "array", "items": {"type": "string"}}
	}
}`

// parseVerdict extracts and validates the JSON verdict from a completion.
// Models wrap answers in prose or markdown fences; everything outside the
// outermost braces is discarded. Anything that fails extraction or schema
// validation is a hard malformed-response failure, never a soft verdict.
func parseVerdict(content string) (*engine.Verdict, *errors.StandardError) {
	candidate, ok := extractJSON(content)
	if !ok {
		return nil, errors.NewOracleMalformedError("no JSON object found in oracle response")
	}

	schemaLoader := gojsonschema.NewStringLoader(verdictSchema)
	documentLoader := gojsonschema.NewStringLoader(candidate)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, errors.NewOracleMalformedError(fmt.Sprintf("verdict is not valid JSON: %v", err))
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return nil, errors.NewOracleMalformedError(
			fmt.Sprintf("verdict failed schema validation: %s", strings.Join(errs, "; ")))
	}

	var verdict engine.Verdict
	if err := json.Unmarshal([]byte(candidate), &verdict); err != nil {
		return nil, errors.NewOracleMalformedError(fmt.Sprintf("decode verdict: %v", err))
	}

	return &verdict, nil
}

// extractJSON returns the slice between the first opening and last closing
// brace.
func extractJSON(content string) (string, bool) {
	first := strings.Index(content, "{")
	last := strings.LastIndex(content, "}")
	if first < 0 || last <= first {
		return "", false
	}
	return content[first : last+1], true
}
