// internal/store/elastic.go
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"loan-underwriter/internal/common/errors"
	"loan-underwriter/internal/common/logger"
	"loan-underwriter/internal/models"
)

// OutcomeIndexer mirrors finished outcomes into Elasticsearch for search
// and reporting. Indexing is best effort and never blocks a decision.
type OutcomeIndexer struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

// NewOutcomeIndexer creates an indexer writing to the given index.
func NewOutcomeIndexer(client *elasticsearch.Client, index string, log logger.Logger) *OutcomeIndexer {
	return &OutcomeIndexer{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "outcome-indexer"}),
	}
}

// Index writes the outcome document, keyed by request id so replays
// overwrite rather than duplicate.
func (i *OutcomeIndexer) Index(ctx context.Context, outcome *models.LoanOutcome) error {
	body, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      i.index,
		DocumentID: outcome.RequestID,
		Body:       bytes.NewReader(body),
	}

	res, err := req.Do(ctx, i.client)
	if err != nil {
		return errors.NewIndexWriteFailedError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return errors.NewIndexWriteFailedError(fmt.Errorf("index responded %s", res.Status()))
	}

	i.logger.Debug("Outcome indexed", map[string]interface{}{
		"requestId": outcome.RequestID,
		"index":     i.index,
	})
	return nil
}
