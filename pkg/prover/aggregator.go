// Copyright 2025 Intmax2 Validity Prover
package prover

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPAggregator delegates proof aggregation to an external recursion
// service over HTTP, matching the same-process-doesn't-do-crypto split
// used for transition proving itself (§4.6: workers, not this service,
// run the SNARK prover).
type HTTPAggregator struct {
	endpoint string
	client   *http.Client
}

func NewHTTPAggregator(endpoint string) *HTTPAggregator {
	return &HTTPAggregator{endpoint: endpoint, client: &http.Client{Timeout: 2 * time.Minute}}
}

type aggregateRequest struct {
	BlockNumber        uint32 `json:"block_number"`
	PreviousCumulative []byte `json:"previous_cumulative,omitempty"`
	TransitionProof    []byte `json:"transition_proof"`
}

type aggregateResponse struct {
	CumulativeProof []byte `json:"cumulative_proof"`
}

func (a *HTTPAggregator) Combine(ctx context.Context, blockNumber uint32, previousCumulative, transitionProof []byte) ([]byte, error) {
	body, err := json.Marshal(aggregateRequest{
		BlockNumber:        blockNumber,
		PreviousCumulative: previousCumulative,
		TransitionProof:    transitionProof,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal aggregate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build aggregate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call aggregator: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("aggregator returned %d: %s", resp.StatusCode, string(data))
	}

	var out aggregateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode aggregate response: %w", err)
	}
	return out.CumulativeProof, nil
}
