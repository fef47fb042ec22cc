// Package huggingface summarizes meeting protocols via the Hugging Face
// inference API.
package huggingface

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avoss/meetscribe/internal/config"
	"github.com/avoss/meetscribe/pkg/models"
)

// Provider implements models.Summarizer using a Hugging Face summarization
// model.
type Provider struct {
	cfg    config.HuggingFaceConfig
	client *http.Client
}

func NewProvider(cfg config.HuggingFaceConfig) *Provider {
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: 5 * time.Minute},
	}
}

func (p *Provider) Name() string { return "huggingface" }

type inferenceRequest struct {
	Inputs     string              `json:"inputs"`
	Parameters inferenceParameters `json:"parameters"`
}

type inferenceParameters struct {
	MaxLength int  `json:"max_length"`
	MinLength int  `json:"min_length"`
	DoSample  bool `json:"do_sample"`
}

type inferenceResult struct {
	SummaryText string `json:"summary_text"`
}

func (p *Provider) Summarize(ctx context.Context, protocol []models.Segment, llmModel string) (string, error) {
	model := llmModel
	if model == "" {
		model = p.cfg.Model
	}

	transcript := (&models.JobResult{Protocol: protocol}).TranscriptText()

	body, err := json.Marshal(inferenceRequest{
		Inputs: transcript,
		Parameters: inferenceParameters{
			MaxLength: 150,
			MinLength: 30,
			DoSample:  false,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal inference request: %w", err)
	}

	u := fmt.Sprintf("%s/models/%s", p.cfg.BaseURL, url.PathEscape(model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("huggingface returned status %d", resp.StatusCode)
	}

	var results []inferenceResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return "", fmt.Errorf("decoding huggingface response: %w", err)
	}
	if len(results) == 0 {
		return "", fmt.Errorf("huggingface returned no results")
	}

	return strings.TrimSpace(results[0].SummaryText), nil
}

var _ models.Summarizer = (*Provider)(nil)
