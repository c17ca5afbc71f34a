// Package content fetches the question sequence from the external content
// store. Read-only: questions are immutable once fetched and owned by the
// collaborator, so one fetch per question-set load is cached for the session.
package content

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/owlhoot/owlhoot/internal/domain"
	"github.com/owlhoot/owlhoot/internal/errors"
)

type Config struct {
	BaseURL string
	// HTTPClient defaults to a client with a sane timeout.
	HTTPClient *http.Client
}

type Provider struct {
	url    string
	client *http.Client

	mu     sync.Mutex
	cached []domain.Question
}

func NewProvider(c Config) *Provider {
	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return &Provider{
		url:    c.BaseURL,
		client: client,
	}
}

// question is the provider's wire shape; ids are assigned here by position.
type question struct {
	Prompt  string `json:"prompt"`
	Image   string `json:"image"`
	Answers []struct {
		Text    string `json:"text"`
		Correct bool   `json:"correct"`
		Color   string `json:"color"`
	} `json:"answers"`
}

// FetchQuestions returns the ordered question sequence, keyed by ordinal
// index.
func (p *Provider) FetchQuestions(ctx context.Context) ([]domain.Question, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != nil {
		return p.cached, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("content: build request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errors.Unavailable(fmt.Errorf("content: fetch questions: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Unavailable(fmt.Errorf("content: fetch questions: status %d", resp.StatusCode))
	}

	var wire []question
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, errors.Unavailable(fmt.Errorf("content: decode questions: %w", err))
	}

	questions := make([]domain.Question, 0, len(wire))
	for i, q := range wire {
		dq := domain.Question{
			ID:       i,
			Prompt:   q.Prompt,
			ImageRef: q.Image,
		}
		for _, a := range q.Answers {
			dq.Answers = append(dq.Answers, domain.Answer{
				Text:    a.Text,
				Correct: a.Correct,
				Color:   a.Color,
			})
		}
		questions = append(questions, dq)
	}

	p.cached = questions
	return questions, nil
}
