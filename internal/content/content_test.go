package content_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/owlhoot/owlhoot/internal/content"
	"github.com/owlhoot/owlhoot/internal/errors"
)

const questionsJSON = `[
  {
    "prompt": "Which bird hoots?",
    "image": "https://cdn.example.com/owl.webp",
    "answers": [
      {"text": "Owl", "correct": true, "color": "#26890c"},
      {"text": "Duck", "correct": false, "color": "#e21b3c"}
    ]
  },
  {
    "prompt": "How many legs does a spider have?",
    "image": "https://cdn.example.com/spider.webp",
    "answers": [
      {"text": "Six", "correct": false, "color": "#1368ce"},
      {"text": "Eight", "correct": true, "color": "#ffa602"}
    ]
  }
]`

func TestProvider_FetchQuestions(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(questionsJSON))
	}))
	t.Cleanup(srv.Close)

	p := content.NewProvider(content.Config{BaseURL: srv.URL})

	questions, err := p.FetchQuestions(context.Background())
	require.NoError(t, err)
	require.Len(t, questions, 2)

	// Ids are ordinal indexes into the sequence.
	assert.Equal(t, 0, questions[0].ID)
	assert.Equal(t, 1, questions[1].ID)

	assert.Equal(t, "Which bird hoots?", questions[0].Prompt)
	assert.Equal(t, "https://cdn.example.com/owl.webp", questions[0].ImageRef)
	require.Len(t, questions[0].Answers, 2)
	assert.True(t, questions[0].Answers[0].Correct)
	assert.False(t, questions[0].Answers[1].Correct)

	// One fetch per question-set load; later calls serve the cache.
	_, err = p.FetchQuestions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestProvider_UpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	p := content.NewProvider(content.Config{BaseURL: srv.URL})

	_, err := p.FetchQuestions(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeUnavailable))
}
