package question

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleJSON = `{
  "title": "Networking",
  "time_limit_sec": 12,
  "base_score": 80,
  "fast_bonus_max": 40,
  "questions": [
    {"id": "q1", "question": "Which protocol is connection oriented?", "choices": ["UDP", "TCP"], "answer": "TCP"},
    {"id": "q2", "question": "Default HTTP port?", "choices": ["80", "443", "22"], "answer": "80"}
  ]
}`

func TestParseJSONKeepsFileOrder(t *testing.T) {
	bank, err := Parse([]byte(sampleJSON), FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, "Networking", bank.Title)
	assert.Equal(t, 12*time.Second, bank.TimeLimit)
	assert.Equal(t, 80, bank.BaseScore)
	assert.Equal(t, 40, bank.FastBonusMax)
	require.Equal(t, 2, bank.Len())

	first, ok := bank.At(0)
	require.True(t, ok)
	assert.Equal(t, "q1", first.ID)
	second, _ := bank.At(1)
	assert.Equal(t, "q2", second.ID)

	_, ok = bank.At(2)
	assert.False(t, ok)
}

func TestParseAppliesDefaults(t *testing.T) {
	bank, err := Parse([]byte(`{"questions":[{"id":"a","question":"?","choices":["x","y"],"answer":"x"}]}`), FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, DefaultTitle, bank.Title)
	assert.Equal(t, DefaultTimeLimitSec*time.Second, bank.TimeLimit)
	assert.Equal(t, DefaultBaseScore, bank.BaseScore)
	assert.Equal(t, DefaultFastBonusMax, bank.FastBonusMax)
}

func TestParseYAML(t *testing.T) {
	doc := `
title: Capitals
time_limit_sec: 5
questions:
  - id: fr
    question: Capital of France?
    choices: [Paris, Lyon]
    answer: paris
`
	bank, err := Parse([]byte(doc), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, "Capitals", bank.Title)
	assert.Equal(t, 5*time.Second, bank.TimeLimit)
	assert.Equal(t, 1, bank.Len())
}

func TestParseRejectsMalformedBanks(t *testing.T) {
	cases := map[string]string{
		"bad json":          `{"questions": [`,
		"no questions":      `{"questions": []}`,
		"zero time limit":   `{"time_limit_sec": 0, "questions":[{"id":"a","question":"?","choices":["x","y"],"answer":"x"}]}`,
		"negative base":     `{"base_score": -1, "questions":[{"id":"a","question":"?","choices":["x","y"],"answer":"x"}]}`,
		"missing id":        `{"questions":[{"question":"?","choices":["x","y"],"answer":"x"}]}`,
		"one choice":        `{"questions":[{"id":"a","question":"?","choices":["x"],"answer":"x"}]}`,
		"answer not choice": `{"questions":[{"id":"a","question":"?","choices":["x","y"],"answer":"z"}]}`,
		"duplicate id": `{"questions":[
			{"id":"a","question":"?","choices":["x","y"],"answer":"x"},
			{"id":"a","question":"!","choices":["x","y"],"answer":"y"}]}`,
	}

	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc), FormatJSON)
			var cfgErr *ConfigurationError
			assert.True(t, errors.As(err, &cfgErr), "expected ConfigurationError, got %v", err)
		})
	}
}

func TestLoadPicksDecoderByExtension(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "bank.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(sampleJSON), 0o600))
	bank, err := Load(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, 2, bank.Len())

	yamlPath := filepath.Join(dir, "bank.yml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("questions:\n  - {id: a, question: q, choices: [x, y], answer: y}\n"), 0o600))
	bank, err = Load(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, 1, bank.Len())
}

func TestLoadReportsPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.json")
	_, err := Load(path)

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, path, cfgErr.Path)
	assert.Contains(t, err.Error(), path)
}

func TestAtReturnsCopies(t *testing.T) {
	bank, err := Parse([]byte(sampleJSON), FormatJSON)
	require.NoError(t, err)

	q, _ := bank.At(0)
	q.Choices[0] = "mutated"

	again, _ := bank.At(0)
	assert.Equal(t, "UDP", again.Choices[0])
}

func TestMatches(t *testing.T) {
	assert.True(t, Matches("  tcp ", "TCP"))
	assert.False(t, Matches("udp", "TCP"))
}
