package question

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Bank defaults used when the file omits a setting.
const (
	DefaultTitle        = "Quiz"
	DefaultTimeLimitSec = 10
	DefaultBaseScore    = 100
	DefaultFastBonusMax = 50
)

// Question is a single multiple-choice item. Immutable after load.
type Question struct {
	ID      string   `json:"id" yaml:"id"`
	Prompt  string   `json:"question" yaml:"question"`
	Choices []string `json:"choices" yaml:"choices"`
	Answer  string   `json:"answer" yaml:"answer"` // server-side only
}

// Bank is the ordered, immutable question list plus its scoring settings.
type Bank struct {
	Title        string
	TimeLimit    time.Duration
	BaseScore    int
	FastBonusMax int

	questions []Question
}

// bankFile mirrors the on-disk layout.
type bankFile struct {
	Title        string     `json:"title" yaml:"title"`
	TimeLimitSec *int       `json:"time_limit_sec" yaml:"time_limit_sec"`
	BaseScore    *int       `json:"base_score" yaml:"base_score"`
	FastBonusMax *int       `json:"fast_bonus_max" yaml:"fast_bonus_max"`
	Questions    []Question `json:"questions" yaml:"questions"`
}

// ConfigurationError reports a malformed question bank. It is fatal at startup.
type ConfigurationError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := "invalid question bank"
	if e.Path != "" {
		msg += " " + e.Path
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Load reads a bank from disk. Files ending in .yaml or .yml are parsed as YAML,
// everything else as JSON.
func Load(path string) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigurationError{Path: path, Reason: "read file", Err: err}
	}

	format := FormatJSON
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = FormatYAML
	}

	bank, err := Parse(data, format)
	if err != nil {
		var cfgErr *ConfigurationError
		if errors.As(err, &cfgErr) {
			cfgErr.Path = path
		}
		return nil, err
	}
	return bank, nil
}

// Format selects the bank file decoder.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// Parse decodes and validates bank bytes.
func Parse(data []byte, format Format) (*Bank, error) {
	var raw bankFile
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &raw)
	default:
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, &ConfigurationError{Reason: "decode", Err: err}
	}
	return newBank(raw)
}

// New builds a validated bank directly from questions, mainly for tests and tooling.
func New(title string, timeLimitSec, baseScore, fastBonusMax int, questions []Question) (*Bank, error) {
	return newBank(bankFile{
		Title:        title,
		TimeLimitSec: &timeLimitSec,
		BaseScore:    &baseScore,
		FastBonusMax: &fastBonusMax,
		Questions:    questions,
	})
}

func newBank(raw bankFile) (*Bank, error) {
	bank := &Bank{
		Title:        DefaultTitle,
		TimeLimit:    DefaultTimeLimitSec * time.Second,
		BaseScore:    DefaultBaseScore,
		FastBonusMax: DefaultFastBonusMax,
	}
	if t := strings.TrimSpace(raw.Title); t != "" {
		bank.Title = t
	}
	if raw.TimeLimitSec != nil {
		if *raw.TimeLimitSec <= 0 {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("time_limit_sec must be positive, got %d", *raw.TimeLimitSec)}
		}
		bank.TimeLimit = time.Duration(*raw.TimeLimitSec) * time.Second
	}
	if raw.BaseScore != nil {
		if *raw.BaseScore < 0 {
			return nil, &ConfigurationError{Reason: "base_score must not be negative"}
		}
		bank.BaseScore = *raw.BaseScore
	}
	if raw.FastBonusMax != nil {
		if *raw.FastBonusMax < 0 {
			return nil, &ConfigurationError{Reason: "fast_bonus_max must not be negative"}
		}
		bank.FastBonusMax = *raw.FastBonusMax
	}

	if len(raw.Questions) == 0 {
		return nil, &ConfigurationError{Reason: "no questions"}
	}

	seen := make(map[string]struct{}, len(raw.Questions))
	questions := make([]Question, 0, len(raw.Questions))
	for i, q := range raw.Questions {
		if err := validateQuestion(q); err != nil {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("question #%d: %s", i+1, err)}
		}
		if _, dup := seen[q.ID]; dup {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("question #%d: duplicate id %q", i+1, q.ID)}
		}
		seen[q.ID] = struct{}{}

		choices := make([]string, len(q.Choices))
		copy(choices, q.Choices)
		questions = append(questions, Question{ID: q.ID, Prompt: q.Prompt, Choices: choices, Answer: q.Answer})
	}
	bank.questions = questions
	return bank, nil
}

func validateQuestion(q Question) error {
	if strings.TrimSpace(q.ID) == "" {
		return errors.New("missing id")
	}
	if strings.TrimSpace(q.Prompt) == "" {
		return fmt.Errorf("%s: missing question text", q.ID)
	}
	if len(q.Choices) < 2 {
		return fmt.Errorf("%s: need at least two choices", q.ID)
	}
	if strings.TrimSpace(q.Answer) == "" {
		return fmt.Errorf("%s: missing answer", q.ID)
	}
	for _, c := range q.Choices {
		if Matches(c, q.Answer) {
			return nil
		}
	}
	return fmt.Errorf("%s: answer %q is not one of the choices", q.ID, q.Answer)
}

// Len returns the number of questions.
func (b *Bank) Len() int {
	return len(b.questions)
}

// At returns a copy of the i-th question in file order.
func (b *Bank) At(i int) (Question, bool) {
	if i < 0 || i >= len(b.questions) {
		return Question{}, false
	}
	q := b.questions[i]
	q.Choices = append([]string(nil), q.Choices...)
	return q, true
}

// Questions returns a copy of all questions in file order.
func (b *Bank) Questions() []Question {
	out := make([]Question, 0, len(b.questions))
	for i := range b.questions {
		q, _ := b.At(i)
		out = append(out, q)
	}
	return out
}

// Matches compares a submitted choice with the correct one, ignoring case and
// surrounding whitespace.
func Matches(submitted, correct string) bool {
	return normalize(submitted) == normalize(correct)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
