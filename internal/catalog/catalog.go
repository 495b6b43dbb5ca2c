package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"lexipal/internal/models"
	"strings"

	"gopkg.in/yaml.v2"
)

//go:embed vocabulary.yaml
var vocabularyYAML []byte

var ErrUnknownWord = errors.New("word is not in the vocabulary")

type catalogFile struct {
	Words []models.VocabularyWord `yaml:"words"`
}

// Catalog is the immutable vocabulary loaded at startup. Lookups are
// case-insensitive.
type Catalog struct {
	words []models.VocabularyWord
	index map[string]models.VocabularyWord
}

// Load parses the embedded vocabulary.
func Load() (*Catalog, error) {
	return Parse(vocabularyYAML)
}

func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("error parsing vocabulary yaml: %w", err)
	}
	return New(file.Words)
}

func New(words []models.VocabularyWord) (*Catalog, error) {
	c := &Catalog{
		words: make([]models.VocabularyWord, 0, len(words)),
		index: make(map[string]models.VocabularyWord, len(words)),
	}
	for _, w := range words {
		key := normalize(w.Word)
		if key == "" || strings.TrimSpace(w.Meaning) == "" {
			return nil, fmt.Errorf("invalid vocabulary entry %q", w.Word)
		}
		if w.Difficulty < 1 || w.Difficulty > 5 {
			return nil, fmt.Errorf("word %q: difficulty %d out of range 1..5", w.Word, w.Difficulty)
		}
		if _, dup := c.index[key]; dup {
			return nil, fmt.Errorf("duplicate vocabulary entry %q", w.Word)
		}
		w.Word = key
		c.index[key] = w
		c.words = append(c.words, w)
	}
	if len(c.words) == 0 {
		return nil, errors.New("vocabulary is empty")
	}
	return c, nil
}

func (c *Catalog) Lookup(word string) (models.VocabularyWord, error) {
	w, ok := c.index[normalize(word)]
	if !ok {
		return models.VocabularyWord{}, fmt.Errorf("%q: %w", word, ErrUnknownWord)
	}
	return w, nil
}

func (c *Catalog) Words() []models.VocabularyWord {
	out := make([]models.VocabularyWord, len(c.words))
	copy(out, c.words)
	return out
}

// Filter returns the words for which keep reports true, in catalog order.
func (c *Catalog) Filter(keep func(models.VocabularyWord) bool) []models.VocabularyWord {
	var out []models.VocabularyWord
	for _, w := range c.words {
		if keep(w) {
			out = append(out, w)
		}
	}
	return out
}

func (c *Catalog) Len() int {
	return len(c.words)
}

func normalize(word string) string {
	return strings.ToLower(strings.TrimSpace(word))
}
