// Package catalog indexes a bundled library of clinical derivation examples
// (SDTM to ADaM snippets) for similarity lookup by the find_examples tool.
// The index is in-memory and the embedding is computed locally, so lookups
// stay pure: no network, same input, same ranking.
package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"hash/fnv"
	"math"
	"strings"

	"github.com/philippgille/chromem-go"
	"gopkg.in/yaml.v3"
)

//go:embed examples.yaml
var bundledExamples []byte

const (
	collectionName = "examples"
	embeddingDim   = 128
)

type Example struct {
	ID          string `yaml:"id" json:"id"`
	Title       string `yaml:"title" json:"title"`
	Domain      string `yaml:"domain" json:"domain"`
	Description string `yaml:"description" json:"description"`
	Code        string `yaml:"code" json:"code"`
}

type Match struct {
	Example
	Score float32 `json:"score"`
}

type catalogFile struct {
	Examples []Example `yaml:"examples"`
}

type Catalog struct {
	collection *chromem.Collection
	byID       map[string]Example
	count      int
}

// Load parses the bundled catalog and builds the vector index.
func Load() (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(bundledExamples, &file); err != nil {
		return nil, fmt.Errorf("parse example catalog: %w", err)
	}
	if len(file.Examples) == 0 {
		return nil, fmt.Errorf("example catalog is empty")
	}

	db := chromem.NewDB()
	collection, err := db.GetOrCreateCollection(collectionName, nil, hashEmbedding)
	if err != nil {
		return nil, fmt.Errorf("create catalog collection: %w", err)
	}

	byID := make(map[string]Example, len(file.Examples))
	docs := make([]chromem.Document, 0, len(file.Examples))
	for _, ex := range file.Examples {
		byID[ex.ID] = ex
		docs = append(docs, chromem.Document{
			ID:       ex.ID,
			Metadata: map[string]string{"domain": ex.Domain},
			Content:  indexText(ex),
		})
	}

	if err := collection.AddDocuments(context.Background(), docs, 1); err != nil {
		return nil, fmt.Errorf("index example catalog: %w", err)
	}

	return &Catalog{
		collection: collection,
		byID:       byID,
		count:      len(file.Examples),
	}, nil
}

// Search returns the best-matching examples for a free-text query,
// optionally restricted to one ADaM/SDTM domain.
func (c *Catalog) Search(ctx context.Context, query, domain string, limit int) ([]Match, error) {
	if limit <= 0 {
		limit = 3
	}
	if limit > c.count {
		limit = c.count
	}

	var where map[string]string
	if domain != "" {
		where = map[string]string{"domain": strings.ToLower(strings.TrimSpace(domain))}
	}

	results, err := c.collection.Query(ctx, query, limit, where, nil)
	if err != nil {
		// A domain filter narrower than the requested limit is the one
		// expected failure; retry with however many documents remain.
		if where != nil {
			return c.searchFiltered(ctx, query, where, limit)
		}
		return nil, fmt.Errorf("catalog query: %w", err)
	}

	return c.toMatches(results), nil
}

func (c *Catalog) searchFiltered(ctx context.Context, query string, where map[string]string, limit int) ([]Match, error) {
	for limit > 1 {
		limit--
		results, err := c.collection.Query(ctx, query, limit, where, nil)
		if err == nil {
			return c.toMatches(results), nil
		}
	}
	return []Match{}, nil
}

func (c *Catalog) toMatches(results []chromem.Result) []Match {
	matches := make([]Match, 0, len(results))
	for _, res := range results {
		ex, ok := c.byID[res.ID]
		if !ok {
			continue
		}
		matches = append(matches, Match{Example: ex, Score: res.Similarity})
	}
	return matches
}

func (c *Catalog) Len() int {
	return c.count
}

func indexText(ex Example) string {
	return strings.Join([]string{ex.Title, ex.Domain, ex.Description, ex.Code}, "\n")
}

// hashEmbedding is a deterministic bag-of-words feature-hashing embedder.
// It is not a language model; it only has to make near-duplicate wording
// land near each other, which is enough for a small curated catalog.
func hashEmbedding(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, embeddingDim)

	for _, token := range tokenize(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		sum := h.Sum32()

		bucket := sum % embeddingDim
		sign := float32(1)
		if sum&0x80000000 != 0 {
			sign = -1
		}
		vec[bucket] += sign
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec, nil
	}

	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec, nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z':
			return false
		case r >= '0' && r <= '9':
			return false
		}
		return true
	})
}
