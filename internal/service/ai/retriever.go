package ai

import (
	"context"
	"maps"
	"slices"
	"strings"
	"unicode"

	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"github.com/samber/lo"
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"do": {}, "does": {}, "for": {}, "from": {}, "how": {}, "in": {}, "is": {}, "it": {},
	"of": {}, "on": {}, "or": {}, "the": {}, "this": {}, "to": {}, "was": {}, "what": {},
	"when": {}, "where": {}, "which": {}, "who": {}, "why": {}, "with": {},
}

// KeywordRetriever ranks in-memory chunks by how many query terms they contain.
// Chunks that share no term with the query are never returned.
type KeywordRetriever struct {
	chunks []*schema.Document
	terms  []map[string]int
	topK   int
}

// NewKeywordRetriever indexes chunks; topK is the default result count.
func NewKeywordRetriever(chunks []*schema.Document, topK int) *KeywordRetriever {
	if topK <= 0 {
		topK = 3
	}
	return &KeywordRetriever{
		chunks: chunks,
		terms: lo.Map(chunks, func(doc *schema.Document, _ int) map[string]int {
			return lo.CountValues(tokenize(doc.Content))
		}),
		topK: topK,
	}
}

// Retrieve implements retriever.Retriever. It honours retriever.WithTopK.
func (r *KeywordRetriever) Retrieve(_ context.Context, query string, opts ...retriever.Option) ([]*schema.Document, error) {
	topK := r.topK
	common := retriever.GetCommonOptions(&retriever.Options{TopK: &topK}, opts...)
	if common.TopK != nil && *common.TopK > 0 {
		topK = *common.TopK
	}

	keywords := lo.Uniq(tokenize(query))
	if len(keywords) == 0 {
		return nil, nil
	}

	type hit struct {
		idx   int
		score float64
	}
	var hits []hit
	for i, counts := range r.terms {
		var score float64
		matched := 0
		for _, kw := range keywords {
			if n := counts[kw]; n > 0 {
				score += float64(n)
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		// Chunks matching several distinct terms beat ones repeating a single term.
		score *= 1.0 + float64(matched-1)*0.2
		hits = append(hits, hit{idx: i, score: score})
	}

	slices.SortStableFunc(hits, func(a, b hit) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		default:
			return 0
		}
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}

	return lo.Map(hits, func(h hit, _ int) *schema.Document {
		src := r.chunks[h.idx]
		doc := &schema.Document{ID: src.ID, Content: src.Content, MetaData: maps.Clone(src.MetaData)}
		return doc.WithScore(h.score)
	}), nil
}

func tokenize(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return lo.Filter(words, func(w string, _ int) bool {
		if len([]rune(w)) < 2 {
			return false
		}
		_, stop := stopWords[w]
		return !stop
	})
}

// FormatContext joins retrieved chunks into the block placed in the prompt.
func FormatContext(docs []*schema.Document) string {
	parts := lo.FilterMap(docs, func(doc *schema.Document, _ int) (string, bool) {
		text := strings.TrimSpace(doc.Content)
		return text, text != ""
	})
	return strings.Join(parts, "\n\n---\n\n")
}
