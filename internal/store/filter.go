package store

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	syncerr "github.com/Mill3/1ou2cocktails-algolia-sync/internal/errors"
)

// ParseFilter turns a filter expression such as
//
//	post_type:cocktail AND (locale:fr OR locale:en)
//
// into a bleve query. Supported operators are AND, OR and NOT with
// parentheses; values may be double quoted. An empty filter matches all.
func ParseFilter(filter string) (query.Query, error) {
	tokens, err := tokenizeFilter(filter)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return bleve.NewMatchAllQuery(), nil
	}

	p := &filterParser{tokens: tokens}
	q, err := p.parseOr()
	if err != nil {
		return nil, invalidFilter(filter, err.Error())
	}
	if p.pos < len(p.tokens) {
		return nil, invalidFilter(filter, fmt.Sprintf("unexpected %q", p.tokens[p.pos].text))
	}
	return q, nil
}

type tokenKind int

const (
	tokLParen tokenKind = iota
	tokRParen
	tokAnd
	tokOr
	tokNot
	tokTerm
)

type filterToken struct {
	kind  tokenKind
	text  string
	field string
	value string
}

func tokenizeFilter(s string) ([]filterToken, error) {
	var tokens []filterToken
	r := []rune(s)

	for i := 0; i < len(r); {
		c := r[i]
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '(':
			tokens = append(tokens, filterToken{kind: tokLParen, text: "("})
			i++
		case c == ')':
			tokens = append(tokens, filterToken{kind: tokRParen, text: ")"})
			i++
		default:
			start := i
			for i < len(r) && r[i] != ':' && r[i] != '(' && r[i] != ')' && !unicode.IsSpace(r[i]) {
				i++
			}
			word := string(r[start:i])

			if i >= len(r) || r[i] != ':' {
				switch word {
				case "AND":
					tokens = append(tokens, filterToken{kind: tokAnd, text: word})
				case "OR":
					tokens = append(tokens, filterToken{kind: tokOr, text: word})
				case "NOT":
					tokens = append(tokens, filterToken{kind: tokNot, text: word})
				default:
					return nil, invalidFilter(s, fmt.Sprintf("expected attribute:value, got %q", word))
				}
				continue
			}

			i++ // ':'
			value, next, err := readFilterValue(r, i)
			if err != nil {
				return nil, invalidFilter(s, err.Error())
			}
			i = next
			if word == "" || value == "" {
				return nil, invalidFilter(s, "empty attribute or value")
			}
			tokens = append(tokens, filterToken{
				kind:  tokTerm,
				text:  word + ":" + value,
				field: word,
				value: value,
			})
		}
	}
	return tokens, nil
}

func readFilterValue(r []rune, i int) (string, int, error) {
	if i < len(r) && r[i] == '"' {
		var b strings.Builder
		for i++; i < len(r); i++ {
			switch r[i] {
			case '\\':
				if i+1 < len(r) {
					i++
					b.WriteRune(r[i])
				}
			case '"':
				return b.String(), i + 1, nil
			default:
				b.WriteRune(r[i])
			}
		}
		return "", i, fmt.Errorf("unterminated quote")
	}

	start := i
	for i < len(r) && r[i] != '(' && r[i] != ')' && !unicode.IsSpace(r[i]) {
		i++
	}
	return string(r[start:i]), i, nil
}

type filterParser struct {
	tokens []filterToken
	pos    int
}

func (p *filterParser) peek() (filterToken, bool) {
	if p.pos >= len(p.tokens) {
		return filterToken{}, false
	}
	return p.tokens[p.pos], true
}

func (p *filterParser) parseOr() (query.Query, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	clauses := []query.Query{left}
	for {
		t, ok := p.peek()
		if !ok || t.kind != tokOr {
			break
		}
		p.pos++
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, right)
	}
	if len(clauses) == 1 {
		return left, nil
	}
	return bleve.NewDisjunctionQuery(clauses...), nil
}

func (p *filterParser) parseAnd() (query.Query, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	clauses := []query.Query{left}
	for {
		t, ok := p.peek()
		if !ok || t.kind != tokAnd {
			break
		}
		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, right)
	}
	if len(clauses) == 1 {
		return left, nil
	}
	return bleve.NewConjunctionQuery(clauses...), nil
}

func (p *filterParser) parseUnary() (query.Query, error) {
	t, ok := p.peek()
	if !ok {
		return nil, fmt.Errorf("unexpected end of filter")
	}
	p.pos++

	switch t.kind {
	case tokNot:
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		q := bleve.NewBooleanQuery()
		q.AddMust(bleve.NewMatchAllQuery())
		q.AddMustNot(inner)
		return q, nil

	case tokLParen:
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing, ok := p.peek(); !ok || closing.kind != tokRParen {
			return nil, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return inner, nil

	case tokTerm:
		q := bleve.NewMatchQuery(t.value)
		q.SetField(t.field)
		q.SetOperator(query.MatchQueryOperatorAnd)
		return q, nil

	default:
		return nil, fmt.Errorf("unexpected %q", t.text)
	}
}

func invalidFilter(filter, reason string) error {
	return syncerr.New(syncerr.ErrCodeInvalidFilter, "invalid filter: "+reason, nil).
		WithDetail("filter", filter)
}
