// Package search indexes platform content for full-text lookup. MemoryIndex
// keeps an in-process inverted index; Elastic talks to an Elasticsearch
// cluster. Both satisfy Searcher.
package search

import (
	"context"
	"time"
)

// DocType identifies the kind of entity a Document was built from.
type DocType string

const (
	TypePost  DocType = "post"
	TypeEvent DocType = "event"
	TypeGroup DocType = "group"
	TypeUser  DocType = "user"
	TypeHome  DocType = "home"
)

type Document struct {
	ID        string    `json:"id"`
	Type      DocType   `json:"type"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Tags      []string  `json:"tags,omitempty"`
	City      string    `json:"city,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Key is unique across types.
func (d Document) Key() string { return string(d.Type) + ":" + d.ID }

type Query struct {
	Text   string
	Types  []DocType
	City   string
	Limit  int
	Offset int
}

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Normalize applies default and maximum page sizes.
func (q Query) Normalize() Query {
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}

type Hit struct {
	Document Document `json:"document"`
	Score    float64  `json:"score"`
	Matched  []string `json:"matched,omitempty"`
}

type Result struct {
	Total int   `json:"total"`
	Hits  []Hit `json:"hits"`
}

type Searcher interface {
	Index(ctx context.Context, doc Document) error
	Delete(ctx context.Context, docType DocType, id string) error
	Search(ctx context.Context, q Query) (Result, error)
}
