// Package rag is the document-retrieval boundary. The retrieval
// pipeline itself (chunking, embeddings, search) lives elsewhere; the
// router only needs something that answers a question with sources.
package rag

import "context"

type Answer struct {
	Text    string   `json:"text"`
	Sources []string `json:"sources,omitempty"`
}

type Retriever interface {
	Retrieve(ctx context.Context, question string, scope map[string]string) (Answer, error)
}

// Unavailable is the default retriever when no document store is
// configured; it tells the user instead of failing the request.
type Unavailable struct{}

func (Unavailable) Retrieve(ctx context.Context, question string, scope map[string]string) (Answer, error) {
	return Answer{Text: "Document search is not configured on this deployment, so I can't look that up in company documents."}, nil
}
