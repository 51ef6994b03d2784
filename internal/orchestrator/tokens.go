package orchestrator

import (
	"sync"

	"github.com/google/uuid"
)

// Token identifies one run for a document. Only the latest token of a document is current.
type Token struct {
	Document string `json:"document"`
	ID       string `json:"id"`
}

// Tokens tracks the current run token of every document.
type Tokens struct {
	mu      sync.Mutex
	current map[string]string
}

// NewTokens creates an empty registry.
func NewTokens() *Tokens {
	return &Tokens{current: make(map[string]string)}
}

// Begin issues a new token for document, superseding any earlier one.
func (t *Tokens) Begin(document string) Token {
	tok := Token{Document: document, ID: uuid.NewString()}
	t.mu.Lock()
	t.current[document] = tok.ID
	t.mu.Unlock()
	return tok
}

// IsCurrent reports whether tok is still the latest token of its document.
func (t *Tokens) IsCurrent(tok Token) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.current[tok.Document]
	return ok && id == tok.ID
}

// Finish releases tok if it is still current. It reports whether it was.
func (t *Tokens) Finish(tok Token) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.current[tok.Document]; ok && id == tok.ID {
		delete(t.current, tok.Document)
		return true
	}
	return false
}

// InFlight returns the number of documents with a current token.
func (t *Tokens) InFlight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.current)
}
