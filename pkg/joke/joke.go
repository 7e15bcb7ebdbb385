// Package joke defines the question/answer records that flow through the pool.
package joke

import "time"

// Item is a validated, persisted joke.
type Item struct {
	// ID is assigned by the store and is opaque to everything else.
	ID string `json:"id"`

	// Category is the provider's "type" field (may be empty).
	Category string `json:"category,omitempty"`

	Question string `json:"question"`
	Answer   string `json:"answer"`

	// CreatedAt is set by the store on insert.
	CreatedAt time.Time `json:"created_at"`
}

// Key returns the dedup key of the item.
func (i Item) Key() Key {
	return Key(i.Question)
}

// Candidate is an unvalidated joke fetched from the provider in the current cycle.
// Nil fields mean the provider omitted or nulled them.
type Candidate struct {
	Category *string
	Question *string
	Answer   *string
}

// NewCandidate builds a fully populated candidate. Mostly useful in tests.
func NewCandidate(category, question, answer string) Candidate {
	return Candidate{Category: &category, Question: &question, Answer: &answer}
}

// Valid reports whether both question and answer are present and non-empty.
func (c Candidate) Valid() bool {
	return c.Question != nil && *c.Question != "" && c.Answer != nil && *c.Answer != ""
}

// Key returns the dedup key of the candidate. An absent question yields the empty key.
func (c Candidate) Key() Key {
	if c.Question == nil {
		return ""
	}
	return Key(*c.Question)
}

// ToItem converts a valid candidate into an unsaved item (no ID, no CreatedAt).
func (c Candidate) ToItem() Item {
	item := Item{}
	if c.Category != nil {
		item.Category = *c.Category
	}
	if c.Question != nil {
		item.Question = *c.Question
	}
	if c.Answer != nil {
		item.Answer = *c.Answer
	}
	return item
}

// Key is the uniqueness key for jokes: the exact question text.
type Key string

// ResponseItem is the externally returned shape of an item.
// ID is generated per response and is not the storage identity.
type ResponseItem struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}
