// Package random generates short identifiers.
package random

import gonanoid "github.com/matoous/go-nanoid/v2"

// SlugAlphabet leaves out characters that are easy to misread: 0/O, 1/l/I.
const SlugAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// NewSlug returns a random slug of the given length drawn from SlugAlphabet
// using crypto/rand.
func NewSlug(length int) (string, error) {
	return gonanoid.Generate(SlugAlphabet, length)
}
