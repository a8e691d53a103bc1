// Reconcilia - Municipal External-Data Reconciliation Pipeline
// Copyright 2026 Mandato Lab
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mandatolab/reconcilia

// Package normalize canonicalizes free-text place names into comparison keys.
//
// Government datasets spell the same municipality inconsistently: "São José",
// "SAO JOSE", "Sao  Jose ". Key folds all of these to the single comparison
// key "SAO JOSE" so independent sources can be matched against the city
// catalog without fuzzy scoring.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks decomposes to NFD and removes combining diacritical marks.
// Recomposition to NFC afterwards keeps the result valid for any non-Latin
// characters that survive the mark removal.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Key canonicalizes a free-text place name into a comparison key:
// diacritics stripped, upper-cased, trimmed, internal whitespace collapsed
// to single spaces.
//
// Key is pure and deterministic. An empty or whitespace-only input yields
// the empty key; callers must treat an empty key as unresolvable.
func Key(name string) string {
	folded, _, err := transform.String(stripMarks, name)
	if err != nil {
		// Invalid UTF-8 sequences pass through untransformed; fall back to
		// the raw input so the key is still deterministic.
		folded = name
	}
	return strings.Join(strings.Fields(strings.ToUpper(folded)), " ")
}
