// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package triples

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ex = "http://example.org/"

func TestLoadFile_Example(t *testing.T) {
	store, err := LoadFile(filepath.Join("..", "testdata", "example.nt"))
	require.NoError(t, err)

	assert.Equal(t, 12, store.Len())
	assert.True(t, store.Has(ex+"A1"))
	assert.True(t, store.Has(ex+"E"), "objects are resources too")
	assert.False(t, store.Has(ex+"Z"))

	out := store.Outgoing(ex + "A1")
	require.Len(t, out, 2)
	assert.Equal(t, Triple{ex + "A1", ex + "P2", ex + "C"}, out[0])
	assert.Equal(t, Triple{ex + "A1", ex + "P3", ex + "D"}, out[1])
	assert.Empty(t, store.Outgoing(ex+"E"))
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.nt"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestReadNTriples_TermKinds(t *testing.T) {
	input := strings.Join([]string{
		"# comment line",
		"",
		`<http://example.org/A1> <http://example.org/name> "alpha one"@en .`,
		`_:b0 <http://example.org/P1> <http://example.org/A1> .`,
		`   `,
	}, "\n")

	store, err := ReadNTriples(strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, 2, store.Len())

	ts := store.Triples()
	assert.Equal(t, ex+"A1", ts[0].Subject)
	assert.Equal(t, ex+"name", ts[0].Predicate)
	assert.Equal(t, `"alpha one"@en`, ts[0].Object)
	assert.Equal(t, "_:b0", ts[1].Subject)
}

func TestReadNTriples_ParseErrorLine(t *testing.T) {
	input := "<http://example.org/A1> <http://example.org/P2> <http://example.org/C> .\n" +
		"# fine\n" +
		"this is not rdf\n"

	_, err := ReadNTriples(strings.NewReader(input))
	require.Error(t, err)

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 3, perr.Line)
	assert.Contains(t, perr.Error(), "line 3")
}

func TestStore_Deduplicates(t *testing.T) {
	store := NewStore()
	tr := Triple{"s", "p", "o"}

	assert.True(t, store.Add(tr))
	assert.False(t, store.Add(tr))
	assert.Equal(t, 1, store.Len())
	assert.Len(t, store.Outgoing("s"), 1)
}

func TestStore_SubjectsWithPredicateSuffix(t *testing.T) {
	store := FromSlice([]Triple{
		{"x1", "http://ex/hasType", "T"},
		{"x2", "http://ex/label", "L"},
		{"x1", "http://ex/otherType", "U"},
		{"x3", "http://ex/hasType", "T"},
	})

	assert.Equal(t, []string{"x1", "x3"}, store.SubjectsWithPredicateSuffix("hasType"))
	assert.Equal(t, []string{"x1", "x3"}, store.SubjectsWithPredicateSuffix("Type"))
	assert.Equal(t, []string{"x1", "x2", "x3"}, store.SubjectsWithPredicateSuffix(""))
	assert.Empty(t, store.SubjectsWithPredicateSuffix("missing"))
}

func TestStore_FingerprintIsOrderIndependent(t *testing.T) {
	a := FromSlice([]Triple{{"s", "p", "o"}, {"s", "q", "o2"}})
	b := FromSlice([]Triple{{"s", "q", "o2"}, {"s", "p", "o"}, {"s", "p", "o"}})
	c := FromSlice([]Triple{{"s", "p", "o"}})

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
	assert.Len(t, a.Fingerprint(), 64)
}

func TestStore_FingerprintSeparatesTerms(t *testing.T) {
	a := FromSlice([]Triple{{"ab", "c", "d"}})
	b := FromSlice([]Triple{{"a", "bc", "d"}})
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}
