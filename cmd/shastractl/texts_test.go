package main

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runixer/shastrarthi/internal/storage"
)

const ishaYAML = `texts:
  - id: isha-upanishad
    title_en: Isha Upanishad
    title_sa: ईशोपनिषद्
    category: Upanishad
    tradition: Vedanta
    verses:
      - ref: "1"
        sanskrit: ईशा वास्यमिदं सर्वं
        translation_en: All this is pervaded by the Lord.
      - ref: "2"
        translation_en: Doing works here, one should wish to live a hundred years.
`

func TestTextsImport(t *testing.T) {
	cli := newTestCLI(t)
	require.NoError(t, os.WriteFile("isha.yaml", []byte(ishaYAML), 0o644))

	out, err := cli.run("texts", "import", "isha.yaml")
	require.NoError(t, err)
	assert.Equal(t, "Imported 1 texts, 2 verses\n", out)

	ctx := context.Background()
	text, err := cli.store.GetText(ctx, "isha-upanishad")
	require.NoError(t, err)
	assert.Equal(t, "Isha Upanishad", text.TitleEn)
	assert.Equal(t, "isha-upanishad", text.Slug)
	assert.Equal(t, 2, text.VerseCount)

	verse, err := cli.store.GetVerse(ctx, "isha-upanishad", "2")
	require.NoError(t, err)
	assert.Equal(t, "isha-upanishad-2", verse.ID)
	assert.Equal(t, 2, verse.OrderIndex)

	// Re-import updates in place
	_, err = cli.run("texts", "import", "isha.yaml")
	require.NoError(t, err)
	verses, err := cli.store.GetVersesByText(ctx, "isha-upanishad", 0)
	require.NoError(t, err)
	assert.Len(t, verses, 2)
}

// readOnlyStore hides the write methods of the SQLite store.
type readOnlyStore struct {
	storage.Storage
}

func TestTextsImport_UnsupportedStore(t *testing.T) {
	cli := newTestCLI(t)
	cli.svc.Store = readOnlyStore{cli.store}
	require.NoError(t, os.WriteFile("isha.yaml", []byte(ishaYAML), 0o644))

	_, err := cli.run("texts", "import", "isha.yaml")

	assert.ErrorContains(t, err, "does not support text import")
}

func TestTextsImport_MissingFile(t *testing.T) {
	cli := newTestCLI(t)

	_, err := cli.run("texts", "import", "missing.yaml")

	assert.ErrorContains(t, err, "failed to read")
	assert.Zero(t, cli.setups)
}

func TestParseLibrary_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"not yaml", "texts: [", "failed to parse"},
		{"no texts", "texts: []", "no texts"},
		{"missing id", "texts:\n  - title_en: X", "id is required"},
		{"missing title", "texts:\n  - id: x", "title_en is required"},
		{"missing ref", "texts:\n  - id: x\n    title_en: X\n    verses:\n      - translation_en: t", "ref is required"},
		{"foreign verse", "texts:\n  - id: x\n    title_en: X\n    verses:\n      - ref: \"1\"\n        text_id: y", "belongs to text y"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseLibrary([]byte(tt.yaml))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestParseLibrary_KeepsExplicitValues(t *testing.T) {
	lib, err := parseLibrary([]byte(`texts:
  - id: gita
    slug: bhagavad-gita
    title_en: Bhagavad Gita
    verse_count: 700
    verses:
      - id: bg-2-47
        ref: "2.47"
        order_index: 47
`))
	require.NoError(t, err)

	text := lib.Texts[0]
	assert.Equal(t, "bhagavad-gita", text.Slug)
	assert.Equal(t, 700, text.VerseCount)
	assert.Equal(t, "bg-2-47", text.Verses[0].ID)
	assert.Equal(t, 47, text.Verses[0].OrderIndex)
	assert.Equal(t, "gita", text.Verses[0].TextID)
}
