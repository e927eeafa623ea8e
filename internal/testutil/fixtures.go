package testutil

import (
	"context"
	"testing"

	"github.com/runixer/shastrarthi/internal/storage"
)

// GitaTextID is the id of the text created by SeedGita.
const GitaTextID = "bhagavad-gita"

// TestText returns the Bhagavad Gita fixture.
func TestText() storage.Text {
	return storage.Text{
		ID:          GitaTextID,
		Slug:        "bhagavad-gita",
		TitleEn:     "Bhagavad Gita",
		TitleSa:     "भगवद्गीता",
		Category:    "Itihasa",
		Tradition:   "Vedanta",
		Difficulty:  "beginner",
		Description: "Dialogue between Krishna and Arjuna on duty and liberation.",
		VerseCount:  700,
	}
}

// TestVerses returns chapter 2 verses 44-50, in reading order.
func TestVerses() []storage.Verse {
	rows := []struct {
		ref         string
		sanskrit    string
		translation string
	}{
		{"2.44", "", "Those attached to pleasure and power lack resolute intelligence."},
		{"2.45", "", "The Vedas deal with the three gunas; rise above them."},
		{"2.46", "", "A well serves little where there is a flood."},
		{"2.47", "कर्मण्येवाधिकारस्ते मा फलेषु कदाचन", "You have a right to your duty, never to its fruits."},
		{"2.48", "योगस्थः कुरु कर्माणि", "Perform action established in yoga, abandoning attachment."},
		{"2.49", "", "Action with desire is far inferior to the yoga of wisdom."},
		{"2.50", "", "Yoga is skill in action."},
	}

	verses := make([]storage.Verse, len(rows))
	for i, r := range rows {
		verses[i] = storage.Verse{
			ID:            GitaTextID + "-" + r.ref,
			TextID:        GitaTextID,
			Ref:           r.ref,
			OrderIndex:    44 + i,
			Sanskrit:      r.sanskrit,
			TranslationEn: r.translation,
		}
	}
	verses[3].Transliteration = "karmaṇy evādhikāras te mā phaleṣu kadācana"
	return verses
}

// SeedGita stores TestText and TestVerses.
func SeedGita(t *testing.T, store *storage.SQLiteStore) {
	t.Helper()
	ctx := context.Background()
	if err := store.SaveText(ctx, TestText()); err != nil {
		t.Fatal(err)
	}
	for _, v := range TestVerses() {
		if err := store.SaveVerse(ctx, v); err != nil {
			t.Fatal(err)
		}
	}
}
