package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/runixer/shastrarthi/internal/storage"
)

// textWriter is implemented by stores that accept library imports.
type textWriter interface {
	SaveText(ctx context.Context, text storage.Text) error
	SaveVerse(ctx context.Context, verse storage.Verse) error
}

// libraryFile is the YAML import format.
//
//	texts:
//	  - id: bhagavad-gita
//	    title_en: Bhagavad Gita
//	    category: Itihasa
//	    verses:
//	      - ref: "2.47"
//	        translation_en: You have a right to your duty...
type libraryFile struct {
	Texts []libraryText `yaml:"texts"`
}

type libraryText struct {
	storage.Text `yaml:",inline"`
	Verses       []storage.Verse `yaml:"verses"`
}

type importSummary struct {
	Texts  int `json:"texts"`
	Verses int `json:"verses"`
}

func newTextsCmd(c *ctl) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "texts",
		Short: "Manage the scripture library",
	}
	cmd.AddCommand(newTextsImportCmd(c))
	return cmd
}

func newTextsImportCmd(c *ctl) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Import texts and verses from a YAML file",
		Long: `Insert or update texts and their verses. Verse ids default to
<text id>-<ref>, order_index defaults to the position in the file and
verse_count defaults to the number of verses listed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			lib, err := parseLibrary(data)
			if err != nil {
				return err
			}

			svc, err := getServices(cmd, c)
			if err != nil {
				return err
			}
			w, ok := svc.Store.(textWriter)
			if !ok {
				return fmt.Errorf("database driver %q does not support text import", c.cfg.Database.Driver)
			}

			summary, err := importLibrary(cmd.Context(), w, lib)
			if err != nil {
				return err
			}
			if c.json() {
				return writeJSON(cmd.OutOrStdout(), summary)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d texts, %d verses\n", summary.Texts, summary.Verses)
			return nil
		},
	}
}

// parseLibrary decodes and normalizes an import file.
func parseLibrary(data []byte) (libraryFile, error) {
	var lib libraryFile
	if err := yaml.Unmarshal(data, &lib); err != nil {
		return libraryFile{}, fmt.Errorf("failed to parse library file: %w", err)
	}
	if len(lib.Texts) == 0 {
		return libraryFile{}, fmt.Errorf("library file has no texts")
	}

	for i := range lib.Texts {
		t := &lib.Texts[i]
		t.ID = strings.TrimSpace(t.ID)
		if t.ID == "" {
			return libraryFile{}, fmt.Errorf("text #%d: id is required", i+1)
		}
		if strings.TrimSpace(t.TitleEn) == "" {
			return libraryFile{}, fmt.Errorf("text %s: title_en is required", t.ID)
		}
		if t.Slug == "" {
			t.Slug = t.ID
		}
		if t.VerseCount == 0 {
			t.VerseCount = len(t.Verses)
		}

		for j := range t.Verses {
			v := &t.Verses[j]
			v.Ref = strings.TrimSpace(v.Ref)
			if v.Ref == "" {
				return libraryFile{}, fmt.Errorf("text %s verse #%d: ref is required", t.ID, j+1)
			}
			if v.TextID == "" {
				v.TextID = t.ID
			}
			if v.TextID != t.ID {
				return libraryFile{}, fmt.Errorf("text %s verse %s: belongs to text %s", t.ID, v.Ref, v.TextID)
			}
			if v.ID == "" {
				v.ID = t.ID + "-" + v.Ref
			}
			if v.OrderIndex == 0 {
				v.OrderIndex = j + 1
			}
		}
	}
	return lib, nil
}

func importLibrary(ctx context.Context, w textWriter, lib libraryFile) (importSummary, error) {
	var summary importSummary
	for _, t := range lib.Texts {
		if err := w.SaveText(ctx, t.Text); err != nil {
			return summary, err
		}
		summary.Texts++
		for _, v := range t.Verses {
			if err := w.SaveVerse(ctx, v); err != nil {
				return summary, err
			}
			summary.Verses++
		}
	}
	return summary, nil
}
