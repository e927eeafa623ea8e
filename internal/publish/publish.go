// Package publish turns simplify and translate outputs into public explore
// pages, reusing an existing page when the same source was already published.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/runixer/shastrarthi/internal/config"
	"github.com/runixer/shastrarthi/internal/storage"
)

// Mode is a publishable generation mode.
type Mode string

const (
	ModeSimplify  Mode = "simplify"
	ModeTranslate Mode = "translate"
)

const (
	// DefaultLanguage is used when the requested language is blank.
	DefaultLanguage = "English"
	defaultSlug     = "shastra-explanation"
	defaultTitle    = "Indic passage"

	maxTitleSourceRunes   = 90
	maxMetaSnippetRunes   = 110
	maxMetaDescription    = 160
	maxSlugSourceRunes    = 60
	maxSlugRunes          = 120
	maxKeywordSourceWords = 6
	maxKeywords           = 12
)

var (
	whitespace     = regexp.MustCompile(`\s+`)
	slugUnsafe     = regexp.MustCompile(`[^a-z0-9\s-]`)
	dashes         = regexp.MustCompile(`-+`)
	keywordUnsafe  = regexp.MustCompile(`[^a-z0-9\s]`)
	errSlugsTaken  = errors.New("all slug attempts conflicted")
	errEmptyInsert = errors.New("insert returned no page")
)

// Request describes a generation output that may be published.
type Request struct {
	Mode        Mode
	Language    string
	SourceQuery string
	Content     string
}

// Page is the public reference returned to the client.
type Page struct {
	Slug  string `json:"slug"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Deduper finds or creates public pages.
type Deduper struct {
	repo    storage.PublicPageRepository
	cfg     config.PublishConfig
	siteURL string
	logger  *slog.Logger
}

func NewDeduper(repo storage.PublicPageRepository, cfg config.PublishConfig, siteURL string, logger *slog.Logger) *Deduper {
	return &Deduper{
		repo:    repo,
		cfg:     cfg,
		siteURL: strings.TrimRight(siteURL, "/"),
		logger:  logger.With("component", "publish"),
	}
}

// FindOrCreate returns the page for req, or nil when the content does not
// pass the publish gate or the page could not be saved. Failures are logged,
// never returned.
func (d *Deduper) FindOrCreate(ctx context.Context, req Request) *Page {
	if !d.publishable(req) {
		recordResult(req.Mode, resultSkipped)
		return nil
	}
	language := NormalizeLanguage(req.Language)

	normalized := d.normalizeSource(req.SourceQuery)
	existing, err := d.findExisting(ctx, req.Mode, language, normalized)
	if err != nil {
		// Lookup is best effort; fall through to creating a page.
		d.logger.Warn("public page lookup failed", "mode", req.Mode, "language", language, "error", err)
	}
	if existing != nil {
		recordResult(req.Mode, resultReused)
		return d.page(existing.Slug, existing.Title)
	}

	saved, err := d.create(ctx, req.Mode, language, req.SourceQuery, req.Content)
	if err != nil {
		recordResult(req.Mode, resultFailed)
		d.logger.Error("failed to persist public page", "mode", req.Mode, "language", language, "error", err)
		return nil
	}
	recordResult(req.Mode, resultCreated)
	d.logger.Info("public page created", "slug", saved.Slug, "mode", req.Mode, "language", language)
	return d.page(saved.Slug, saved.Title)
}

// Find returns the page already published for source, or nil.
func (d *Deduper) Find(ctx context.Context, mode Mode, language, source string) (*Page, error) {
	existing, err := d.findExisting(ctx, mode, NormalizeLanguage(language), d.normalizeSource(source))
	if err != nil {
		return nil, fmt.Errorf("failed to list public pages: %w", err)
	}
	if existing == nil {
		return nil, nil
	}
	return d.page(existing.Slug, existing.Title), nil
}

func (d *Deduper) publishable(req Request) bool {
	if req.Mode != ModeSimplify && req.Mode != ModeTranslate {
		return false
	}
	if strings.TrimSpace(req.SourceQuery) == "" {
		return false
	}
	return runeLen(strings.TrimSpace(req.Content)) >= d.cfg.GetMinContentLength()
}

func (d *Deduper) findExisting(ctx context.Context, mode Mode, language, normalized string) (*storage.PublicPage, error) {
	if normalized == "" {
		return nil, nil
	}
	pages, err := d.repo.ListPublicPages(ctx, string(mode), language, d.cfg.GetScanWindow())
	if err != nil {
		return nil, err
	}
	for i := range pages {
		if d.normalizeSource(pages[i].SourceQuery) == normalized {
			return &pages[i], nil
		}
	}
	return nil, nil
}

func (d *Deduper) create(ctx context.Context, mode Mode, language, source, content string) (*storage.PublicPage, error) {
	base := BaseSlug(mode, language, source)
	page := storage.PublicPage{
		Title:           DeriveTitle(mode, language, source),
		Content:         content,
		SourceQuery:     truncateRunes(source, d.cfg.GetMaxSourceQueryLength()),
		Language:        language,
		Mode:            string(mode),
		MetaDescription: DeriveMetaDescription(mode, language, content),
		Keywords:        DeriveKeywords(mode, language, source),
	}

	attempts := d.cfg.GetMaxSlugAttempts()
	for attempt := 0; attempt < attempts; attempt++ {
		page.Slug = base
		if attempt > 0 {
			page.Slug = fmt.Sprintf("%s-%d", base, attempt+1)
		}

		saved, err := d.repo.InsertPublicPage(ctx, page)
		if err == nil {
			if saved == nil {
				return nil, errEmptyInsert
			}
			return saved, nil
		}
		if !errors.Is(err, storage.ErrSlugConflict) {
			return nil, err
		}
		d.logger.Debug("slug taken, retrying", "slug", page.Slug, "attempt", attempt+1)
	}
	return nil, fmt.Errorf("%w: %s after %d attempts", errSlugsTaken, base, attempts)
}

func (d *Deduper) page(slug, title string) *Page {
	return &Page{
		Slug:  slug,
		Title: title,
		URL:   d.siteURL + "/explore/" + slug,
	}
}

func (d *Deduper) normalizeSource(source string) string {
	return truncateRunes(collapse(source), d.cfg.GetSourceNormalizeLength())
}

// NormalizeLanguage trims language and falls back to DefaultLanguage.
func NormalizeLanguage(language string) string {
	if l := strings.TrimSpace(language); l != "" {
		return l
	}
	return DefaultLanguage
}

func DeriveTitle(mode Mode, language, source string) string {
	action := "Simplified Meaning"
	if mode == ModeTranslate {
		action = "Translation"
	}
	compact := truncateRunes(collapse(source), maxTitleSourceRunes)
	if compact == "" {
		compact = defaultTitle
	}
	return strings.TrimSpace(fmt.Sprintf("%s %s in %s", compact, action, language))
}

func DeriveMetaDescription(mode Mode, language, content string) string {
	action := "simplified"
	if mode == ModeTranslate {
		action = "translated"
	}
	snippet := truncateRunes(collapse(content), maxMetaSnippetRunes)
	desc := fmt.Sprintf("Read this %s Shastra passage in %s. %s", action, language, snippet)
	return truncateRunes(desc, maxMetaDescription)
}

// DeriveKeywords returns the mode keywords, the language and the first words
// of source, deduplicated.
func DeriveKeywords(mode Mode, language, source string) []string {
	base := []string{"simplified meaning", "shastra simplifier"}
	if mode == ModeTranslate {
		base = []string{"translation", "shastra translation"}
	}

	words := strings.Fields(keywordUnsafe.ReplaceAllString(strings.ToLower(source), " "))
	if len(words) > maxKeywordSourceWords {
		words = words[:maxKeywordSourceWords]
	}

	candidates := append(base, strings.ToLower(language))
	candidates = append(candidates, words...)

	seen := make(map[string]bool, len(candidates))
	keywords := make([]string, 0, len(candidates))
	for _, k := range candidates {
		if seen[k] {
			continue
		}
		seen[k] = true
		keywords = append(keywords, k)
		if len(keywords) == maxKeywords {
			break
		}
	}
	return keywords
}

// BaseSlug derives the first slug candidate for a page.
func BaseSlug(mode Mode, language, source string) string {
	action := "meaning"
	if mode == ModeTranslate {
		action = "translation"
	}

	var parts []string
	for _, p := range []string{truncateRunes(source, maxSlugSourceRunes), action, language} {
		if s := Slugify(p); s != "" {
			parts = append(parts, s)
		}
	}
	slug := truncateRunes(strings.Join(parts, "-"), maxSlugRunes)
	if slug == "" {
		return defaultSlug
	}
	return slug
}

// Slugify lowercases s and keeps only [a-z0-9] runs joined by single dashes.
func Slugify(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	s = slugUnsafe.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(s, "-")
	s = dashes.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

func collapse(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func runeLen(s string) int {
	return len([]rune(s))
}
