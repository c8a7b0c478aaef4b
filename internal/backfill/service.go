// Package backfill manages the candidate pool workflow: supplier feed
// imports, CSV export for human coding, and re-import of coded rows into
// the confirmed catalog.
package backfill

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"thread.fit/stitch/internal/db"
	"thread.fit/stitch/internal/lexicon"
	"thread.fit/stitch/internal/resolver"
)

// csvHeader is the column order of the export file. ImportCodes accepts
// the same layout with the first column filled in.
var csvHeader = []string{"product_code", "title", "color_text", "source_url", "site_name", "brand"}

var productCodePattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9-]{2,31}$`)

// Store is the database surface the pool workflow needs.
type Store interface {
	BeginTx(ctx context.Context, opts db.TxOptions) (db.Tx, error)
	AppendPoolEntry(ctx context.Context, entry db.PoolEntry) (bool, error)
	ListPoolEntries(ctx context.Context, brand string) ([]db.PoolEntry, error)
	ScanProductURLCodes(ctx context.Context) ([]db.URLCodePair, error)
	ScanOfferURLCodes(ctx context.Context) ([]db.URLCodePair, error)
}

// Service runs the import and export operations.
type Service struct {
	store  Store
	lex    *lexicon.Lexicon
	cache  *resolver.URLCache
	logger zerolog.Logger
}

func NewService(store Store, lex *lexicon.Lexicon, cache *resolver.URLCache, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		lex:    lex,
		cache:  cache,
		logger: logger,
	}
}

// TxtReport summarizes one supplier feed import.
type TxtReport struct {
	Lines    int
	Products int
	Offers   int
	Pooled   int
	Skipped  int
}

// txtRow is one parsed supplier feed line:
// product_code \t brand \t title \t color_text \t source_url.
// The code column may be empty; such rows go to the pool.
type txtRow struct {
	ProductCode string
	Brand       string
	Title       string
	ColorText   string
	SourceURL   string
}

func parseTxtLine(line string) (txtRow, error) {
	fields := strings.Split(line, "\t")
	if len(fields) != 5 {
		return txtRow{}, fmt.Errorf("expected 5 tab-separated fields, got %d", len(fields))
	}
	row := txtRow{
		ProductCode: strings.ToUpper(strings.TrimSpace(fields[0])),
		Brand:       strings.ToLower(strings.TrimSpace(fields[1])),
		Title:       strings.TrimSpace(fields[2]),
		ColorText:   strings.TrimSpace(fields[3]),
		SourceURL:   strings.TrimSpace(fields[4]),
	}
	if row.Brand == "" {
		return txtRow{}, fmt.Errorf("brand is empty")
	}
	if row.Title == "" {
		return txtRow{}, fmt.Errorf("title is empty")
	}
	if row.ProductCode != "" && !productCodePattern.MatchString(row.ProductCode) {
		return txtRow{}, fmt.Errorf("malformed product code %q", row.ProductCode)
	}
	return row, nil
}

// ImportFromTxt loads a tab-separated supplier feed. Rows that carry a
// product code become confirmed catalog products (plus an offer when a
// URL is present); uncoded rows land in the candidate pool under the
// supplier's name. Malformed lines are logged and skipped, the import
// continues.
func (s *Service) ImportFromTxt(ctx context.Context, supplier, path string) (TxtReport, error) {
	supplier = strings.ToLower(strings.TrimSpace(supplier))
	if supplier == "" {
		return TxtReport{}, fmt.Errorf("supplier name is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return TxtReport{}, fmt.Errorf("read supplier feed %s: %w", path, err)
	}

	var report TxtReport
	for lineNo, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		report.Lines++

		row, err := parseTxtLine(line)
		if err != nil {
			report.Skipped++
			s.logger.Warn().
				Err(err).
				Int("line", lineNo+1).
				Str("supplier", supplier).
				Msg("skipping malformed feed line")
			continue
		}

		if row.ProductCode == "" {
			inserted, err := s.store.AppendPoolEntry(ctx, db.PoolEntry{
				SiteName:  supplier,
				SourceURL: row.SourceURL,
				Title:     row.Title,
				ColorText: row.ColorText,
				Brand:     row.Brand,
				Reason:    "supplier_feed",
			})
			if err != nil {
				return report, fmt.Errorf("pool append line %d: %w", lineNo+1, err)
			}
			if inserted {
				report.Pooled++
			}
			continue
		}

		if err := s.importCodedRow(ctx, supplier, row, db.SourceRankAutomatic, &report); err != nil {
			return report, fmt.Errorf("import line %d: %w", lineNo+1, err)
		}
	}

	s.logger.Info().
		Str("supplier", supplier).
		Int("lines", report.Lines).
		Int("products", report.Products).
		Int("offers", report.Offers).
		Int("pooled", report.Pooled).
		Int("skipped", report.Skipped).
		Msg("supplier feed imported")
	return report, nil
}

func (s *Service) importCodedRow(ctx context.Context, siteName string, row txtRow, rank int16, report *TxtReport) error {
	tx, err := s.store.BeginTx(ctx, db.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	entry := s.catalogEntryFor(row)
	var sourceURL *string
	if row.SourceURL != "" {
		sourceURL = &row.SourceURL
	}
	productInserted, err := db.InsertProductTx(ctx, tx, entry, rank, sourceURL)
	if err != nil {
		return err
	}
	offerInserted := false
	if row.SourceURL != "" {
		offerInserted, err = db.InsertOfferTx(ctx, tx, row.ProductCode, row.Brand, siteName, row.SourceURL)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	if productInserted {
		report.Products++
	}
	if offerInserted {
		report.Offers++
	}
	return nil
}

// catalogEntryFor derives the stored catalog projection from a coded row:
// title tokens split against the brand lexicon, color canonicalized.
func (s *Service) catalogEntryFor(row txtRow) db.CatalogEntry {
	l1, l2 := s.lex.Split(row.Brand, row.Title)
	return db.CatalogEntry{
		ProductCode:     row.ProductCode,
		Brand:           row.Brand,
		Title:           row.Title,
		NormalizedTitle: lexicon.Normalize(row.Title),
		L1Tokens:        l1,
		L2Tokens:        l2,
		ColorName:       s.lex.CanonicalColor(row.Brand, row.ColorText),
	}
}

// ExportCSV writes the pending pool entries for human coding. The
// product_code column is left blank for the coder to fill in. An empty
// brand exports every brand.
func (s *Service) ExportCSV(ctx context.Context, path, brand string) (int, error) {
	entries, err := s.store.ListPoolEntries(ctx, strings.ToLower(strings.TrimSpace(brand)))
	if err != nil {
		return 0, fmt.Errorf("list candidate pool: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create export file %s: %w", path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(csvHeader); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}
	for _, entry := range entries {
		record := []string{"", entry.Title, entry.ColorText, entry.SourceURL, entry.SiteName, entry.Brand}
		if err := writer.Write(record); err != nil {
			return 0, fmt.Errorf("write row url=%s: %w", entry.SourceURL, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return 0, fmt.Errorf("flush export: %w", err)
	}
	if err := file.Close(); err != nil {
		return 0, fmt.Errorf("close export: %w", err)
	}

	s.logger.Info().Str("path", path).Int("entries", len(entries)).Msg("candidate pool exported")
	return len(entries), nil
}

// CodesReport summarizes one coded-CSV import.
type CodesReport struct {
	Rows     int
	Imported int
	Skipped  int
}

type codedRow struct {
	ProductCode string
	Title       string
	ColorText   string
	SourceURL   string
	SiteName    string
	Brand       string
}

func parseCodedRecord(record []string) (codedRow, error) {
	if len(record) != len(csvHeader) {
		return codedRow{}, fmt.Errorf("expected %d columns, got %d", len(csvHeader), len(record))
	}
	row := codedRow{
		ProductCode: strings.ToUpper(strings.TrimSpace(record[0])),
		Title:       strings.TrimSpace(record[1]),
		ColorText:   strings.TrimSpace(record[2]),
		SourceURL:   strings.TrimSpace(record[3]),
		SiteName:    strings.ToLower(strings.TrimSpace(record[4])),
		Brand:       strings.ToLower(strings.TrimSpace(record[5])),
	}
	if row.ProductCode == "" {
		return codedRow{}, fmt.Errorf("product code is empty")
	}
	if !productCodePattern.MatchString(row.ProductCode) {
		return codedRow{}, fmt.Errorf("malformed product code %q", row.ProductCode)
	}
	if row.SiteName == "" || row.SourceURL == "" {
		return codedRow{}, fmt.Errorf("site name and source url are required")
	}
	if row.Brand == "" {
		return codedRow{}, fmt.Errorf("brand is empty")
	}
	return row, nil
}

// ImportCodes reads a coded CSV back in. Each valid row runs in its own
// transaction: locate the pool entry, insert the product with manual
// rank, record the offer, delete the pool row. Malformed or unknown rows
// are logged and retained in the pool so a later pass can pick them up.
// The URL cache is rewarmed once at the end.
func (s *Service) ImportCodes(ctx context.Context, path string) (CodesReport, error) {
	file, err := os.Open(path)
	if err != nil {
		return CodesReport{}, fmt.Errorf("open coded file %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return CodesReport{}, fmt.Errorf("read coded file %s: %w", path, err)
	}

	var report CodesReport
	for i, record := range records {
		if i == 0 && isHeaderRecord(record) {
			continue
		}
		report.Rows++

		row, err := parseCodedRecord(record)
		if err != nil {
			report.Skipped++
			s.logger.Warn().Err(err).Int("row", i+1).Msg("skipping malformed coded row")
			continue
		}

		if err := s.importCodedPoolRow(ctx, row); err != nil {
			report.Skipped++
			s.logger.Warn().
				Err(err).
				Int("row", i+1).
				Str("url", row.SourceURL).
				Msg("coded row not imported; pool entry retained")
			continue
		}
		report.Imported++
	}

	if s.cache != nil {
		if err := s.cache.Rewarm(ctx, s.store); err != nil {
			return report, fmt.Errorf("rewarm url cache: %w", err)
		}
	}

	s.logger.Info().
		Str("path", path).
		Int("rows", report.Rows).
		Int("imported", report.Imported).
		Int("skipped", report.Skipped).
		Msg("coded rows imported")
	return report, nil
}

func (s *Service) importCodedPoolRow(ctx context.Context, row codedRow) error {
	tx, err := s.store.BeginTx(ctx, db.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	poolEntry, found, err := db.FindPoolEntryTx(ctx, tx, row.SiteName, row.SourceURL)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no pool entry for site=%s url=%s", row.SiteName, row.SourceURL)
	}

	// The pool row is the source of truth for title and color; the CSV
	// may have been trimmed or re-edited by hand.
	title := poolEntry.Title
	if title == "" {
		title = row.Title
	}
	colorText := poolEntry.ColorText
	if colorText == "" {
		colorText = row.ColorText
	}

	entry := s.catalogEntryFor(txtRow{
		ProductCode: row.ProductCode,
		Brand:       row.Brand,
		Title:       title,
		ColorText:   colorText,
		SourceURL:   row.SourceURL,
	})
	sourceURL := row.SourceURL
	if _, err := db.InsertProductTx(ctx, tx, entry, db.SourceRankManual, &sourceURL); err != nil {
		return err
	}
	if _, err := db.InsertOfferTx(ctx, tx, row.ProductCode, row.Brand, row.SiteName, row.SourceURL); err != nil {
		return err
	}
	if _, err := db.DeletePoolEntryTx(ctx, tx, row.SiteName, row.SourceURL); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func isHeaderRecord(record []string) bool {
	if len(record) == 0 {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(record[0]), csvHeader[0])
}
