package storage

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"realestate-scraper/models"
)

var csvHeader = []string{
	"url", "title", "price", "size_sqm", "rooms", "city", "neighborhood", "property_type",
	"category", "deal_type", "features", "phone", "email", "whatsapp", "description",
	"source", "extracted_at",
}

// CSVWriter writes candidate listings to a CSV file.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, eris.Wrap(err, "csv: create output dir")
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, eris.Wrapf(err, "csv: create file %q", path)
	}

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		_ = f.Close()
		return nil, eris.Wrap(err, "csv: write header")
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w}, nil
}

// WriteCandidates appends one row per candidate. Missing numbers are empty cells.
func (c *CSVWriter) WriteCandidates(candidates []*models.CandidateListing) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, l := range candidates {
		row := []string{
			l.URL,
			l.Title,
			formatFloat(l.Price),
			formatFloat(l.Size),
			formatFloat(l.Rooms),
			l.Location.City,
			l.Location.Neighborhood,
			l.PropertyType,
			string(l.Category),
			l.DealType,
			strings.Join(l.Features, ";"),
			l.Contact.Phone,
			l.Contact.Email,
			l.Contact.WhatsApp,
			l.Description,
			l.Source,
			l.ExtractedAt.Format(time.RFC3339),
		}
		if err := c.writer.Write(row); err != nil {
			return eris.Wrap(err, "csv: write row")
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}
