package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"realestate-scraper/models"
)

const xlsxSheet = "Listings"

// xlsxHeader is the sheet layout; the URL column is the outer dedup key.
var xlsxHeader = []string{
	"Date Added", "Title", "Price", "Location", "Size", "Type", "URL",
	"Source", "Description", "Contact Info", "Last Updated",
}

const xlsxURLColumn = 6

// XLSXSync keeps a spreadsheet of listings. It decides what to append from
// the URLs already in the sheet, independent of any ListingStore.
type XLSXSync struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewXLSXSync targets the workbook at path; it is created on first Append.
func NewXLSXSync(path string) *XLSXSync {
	return &XLSXSync{path: path, now: time.Now}
}

// KnownURLs reads the URL column of the sheet.
func (x *XLSXSync) KnownURLs() (map[string]struct{}, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	_, sheet, err := x.open()
	if err != nil {
		return nil, err
	}
	return urlsIn(sheet), nil
}

// Append adds the listings whose URL the sheet does not hold yet and
// returns without writing when nothing is new.
func (x *XLSXSync) Append(listings []*models.PersistedListing) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	f, sheet, err := x.open()
	if err != nil {
		return err
	}
	known := urlsIn(sheet)

	added := 0
	for _, l := range listings {
		if _, ok := known[l.URL]; ok || l.URL == "" {
			continue
		}
		known[l.URL] = struct{}{}
		addRow(sheet, x.row(l))
		added++
	}
	if added == 0 {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(x.path), 0755); err != nil {
		return eris.Wrap(err, "xlsx: create output dir")
	}
	if err := f.Save(x.path); err != nil {
		return eris.Wrapf(err, "xlsx: save %q", x.path)
	}
	return nil
}

// open loads the workbook, or starts a new one with the header row.
func (x *XLSXSync) open() (*xlsx.File, *xlsx.Sheet, error) {
	if _, err := os.Stat(x.path); errors.Is(err, os.ErrNotExist) {
		f := xlsx.NewFile()
		sheet, err := f.AddSheet(xlsxSheet)
		if err != nil {
			return nil, nil, eris.Wrap(err, "xlsx: add sheet")
		}
		addRow(sheet, xlsxHeader)
		return f, sheet, nil
	}

	f, err := xlsx.OpenFile(x.path)
	if err != nil {
		return nil, nil, eris.Wrap(err, "xlsx: open file")
	}
	sheet, ok := f.Sheet[xlsxSheet]
	if !ok {
		if sheet, err = f.AddSheet(xlsxSheet); err != nil {
			return nil, nil, eris.Wrap(err, "xlsx: add sheet")
		}
		addRow(sheet, xlsxHeader)
	}
	return f, sheet, nil
}

func (x *XLSXSync) row(l *models.PersistedListing) []string {
	contact := make([]string, 0, 3)
	for _, c := range []string{l.Contact.Phone, l.Contact.Email, l.Contact.WhatsApp} {
		if c != "" {
			contact = append(contact, c)
		}
	}
	return []string{
		l.FirstSeen.Format("2006-01-02"),
		l.Title,
		formatFloat(l.Price),
		l.Location.String(),
		formatFloat(l.Size),
		l.PropertyType,
		l.URL,
		l.Source,
		l.Description,
		strings.Join(contact, ", "),
		x.now().Format("2006-01-02 15:04:05"),
	}
}

func urlsIn(sheet *xlsx.Sheet) map[string]struct{} {
	urls := make(map[string]struct{}, len(sheet.Rows))
	for i, row := range sheet.Rows {
		if i == 0 || len(row.Cells) <= xlsxURLColumn {
			continue
		}
		if u := strings.TrimSpace(row.Cells[xlsxURLColumn].String()); u != "" {
			urls[u] = struct{}{}
		}
	}
	return urls
}

func addRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
