package audit

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// SampleSource names the built-in dataset.
const SampleSource = "sample"

type column string

const (
	colAddress column = "Address"
	colTitle   column = "Title 1"
	colMeta    column = "Meta Description 1"
	colStatus  column = "Status Code"
)

// header spellings accepted for each column, compared case-insensitively
var columnAliases = map[column][]string{
	colAddress: {"address", "url"},
	colTitle:   {"title 1", "title"},
	colMeta:    {"meta description 1", "meta description"},
	colStatus:  {"status code", "status"},
}

// Dataset is a crawl export: a header row and one row per page.
type Dataset struct {
	Source  string
	Columns []string
	Rows    [][]string
}

// LoadCSV reads a crawler export such as a Screaming Frog "Internal" tab.
func LoadCSV(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit dataset: %w", err)
	}
	defer f.Close()

	ds, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	ds.Source = path
	return ds, nil
}

// ReadCSV parses CSV with a header row. Rows may be ragged.
func ReadCSV(r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("dataset has no header row")
		}
		return nil, err
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	ds := &Dataset{Columns: header}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		ds.Rows = append(ds.Rows, rec)
	}
	return ds, nil
}

// SampleDataset is served when no crawl export is configured.
func SampleDataset() *Dataset {
	return &Dataset{
		Source:  SampleSource,
		Columns: []string{"Address", "Title 1", "Meta Description 1", "Status Code", "Content Type"},
		Rows: [][]string{
			{"http://example.com/", "Example Website - Your trusted partner for digital solutions and services", "Welcome to Example.com - providing quality services since 2020", "200", "text/html"},
			{"https://example.com/about", "About Us - Example Company", "Learn more about our company history and mission", "200", "text/html"},
			{"http://example.com/contact", "Contact Us Today for More Information About Our Services", "", "200", "text/html"},
			{"https://example.com/services", "Our Services", "Comprehensive services for your business needs", "200", "text/html"},
			{"http://example.com/blog/post-1", "Blog Post 1 - Detailed analysis of modern web development trends and best practices", "Read our latest insights on web development", "404", "text/html"},
		},
	}
}

// index returns the position of c in the header, or -1.
func (d *Dataset) index(c column) int {
	for i, name := range d.Columns {
		n := strings.ToLower(strings.TrimSpace(name))
		for _, alias := range columnAliases[c] {
			if n == alias {
				return i
			}
		}
	}
	return -1
}

func (d *Dataset) cell(row, col int) string {
	if col < 0 || col >= len(d.Rows[row]) {
		return ""
	}
	return strings.TrimSpace(d.Rows[row][col])
}
