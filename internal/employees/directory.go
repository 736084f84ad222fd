// Package employees provides the CSV-backed staff directory used to verify
// kiosk users before booking.
package employees

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrNoMatch indicates no employee matched the provided credentials.
var ErrNoMatch = errors.New("no matching employee")

// Employee is one row of the staff directory.
type Employee struct {
	FirstName string
	LastName  string
	Extension string // normalized, digits only
}

// FullName returns the employee's display name.
func (e Employee) FullName() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

// Directory loads and caches the employee roster from a CSV file. The file
// has a header row and at least the columns First, Last and Extension, in
// any order. Lookups match on last name (case-insensitive) plus the last
// four digits of the extension.
type Directory struct {
	path string

	mu     sync.RWMutex
	loaded bool
	roster []Employee
}

// NewDirectory creates a directory over the given CSV file. The file is not
// read until the first lookup.
func NewDirectory(path string) *Directory {
	return &Directory{path: path}
}

// Reset drops the cached roster so the next lookup re-reads the file.
func (d *Directory) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loaded = false
	d.roster = nil
}

// All returns the full roster, loading it on first use.
func (d *Directory) All() ([]Employee, error) {
	if err := d.ensureLoaded(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	roster := make([]Employee, len(d.roster))
	copy(roster, d.roster)
	return roster, nil
}

// Match finds the employee with the given last name and extension. The
// extension comparison uses the last four digits after normalization, so
// "69-4521", "4521" and "(555) 123-4521" all match the same person.
func (d *Directory) Match(lastName, extension string) (Employee, error) {
	if err := d.ensureLoaded(); err != nil {
		return Employee{}, err
	}

	lastName = strings.ToLower(strings.TrimSpace(lastName))
	wanted := lastFour(normalizeExtension(extension))
	if lastName == "" || wanted == "" {
		return Employee{}, ErrNoMatch
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, e := range d.roster {
		if strings.ToLower(e.LastName) == lastName && lastFour(e.Extension) == wanted {
			return e, nil
		}
	}
	return Employee{}, ErrNoMatch
}

func (d *Directory) ensureLoaded() error {
	d.mu.RLock()
	loaded := d.loaded
	d.mu.RUnlock()
	if loaded {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.loaded {
		return nil
	}

	f, err := os.Open(d.path)
	if err != nil {
		return fmt.Errorf("opening employee roster: %w", err)
	}
	defer f.Close()

	roster, err := parseRoster(f)
	if err != nil {
		return fmt.Errorf("parsing employee roster %s: %w", d.path, err)
	}

	d.roster = roster
	d.loaded = true
	log.Info().Str("path", d.path).Int("employees", len(roster)).Msg("employee roster loaded")
	return nil
}

func parseRoster(r io.Reader) ([]Employee, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	first, last, ext := -1, -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "first", "first name", "firstname":
			first = i
		case "last", "last name", "lastname":
			last = i
		case "extension", "ext", "phone":
			ext = i
		}
	}
	if last == -1 || ext == -1 {
		return nil, errors.New("header must include Last and Extension columns")
	}

	var roster []Employee
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		e := Employee{
			LastName:  field(record, last),
			Extension: normalizeExtension(field(record, ext)),
		}
		if first != -1 {
			e.FirstName = field(record, first)
		}
		if e.LastName == "" || e.Extension == "" {
			continue
		}
		roster = append(roster, e)
	}
	return roster, nil
}

func field(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// normalizeExtension strips the internal dialing prefix and every
// non-digit character.
func normalizeExtension(ext string) string {
	ext = strings.TrimSpace(ext)
	ext = strings.TrimPrefix(ext, "69-")
	var digits strings.Builder
	for _, r := range ext {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	return digits.String()
}

func lastFour(digits string) string {
	if len(digits) <= 4 {
		return digits
	}
	return digits[len(digits)-4:]
}
