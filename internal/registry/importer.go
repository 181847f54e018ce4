package registry

import (
	"bufio"
	"io"
	"strings"
	"unicode/utf8"
)

// ImportRow is one parsed line of a bulk import
type ImportRow struct {
	Name  string
	Phone string
}

// valid mirrors the loose checks applied to imported rows
func (r ImportRow) valid() bool {
	return utf8.RuneCountInString(r.Name) > 1 && utf8.RuneCountInString(r.Phone) > 5 &&
		singleLine(r.Name) && singleLine(r.Phone)
}

// ParseImport reads one "name,phone" pair per line. Fields are trimmed; lines
// without both fields are skipped. Anything after a second comma is ignored.
func ParseImport(r io.Reader) ([]ImportRow, error) {
	var rows []ImportRow
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		parts := strings.Split(sc.Text(), ",")
		if len(parts) < 2 {
			continue
		}
		name := strings.TrimSpace(parts[0])
		phone := strings.TrimSpace(parts[1])
		if name == "" || phone == "" {
			continue
		}
		rows = append(rows, ImportRow{Name: name, Phone: phone})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}
