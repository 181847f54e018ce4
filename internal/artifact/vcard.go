package artifact

import (
	"strings"
	"unicode"

	"github.com/vcfgather/server/internal/model"
)

// WriteVCard appends one vCard 3.0 block for p to b
func WriteVCard(b *strings.Builder, p model.Participant) {
	b.WriteString("BEGIN:VCARD\n")
	b.WriteString("VERSION:3.0\n")
	b.WriteString("FN:")
	b.WriteString(oneLine(p.Name))
	b.WriteString("\n")
	b.WriteString("TEL;TYPE=CELL:")
	b.WriteString(oneLine(p.Phone))
	b.WriteString("\n")
	b.WriteString("END:VCARD\n")
}

// oneLine replaces control characters with spaces so a value cannot end its line
func oneLine(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
}

// Encode serializes participants in order, one vCard block each
func Encode(participants []model.Participant) string {
	var b strings.Builder
	for _, p := range participants {
		WriteVCard(&b, p)
	}
	return b.String()
}
