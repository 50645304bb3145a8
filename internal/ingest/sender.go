package ingest

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/emersion/go-message/mail"

	"github.com/MikeSquared-Agency/triage/internal/record"
)

// ParseSender splits a sender field into display name and address. A
// "Name <addr>" form keeps its name; a bare address gets a name built from
// its local part ("jane.doe" becomes "Jane Doe"). Text without an @ is
// used as both name and address.
func ParseSender(raw string) record.Sender {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return record.Sender{}
	}

	if addr, err := mail.ParseAddress(raw); err == nil {
		name := strings.TrimSpace(addr.Name)
		if name == "" {
			name = nameFromAddress(addr.Address)
		}
		return record.Sender{Name: name, Email: addr.Address}
	}

	if !strings.Contains(raw, "@") {
		return record.Sender{Name: raw, Email: raw}
	}
	return record.Sender{Name: nameFromAddress(raw), Email: raw}
}

func nameFromAddress(addr string) string {
	local, _, _ := strings.Cut(addr, "@")
	var parts []string
	for _, p := range strings.Split(local, ".") {
		if p == "" {
			continue
		}
		parts = append(parts, capitalize(p))
	}
	return strings.Join(parts, " ")
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
