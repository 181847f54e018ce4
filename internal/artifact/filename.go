package artifact

import "strings"

const fallbackName = "Contact"

// Filename returns Group_<name>_Contacts.vcf with every character of the session
// name other than an ASCII letter or digit replaced by an underscore
func Filename(sessionName string) string {
	name := sanitize(sessionName)
	if name == "" {
		name = fallbackName
	}
	return "Group_" + name + "_Contacts.vcf"
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, s)
}
