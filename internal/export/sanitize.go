package export

import (
	"strings"
	"unicode"

	"github.com/roadwatch/roadwatch-agent/internal/detection"
)

const (
	// MaxTitleLen is the CMX3600 title width.
	MaxTitleLen    = 70
	MaxClipNameLen = 64
	DefaultTitle   = "roadwatch_export"
)

// Title turns a batch name such as "A1-202406101230" into an EDL title that
// is also safe as a download filename. Runs of separators and punctuation
// become a single dash.
func Title(name string) string {
	t := strings.TrimRight(truncate(collapse(name, '-'), MaxTitleLen), "-")
	if t == "" {
		return DefaultTitle
	}
	return t
}

// ClipName names one defect track event: "label[ severity] (id)".
func ClipName(label, severity string, id detection.ID) string {
	name := collapse(label, '_')
	if name == "" {
		name = "unknown"
	}
	if s := collapse(severity, '_'); s != "" {
		name += " " + s
	}
	if i := collapse(string(id), '_'); i != "" {
		name += " (" + i + ")"
	}
	return truncate(name, MaxClipNameLen)
}

// collapse keeps letters, digits, '-', '_' and '.', drops control characters
// and replaces every other run of runes with one sep. The result never starts
// or ends with sep.
func collapse(s string, sep rune) string {
	var b strings.Builder
	pending := false
	for _, r := range s {
		switch {
		case unicode.IsControl(r):
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.':
			if pending && b.Len() > 0 {
				b.WriteRune(sep)
			}
			pending = false
			b.WriteRune(r)
		default:
			pending = true
		}
	}
	return b.String()
}

func truncate(s string, maxRunes int) string {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes])
}
