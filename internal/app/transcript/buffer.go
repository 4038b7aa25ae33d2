package transcript

import "strings"

// Buffer accumulates finalized speech with one space after every segment.
type Buffer struct {
	b strings.Builder
}

// Append right-trims a locally recognized segment and stores it. It returns
// the trimmed text, which is what goes over the wire; blank segments are
// ignored.
func (b *Buffer) Append(segment string) (string, bool) {
	text := strings.TrimRight(segment, " \t\r\n")
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	b.b.WriteString(text)
	b.b.WriteByte(' ')
	return text, true
}

// AppendReceived stores forwarded text as it arrived, plus the separator.
// Only the empty string is ignored.
func (b *Buffer) AppendReceived(text string) bool {
	if text == "" {
		return false
	}
	b.b.WriteString(text)
	b.b.WriteByte(' ')
	return true
}

func (b *Buffer) String() string { return b.b.String() }

func (b *Buffer) Len() int { return b.b.Len() }

// Reset discards the contents. Only call sessions ending do this.
func (b *Buffer) Reset() { b.b.Reset() }
