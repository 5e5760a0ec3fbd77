package numbering

import (
	"fmt"
	"strconv"
	"strings"
)

// Placeholder labels. A template is literal text with {label} or {label:width} tokens.
const (
	LabelDepartment   = "department"
	LabelDocumentType = "doctype"
	LabelYear2        = "year2"
	LabelYear4        = "year4"
	LabelMonth2       = "month2"
	LabelSequence     = "seq"
)

type segmentKind uint8

const (
	segLiteral segmentKind = iota
	segDepartment
	segDocumentType
	segYear2
	segYear4
	segMonth2
	segSequence
)

var labelKinds = map[string]segmentKind{
	LabelDepartment:   segDepartment,
	LabelDocumentType: segDocumentType,
	LabelYear2:        segYear2,
	LabelYear4:        segYear4,
	LabelMonth2:       segMonth2,
	LabelSequence:     segSequence,
}

type segment struct {
	kind  segmentKind
	text  string // literal text
	width int    // seq only; 0 means the rule's default width
}

// Template is a parsed numbering template. It is immutable and safe for concurrent use.
type Template struct {
	raw      string
	segments []segment
}

// RenderContext holds the values substituted into a template.
type RenderContext struct {
	DepartmentCode   string
	DocumentTypeCode string
	Year             int
	Month            int
	Sequence         int64
	// SequenceWidth pads {seq} tokens that declare no width.
	SequenceWidth int
}

// ParseTemplate tokenizes s. Errors carry CodeTemplateError.
func ParseTemplate(s string) (*Template, error) {
	if s == "" {
		return nil, templateError(s, "template is empty")
	}

	t := &Template{raw: s}
	var lit strings.Builder

	flush := func() {
		if lit.Len() > 0 {
			t.segments = append(t.segments, segment{kind: segLiteral, text: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(s); {
		switch s[i] {
		case '{':
			end := strings.IndexByte(s[i+1:], '}')
			if end < 0 {
				return nil, templateError(s, fmt.Sprintf("unterminated placeholder at offset %d", i))
			}
			token := s[i+1 : i+1+end]
			if strings.IndexByte(token, '{') >= 0 {
				return nil, templateError(s, fmt.Sprintf("nested '{' in placeholder at offset %d", i))
			}
			seg, err := parsePlaceholder(s, token)
			if err != nil {
				return nil, err
			}
			flush()
			t.segments = append(t.segments, seg)
			i += end + 2
		case '}':
			return nil, templateError(s, fmt.Sprintf("unmatched '}' at offset %d", i))
		default:
			lit.WriteByte(s[i])
			i++
		}
	}
	flush()

	return t, nil
}

func parsePlaceholder(raw, token string) (segment, error) {
	label, widthStr, hasWidth := strings.Cut(token, ":")
	if label == "" {
		return segment{}, templateError(raw, "empty placeholder label")
	}

	kind, ok := labelKinds[label]
	if !ok {
		return segment{}, templateError(raw, fmt.Sprintf("unknown placeholder {%s}", label))
	}

	seg := segment{kind: kind}
	if !hasWidth {
		return seg, nil
	}
	if kind != segSequence {
		return segment{}, templateError(raw, fmt.Sprintf("placeholder {%s} does not take a width", label))
	}

	width, err := strconv.Atoi(widthStr)
	if err != nil || width < 1 || width > MaxSequenceWidth {
		return segment{}, templateError(raw,
			fmt.Sprintf("invalid width %q in {%s}: must be 1..%d", widthStr, token, MaxSequenceWidth))
	}
	seg.width = width
	return seg, nil
}

// String returns the source text.
func (t *Template) String() string {
	return t.raw
}

// HasSequence reports whether the template contains a {seq} token.
func (t *Template) HasSequence() bool {
	for _, seg := range t.segments {
		if seg.kind == segSequence {
			return true
		}
	}
	return false
}

// SequenceWidth returns the narrowest effective {seq} width, falling back to
// defaultWidth for tokens without one and for templates without {seq}.
func (t *Template) SequenceWidth(defaultWidth int) int {
	narrowest := 0
	for _, seg := range t.segments {
		if seg.kind != segSequence {
			continue
		}
		w := seg.width
		if w == 0 {
			w = defaultWidth
		}
		if narrowest == 0 || w < narrowest {
			narrowest = w
		}
	}
	if narrowest == 0 {
		return defaultWidth
	}
	return narrowest
}

// Render substitutes rc into the template. It has no side effects.
func (t *Template) Render(rc RenderContext) (string, error) {
	if rc.Month < 1 || rc.Month > 12 {
		return "", templateError(t.raw, fmt.Sprintf("month %d out of range", rc.Month))
	}
	if rc.Year < MinYear || rc.Year > MaxYear {
		return "", templateError(t.raw, fmt.Sprintf("year %d out of range", rc.Year))
	}
	if rc.Sequence < 0 {
		return "", templateError(t.raw, fmt.Sprintf("negative sequence %d", rc.Sequence))
	}

	var b strings.Builder
	b.Grow(len(t.raw) + 16)

	for _, seg := range t.segments {
		switch seg.kind {
		case segLiteral:
			b.WriteString(seg.text)
		case segDepartment:
			b.WriteString(rc.DepartmentCode)
		case segDocumentType:
			b.WriteString(rc.DocumentTypeCode)
		case segYear2:
			fmt.Fprintf(&b, "%02d", rc.Year%100)
		case segYear4:
			fmt.Fprintf(&b, "%04d", rc.Year)
		case segMonth2:
			fmt.Fprintf(&b, "%02d", rc.Month)
		case segSequence:
			width := seg.width
			if width == 0 {
				width = rc.SequenceWidth
			}
			if width < 1 || width > MaxSequenceWidth {
				return "", templateError(t.raw, fmt.Sprintf("sequence width %d out of range", width))
			}
			digits := strconv.FormatInt(rc.Sequence, 10)
			if len(digits) > width {
				return "", templateError(t.raw,
					fmt.Sprintf("sequence %d does not fit in %d digits", rc.Sequence, width))
			}
			b.WriteString(strings.Repeat("0", width-len(digits)))
			b.WriteString(digits)
		}
	}

	return b.String(), nil
}

// Render parses template and renders it in one step.
func Render(template string, rc RenderContext) (string, error) {
	t, err := ParseTemplate(template)
	if err != nil {
		return "", err
	}
	return t.Render(rc)
}
