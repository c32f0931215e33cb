package document

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kirillkom/grantflow/internal/core/domain"
)

type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type Section struct {
	Index  int     `json:"index"`
	Title  string  `json:"title"`
	Fields []Field `json:"fields"`
}

func (s *Section) add(name, value string) {
	if strings.TrimSpace(value) == "" {
		value = NotProvided
	}
	s.Fields = append(s.Fields, Field{Name: name, Value: value})
}

// Value returns the first field with the given name.
func (s Section) Value(name string) (string, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Parsed is a draft read back from text.
type Parsed struct {
	SessionID string    `json:"session_id"`
	Sections  []Section `json:"sections"`
	Status    string    `json:"status"`
}

func (p Parsed) Section(title string) (Section, bool) {
	for _, s := range p.Sections {
		if s.Title == title {
			return s, true
		}
	}
	return Section{}, false
}

var sectionHeader = regexp.MustCompile(`^\[(\d+)\] (.+)$`)

// Parse reads a rendered draft back into its sections.
func Parse(text string) (Parsed, error) {
	var (
		out     Parsed
		current *Section
		last    *Field
	)

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		switch {
		case lineNo == 1:
			if line != Title {
				return Parsed{}, domain.InvalidField("document.parse", "title", fmt.Sprintf("expected %q, got %q", Title, line))
			}
			continue
		case line == "":
			last = nil
			continue
		case strings.HasPrefix(line, continuation):
			if last == nil {
				return Parsed{}, domain.InvalidField("document.parse", "line "+strconv.Itoa(lineNo), "continuation without a field")
			}
			last.Value += "\n" + strings.TrimPrefix(line, continuation)
			continue
		}

		if m := sectionHeader.FindStringSubmatch(line); m != nil {
			idx, _ := strconv.Atoi(m[1])
			out.Sections = append(out.Sections, Section{Index: idx, Title: m[2]})
			current = &out.Sections[len(out.Sections)-1]
			last = nil
			continue
		}

		name, value, ok := strings.Cut(line, ": ")
		if !ok {
			return Parsed{}, domain.InvalidField("document.parse", "line "+strconv.Itoa(lineNo), "expected \"Field: value\"")
		}
		switch {
		case current == nil && name == "Session ID":
			out.SessionID = value
			last = &Field{}
		case name == "Status":
			out.Status = value
			current = nil
			last = &Field{}
		case current == nil:
			return Parsed{}, domain.InvalidField("document.parse", "line "+strconv.Itoa(lineNo), "field outside of a section")
		default:
			current.Fields = append(current.Fields, Field{Name: name, Value: value})
			last = &current.Fields[len(current.Fields)-1]
		}
	}
	if err := scanner.Err(); err != nil {
		return Parsed{}, fmt.Errorf("scan draft: %w", err)
	}
	return out, nil
}
