package docnorm

import (
	"context"
	"strings"
	"time"
)

// markdownNormalizer converts Markdown text to canonical blocks with a
// single left-to-right line scan. Each line is classified in priority
// order: heading, code fence, list item, blank line, paragraph content.
// Pending paragraph lines are flushed at every transition point.
//
// Fenced code blocks collect their body through the matching closing fence
// (an unterminated fence keeps whatever was collected). The block keeps the
// position assigned at the opening fence.
type markdownNormalizer struct{}

// mdScanner is the scan state: the not-yet-flushed paragraph buffer and the
// next block position.
type mdScanner struct {
	pending []string
	next    int
	blocks  []ContentBlock
	outline []OutlineItem
}

// flush emits the pending paragraph if it is non-empty after joining and
// trimming. The buffer is cleared either way.
func (s *mdScanner) flush() {
	if len(s.pending) == 0 {
		return
	}
	text := strings.TrimSpace(strings.Join(s.pending, "\n"))
	s.pending = s.pending[:0]
	if text == "" {
		return
	}
	s.blocks = append(s.blocks, ContentBlock{
		Type:       BlockParagraph,
		Content:    text,
		Position:   s.next,
		PageNumber: 1,
	})
	s.next++
}

func (s *mdScanner) heading(line string) {
	s.flush()

	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level > 6 {
		level = 6
	}
	text := strings.TrimSpace(strings.TrimLeft(line, "#"))

	s.blocks = append(s.blocks, ContentBlock{
		Type:         BlockHeading,
		Content:      text,
		Position:     s.next,
		HeadingLevel: level,
		PageNumber:   1,
	})
	s.outline = append(s.outline, OutlineItem{
		Title:      text,
		Level:      level,
		Position:   s.next,
		PageNumber: 1,
	})
	s.next++
}

// openFence emits the code block immediately and returns its index so the
// body can be filled in when the fence closes.
func (s *mdScanner) openFence(line string) int {
	s.flush()

	s.blocks = append(s.blocks, ContentBlock{
		Type:         BlockCode,
		Position:     s.next,
		CodeLanguage: strings.TrimSpace(line[3:]),
		PageNumber:   1,
	})
	s.next++
	return len(s.blocks) - 1
}

func (s *mdScanner) listItem(line, trimmed string) {
	s.flush()

	listType := "unordered"
	if trimmed[0] >= '0' && trimmed[0] <= '9' {
		listType = "ordered"
	}
	item := strings.TrimSpace(strings.TrimLeft(trimmed, "-*+0123456789. "))

	s.blocks = append(s.blocks, ContentBlock{
		Type:       BlockList,
		Content:    item,
		Position:   s.next,
		ListType:   listType,
		ListItems:  []string{item},
		PageNumber: 1,
	})
	s.next++
}

// isMDListItem reports whether a line is a bullet ("- ", "* ", "+ ") or an
// ordered marker (leading digit with ". " within the first four characters
// of the raw line).
func isMDListItem(line, trimmed string) bool {
	if strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ") || strings.HasPrefix(trimmed, "+ ") {
		return true
	}
	if trimmed == "" || trimmed[0] < '0' || trimmed[0] > '9' {
		return false
	}
	head := line
	if len(head) > 4 {
		head = head[:4]
	}
	return strings.Contains(head, ". ")
}

func (n *markdownNormalizer) normalize(_ context.Context, data []byte, filename string, _ Options) (*Document, error) {
	start := time.Now()
	content := decodeText(data)

	sc := &mdScanner{blocks: []ContentBlock{}, outline: []OutlineItem{}}
	inFence := false
	fenceIdx := -1
	var fenceBody []string

	for _, line := range strings.Split(content, "\n") {
		if inFence {
			if strings.HasPrefix(line, "```") {
				sc.blocks[fenceIdx].Content = strings.Join(fenceBody, "\n")
				fenceBody = nil
				inFence = false
				continue
			}
			fenceBody = append(fenceBody, line)
			continue
		}

		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "#"):
			sc.heading(line)
		case strings.HasPrefix(line, "```"):
			fenceIdx = sc.openFence(line)
			inFence = true
		case isMDListItem(line, trimmed):
			sc.listItem(line, trimmed)
		case trimmed == "":
			sc.flush()
		default:
			sc.pending = append(sc.pending, line)
		}
	}
	if inFence {
		sc.blocks[fenceIdx].Content = strings.Join(fenceBody, "\n")
	}
	sc.flush()

	warnings := []Warning{}
	return &Document{
		DocumentID: documentID(data, filename, time.Now()),
		Metadata: Metadata{
			Filename:          filename,
			Format:            FormatMD,
			FileSize:          int64(len(data)),
			PageCount:         1,
			ParsingDurationMs: durationMs(start),
			Parser:            "native-md",
		},
		Blocks:   sc.blocks,
		FullText: content,
		Outline:  sc.outline,
		Warnings: warnings,
		Success:  !hasErrorWarning(warnings),
	}, nil
}
