package docnorm

import (
	"context"
	"strings"
	"time"
)

// textNormalizer splits plain text into paragraph blocks on blank-line
// separators. No heading, list, or table detection.
type textNormalizer struct{}

func (n *textNormalizer) normalize(_ context.Context, data []byte, filename string, _ Options) (*Document, error) {
	start := time.Now()
	content := decodeText(data)

	blocks := []ContentBlock{}
	position := 0
	for _, segment := range strings.Split(content, "\n\n") {
		text := strings.TrimSpace(segment)
		if text == "" {
			continue
		}
		blocks = append(blocks, ContentBlock{
			Type:       BlockParagraph,
			Content:    text,
			Position:   position,
			PageNumber: 1,
		})
		position++
	}

	warnings := []Warning{}
	return &Document{
		DocumentID: documentID(data, filename, time.Now()),
		Metadata: Metadata{
			Filename:          filename,
			Format:            FormatTXT,
			FileSize:          int64(len(data)),
			PageCount:         1,
			ParsingDurationMs: durationMs(start),
			Parser:            "native-txt",
		},
		Blocks:   blocks,
		FullText: content,
		Outline:  []OutlineItem{},
		Warnings: warnings,
		Success:  !hasErrorWarning(warnings),
	}, nil
}
