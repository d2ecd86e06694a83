package ingestion

import "strings"

// ChunkText splits documents into line-aligned chunks of at most
// chunkSize characters. Lines are never split; a single line longer than
// chunkSize becomes its own chunk. Blank and single-character lines are
// dropped. Chunks never span documents: a short trailing section is
// flushed at its document's end rather than merged into the next page,
// so every chunk keeps exactly its source document's metadata.
func ChunkText(docs []Document, chunkSize int) []Document {
	if chunkSize <= 0 {
		chunkSize = 512000
	}

	var chunks []Document
	for _, doc := range docs {
		var current []string
		currentLen := 0

		flush := func() {
			if len(current) == 0 {
				return
			}
			chunks = append(chunks, Document{
				PageContent: strings.Join(current, "\n"),
				Metadata:    copyMetadata(doc.Metadata),
			})
			current = nil
			currentLen = 0
		}

		for _, line := range strings.Split(doc.PageContent, "\n") {
			line = strings.TrimSpace(line)
			if len(line) <= 1 {
				continue
			}
			if currentLen > 0 && currentLen+len(line)+1 > chunkSize {
				flush()
			}
			current = append(current, line)
			currentLen += len(line) + 1
		}
		flush()
	}
	return chunks
}

func copyMetadata(meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}
