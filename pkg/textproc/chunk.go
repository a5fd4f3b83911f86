package textproc

import "strings"

// Chunk splits normalized content into pieces of at most the configured
// maximum size. Separators are tried in preference order; consecutive
// chunks share the configured overlap. With chunking disabled (size 0)
// or content within the limit, the content is returned whole.
func (p *Processor) Chunk(content string) []string {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	if p.maxChunkSize <= 0 || len(content) <= p.maxChunkSize {
		return []string{content}
	}
	return p.splitText(content, p.separators)
}

// splitText splits on the first separator present in the text, merges
// the pieces back into bounded chunks, and recurses with the remaining
// separators for pieces that are still too large. The empty separator
// forces a hard character cut.
func (p *Processor) splitText(text string, separators []string) []string {
	separator := ""
	var remaining []string
	for i, s := range separators {
		if s == "" {
			break
		}
		if strings.Contains(text, s) {
			separator = s
			remaining = separators[i+1:]
			break
		}
	}
	if separator == "" {
		return p.hardSplit(text)
	}

	var chunks []string
	var pending []string
	flush := func() {
		if len(pending) > 0 {
			chunks = append(chunks, p.mergeSplits(pending, separator)...)
			pending = nil
		}
	}

	for _, piece := range strings.Split(text, separator) {
		if len(piece) <= p.maxChunkSize {
			pending = append(pending, piece)
			continue
		}
		flush()
		if len(remaining) == 0 {
			chunks = append(chunks, p.hardSplit(piece)...)
		} else {
			chunks = append(chunks, p.splitText(piece, remaining)...)
		}
	}
	flush()
	return chunks
}

// mergeSplits greedily packs pieces into chunks up to the maximum size,
// carrying trailing pieces into the next chunk to provide overlap.
func (p *Processor) mergeSplits(splits []string, separator string) []string {
	sepLen := len(separator)
	var chunks []string
	var current []string
	total := 0

	emit := func() {
		if doc := strings.TrimSpace(strings.Join(current, separator)); doc != "" {
			chunks = append(chunks, doc)
		}
	}

	for _, piece := range splits {
		if len(current) > 0 && total+sepLen+len(piece) > p.maxChunkSize {
			emit()
			for len(current) > 0 && (total > p.chunkOverlap || total+sepLen+len(piece) > p.maxChunkSize) {
				total -= len(current[0])
				if len(current) > 1 {
					total -= sepLen
				}
				current = current[1:]
			}
		}
		if len(current) > 0 {
			total += sepLen
		}
		current = append(current, piece)
		total += len(piece)
	}
	emit()
	return chunks
}

// hardSplit cuts text into fixed windows with overlap, used when no
// separator can break the text down any further.
func (p *Processor) hardSplit(text string) []string {
	step := p.maxChunkSize - p.chunkOverlap
	if step <= 0 {
		step = p.maxChunkSize
	}

	var chunks []string
	for start := 0; start < len(text); start += step {
		end := start + p.maxChunkSize
		if end >= len(text) {
			chunks = append(chunks, text[start:])
			break
		}
		chunks = append(chunks, text[start:end])
	}
	return chunks
}
