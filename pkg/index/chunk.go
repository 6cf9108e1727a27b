package index

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// EstimateTokens approximates a token count for text using the midpoint
// of a character-based estimate (chars/4) and a word-based estimate
// (words*10/13), which tracks actual tokenizer output closer than either
// alone across both prose-heavy and symbol-heavy source.
func EstimateTokens(text string) int {
	chars := len(text) / 4
	words := (len(strings.Fields(text)) * 10) / 13
	return (chars + words) / 2
}

// Chunker splits file content into chunks whose estimated token count
// is at most max, splitting recursively along progressively finer
// boundaries (blank-line-delimited blocks, then raw lines) when a
// candidate chunk runs over budget; a single line over max stays whole.
// A chunk under min is merged into the next chunk of the same file when
// the result stays within max, so a file's last chunk, or one whose
// merge would pass max, can remain under min.
type Chunker struct {
	minTokens int
	maxTokens int
}

// NewChunker builds a Chunker enforcing the given token bounds.
func NewChunker(minTokens, maxTokens int) *Chunker {
	if minTokens <= 0 {
		minTokens = 64
	}
	if maxTokens <= minTokens {
		maxTokens = minTokens * 8
	}
	return &Chunker{minTokens: minTokens, maxTokens: maxTokens}
}

// Chunk splits content by blank-line-delimited blocks, merging
// undersized adjacent blocks and recursively splitting oversized ones.
func (c *Chunker) Chunk(path, content, language string) []Chunk {
	lines := strings.Split(content, "\n")
	if len(lines) == 0 {
		return nil
	}
	blocks := splitOnBlankLines(lines)
	return c.chunksFromLineRanges(path, lines, language, blocks, nil)
}

// ChunkWithSymbols splits content into chunks anchored on symbol
// boundaries where possible, falling back to Chunk for code outside any
// symbol's span. Symbols attached to a chunk let the retriever report
// which definitions a match covers.
func (c *Chunker) ChunkWithSymbols(path, content, language string, symbols []Symbol) []Chunk {
	if len(symbols) == 0 {
		return c.Chunk(path, content, language)
	}

	lines := strings.Split(content, "\n")
	if len(lines) == 0 {
		return nil
	}

	usedLines := make(map[int]bool)
	var ranges [][2]int
	for _, sym := range symbols {
		start, end := sym.Line, sym.EndLine
		if end < start {
			end = start
		}
		if start < 1 || start > len(lines) {
			continue
		}
		if end > len(lines) {
			end = len(lines)
		}
		ranges = append(ranges, [2]int{start, end})
		for i := start; i <= end; i++ {
			usedLines[i] = true
		}
	}

	// Fill gaps between symbol spans with plain ranges so every line is
	// covered by exactly one chunk.
	start := 1
	for start <= len(lines) {
		for start <= len(lines) && usedLines[start] {
			start++
		}
		if start > len(lines) {
			break
		}
		end := start
		for end <= len(lines) && !usedLines[end] {
			end++
		}
		end--
		if end >= start {
			ranges = append(ranges, [2]int{start, end})
		}
		start = end + 1
	}

	sortRanges(ranges)
	return c.chunksFromLineRanges(path, lines, language, ranges, symbols)
}

func (c *Chunker) chunksFromLineRanges(path string, lines []string, language string, ranges [][2]int, symbols []Symbol) []Chunk {
	var chunks []Chunk
	for _, r := range ranges {
		chunks = append(chunks, c.splitRange(path, lines, language, r[0], r[1], symbols)...)
	}
	sortChunks(chunks)
	return mergeUndersized(chunks, c.minTokens, c.maxTokens)
}

// splitRange recursively halves a line range until every resulting
// chunk's estimated token count is at most maxTokens, or the range is a
// single line (which is always accepted regardless of size).
func (c *Chunker) splitRange(path string, lines []string, language string, start, end int, symbols []Symbol) []Chunk {
	if start > end {
		return nil
	}
	content := strings.Join(lines[start-1:end], "\n")
	tokens := EstimateTokens(content)
	if tokens <= c.maxTokens || start == end {
		return []Chunk{{
			ID:        generateChunkID(path, start, end),
			Path:      path,
			StartLine: start,
			EndLine:   end,
			Content:   content,
			Language:  language,
			Hash:      hashContent(content),
			Symbols:   findSymbolsInRange(symbols, start, end),
		}}
	}

	mid := start + (end-start)/2
	if mid <= start {
		mid = start
	}
	left := c.splitRange(path, lines, language, start, mid, symbols)
	right := c.splitRange(path, lines, language, mid+1, end, symbols)
	return append(left, right...)
}

// mergeUndersized folds a chunk into its successor when it falls below
// minTokens, so a lone one-line gap doesn't become its own retrieval unit,
// unless the merged chunk would exceed maxTokens.
func mergeUndersized(chunks []Chunk, minTokens, maxTokens int) []Chunk {
	if len(chunks) <= 1 {
		return chunks
	}
	var merged []Chunk
	current := chunks[0]
	for i := 1; i < len(chunks); i++ {
		if EstimateTokens(current.Content) < minTokens && chunks[i].Path == current.Path &&
			EstimateTokens(current.Content+"\n"+chunks[i].Content) <= maxTokens {
			current.EndLine = chunks[i].EndLine
			current.Content = current.Content + "\n" + chunks[i].Content
			current.Hash = hashContent(current.Content)
			current.ID = generateChunkID(current.Path, current.StartLine, current.EndLine)
			current.Symbols = append(current.Symbols, chunks[i].Symbols...)
			continue
		}
		merged = append(merged, current)
		current = chunks[i]
	}
	merged = append(merged, current)
	return merged
}

func splitOnBlankLines(lines []string) [][2]int {
	var ranges [][2]int
	start := 0
	for start < len(lines) {
		end := start
		for end < len(lines) && strings.TrimSpace(lines[end]) != "" {
			end++
		}
		if end == start {
			start++
			continue
		}
		ranges = append(ranges, [2]int{start + 1, end})
		start = end
		for start < len(lines) && strings.TrimSpace(lines[start]) == "" {
			start++
		}
	}
	if len(ranges) == 0 && len(lines) > 0 {
		ranges = append(ranges, [2]int{1, len(lines)})
	}
	return ranges
}

func sortRanges(ranges [][2]int) {
	for i := 1; i < len(ranges); i++ {
		key := ranges[i]
		j := i - 1
		for j >= 0 && ranges[j][0] > key[0] {
			ranges[j+1] = ranges[j]
			j--
		}
		ranges[j+1] = key
	}
}

// generateChunkID creates a unique chunk identifier.
func generateChunkID(path string, startLine, endLine int) string {
	data := path + ":" + itoa(startLine) + "-" + itoa(endLine)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:8])
}

// hashContent creates a content hash.
func hashContent(content string) string {
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:16])
}

// itoa converts int to string without pulling in strconv's wider surface.
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		digits = append([]byte{'-'}, digits...)
	}
	return string(digits)
}

func findSymbolsInRange(symbols []Symbol, start, end int) []Symbol {
	var result []Symbol
	for _, sym := range symbols {
		if sym.Line >= start && sym.Line <= end {
			result = append(result, sym)
		}
	}
	return result
}

func sortChunks(chunks []Chunk) {
	for i := 1; i < len(chunks); i++ {
		key := chunks[i]
		j := i - 1
		for j >= 0 && chunks[j].StartLine > key.StartLine {
			chunks[j+1] = chunks[j]
			j--
		}
		chunks[j+1] = key
	}
}
