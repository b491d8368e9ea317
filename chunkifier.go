package main

// DefaultChunkifier splits text into windows of chunkSize runes, each
// starting chunkSize-chunkOverlap runes after the previous one.
type DefaultChunkifier struct {
	chunkSize    int
	chunkOverlap int
}

func (c *DefaultChunkifier) Chunkify(text string) []string {
	if text == "" {
		return []string{}
	}

	// rune start offsets plus the end of text
	offsets := make([]int, 0, len(text)+1)
	for i := range text {
		offsets = append(offsets, i)
	}
	l := len(offsets)
	offsets = append(offsets, len(text))

	size := max(c.chunkSize, 1)
	step := max(size-c.chunkOverlap, 1)
	pos := 0
	res := make([]string, 0, l/step+1)

	for {
		end := min(pos+size, l)
		res = append(res, text[offsets[pos]:offsets[end]])
		if end >= l {
			break
		}

		pos += step
	}

	return res
}
