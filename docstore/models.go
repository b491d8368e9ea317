package docstore

// Chunk is a piece of page text stored as one embedding.
type Chunk struct {
	Page int
	Text string
}

type Doc struct {
	File   string
	Crc    uint32
	Chunks []Chunk
}

type SearchResult struct {
	Text     string
	File     string
	Page     int
	Distance float32
}

type IngestedDoc struct {
	File string
	Crc  uint32
}
