// Package schema holds the document and chunk types shared by loaders, the chunker and the indexer.
package schema

// Metadata keys set by loaders and the indexer.
const (
	MetaSource     = "source"      // file path or URL the content came from
	MetaTitle      = "title"       // document title when the format carries one
	MetaPage       = "page"        // 1-based page number (PDF)
	MetaHeaderPath = "header_path" // markdown section hierarchy
	MetaChunkIndex = "chunk_index" // position of a chunk within its document
	MetaSummary    = "summary"     // LLM-generated document summary
)

// Document is raw text plus provenance metadata, as produced by a loader.
// Documents are treated as immutable once loaded.
type Document struct {
	Content  string
	Metadata map[string]any
}

// Source returns the document's source path or URL, or "" if none was recorded.
func (d Document) Source() string {
	s, _ := d.Metadata[MetaSource].(string)
	return s
}

// Chunk is a bounded-length segment derived from exactly one Document.
type Chunk struct {
	Index    int            // Position in document (0, 1, 2...)
	Text     string         // Chunk text
	Metadata map[string]any // Copied from the parent document, plus chunk_index
}
