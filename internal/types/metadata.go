package types

// Metadata is the descriptive information embedded into a muxed output.
type Metadata struct {
	Title  string
	Artist string // Author
	Date   string // YYYY-MM-DD
}
