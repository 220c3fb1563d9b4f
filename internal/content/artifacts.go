package content

// Link is a hyperlink extracted from a document.
type Link struct {
	URL  string `json:"url"`
	Text string `json:"text,omitempty"`
}

// Image is an image reference extracted from a document.
type Image struct {
	URL string `json:"url"`
	Alt string `json:"alt,omitempty"`
}

// Table is a tabular artifact: a header row plus zero or more data rows.
// Rows are not required to match the header width; ragged source tables are
// preserved as found.
type Table struct {
	Headers []string   `json:"headers,omitempty"`
	Rows    [][]string `json:"rows,omitempty"`
}

// Section is one entry of a document outline: a heading and the text that
// follows it up to the next heading of any level.
type Section struct {
	Heading string `json:"heading"`
	Level   int    `json:"level"`
	Text    string `json:"text,omitempty"`
}
