package export

// Section is one titled table of a document, for example one semester of a
// transcript. Footer lines are rendered after the rows.
type Section struct {
	Heading string
	Rows    [][]string
	Footer  []string
}

// Document is tabular export content sharing one header row across sections.
type Document struct {
	Title    string
	Subtitle string
	Headers  []string
	Sections []Section
	Summary  []string
}

func (d Document) validate(kind string) error {
	if len(d.Headers) == 0 {
		return errMissingHeaders(kind)
	}
	return nil
}
