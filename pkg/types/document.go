// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Document is one article row from the converted PMC Open Access
// collection. The converter emits exactly these columns; list-valued
// source fields (authors) are joined into a single string so every
// column is flat UTF-8. Rows are read-only once written.
type Document struct {
	// PMCID is the PubMed Central accession (e.g. "PMC1234567").
	PMCID string `parquet:"pmc_id,optional" json:"pmc_id" yaml:"pmc_id"`

	// PMID is the PubMed identifier when the article carries one.
	PMID string `parquet:"pmid,optional" json:"pmid" yaml:"pmid"`

	// Title is the article title from the front matter.
	Title string `parquet:"title,optional" json:"title" yaml:"title"`

	// AbstractText is the abstract, flattened to plain text.
	AbstractText string `parquet:"abstract_text,optional" json:"abstract_text" yaml:"abstract_text"`

	// Authors holds "Surname, Given" names joined with "; ".
	Authors string `parquet:"authors,optional" json:"authors" yaml:"authors"`

	// Journal is the journal title.
	Journal string `parquet:"journal,optional" json:"journal" yaml:"journal"`

	// PublicationDate is "YYYY", "YYYY-MM", or "YYYY-MM-DD" as present
	// in the source pub-date element.
	PublicationDate string `parquet:"publication_date,optional" json:"publication_date" yaml:"publication_date"`

	// DOI is the article DOI, without a resolver prefix.
	DOI string `parquet:"doi,optional" json:"doi" yaml:"doi"`

	// FullText is the body text with paragraphs joined by spaces.
	FullText string `parquet:"full_text,optional" json:"full_text" yaml:"full_text"`
}

// IDColumn is the identifier column every shard must carry.
const IDColumn = "pmc_id"

// searchableColumns lists the free-text columns patterns may be
// matched against, in schema order.
var searchableColumns = []string{"title", "abstract_text", "authors", "journal", "full_text"}

// SearchableColumns returns the names of the columns that may appear
// in a search-columns configuration.
func SearchableColumns() []string {
	cols := make([]string, len(searchableColumns))
	copy(cols, searchableColumns)
	return cols
}

// Column returns the named free-text column of the document. The
// second return value is false for unknown column names.
func (d *Document) Column(name string) (string, bool) {
	switch name {
	case "title":
		return d.Title, true
	case "abstract_text":
		return d.AbstractText, true
	case "authors":
		return d.Authors, true
	case "journal":
		return d.Journal, true
	case "full_text":
		return d.FullText, true
	default:
		return "", false
	}
}
