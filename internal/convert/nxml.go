// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert turns downloaded PMC .tar.gz archives into parquet
// document shards: each JATS XML article becomes one flat Document row.
package convert

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/dovmed/dovmed/pkg/types"
)

// monthNumber maps JATS month names to zero-padded numbers. Anything
// unrecognized is assumed to already be a number.
func monthNumber(month string) string {
	switch strings.ToLower(month) {
	case "january", "jan":
		return "01"
	case "february", "feb":
		return "02"
	case "march", "mar":
		return "03"
	case "april", "apr":
		return "04"
	case "may":
		return "05"
	case "june", "jun":
		return "06"
	case "july", "jul":
		return "07"
	case "august", "aug":
		return "08"
	case "september", "sep":
		return "09"
	case "october", "oct":
		return "10"
	case "november", "nov":
		return "11"
	case "december", "dec":
		return "12"
	}
	return pad2(month)
}

// pad2 zero-pads a single-digit date component.
func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// articleParser tracks position inside the JATS document. Metadata is
// taken from the front matter only, so titles and identifiers in the
// reference list are never picked up; the body contributes the full
// text.
type articleParser struct {
	doc types.Document

	inFront   bool
	inBody    bool
	inTitle   bool
	inAbs     bool
	inJournal bool
	inContrib bool
	inSurname bool
	inGiven   bool
	inPubDate bool
	inYear    bool
	inMonth   bool
	inDay     bool

	idType string // pmid, pmc, or doi while inside <article-id>

	titleDone bool

	text      strings.Builder
	surname   strings.Builder
	given     strings.Builder
	year      strings.Builder
	month     strings.Builder
	day       strings.Builder
	authors   []string
	bodyParts []string
}

// ParseArticle extracts the flat document row from one JATS XML
// article. Parse errors from malformed markup are returned; missing
// elements just leave their fields empty.
func ParseArticle(data []byte) (types.Document, error) {
	d := xml.NewDecoder(bytes.NewReader(data))
	d.Entity = xml.HTMLEntity

	var p articleParser
	for {
		tok, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return types.Document{}, fmt.Errorf("parsing XML: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			p.start(t)
		case xml.CharData:
			p.charData(string(t))
		case xml.EndElement:
			p.end(t)
		}
	}

	p.doc.Authors = strings.Join(p.authors, "; ")
	p.doc.FullText = strings.Join(p.bodyParts, " ")
	return p.doc, nil
}

func (p *articleParser) start(e xml.StartElement) {
	switch e.Name.Local {
	case "front":
		p.inFront = true
	case "back":
		p.inFront = false
	case "body":
		p.inBody = true
	case "article-title":
		if p.inFront && !p.titleDone {
			p.inTitle = true
			p.text.Reset()
		}
	case "abstract":
		if p.inFront {
			p.inAbs = true
			p.text.Reset()
		}
	case "journal-title":
		if p.inFront {
			p.inJournal = true
			p.text.Reset()
		}
	case "contrib":
		if p.inFront && attr(e, "contrib-type") == "author" {
			p.inContrib = true
			p.surname.Reset()
			p.given.Reset()
		}
	case "surname":
		if p.inContrib {
			p.inSurname = true
		}
	case "given-names":
		if p.inContrib {
			p.inGiven = true
		}
	case "pub-date":
		if p.inFront {
			p.inPubDate = true
			p.year.Reset()
			p.month.Reset()
			p.day.Reset()
		}
	case "year":
		p.inYear = p.inPubDate
	case "month":
		p.inMonth = p.inPubDate
	case "day":
		p.inDay = p.inPubDate
	case "article-id":
		if p.inFront {
			p.text.Reset()
			switch attr(e, "pub-id-type") {
			case "pmid", "pmc", "doi":
				p.idType = attr(e, "pub-id-type")
			}
		}
	}
}

func (p *articleParser) charData(s string) {
	switch {
	case p.inSurname:
		p.surname.WriteString(s)
	case p.inGiven:
		p.given.WriteString(s)
	case p.inYear:
		p.year.WriteString(s)
	case p.inMonth:
		p.month.WriteString(s)
	case p.inDay:
		p.day.WriteString(s)
	case p.inFront && (p.inTitle || p.inAbs || p.inJournal || p.idType != ""):
		p.text.WriteString(s)
	}

	if p.inBody {
		if t := strings.TrimSpace(s); t != "" {
			p.bodyParts = append(p.bodyParts, t)
		}
	}
}

func (p *articleParser) end(e xml.EndElement) {
	switch e.Name.Local {
	case "front":
		p.inFront = false
	case "body":
		p.inBody = false
	case "article-title":
		if p.inTitle {
			if t := strings.TrimSpace(p.text.String()); t != "" {
				p.doc.Title = t
				p.titleDone = true
			}
			p.inTitle = false
		}
	case "abstract":
		if p.inAbs {
			if t := strings.TrimSpace(p.text.String()); t != "" {
				p.doc.AbstractText = t
			}
			p.inAbs = false
		}
	case "journal-title":
		if p.inJournal {
			if t := strings.TrimSpace(p.text.String()); t != "" {
				p.doc.Journal = t
			}
			p.inJournal = false
		}
	case "contrib":
		if p.inContrib {
			if name := authorName(p.surname.String(), p.given.String()); name != "" {
				p.authors = append(p.authors, name)
			}
			p.inContrib = false
		}
	case "surname":
		p.inSurname = false
	case "given-names":
		p.inGiven = false
	case "pub-date":
		if p.inPubDate {
			p.doc.PublicationDate = formatDate(
				p.year.String(), p.month.String(), p.day.String())
			p.inPubDate = false
		}
	case "year":
		p.inYear = false
	case "month":
		p.inMonth = false
	case "day":
		p.inDay = false
	case "article-id":
		if p.idType != "" {
			if t := strings.TrimSpace(p.text.String()); t != "" {
				switch p.idType {
				case "pmid":
					p.doc.PMID = t
				case "pmc":
					if !strings.HasPrefix(t, "PMC") {
						t = "PMC" + t
					}
					p.doc.PMCID = t
				case "doi":
					p.doc.DOI = t
				}
			}
			p.idType = ""
		}
	}
}

// authorName formats "Surname, Given", falling back to whichever part
// is present.
func authorName(surname, given string) string {
	surname = strings.TrimSpace(surname)
	given = strings.TrimSpace(given)
	switch {
	case surname != "" && given != "":
		return surname + ", " + given
	case surname != "":
		return surname
	default:
		return given
	}
}

// formatDate joins year, month, day into "YYYY", "YYYY-MM", or
// "YYYY-MM-DD". A day without a month is dropped; no year means no
// date.
func formatDate(year, month, day string) string {
	year = strings.TrimSpace(year)
	month = strings.TrimSpace(month)
	day = strings.TrimSpace(day)

	if year == "" {
		return ""
	}
	parts := []string{year}
	if month != "" {
		parts = append(parts, monthNumber(month))
		if day != "" {
			parts = append(parts, pad2(day))
		}
	}
	return strings.Join(parts, "-")
}

func attr(e xml.StartElement, name string) string {
	for _, a := range e.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}
