// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dovmed/dovmed/pkg/types"
)

const sampleArticle = `<?xml version="1.0" encoding="UTF-8"?>
<article>
  <front>
    <journal-meta>
      <journal-title>Veterinary Research</journal-title>
    </journal-meta>
    <article-meta>
      <article-id pub-id-type="pmid">11250746</article-id>
      <article-id pub-id-type="pmc">13900</article-id>
      <article-id pub-id-type="doi">10.1186/vr-2001-13900</article-id>
      <title-group>
        <article-title>Avian influenza surveillance in backyard poultry</article-title>
      </title-group>
      <contrib-group>
        <contrib contrib-type="author">
          <name><surname>Smith</surname><given-names>Jane A.</given-names></name>
        </contrib>
        <contrib contrib-type="author">
          <name><surname>Okafor</surname><given-names>Chidi</given-names></name>
        </contrib>
        <contrib contrib-type="editor">
          <name><surname>NotAnAuthor</surname><given-names>X.</given-names></name>
        </contrib>
      </contrib-group>
      <pub-date pub-type="ppub">
        <day>15</day>
        <month>Jun</month>
        <year>2001</year>
      </pub-date>
      <abstract>
        <p>We describe influenza A surveillance in poultry flocks.</p>
      </abstract>
    </article-meta>
  </front>
  <body>
    <sec>
      <title>Introduction</title>
      <p>Highly pathogenic avian influenza circulates in wild birds.</p>
      <p>Backyard flocks are a known reservoir.</p>
    </sec>
  </body>
  <back>
    <ref-list>
      <ref><article-title>A referenced title that must not win</article-title></ref>
    </ref-list>
  </back>
</article>`

func TestParseArticleMetadata(t *testing.T) {
	doc, err := ParseArticle([]byte(sampleArticle))
	require.NoError(t, err)

	assert.Equal(t, "PMC13900", doc.PMCID)
	assert.Equal(t, "11250746", doc.PMID)
	assert.Equal(t, "10.1186/vr-2001-13900", doc.DOI)
	assert.Equal(t, "Avian influenza surveillance in backyard poultry", doc.Title)
	assert.Equal(t, "Veterinary Research", doc.Journal)
	assert.Equal(t, "Smith, Jane A.; Okafor, Chidi", doc.Authors)
	assert.Equal(t, "2001-06-15", doc.PublicationDate)
	assert.Contains(t, doc.AbstractText, "influenza A surveillance")
}

func TestParseArticleBodyJoinedWithSpaces(t *testing.T) {
	doc, err := ParseArticle([]byte(sampleArticle))
	require.NoError(t, err)

	assert.Contains(t, doc.FullText, "Introduction Highly pathogenic avian influenza")
	assert.Contains(t, doc.FullText, "wild birds. Backyard flocks")
	// Reference-list titles stay out of the metadata.
	assert.NotContains(t, doc.Title, "referenced title")
}

func TestParseArticlePMCPrefixNormalized(t *testing.T) {
	withPrefix := `<article><front><article-meta>
		<article-id pub-id-type="pmc">PMC42</article-id>
	</article-meta></front></article>`
	doc, err := ParseArticle([]byte(withPrefix))
	require.NoError(t, err)
	assert.Equal(t, "PMC42", doc.PMCID)
}

func TestParseArticleDateVariants(t *testing.T) {
	tests := []struct {
		name string
		xml  string
		want string
	}{
		{"year only", `<pub-date><year>1999</year></pub-date>`, "1999"},
		{"numeric month zero-padded", `<pub-date><month>7</month><year>1999</year></pub-date>`, "1999-07"},
		{"numeric day zero-padded", `<pub-date><day>3</day><month>7</month><year>1999</year></pub-date>`, "1999-07-03"},
		{"month name", `<pub-date><month>December</month><year>1999</year></pub-date>`, "1999-12"},
		{"day without month dropped", `<pub-date><day>3</day><year>1999</year></pub-date>`, "1999"},
		{"no year", `<pub-date><month>12</month></pub-date>`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := ParseArticle([]byte(
				`<article><front><article-meta>` + tt.xml + `</article-meta></front></article>`))
			require.NoError(t, err)
			assert.Equal(t, tt.want, doc.PublicationDate)
		})
	}
}

func TestParseArticleMalformed(t *testing.T) {
	_, err := ParseArticle([]byte(`<article><front></article>`))
	require.Error(t, err)
}

// writeArchive builds a .tar.gz containing the named XML members.
func writeArchive(t *testing.T, path string, members map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	for name, content := range members {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Mode:     0o644,
			Size:     int64(len(content)),
			Typeflag: tar.TypeReg,
		}))
		_, err := io.WriteString(tw, content)
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestConvertArchive(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "oa_comm_xml.PMC000.tar.gz")
	writeArchive(t, archive, map[string]string{
		"oa_comm/PMC13900.xml": sampleArticle,
		"oa_comm/PMC99.xml":    `<article><front><article-meta><title-group><article-title>No id</article-title></title-group></article-meta></front></article>`,
		"oa_comm/broken.xml":   `<article><front>`,
		"oa_comm/notes.txt":    "not xml",
	})

	parquetDir := filepath.Join(dir, "parquet")
	require.NoError(t, os.MkdirAll(parquetDir, 0o755))

	n, err := ConvertArchive(archive, parquetDir, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	docs, err := parquet.ReadFile[types.Document](filepath.Join(parquetDir, "oa_comm_xml.PMC000.parquet"))
	require.NoError(t, err)
	require.Len(t, docs, 2)

	byID := map[string]types.Document{}
	for _, d := range docs {
		byID[d.PMCID] = d
	}
	assert.Contains(t, byID, "PMC13900")
	// Articles without an article-id fall back to the member filename.
	assert.Contains(t, byID, "PMC99")
	assert.Equal(t, "No id", byID["PMC99"].Title)
}

func TestConvertBatchSkipsExistingShards(t *testing.T) {
	dir := t.TempDir()
	archiveDir := filepath.Join(dir, "archives", "oa_comm")
	require.NoError(t, os.MkdirAll(archiveDir, 0o755))
	writeArchive(t, filepath.Join(archiveDir, "batch1.tar.gz"), map[string]string{
		"oa_comm/PMC13900.xml": sampleArticle,
	})
	writeArchive(t, filepath.Join(archiveDir, "batch2.tar.gz"), map[string]string{
		"oa_comm/PMC13901.xml": sampleArticle,
	})

	cfg := types.ConvertConfig{
		ArchiveDir: filepath.Join(dir, "archives"),
		ParquetDir: filepath.Join(dir, "parquet"),
		Workers:    2,
	}

	res, err := ConvertBatch(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Converted)
	assert.Equal(t, 2, res.Documents)
	assert.False(t, res.HasFailures())

	res, err = ConvertBatch(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Converted)
	assert.Equal(t, 2, res.Skipped)
}

func TestConvertBatchNoArchives(t *testing.T) {
	cfg := types.ConvertConfig{
		ArchiveDir: t.TempDir(),
		ParquetDir: t.TempDir(),
	}
	_, err := ConvertBatch(context.Background(), cfg, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no .tar.gz archives")
}
