// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package download

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dovmed/dovmed/pkg/types"
)

const indexPage = `<html><body>
<a href="oa_comm_xml.PMC000xxxxxx.baseline.2025-06-21.tar.gz">archive 1</a>
<a href="oa_comm_xml.PMC001xxxxxx.baseline.2025-06-21.tar.gz">archive 2</a>
<a href="oa_comm_xml.PMC000xxxxxx.baseline.2025-06-21.filelist.csv">filelist</a>
<a href="README.txt">readme</a>
</body></html>`

const filelistCSV = `Article File,Article Citation,AccessionID,LastUpdated (YYYY-MM-DD HH:MM:SS),PMID,License,Retracted
oa_comm/PMC13900.xml,"Breast Cancer Res. 2001",PMC13900,2019-11-05 11:56:12,11250746,CC BY,no
oa_comm/PMC13901.xml,"Vet Res. 2002",PMC13901,2019-11-05 11:56:30,0,CC BY,no
`

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oa_comm/xml/", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/"):
			io.WriteString(w, indexPage)
		case strings.HasSuffix(r.URL.Path, ".csv"):
			io.WriteString(w, filelistCSV)
		case strings.HasSuffix(r.URL.Path, ".tar.gz"):
			io.WriteString(w, "archive-bytes")
		default:
			http.NotFound(w, r)
		}
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunDownloadsSubset(t *testing.T) {
	ts := testServer(t)
	dir := t.TempDir()

	d := New(ts.Client(), types.DownloadConfig{OutputDir: dir, MaxConnections: 2}, ts.URL, discardLogger())
	res, err := d.Run(context.Background(), []string{"oa_comm"})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Downloaded)
	assert.Equal(t, 0, res.Skipped)
	assert.False(t, res.HasFailures())
	assert.Equal(t, int64(2*len("archive-bytes")), res.Bytes)

	subsetDir := filepath.Join(dir, "pmc_oa", "oa_comm")
	for _, name := range []string{
		"oa_comm_xml.PMC000xxxxxx.baseline.2025-06-21.tar.gz",
		"oa_comm_xml.PMC001xxxxxx.baseline.2025-06-21.tar.gz",
		"filelists.parquet",
	} {
		_, err := os.Stat(filepath.Join(subsetDir, name))
		assert.NoError(t, err, name)
	}

	entries, err := parquet.ReadFile[FileListEntry](filepath.Join(subsetDir, "filelists.parquet"))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "oa_comm", entries[0].Collection)
	assert.Equal(t, "PMC13900", entries[0].PMCID)
	assert.Equal(t, "11250746", entries[0].PMID)
	assert.Equal(t, "2019-11-05 11:56:12", entries[0].LastUpdated)
	// PMID "0" is a missing value upstream.
	assert.Equal(t, "", entries[1].PMID)
}

func TestRunSkipsExistingArchives(t *testing.T) {
	ts := testServer(t)
	dir := t.TempDir()

	d := New(ts.Client(), types.DownloadConfig{OutputDir: dir}, ts.URL, discardLogger())
	_, err := d.Run(context.Background(), []string{"oa_comm"})
	require.NoError(t, err)

	res, err := d.Run(context.Background(), []string{"oa_comm"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Downloaded)
	assert.Equal(t, 2, res.Skipped)
}

func TestRunRejectsUnknownSubset(t *testing.T) {
	d := New(nil, types.DownloadConfig{OutputDir: t.TempDir()}, "http://invalid.test", discardLogger())
	_, err := d.Run(context.Background(), []string{"oa_bogus"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oa_bogus")
}

func TestDownloadArchivesCountsFailures(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer ts.Close()

	d := New(ts.Client(), types.DownloadConfig{}, ts.URL, discardLogger())
	res, err := d.DownloadArchives(context.Background(), []string{ts.URL + "/a.tar.gz"}, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.True(t, res.HasFailures())
}

func TestListSubsetScrapesLinks(t *testing.T) {
	ts := testServer(t)
	d := New(ts.Client(), types.DownloadConfig{}, ts.URL, discardLogger())

	archives, filelists, err := d.ListSubset(context.Background(), "oa_comm")
	require.NoError(t, err)
	assert.Len(t, archives, 2)
	require.Len(t, filelists, 1)
	assert.True(t, strings.HasPrefix(filelists[0], ts.URL+"/oa_comm/xml/"))
}

func TestParseFileListCleansRows(t *testing.T) {
	entries, err := parseFileList(strings.NewReader(filelistCSV))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "PMC13900", entries[0].AccessionID)
	assert.Equal(t, "CC BY", entries[0].License)
	assert.Equal(t, "Breast Cancer Res. 2001", entries[0].Citation)
}

func TestParseFileListMissingColumn(t *testing.T) {
	_, err := parseFileList(strings.NewReader("Foo,Bar\n1,2\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "article_file")
}

func TestNormalizeColumn(t *testing.T) {
	assert.Equal(t, "article_file", normalizeColumn("Article File"))
	assert.Equal(t, "lastupdated_yyyy_mm_dd_hh_mm_ss", normalizeColumn("LastUpdated (YYYY-MM-DD HH:MM:SS)"))
	assert.Equal(t, "accessionid", normalizeColumn("AccessionID"))
	assert.Equal(t, "license", normalizeColumn(" License "))
}
