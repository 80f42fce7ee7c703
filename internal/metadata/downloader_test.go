package metadata

import (
	"archive/zip"
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePackageReference(t *testing.T) {
	id, packageVersion := ParsePackageReference("Contoso.Client@1.2.0")
	assert.Equal(t, "Contoso.Client", id)
	assert.Equal(t, "1.2.0", packageVersion)

	id, packageVersion = ParsePackageReference(" Contoso.Client ")
	assert.Equal(t, "Contoso.Client", id)
	assert.Empty(t, packageVersion)
}

func TestLatestStableVersion(t *testing.T) {
	tests := []struct {
		name     string
		versions []string
		expected string
	}{
		{name: "stable wins over newer prerelease", versions: []string{"1.0.0", "2.0.0-beta1", "1.10.0", "1.9.3"}, expected: "1.10.0"},
		{name: "only prereleases", versions: []string{"0.1.0-alpha", "0.2.0-alpha"}, expected: "0.2.0-alpha"},
		{name: "four part versions", versions: []string{"4.0.0.0", "4.0.10.0"}, expected: "4.0.10.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			latest, err := latestStableVersion(tt.versions)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, latest)
		})
	}

	_, err := latestStableVersion(nil)
	assert.Error(t, err)

	_, err = latestStableVersion([]string{"not a version"})
	assert.Error(t, err)
}

func buildPackage(t *testing.T, entries map[string]string) []byte {
	t.Helper()

	buffer := &bytes.Buffer{}
	archive := zip.NewWriter(buffer)
	for name, content := range entries {
		writer, err := archive.Create(name)
		require.NoError(t, err)
		_, err = writer.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, archive.Close())
	return buffer.Bytes()
}

func newFeed(t *testing.T, versions string, nupkg []byte) (*httptest.Server, *int) {
	t.Helper()

	downloads := 0
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	mux.HandleFunc("/v3/index.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"version":"3.0.0","resources":[
			{"@id":"%s/search","@type":"SearchQueryService"},
			{"@id":"%s/flat","@type":"PackageBaseAddress/3.0.0"}]}`, server.URL, server.URL)
	})
	mux.HandleFunc("/flat/contoso.client/index.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, versions)
	})
	mux.HandleFunc("/flat/contoso.client/1.1.0/contoso.client.1.1.0.nupkg", func(w http.ResponseWriter, r *http.Request) {
		downloads++
		_, _ = w.Write(nupkg)
	})

	return server, &downloads
}

func TestNuGetClient_DownloadLibrary(t *testing.T) {
	nupkg := buildPackage(t, map[string]string{
		"Contoso.Client.nuspec":                 "<package/>",
		"lib/net45/Contoso.Client.dll":          "net45",
		"lib/netstandard2.0/Contoso.Client.dll": "netstandard2.0",
		"lib/netstandard2.0/Contoso.Client.xml": "<doc/>",
		"lib/netstandard2.0/Contoso.Shared.dll": "shared",
	})
	server, downloads := newFeed(t, `{"versions":["1.0.0","1.1.0","1.2.0-preview"]}`, nupkg)

	client := NewNuGetClient(t.TempDir(), zerolog.Nop())
	client.IndexURL = server.URL + "/v3/index.json"
	client.Client = server.Client()

	libraryPath, err := client.DownloadLibrary("Contoso.Client")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(client.CacheDir, "contoso.client", "1.1.0", "Contoso.Client.dll"), libraryPath)
	content, err := os.ReadFile(libraryPath)
	require.NoError(t, err)
	assert.Equal(t, "netstandard2.0", string(content))

	documentation, err := os.ReadFile(filepath.Join(filepath.Dir(libraryPath), "Contoso.Client.xml"))
	require.NoError(t, err)
	assert.Equal(t, "<doc/>", string(documentation))
	assert.NoFileExists(t, filepath.Join(filepath.Dir(libraryPath), "Contoso.Shared.dll"))

	// A pinned version already in the cache is not downloaded again.
	cached, err := client.DownloadLibrary("Contoso.Client@1.1.0")
	require.NoError(t, err)
	assert.Equal(t, libraryPath, cached)
	assert.Equal(t, 1, *downloads)
}

func TestNuGetClient_DownloadLibraryErrors(t *testing.T) {
	nupkg := buildPackage(t, map[string]string{"content/readme.txt": "no libraries"})
	server, _ := newFeed(t, `{"versions":["1.1.0"]}`, nupkg)

	client := NewNuGetClient(t.TempDir(), zerolog.Nop())
	client.IndexURL = server.URL + "/v3/index.json"
	client.Client = server.Client()

	_, err := client.DownloadLibrary("Contoso.Client")
	assert.ErrorContains(t, err, "contains no library")

	_, err = client.DownloadLibrary("Contoso.Client@9.9.9")
	assert.ErrorContains(t, err, "unexpected status")

	_, err = client.DownloadLibrary("@1.0.0")
	assert.ErrorContains(t, err, "has no id")
}
