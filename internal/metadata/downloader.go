package metadata

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-version"
	"github.com/rs/zerolog"
)

const definitionAddress string = "https://api.nuget.org/v3/index.json"

// NuGetClient downloads libraries and their documentation files from a NuGet v3 feed.
type NuGetClient struct {
	IndexURL string
	CacheDir string
	Client   *http.Client
	Logger   zerolog.Logger
}

func NewNuGetClient(cacheDir string, logger zerolog.Logger) *NuGetClient {
	return &NuGetClient{
		IndexURL: definitionAddress,
		CacheDir: cacheDir,
		Client:   &http.Client{},
		Logger:   logger,
	}
}

// ParsePackageReference splits "id@version" into its parts. The version is
// empty when the reference does not pin one.
func ParsePackageReference(reference string) (id string, packageVersion string) {
	id, packageVersion, _ = strings.Cut(strings.TrimSpace(reference), "@")
	return id, packageVersion
}

// DownloadLibrary fetches the package and extracts its library and
// documentation file. It returns the path of the extracted library.
func (client *NuGetClient) DownloadLibrary(reference string) (string, error) {
	id, packageVersion := ParsePackageReference(reference)
	if id == "" {
		return "", fmt.Errorf("package reference '%s' has no id", reference)
	}
	lowerID := strings.ToLower(id)

	if packageVersion != "" {
		if cached, found := client.cachedLibrary(id, packageVersion); found {
			client.Logger.Debug().Str("library", cached).Msg("Using cached package")
			return cached, nil
		}
	}

	baseAddress, err := client.getBaseAddress()
	if err != nil {
		return "", err
	}

	if packageVersion == "" {
		versionsResponse, err := client.queryGet(fmt.Sprintf("%s%s/index.json", baseAddress, lowerID))
		if err != nil {
			return "", fmt.Errorf("could not list versions of '%s': %w", id, err)
		}
		versions, err := parse[map[string][]string](versionsResponse)
		if err != nil {
			return "", fmt.Errorf("could not parse versions of '%s': %w", id, err)
		}
		packageVersion, err = latestStableVersion(versions["versions"])
		if err != nil {
			return "", fmt.Errorf("package '%s': %w", id, err)
		}
	}

	lowerVersion := strings.ToLower(packageVersion)
	client.Logger.Info().Str("package", id).Str("version", packageVersion).Msg("Downloading package")
	nugetBytes, err := client.queryGet(fmt.Sprintf("%s%s/%s/%s.%s.nupkg", baseAddress, lowerID, lowerVersion, lowerID, lowerVersion))
	if err != nil {
		return "", fmt.Errorf("could not download '%s' %s: %w", id, packageVersion, err)
	}

	return client.extractLibrary(nugetBytes, id, packageVersion)
}

func (client *NuGetClient) packageDirectory(id string, packageVersion string) string {
	return filepath.Join(client.CacheDir, strings.ToLower(id), strings.ToLower(packageVersion))
}

func (client *NuGetClient) cachedLibrary(id string, packageVersion string) (string, bool) {
	matches, _ := filepath.Glob(filepath.Join(client.packageDirectory(id, packageVersion), "*.dll"))
	if len(matches) == 0 {
		return "", false
	}

	for _, match := range matches {
		if strings.EqualFold(strings.TrimSuffix(filepath.Base(match), ".dll"), id) {
			return match, true
		}
	}
	return matches[0], true
}

// extractLibrary writes the package's library and its sibling documentation
// file to the cache. Libraries named after the package win over others, and
// the highest target framework folder wins among those.
func (client *NuGetClient) extractLibrary(nugetBytes []byte, id string, packageVersion string) (string, error) {
	bytesReader := bytes.NewReader(nugetBytes)
	nuget, err := zip.NewReader(bytesReader, int64(bytesReader.Len()))
	if err != nil {
		return "", fmt.Errorf("package is not a valid archive: %w", err)
	}

	files := make(map[string]*zip.File, len(nuget.File))
	libraries := make([]string, 0)
	for _, file := range nuget.File {
		files[file.Name] = file
		if strings.HasPrefix(file.Name, "lib/") && strings.EqualFold(path.Ext(file.Name), ".dll") {
			libraries = append(libraries, file.Name)
		}
	}

	if len(libraries) == 0 {
		return "", fmt.Errorf("package '%s' %s contains no library", id, packageVersion)
	}

	sort.Slice(libraries, func(i, j int) bool {
		iNamed := strings.EqualFold(strings.TrimSuffix(path.Base(libraries[i]), path.Ext(libraries[i])), id)
		jNamed := strings.EqualFold(strings.TrimSuffix(path.Base(libraries[j]), path.Ext(libraries[j])), id)
		if iNamed != jNamed {
			return iNamed
		}
		return libraries[i] > libraries[j]
	})
	selected := libraries[0]

	outputDirectory := client.packageDirectory(id, packageVersion)
	if err := os.MkdirAll(outputDirectory, os.ModePerm); err != nil {
		return "", err
	}

	libraryPath, err := writeEntry(files[selected], outputDirectory)
	if err != nil {
		return "", err
	}

	documentation := strings.TrimSuffix(selected, path.Ext(selected)) + ".xml"
	if file, found := files[documentation]; found {
		if _, err := writeEntry(file, outputDirectory); err != nil {
			return "", err
		}
	}

	return libraryPath, nil
}

func writeEntry(file *zip.File, directory string) (string, error) {
	reader, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("could not open '%s' in package: %w", file.Name, err)
	}
	defer reader.Close()

	content, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("could not read '%s' in package: %w", file.Name, err)
	}

	target := filepath.Join(directory, path.Base(file.Name))
	if err := os.WriteFile(target, content, 0644); err != nil {
		return "", fmt.Errorf("could not write '%s': %w", target, err)
	}
	return target, nil
}

// latestStableVersion picks the highest version without a prerelease tag,
// falling back to the highest prerelease when nothing stable exists.
func latestStableVersion(versions []string) (string, error) {
	orderedVersions := make([]*version.Version, 0, len(versions))
	for _, versionString := range versions {
		parsed, err := version.NewVersion(versionString)
		if err != nil {
			return "", fmt.Errorf("error parsing version: %s", versionString)
		}
		orderedVersions = append(orderedVersions, parsed)
	}

	if len(orderedVersions) == 0 {
		return "", fmt.Errorf("no versions published")
	}

	sort.Sort(version.Collection(orderedVersions))
	for i := len(orderedVersions) - 1; i >= 0; i-- {
		if orderedVersions[i].Prerelease() == "" {
			return orderedVersions[i].Original(), nil
		}
	}
	return orderedVersions[len(orderedVersions)-1].Original(), nil
}

func (client *NuGetClient) getBaseAddress() (string, error) {
	response, err := client.queryGet(client.IndexURL)
	if err != nil {
		return "", fmt.Errorf("could not read service index: %w", err)
	}
	nugetIndex, err := parse[nugetIndex](response)
	if err != nil {
		return "", fmt.Errorf("could not parse service index: %w", err)
	}

	for _, resource := range nugetIndex.Resources {
		if strings.Contains(resource.Type, "PackageBaseAddress") {
			if !strings.HasSuffix(resource.Id, "/") {
				return resource.Id + "/", nil
			}
			return resource.Id, nil
		}
	}

	return "", fmt.Errorf("service index has no PackageBaseAddress resource")
}

func parse[T interface{}](source []byte) (T, error) {
	var parsedBody T
	err := json.Unmarshal(source, &parsedBody)
	return parsedBody, err
}

func (client *NuGetClient) queryGet(url string) ([]byte, error) {
	request, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, err
	}

	response, err := client.Client.Do(request)
	if err != nil {
		return nil, err
	}

	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: unexpected status %s", url, response.Status)
	}

	return io.ReadAll(response.Body)
}

type nugetIndex struct {
	Resources []nugetResource `json:"resources"`
}

type nugetResource struct {
	Id   string `json:"@id"`
	Type string `json:"@type"`
}
