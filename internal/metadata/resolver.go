package metadata

import (
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"
)

// ProbingResolver finds types in the assemblies of a set of candidate
// directories. Assemblies are loaded on first use and cached, including the
// ones that failed to load.
type ProbingResolver struct {
	Directories []string

	logger  zerolog.Logger
	exclude string
	readers map[string]*AssemblyReader
	// Probed assemblies in search order, filled on first lookup.
	candidates []string
}

// NewProbingResolver creates a resolver searching the directories in order.
// The library being read is passed as exclude so it is not loaded twice.
func NewProbingResolver(logger zerolog.Logger, exclude string, directories ...string) *ProbingResolver {
	return &ProbingResolver{
		Directories: directories,
		logger:      logger,
		exclude:     filepath.Clean(exclude),
		readers:     make(map[string]*AssemblyReader),
	}
}

func (resolver *ProbingResolver) FindType(namespace string, name string) (*TypeInfo, bool) {
	for _, path := range resolver.assemblies() {
		reader := resolver.reader(path)
		if reader == nil {
			continue
		}
		if info, found := reader.FindType(namespace, name); found {
			resolver.logger.Debug().
				Str("type", namespace+"."+name).
				Str("assembly", path).
				Msg("Resolved type from probing directory")
			return info, true
		}
	}

	return nil, false
}

func (resolver *ProbingResolver) assemblies() []string {
	if resolver.candidates != nil {
		return resolver.candidates
	}

	resolver.candidates = make([]string, 0)
	seen := make(map[string]bool)
	for _, directory := range resolver.Directories {
		matches, err := filepath.Glob(filepath.Join(directory, "*.dll"))
		if err != nil {
			continue
		}
		sort.Strings(matches)
		for _, match := range matches {
			match = filepath.Clean(match)
			if match == resolver.exclude || seen[match] {
				continue
			}
			seen[match] = true
			resolver.candidates = append(resolver.candidates, match)
		}
	}

	return resolver.candidates
}

func (resolver *ProbingResolver) reader(path string) *AssemblyReader {
	if reader, loaded := resolver.readers[path]; loaded {
		return reader
	}

	reader, err := NewReader(path, resolver.logger, resolver)
	if err != nil {
		resolver.logger.Debug().Err(err).Str("assembly", path).Msg("Skipping probing candidate")
		reader = nil
	}
	resolver.readers[path] = reader
	return reader
}
