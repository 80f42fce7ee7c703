package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"asyncgen/internal"
	"asyncgen/internal/config"
	"asyncgen/internal/docs"
	"asyncgen/internal/generation"
	"asyncgen/internal/logging"
	"asyncgen/internal/metadata"
	"asyncgen/internal/snapshot"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Set by the build system.
var version = "dev"

const fixturePackage = "fixtures"

func main() {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(normalizeArgs(os.Args[1:], rootCmd.PersistentFlags()))
	os.Exit(execute(rootCmd))
}

// execute runs the command and reports a failure through the global logger,
// which runGenerate replaces with the configured one once options are known.
func execute(cmd *cobra.Command) int {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()})

	if err := cmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Generation failed")
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "asyncgen <library.dll>",
		Short: "Generates task-returning extension methods for Begin/End method pairs",
		Long: `asyncgen reads the metadata of a .NET library, finds every pair of
BeginX/EndX methods on its public types and writes a C# file with one XAsync
extension method per pair. Documentation of the pairs is migrated from the
library's XML documentation file when it is present.`,
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE:          runGenerate,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringP("out", "o", "", "output file (default <library dir>/<library name>.AsyncExtensions.cs)")
	flags.String("doc", "yes", "migrate documentation (yes/no)")
	flags.String("docfile", "", "documentation file (default library path with .xml extension)")
	flags.StringP("namespace", "n", "", "namespace of the generated code (default <library name>.Extensions)")
	flags.String("class", "AsyncExtensions", "name of the generated extension class")
	flags.StringSlice("probe", nil, "extra directories searched for referenced assemblies")
	flags.String("nuget", "", "download the library from NuGet, id[@version]")
	flags.String("cache-dir", "", "directory NuGet packages are extracted to")
	flags.String("fixture", "", "also write the metadata read as Go source to this path")
	flags.String("config", "", "config file path")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "console", "log format (console, json)")

	internal.PanicOnError(rootCmd.MarkPersistentFlagFilename("out", "cs"))
	internal.PanicOnError(rootCmd.MarkPersistentFlagFilename("docfile", "xml"))
	internal.PanicOnError(rootCmd.MarkPersistentFlagFilename("config", "yaml", "yml"))
	internal.PanicOnError(rootCmd.MarkPersistentFlagFilename("fixture", "go"))
	internal.PanicOnError(rootCmd.MarkPersistentFlagDirname("cache-dir"))

	rootCmd.AddCommand(newConfigCmd())
	return rootCmd
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config [library.dll]",
		Short: "Print the effective configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			options, err := loadOptions(cmd, args)
			if err != nil {
				return err
			}
			options.ResolveDefaults()

			document, err := options.YAML()
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), document)
			return err
		},
	}
}

func runGenerate(cmd *cobra.Command, args []string) error {
	options, err := loadOptions(cmd, args)
	if err != nil {
		return err
	}
	if options.Library == "" && options.NuGet == "" {
		return cmd.Help()
	}

	logger, err := logging.New(cmd.ErrOrStderr(), options.LogLevel, options.LogFormat)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	log.Logger = logger

	if options.NuGet != "" {
		client := metadata.NewNuGetClient(options.CacheDir, logger)
		options.Library, err = client.DownloadLibrary(options.NuGet)
		if err != nil {
			return fmt.Errorf("failed to download '%s': %w", options.NuGet, err)
		}
	}

	options.ResolveDefaults()
	if err := options.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return generate(options, logger)
}

func loadOptions(cmd *cobra.Command, args []string) (*config.Options, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	options, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if len(args) > 0 {
		options.Library = args[0]
	}
	return options, nil
}

func generate(options *config.Options, logger zerolog.Logger) error {
	directories := append([]string{filepath.Dir(options.Library)}, options.Probe...)
	resolver := metadata.NewProbingResolver(logger, options.Library, directories...)

	reader, err := metadata.NewReader(options.Library, logger, resolver)
	if err != nil {
		return err
	}
	library, err := reader.ReadLibrary()
	if err != nil {
		return err
	}

	var documenter generation.Documenter
	if options.MigrateDocs() {
		documentation, err := docs.Load(options.DocFile)
		if err != nil {
			return err
		}
		// A nil *Documentation must not end up in the interface.
		if documentation != nil {
			documenter = documentation
		}
	}

	generator := generation.NewGenerator(options.Namespace, options.Class, version, documenter, logger)
	generator.RegisterLibrary(library)
	if err := generator.Generate(options.Output); err != nil {
		return err
	}

	if options.Fixture != "" {
		if err := snapshot.New(fixturePackage, library).Save(options.Fixture); err != nil {
			return err
		}
	}

	logger.Info().
		Str("library", library.Name).
		Int("functions", generator.Methods).
		Str("output", options.Output).
		Msg("Done")
	return nil
}

// normalizeArgs maps Windows style switches onto flags: "/?" becomes
// "--help", "/name:value" becomes "--name=value" and "/name" becomes "--name".
// Arguments naming no known flag, such as absolute paths, are kept.
func normalizeArgs(args []string, flags *pflag.FlagSet) []string {
	normalized := make([]string, 0, len(args))
	for _, arg := range args {
		if arg == "/?" {
			normalized = append(normalized, "--help")
			continue
		}
		if !strings.HasPrefix(arg, "/") {
			normalized = append(normalized, arg)
			continue
		}

		name, value, hasValue := strings.Cut(arg[1:], ":")
		if flags.Lookup(name) == nil {
			normalized = append(normalized, arg)
			continue
		}

		if hasValue {
			normalized = append(normalized, "--"+name+"="+value)
		} else {
			normalized = append(normalized, "--"+name)
		}
	}
	return normalized
}
