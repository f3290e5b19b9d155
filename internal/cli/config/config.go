// Package config merges defaults, the config file, an optional profile,
// environment variables (including a .env file in the working root) and
// command-line flags into converter.Options.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jmadden/readme-docs-migration-github/pkg/converter"
	"github.com/jmadden/readme-docs-migration-github/pkg/converter/cache"
	"github.com/jmadden/readme-docs-migration-github/pkg/converter/images"
)

const (
	EnvPrefix         = "DOCS_MIGRATOR"
	DefaultConfigName = "docs-migrator"
	DotEnvFileName    = ".env"
)

// flagKeys maps each bindable flag to its config key. The keys match the
// mapstructure tags of converter.Options.
var flagKeys = map[string]string{
	"root":             "root",
	"input":            "input",
	"output":           "output",
	"mirror":           "mirror",
	"include-mdx":      "includeMdx",
	"upload-images":    "uploadImages",
	"images-root":      "imagesRoot",
	"api-key":          "apiKey",
	"move-map":         "moveMap",
	"flat":             "flat",
	"uploader":         "uploader",
	"upload-endpoint":  "uploadEndpoint",
	"upload-timeout":   "uploadTimeout",
	"upload-retries":   "uploadRetries",
	"upload-cache":     "uploadCache",
	"concurrency":      "concurrency",
	"on-error":         "onError",
	"ignore":           "ignore",
	"annotate-code":    "annotateCode",
	"default-encoding": "defaultEncoding",
	"verbose":          "verbose",
	"watch-debounce":   "watch.debounce",
}

// DefineFlags registers the migration flags on flags. --config, --profile
// and --verbose are persistent flags owned by the root command.
func DefineFlags(flags *pflag.FlagSet) {
	flags.StringP("root", "r", ".", "Working root; relative paths resolve against it")
	flags.StringP("input", "i", "", "Source directory relative to the working root (required)")
	flags.StringP("output", "o", "", "Absolute destination directory (required)")
	flags.String("mirror", "", "Absolute secondary destination, always written with the mirrored layout")
	flags.Bool("include-mdx", converter.DefaultIncludeMDX, "Also convert .mdx sources")
	flags.Bool("upload-images", false, "Resolve local images and upload them")
	flags.String("images-root", "", "Directory searched for local images (default: the working root)")
	flags.String("api-key", "", "ReadMe API key (falls back to "+converter.APIKeyEnvVariable+")")
	flags.String("move-map", "", "CSV mapping file names to destination directories")
	flags.Bool("flat", converter.DefaultFlat, "Write unmapped documents to the destination root")
	flags.String("uploader", string(converter.DefaultUploaderKind), "Image host: 'readme' or 's3'")
	flags.String("upload-endpoint", images.DefaultEndpoint, "Image upload endpoint for the readme uploader")
	flags.Duration("upload-timeout", converter.DefaultUploadTimeout, "Timeout of a single upload attempt")
	flags.Int("upload-retries", converter.DefaultUploadRetries, "Retries after a failed upload attempt")
	flags.String("upload-cache", "", "File persisting uploaded image URLs across runs")
	flags.Int("concurrency", converter.DefaultConcurrency, "Documents converted in parallel (0 = number of CPUs)")
	flags.String("on-error", string(converter.DefaultOnErrorMode), "Behavior on a failed document: 'continue' or 'stop'")
	flags.StringSlice("ignore", nil, "Additional ignore glob patterns")
	flags.Bool("annotate-code", converter.DefaultAnnotateCode, "Label unlabeled code fences with a detected language")
	flags.String("default-encoding", "", "Fallback encoding for sources that are not UTF-8")
	flags.Bool("watch", false, "Re-run the migration when the source changes")
	flags.Duration("watch-debounce", converter.DefaultWatchDebounce, "Quiet period before a watch re-run")
	flags.Bool("no-tui", false, "Disable the interactive progress view")
}

// LoadAndValidate builds the run options. The returned logger is usable
// even when an error is returned.
func LoadAndValidate(cfgFile, profileName, appVersion string, verbose bool, flags *pflag.FlagSet) (converter.Options, *slog.Logger, error) {
	var opts converter.Options
	v := viper.New()

	tempLogger := newLogger(verbose)
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", DefaultConfigName))
			v.AddConfigPath(filepath.Join(home, "."+DefaultConfigName))
		} else {
			tempLogger.Debug("Home directory unavailable, searching the current directory only", slog.String("error", err.Error()))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || cfgFile != "" {
			used := cfgFile
			if used == "" {
				used = DefaultConfigName + ".yaml"
			}
			tempLogger.Error("Error reading configuration file", slog.String("path", used), slog.String("error", err.Error()))
			return opts, tempLogger, fmt.Errorf("%w: error reading config file '%s': %w", converter.ErrConfigValidation, used, err)
		}
		tempLogger.Debug("No configuration file found, using defaults/env/flags")
	} else {
		opts.ConfigFilePath = v.ConfigFileUsed()
		tempLogger.Debug("Using configuration file", slog.String("path", opts.ConfigFilePath))
	}

	if profileName != "" {
		if err := applyProfile(v, profileName); err != nil {
			tempLogger.Error(err.Error())
			return opts, tempLogger, err
		}
		tempLogger.Debug("Applied configuration profile", slog.String("profile", profileName))
	}

	for name, key := range flagKeys {
		if f := flags.Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return opts, tempLogger, fmt.Errorf("error binding flag '--%s': %w", name, err)
			}
		}
	}

	// .env lives in the working root, so it can only be read once the root is known.
	if err := loadDotEnv(v.GetString("root")); err != nil {
		tempLogger.Warn("Could not load .env file", slog.String("error", err.Error()))
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.Unmarshal(&opts); err != nil {
		tempLogger.Error("Error unmarshalling configuration", slog.String("error", err.Error()))
		return opts, tempLogger, fmt.Errorf("%w: error unmarshalling configuration: %w", converter.ErrConfigValidation, err)
	}
	opts.ProfileName = profileName
	opts.AppVersion = appVersion

	if flags.Changed("verbose") {
		opts.Verbose, _ = flags.GetBool("verbose")
	} else if verbose {
		opts.Verbose = true
	}
	if noTUI, _ := flags.GetBool("no-tui"); noTUI {
		opts.TuiEnabled = false
	}
	opts.WatchMode, _ = flags.GetBool("watch")
	if opts.Verbose {
		opts.TuiEnabled = false
	}

	debounce, err := parseDebounce(v.GetString("watch.debounce"))
	if err != nil {
		tempLogger.Error(err.Error(), slog.String("key", "watch.debounce"))
		return opts, tempLogger, err
	}
	opts.WatchDebounce = debounce

	if opts.APIKey == "" {
		opts.APIKey = os.Getenv(converter.APIKeyEnvVariable)
	}
	if opts.RootPath == "" {
		opts.RootPath = "."
	}
	if abs, absErr := filepath.Abs(opts.RootPath); absErr == nil {
		opts.RootPath = abs
	}

	handler := newHandler(opts.Verbose)
	logger := slog.New(handler)
	opts.Logger = handler

	if err := opts.Validate(); err != nil {
		logger.Error("Invalid configuration", slog.String("error", err.Error()))
		return opts, logger, err
	}
	if err := checkSourceDir(opts.SourceDir()); err != nil {
		logger.Error(err.Error(), slog.String("key", "input"))
		return opts, logger, err
	}

	logger.Debug("Configuration loaded",
		slog.String("configFile", opts.ConfigFilePath),
		slog.String("profile", opts.ProfileName),
		slog.String("root", opts.RootPath),
		slog.Bool("verbose", opts.Verbose),
		slog.Bool("tui", opts.TuiEnabled),
	)
	return opts, logger, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("root", ".")
	v.SetDefault("input", "")
	v.SetDefault("output", "")
	v.SetDefault("mirror", "")
	v.SetDefault("includeMdx", converter.DefaultIncludeMDX)
	v.SetDefault("ignore", []string{})
	v.SetDefault("flat", converter.DefaultFlat)
	v.SetDefault("moveMap", "")

	v.SetDefault("uploadImages", false)
	v.SetDefault("imagesRoot", "")
	v.SetDefault("uploader", string(converter.DefaultUploaderKind))
	v.SetDefault("uploadEndpoint", images.DefaultEndpoint)
	v.SetDefault("apiKey", "")
	v.SetDefault("uploadTimeout", converter.DefaultUploadTimeout.String())
	v.SetDefault("uploadRetries", converter.DefaultUploadRetries)
	v.SetDefault("uploadCache", "")
	v.SetDefault("uploadCacheFormat", cache.FormatJSON)
	v.SetDefault("languageMappings", map[string]string{})
	// Nested keys need defaults so AutomaticEnv can resolve them.
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.region", "")
	v.SetDefault("s3.accessKey", "")
	v.SetDefault("s3.secretKey", "")
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.prefix", "")
	v.SetDefault("s3.publicURL", "")
	v.SetDefault("s3.useSSL", true)

	v.SetDefault("annotateCode", converter.DefaultAnnotateCode)
	v.SetDefault("defaultEncoding", "")
	v.SetDefault("concurrency", converter.DefaultConcurrency)
	v.SetDefault("onError", string(converter.DefaultOnErrorMode))
	v.SetDefault("verbose", converter.DefaultVerbose)
	v.SetDefault("tuiEnabled", converter.DefaultTuiEnabled)
	v.SetDefault("watch.debounce", converter.DefaultWatchDebounce.String())
}

func applyProfile(v *viper.Viper, name string) error {
	key := "profiles." + name
	if !v.IsSet(key) {
		cfg := v.ConfigFileUsed()
		if cfg == "" {
			cfg = "(no config file found)"
		}
		return fmt.Errorf("%w: profile '%s' not found in config file '%s'", converter.ErrConfigValidation, name, cfg)
	}
	sub := v.Sub(key)
	if sub == nil {
		return fmt.Errorf("%w: profile '%s' is not a mapping", converter.ErrConfigValidation, name)
	}
	if err := v.MergeConfigMap(sub.AllSettings()); err != nil {
		return fmt.Errorf("error merging profile '%s': %w", name, err)
	}
	return nil
}

// loadDotEnv reads root/.env without overriding variables already set.
func loadDotEnv(root string) error {
	if root == "" {
		root = "."
	}
	err := godotenv.Load(filepath.Join(root, DotEnvFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func parseDebounce(s string) (time.Duration, error) {
	if s == "" {
		return converter.DefaultWatchDebounce, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid watch debounce duration '%s': %w", converter.ErrConfigValidation, s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: negative watch debounce duration '%s'", converter.ErrConfigValidation, s)
	}
	return d, nil
}

func checkSourceDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: input path '%s' does not exist", converter.ErrConfigValidation, dir)
		}
		return fmt.Errorf("%w: cannot access input path '%s': %w", converter.ErrConfigValidation, dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: input path '%s' is not a directory", converter.ErrConfigValidation, dir)
	}
	return nil
}

func newHandler(verbose bool) slog.Handler {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
}

func newLogger(verbose bool) *slog.Logger {
	return slog.New(newHandler(verbose))
}
