package converter

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/jmadden/readme-docs-migration-github/pkg/converter/cache"
	"github.com/jmadden/readme-docs-migration-github/pkg/converter/encoding"
	"github.com/jmadden/readme-docs-migration-github/pkg/converter/images"
	"github.com/jmadden/readme-docs-migration-github/pkg/converter/mdx"
)

// Hooks receives status updates during a run.
// Implementations MUST be thread-safe as methods may be called concurrently.
type Hooks interface {
	OnFileDiscovered(path string) error
	OnFileStatusUpdate(path string, status Status, message string, duration time.Duration) error
	OnRunComplete(report Report) error
}

// NoOpHooks ignores every event.
type NoOpHooks struct{}

func (h *NoOpHooks) OnFileDiscovered(path string) error { return nil }

func (h *NoOpHooks) OnFileStatusUpdate(path string, status Status, message string, duration time.Duration) error {
	return nil
}

func (h *NoOpHooks) OnRunComplete(report Report) error { return nil }

// Options holds all configuration for a migration run.
type Options struct {
	// --- Paths ---
	RootPath   string `mapstructure:"root" json:"root,omitempty"`     // Working root; relative paths below resolve against it
	InputPath  string `mapstructure:"input" json:"input,omitempty"`   // Required: source directory, relative to RootPath or absolute
	OutputPath string `mapstructure:"output" json:"output,omitempty"` // Required: absolute destination directory
	MirrorPath string `mapstructure:"mirror" json:"mirror,omitempty"` // Optional absolute secondary destination, always mirrored

	// --- Source selection ---
	IncludeMDX     bool     `mapstructure:"includeMdx" json:"includeMdx,omitempty"`
	IgnorePatterns []string `mapstructure:"ignore" json:"ignore,omitempty"` // Aggregated with .docsmigratorignore

	// --- Layout ---
	Flat        bool   `mapstructure:"flat" json:"flat,omitempty"`       // Unmapped documents go to the destination root
	MoveMapPath string `mapstructure:"moveMap" json:"moveMap,omitempty"` // Filename → destination directory CSV

	// --- Images ---
	UploadImages    bool              `mapstructure:"uploadImages" json:"uploadImages,omitempty"`
	ImagesRoot      string            `mapstructure:"imagesRoot" json:"imagesRoot,omitempty"`
	UploaderKind    UploaderKind      `mapstructure:"uploader" json:"uploader,omitempty"`
	UploadEndpoint  string            `mapstructure:"uploadEndpoint" json:"uploadEndpoint,omitempty"`
	APIKey          string            `mapstructure:"apiKey" json:"-"`
	S3              images.S3Config   `mapstructure:"s3" json:"s3,omitempty"`
	UploadTimeout   time.Duration     `mapstructure:"uploadTimeout" json:"uploadTimeout,omitempty"`
	UploadRetries   int               `mapstructure:"uploadRetries" json:"uploadRetries,omitempty"`
	UploadCachePath string            `mapstructure:"uploadCache" json:"uploadCache,omitempty"` // Persistent URL cache; empty disables it
	UploadCacheFmt  string            `mapstructure:"uploadCacheFormat" json:"uploadCacheFormat,omitempty"`
	LanguageMap     map[string]string `mapstructure:"languageMappings" json:"languageMappings,omitempty"`

	// --- Behavior & Control ---
	AnnotateCode    bool          `mapstructure:"annotateCode" json:"annotateCode,omitempty"`
	DefaultEncoding string        `mapstructure:"defaultEncoding" json:"defaultEncoding,omitempty"`
	Concurrency     int           `mapstructure:"concurrency" json:"concurrency,omitempty"`
	OnErrorMode     OnErrorMode   `mapstructure:"onError" json:"onError,omitempty"`
	Verbose         bool          `mapstructure:"verbose" json:"verbose,omitempty"`
	TuiEnabled      bool          `mapstructure:"tuiEnabled" json:"tuiEnabled,omitempty"`
	WatchMode       bool          `mapstructure:"-" json:"-"`
	WatchDebounce   time.Duration `mapstructure:"-" json:"-"`
	ProfileName     string        `mapstructure:"-" json:"-"`
	ConfigFilePath  string        `mapstructure:"-" json:"-"`
	AppVersion      string        `mapstructure:"-" json:"-"`

	// --- Injected Dependencies ---
	EventHooks       Hooks                `mapstructure:"-" json:"-"` // Defaults to NoOpHooks
	Logger           slog.Handler         `mapstructure:"-" json:"-"` // Required: logging backend
	ImageUploader    images.Uploader      `mapstructure:"-" json:"-"` // Overrides UploaderKind when set
	UploadCache      cache.Store          `mapstructure:"-" json:"-"`
	LanguageDetector mdx.LanguageDetector `mapstructure:"-" json:"-"`
	EncodingHandler  encoding.Handler     `mapstructure:"-" json:"-"`
}

func absolutePath(value interface{}) error {
	s, _ := value.(string)
	if s != "" && !filepath.IsAbs(s) {
		return errors.New("must be an absolute path")
	}
	return nil
}

func knownEncoding(value interface{}) error {
	s, _ := value.(string)
	if s != "" && !encoding.ValidFallback(s) {
		return fmt.Errorf("unknown encoding %q", s)
	}
	return nil
}

// Validate checks the options a run depends on. Failures wrap
// ErrConfigValidation.
func (o *Options) Validate() error {
	err := validation.ValidateStruct(o,
		validation.Field(&o.InputPath, validation.Required),
		validation.Field(&o.OutputPath, validation.Required, validation.By(absolutePath)),
		validation.Field(&o.MirrorPath, validation.By(absolutePath)),
		validation.Field(&o.OnErrorMode, validation.In(OnErrorContinue, OnErrorStop)),
		validation.Field(&o.UploaderKind, validation.In(UploaderReadMe, UploaderS3)),
		validation.Field(&o.Concurrency, validation.Min(0)),
		validation.Field(&o.UploadRetries, validation.Min(0), validation.Max(10)),
		validation.Field(&o.UploadTimeout, validation.Min(time.Duration(0))),
		validation.Field(&o.DefaultEncoding, validation.By(knownEncoding)),
		validation.Field(&o.APIKey,
			validation.When(o.UploadImages && o.ImageUploader == nil && o.uploaderKind() == UploaderReadMe,
				validation.Required.Error("is required when uploading images to ReadMe"))),
	)
	if err == nil && o.MirrorPath != "" && filepath.Clean(o.MirrorPath) == filepath.Clean(o.OutputPath) {
		err = errors.New("mirror: must differ from output")
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigValidation, err)
	}
	return nil
}

func (o *Options) uploaderKind() UploaderKind {
	if o.UploaderKind == "" {
		return DefaultUploaderKind
	}
	return o.UploaderKind
}

// resolve returns p as an absolute path, joining relative paths to RootPath.
func (o *Options) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	root := o.RootPath
	if root == "" {
		root = "."
	}
	if abs, err := filepath.Abs(filepath.Join(root, p)); err == nil {
		return abs
	}
	return filepath.Join(root, p)
}

// SourceDir is the absolute source directory.
func (o *Options) SourceDir() string { return o.resolve(o.InputPath) }

// ImagesDir is the absolute images root. It defaults to the working root.
func (o *Options) ImagesDir() string {
	if o.ImagesRoot == "" {
		return o.resolve(".")
	}
	return o.resolve(o.ImagesRoot)
}

// DestinationRoots lists the primary destination and, when set, the mirror.
func (o *Options) DestinationRoots() []string {
	roots := []string{o.OutputPath}
	if o.MirrorPath != "" {
		roots = append(roots, o.MirrorPath)
	}
	return roots
}

// SourceExtensions lists the accepted document extensions.
func (o *Options) SourceExtensions() []string {
	if o.IncludeMDX {
		return []string{".md", ".mdx"}
	}
	return []string{".md"}
}
