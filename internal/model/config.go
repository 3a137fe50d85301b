package model

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"

	_ "embed"
)

const (
	SourceAuto    = "Auto"
	SourceFlatbed = "Flatbed"
	SourceADF     = "ADF"

	LogStderr  = "stderr"
	LogStdout  = "stdout"
	LogDiscard = "discard"

	DefaultResolution     = 300
	DefaultOCRLang        = "eng"
	DefaultOCRBinary      = "tesseract"
	DefaultThumbnailWidth = 150
)

//go:embed config.cue
var cueSource []byte

var (
	cueCtx *cue.Context
	schema cue.Value
)

func init() {
	if len(cueSource) == 0 {
		panic("variable cueSource is empty")
	}
	cueCtx = cuecontext.New()
	compiled := cueCtx.CompileBytes(cueSource)
	if compiled.Err() != nil {
		panic(compiled.Err())
	}

	if err := compiled.Validate(); err != nil {
		panic(err)
	}

	schema = compiled.LookupPath(cue.ParsePath("#Config"))
	if schema.Err() != nil {
		panic(schema.Err())
	}
	if err := schema.Validate(); err != nil {
		panic(err)
	}
}

type Config struct {
	Version int      `json:"version" yaml:"version"` // fixed 0 for now
	Workdir Path     `json:"workdir" yaml:"workdir"`
	Scanner *Scanner `json:"scanner,omitempty" yaml:"scanner,omitempty"`
	OCR     *OCR     `json:"ocr,omitempty" yaml:"ocr,omitempty"`
	Render  *Render  `json:"render,omitempty" yaml:"render,omitempty"`
	Events  *Events  `json:"events,omitempty" yaml:"events,omitempty"`
	Reindex *Reindex `json:"reindex,omitempty" yaml:"reindex,omitempty"`
	Service Service  `json:"service" yaml:"service"`
}

// Scanner selects and configures the acquisition device.
type Scanner struct {
	Device     string `json:"device,omitempty" yaml:"device,omitempty"` // e.g. dir:/srv/feeder
	Resolution int    `json:"resolution,omitempty" yaml:"resolution,omitempty"`
	Source     string `json:"source,omitempty" yaml:"source,omitempty"` // "Auto" | "Flatbed" | "ADF"
}

type OCR struct {
	Lang   string `json:"lang,omitempty" yaml:"lang,omitempty"`
	Binary string `json:"binary,omitempty" yaml:"binary,omitempty"`
}

type Render struct {
	ThumbnailWidth int     `json:"thumbnail_width,omitempty" yaml:"thumbnail_width,omitempty"`
	Zoom           float64 `json:"zoom,omitempty" yaml:"zoom,omitempty"` // 0 fits the viewport
}

// Events bounds the event channel. Zero keeps it unbounded.
type Events struct {
	Limit int `json:"limit,omitempty" yaml:"limit,omitempty"`
}

type Reindex struct {
	Schedule *Schedule `json:"schedule,omitempty" yaml:"schedule,omitempty"`
	// Watch reindexes shortly after documents change on disk.
	Watch bool `json:"watch,omitempty" yaml:"watch,omitempty"`
}

// Schedule is either a cron expression or an ISO-8601 duration.
type Schedule struct {
	Cron     string `json:"cron,omitempty" yaml:"cron,omitempty"`
	Duration string `json:"duration,omitempty" yaml:"duration,omitempty"`
}

type Service struct {
	Verbose bool   `json:"verbose,omitempty" yaml:"verbose,omitempty"`
	Log     string `json:"log,omitempty" yaml:"log,omitempty"` // "stderr"|"stdout"|"discard"|path
}

// DefaultConfig returns the configuration stored on a first run.
func DefaultConfig(_ context.Context) Config {
	workdir := "papers"
	if home, err := os.UserHomeDir(); err == nil {
		workdir = filepath.Join(home, "papers")
	}
	return Config{
		Version: 0,
		Workdir: Path(workdir),
		Scanner: &Scanner{
			Resolution: DefaultResolution,
			Source:     SourceAuto,
		},
		OCR: &OCR{
			Lang:   DefaultOCRLang,
			Binary: DefaultOCRBinary,
		},
		Service: Service{
			Log: LogStderr,
		},
	}
}

// LoadConfig validates YAML from r against CUE schema and decodes to Config.
func LoadConfig(r io.Reader) (*Config, error) {
	yamlFile, err := yaml.Extract("paperwork.yaml", r)
	if err != nil {
		return nil, err
	}
	yamlValue := cueCtx.BuildFile(yamlFile)

	unified := schema.Unify(yamlValue)
	if err := unified.Validate(
		cue.All(),          // all constraints
		cue.Concrete(true), // no incomplete values
	); err != nil {
		return nil, err
	}

	var out Config
	if err := unified.Decode(&out); err != nil {
		return nil, err
	}

	if out.Reindex != nil && out.Reindex.Schedule != nil {
		if _, err := out.Reindex.Schedule.Interval(); err != nil {
			return nil, fmt.Errorf("reindex.schedule: %w", err)
		}
	}

	return &out, nil
}

func (c Config) ScannerDevice() string {
	return get(c.Scanner).Device
}

func (c Config) ScannerResolution() int {
	return or(get(c.Scanner).Resolution, DefaultResolution)
}

func (c Config) ScannerSource() string {
	return or(get(c.Scanner).Source, SourceAuto)
}

func (c Config) OCRLang() string {
	return or(get(c.OCR).Lang, DefaultOCRLang)
}

func (c Config) OCRBinary() string {
	return or(get(c.OCR).Binary, DefaultOCRBinary)
}

func (c Config) ThumbnailWidth() int {
	return or(get(c.Render).ThumbnailWidth, DefaultThumbnailWidth)
}

func (c Config) Zoom() float64 {
	return get(c.Render).Zoom
}

func (c Config) EventLimit() int {
	return get(c.Events).Limit
}

func (c Config) ReindexSchedule() *Schedule {
	return get(c.Reindex).Schedule
}

func (c Config) ReindexWatch() bool {
	return get(c.Reindex).Watch
}

func get[T any](pt *T) T {
	var zero T
	if pt == nil {
		return zero
	}
	return *pt
}

func or[T comparable](v, dflt T) T {
	var zero T
	if v == zero {
		return dflt
	}
	return v
}
