// Package config loads the optional .xctools.yaml project file and the .env
// file holding upload credentials.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileName is the name of the project configuration file.
const FileName = ".xctools.yaml"

const (
	DefaultConfiguration = "Release"
	DefaultWorkers       = 4
	DefaultFFmpegPath    = "ffmpeg"
	DefaultUploadPrefix  = "test-results/"

	// Environment variables holding the upload credentials.
	EnvAccessKey = "XCTOOLS_S3_ACCESS_KEY"
	EnvSecretKey = "XCTOOLS_S3_SECRET_KEY"
)

// RunConfig holds the defaults of the run command.
type RunConfig struct {
	Project           string `yaml:"project,omitempty"`
	Scheme            string `yaml:"scheme,omitempty"`
	Configuration     string `yaml:"configuration,omitempty"`
	Destination       string `yaml:"destination,omitempty"`
	XcodePath         string `yaml:"xcode_path,omitempty"`
	SwiftPackagesPath string `yaml:"swift_packages_path,omitempty"`
}

// ExtractConfig holds the defaults of the extract command.
type ExtractConfig struct {
	Workers     int    `yaml:"workers,omitempty"`
	ExtractLogs *bool  `yaml:"extract_logs,omitempty"`
	Profile     *bool  `yaml:"profile,omitempty"`
	FFmpegPath  string `yaml:"ffmpeg_path,omitempty"`
}

// UploadConfig describes the S3 compatible bucket archives are published to.
// Credentials are never read from the file.
type UploadConfig struct {
	Endpoint string `yaml:"endpoint,omitempty"`
	Bucket   string `yaml:"bucket,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
	Region   string `yaml:"region,omitempty"`
	UseSSL   *bool  `yaml:"use_ssl,omitempty"`
}

// Enabled reports whether enough is configured to attempt an upload.
func (u UploadConfig) Enabled() bool {
	return u.Endpoint != "" && u.Bucket != ""
}

// Config is the top-level configuration loaded from .xctools.yaml.
type Config struct {
	Run     RunConfig     `yaml:"run,omitempty"`
	Extract ExtractConfig `yaml:"extract,omitempty"`
	Upload  UploadConfig  `yaml:"upload,omitempty"`
}

// New returns a Config with all hard-coded defaults populated.
func New() *Config {
	return &Config{
		Run: RunConfig{
			Configuration: DefaultConfiguration,
		},
		Extract: ExtractConfig{
			Workers:     DefaultWorkers,
			ExtractLogs: boolPtr(false),
			Profile:     boolPtr(false),
			FFmpegPath:  DefaultFFmpegPath,
		},
		Upload: UploadConfig{
			Prefix: DefaultUploadPrefix,
			UseSSL: boolPtr(true),
		},
	}
}

// Load reads the configuration. An explicit path must exist. Without one,
// .xctools.yaml is searched from startDir upwards and defaults are returned
// when none is found.
func Load(path, startDir string) (*Config, error) {
	cfg := New()

	var data []byte
	var err error
	if path != "" {
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else {
		data, err = findConfigFile(startDir)
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", FileName, err)
		}
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", FileName, err)
	}

	mergeConfig(cfg, &fileCfg)
	return cfg, nil
}

// findConfigFile walks up from dir looking for .xctools.yaml (max 10
// levels). Returns os.ErrNotExist if no config file is found.
func findConfigFile(dir string) ([]byte, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving path %q: %w", dir, err)
	}
	dir = absDir

	for i := 0; i < 10; i++ {
		p := filepath.Join(dir, FileName)
		data, err := os.ReadFile(p)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading %q: %w", p, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return nil, os.ErrNotExist
}

// mergeConfig overlays non-zero values from src onto dst.
func mergeConfig(dst, src *Config) {
	mergeString(&dst.Run.Project, src.Run.Project)
	mergeString(&dst.Run.Scheme, src.Run.Scheme)
	mergeString(&dst.Run.Configuration, src.Run.Configuration)
	mergeString(&dst.Run.Destination, src.Run.Destination)
	mergeString(&dst.Run.XcodePath, src.Run.XcodePath)
	mergeString(&dst.Run.SwiftPackagesPath, src.Run.SwiftPackagesPath)

	if src.Extract.Workers != 0 {
		dst.Extract.Workers = src.Extract.Workers
	}
	if src.Extract.ExtractLogs != nil {
		dst.Extract.ExtractLogs = src.Extract.ExtractLogs
	}
	if src.Extract.Profile != nil {
		dst.Extract.Profile = src.Extract.Profile
	}
	mergeString(&dst.Extract.FFmpegPath, src.Extract.FFmpegPath)

	mergeString(&dst.Upload.Endpoint, src.Upload.Endpoint)
	mergeString(&dst.Upload.Bucket, src.Upload.Bucket)
	mergeString(&dst.Upload.Prefix, src.Upload.Prefix)
	mergeString(&dst.Upload.Region, src.Upload.Region)
	if src.Upload.UseSSL != nil {
		dst.Upload.UseSSL = src.Upload.UseSSL
	}
}

func mergeString(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}

// LoadEnv loads dir/.env when present. Variables already set in the
// environment take precedence over the file.
func LoadEnv(dir string) error {
	p := filepath.Join(dir, ".env")
	if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(p); err != nil {
		return fmt.Errorf("failed to load %s: %w", p, err)
	}
	return nil
}

// Credentials returns the upload credentials from the environment.
func Credentials() (accessKey, secretKey string, err error) {
	accessKey = os.Getenv(EnvAccessKey)
	secretKey = os.Getenv(EnvSecretKey)
	if accessKey == "" || secretKey == "" {
		return "", "", fmt.Errorf("%s and %s must be set to upload", EnvAccessKey, EnvSecretKey)
	}
	return accessKey, secretKey, nil
}

// BoolValue dereferences an optional flag.
func BoolValue(b *bool) bool {
	return b != nil && *b
}

func boolPtr(b bool) *bool { return &b }
