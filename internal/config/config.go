// Package config loads and validates the stream definition file.
// Profiles and transfer targets are structured, ordered data, so the
// definition lives in a YAML file; credentials and endpoints may be
// overridden through the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/hszk-dev/livecast/internal/domain/model"
)

// MinSegmentLength is the shortest segment duration accepted, in
// seconds. Shorter segments produce more publishes than remote targets
// reliably keep up with.
const MinSegmentLength = 3

var (
	// ErrSegmentLengthTooShort is returned when segment_length is below
	// MinSegmentLength.
	ErrSegmentLengthTooShort = errors.New("segment length below minimum")

	// ErrTempDirUnusable is returned when the temp directory is missing
	// or not writable.
	ErrTempDirUnusable = errors.New("temp directory unusable")

	// ErrNoProfiles is returned when no encoding profile is defined.
	ErrNoProfiles = errors.New("no encoding profiles defined")

	// ErrDanglingTransferProfile is returned when transfer_profile does
	// not name a configured transfer target.
	ErrDanglingTransferProfile = errors.New("transfer profile not defined")

	// ErrIncompleteProfile is returned when a profile is missing its
	// name, bandwidth or command template.
	ErrIncompleteProfile = errors.New("incomplete encoding profile")
)

// Config is the full stream definition, immutable after Load.
type Config struct {
	// InputLocation is the media source fed to the transcoder.
	InputLocation string `yaml:"input_location"`
	// SourceCommand is the master transcode command template. Its
	// single operand is the input location; it must write an elementary
	// stream to stdout. Used only in multi-profile mode.
	SourceCommand string `yaml:"source_command"`
	// SegmenterBinary is the path to the external segmenter.
	SegmenterBinary string `yaml:"segmenter_binary"`

	TempDir       string `yaml:"temp_dir"`
	SegmentLength int    `yaml:"segment_length"`
	// IndexSegmentCount is the sliding-window depth W: how many
	// segments each playlist advertises.
	IndexSegmentCount int    `yaml:"index_segment_count"`
	URLPrefix         string `yaml:"url_prefix"`
	IndexPrefix       string `yaml:"index_prefix"`
	SegmentPrefix     string `yaml:"segment_prefix"`

	EncodingProfiles []ProfileConfig `yaml:"encoding_profiles"`

	TransferProfile string                    `yaml:"transfer_profile"`
	Transfers       map[string]TransferConfig `yaml:"transfers"`

	// PublishTimeout bounds a single transport publish. Zero selects
	// three times the segment length.
	PublishTimeout time.Duration `yaml:"publish_timeout"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// MonitorAddr, when set, serves /healthz and /metrics.
	MonitorAddr string `yaml:"monitor_addr"`
	// RedisAddr, when set, enables the stream status store.
	RedisAddr string `yaml:"redis_addr"`
	// AMQPURL, when set, enables publish notifications.
	AMQPURL string `yaml:"amqp_url"`
}

// ProfileConfig is one encoding profile as written in the definition
// file. Order in the file is the order profiles appear in the master
// playlist.
type ProfileConfig struct {
	Name      string `yaml:"name"`
	Bandwidth int    `yaml:"bandwidth"`
	// Command is the per-profile transcode command template. Operands,
	// in order: input location, segmenter binary, segment length, temp
	// directory, segment file prefix, profile name.
	Command string `yaml:"command"`
}

// TransferConfig describes one transfer target.
type TransferConfig struct {
	Kind string `yaml:"kind"` // copy, ftp, scp, s3

	// copy
	Directory string `yaml:"directory"`

	// ftp / scp
	RemoteHost string `yaml:"remote_host"`
	Port       int    `yaml:"port"`
	UserName   string `yaml:"user_name"`
	Password   string `yaml:"password"`

	// s3
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	KeyPrefix string `yaml:"key_prefix"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// overrides are environment values applied on top of the definition
// file, so credentials can stay out of it.
type overrides struct {
	S3AccessKey string `envconfig:"LIVECAST_S3_ACCESS_KEY"`
	S3SecretKey string `envconfig:"LIVECAST_S3_SECRET_KEY"`
	FTPPassword string `envconfig:"LIVECAST_FTP_PASSWORD"`
	SCPPassword string `envconfig:"LIVECAST_SCP_PASSWORD"`
	RedisAddr   string `envconfig:"LIVECAST_REDIS_ADDR"`
	AMQPURL     string `envconfig:"LIVECAST_AMQP_URL"`
}

// Load reads, overrides and validates a stream definition.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	var env overrides
	if err := envconfig.Process("", &env); err != nil {
		return nil, fmt.Errorf("failed to read environment overrides: %w", err)
	}
	cfg.applyOverrides(env)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyOverrides(env overrides) {
	if env.RedisAddr != "" {
		c.RedisAddr = env.RedisAddr
	}
	if env.AMQPURL != "" {
		c.AMQPURL = env.AMQPURL
	}
	for name, tc := range c.Transfers {
		switch tc.Kind {
		case "s3":
			if env.S3AccessKey != "" {
				tc.AccessKey = env.S3AccessKey
			}
			if env.S3SecretKey != "" {
				tc.SecretKey = env.S3SecretKey
			}
		case "ftp":
			if env.FTPPassword != "" {
				tc.Password = env.FTPPassword
			}
		case "scp":
			if env.SCPPassword != "" {
				tc.Password = env.SCPPassword
			}
		}
		c.Transfers[name] = tc
	}
}

func (c *Config) validate() error {
	if c.SegmentLength < MinSegmentLength {
		return fmt.Errorf("%w: got %d, minimum %d", ErrSegmentLengthTooShort, c.SegmentLength, MinSegmentLength)
	}
	if c.IndexSegmentCount < 1 {
		return fmt.Errorf("index_segment_count must be at least 1, got %d", c.IndexSegmentCount)
	}
	if len(c.EncodingProfiles) == 0 {
		return ErrNoProfiles
	}
	for _, p := range c.EncodingProfiles {
		if p.Name == "" || p.Command == "" || p.Bandwidth <= 0 {
			return fmt.Errorf("%w: %q", ErrIncompleteProfile, p.Name)
		}
	}
	if _, ok := c.Transfers[c.TransferProfile]; !ok {
		return fmt.Errorf("%w: %q", ErrDanglingTransferProfile, c.TransferProfile)
	}
	if err := checkWritableDir(c.TempDir); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrTempDirUnusable, c.TempDir, err)
	}
	return nil
}

// checkWritableDir probes the directory with a temp file, the only
// reliable writability test across filesystems.
func checkWritableDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory")
	}
	probe, err := os.CreateTemp(dir, ".livecast-probe-*")
	if err != nil {
		return err
	}
	name := probe.Name()
	_ = probe.Close()
	return os.Remove(name)
}

// Profiles converts the configured profile list into domain values,
// preserving file order.
func (c *Config) Profiles() []model.EncodingProfile {
	out := make([]model.EncodingProfile, 0, len(c.EncodingProfiles))
	for _, p := range c.EncodingProfiles {
		out = append(out, model.EncodingProfile{
			Name:      p.Name,
			Bandwidth: p.Bandwidth,
			Command:   p.Command,
		})
	}
	return out
}

// Transfer returns the selected transfer target.
func (c *Config) Transfer() TransferConfig {
	return c.Transfers[c.TransferProfile]
}

// SegmentPath returns the on-disk location the segmenter writes a
// given segment to.
func (c *Config) SegmentPath(profile string, sequence int) string {
	return filepath.Join(c.TempDir, fmt.Sprintf("%s_%s-%05d.ts", c.SegmentPrefix, profile, sequence))
}

// EffectivePublishTimeout returns the configured publish timeout, or
// three segment lengths when unset. A hung transfer must never stall
// the publish worker past a bounded wait.
func (c *Config) EffectivePublishTimeout() time.Duration {
	if c.PublishTimeout > 0 {
		return c.PublishTimeout
	}
	return 3 * time.Duration(c.SegmentLength) * time.Second
}
