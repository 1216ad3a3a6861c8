// Package config implements rnr's CLI surface and the user's optional
// config.yaml override set, generalizing cmd/mirrorshuttle/config.go's
// flag+YAML parseArgs/validateOpts pattern to the flag set and enumerated
// override keys documented in spec.md §6, grounded on
// original_source/rnr/__main__.py's argparse setup and
// original_source/rnr/config.py's default option values.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// DefaultTabSize matches original_source/rnr/config.py's TAB_SIZE.
const DefaultTabSize = 4

var errConfigMalformed = errors.New("config yaml file is malformed")

// Options holds the parsed CLI flags (spec §6).
type Options struct {
	Version  bool
	PrintWD  string
	Database string
	NoDB     bool
	NoColor  bool
	TabSize  int
	Debug    bool

	// Checksum opts every cp/mv invocation into a post-copy BLAKE3 digest
	// comparison between source and destination (supplemental to the
	// original argparse surface; see model.Job's Checksum field).
	Checksum bool

	// Paths are any non-flag arguments left over, matching argparse's
	// positional leftovers; cmd/rnr reads the first as its command verb and
	// the rest as that command's arguments.
	Paths []string
}

// FileConfig is the enumerated subset of original_source/rnr/config.py a
// user's config.yaml is allowed to override; unknown keys are rejected by
// yaml.Decoder.KnownFields(true) the same way the teacher's YAML decode
// rejects unrecognized fields.
type FileConfig struct {
	Opener            string            `yaml:"OPENER"`
	Pager             string            `yaml:"PAGER"`
	Editor            string            `yaml:"EDITOR"`
	UseInternalViewer bool              `yaml:"USE_INTERNAL_VIEWER"`
	CountDirectories  bool              `yaml:"COUNT_DIRECTORIES"`
	TabSize           int               `yaml:"TAB_SIZE"`
	ShowButtonbar     bool              `yaml:"SHOW_BUTTONBAR"`
	Palette           map[string]string `yaml:"PALETTE"`
}

// DefaultFileConfig mirrors original_source/rnr/config.py's module-level
// defaults, used whenever no config.yaml is present or a key is absent from
// it.
func DefaultFileConfig() FileConfig {
	pager := os.Getenv("PAGER")
	if pager == "" {
		pager = "less"
	}

	editor := os.Getenv("VISUAL")
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}

	if editor == "" {
		editor = "vi"
	}

	return FileConfig{
		Opener:            "xdg-open",
		Pager:             pager,
		Editor:            editor,
		UseInternalViewer: true,
		CountDirectories:  false,
		TabSize:           DefaultTabSize,
		ShowButtonbar:     true,
		Palette:           map[string]string{},
	}
}

// Config is the result of parsing the CLI plus (optionally) loading and
// merging a config.yaml.
type Config struct {
	Flags *flag.FlagSet
	Opts  Options
	File  FileConfig

	tabSizeSet bool
}

// Parse registers and parses rnr's CLI flags against args (including
// args[0], the program name, exactly like flag.FlagSet expects), matching
// the flag surface of original_source/rnr/__main__.py's argparse setup:
// -V/--version, -P/--printwd, -D/--database, -n/--nodb, -b/--nocolor,
// -t/--tabsize, -d/--debug.
func Parse(args []string, stderr io.Writer) (*Config, error) {
	cfg := &Config{Opts: Options{TabSize: DefaultTabSize}}

	cfg.Flags = flag.NewFlagSet("rnr", flag.ContinueOnError)
	cfg.Flags.SetOutput(stderr)
	cfg.Flags.Usage = func() {
		prog := "rnr"
		if len(args) > 0 {
			prog = args[0]
		}

		fmt.Fprintf(stderr, "usage: %s [flags] COMMAND [ARGS...]\n\n", prog)
		cfg.Flags.PrintDefaults()
	}

	cfg.Flags.BoolVar(&cfg.Opts.Version, "version", false, "print the version and exit")
	cfg.Flags.BoolVar(&cfg.Opts.Version, "V", false, "shorthand for --version")
	cfg.Flags.StringVar(&cfg.Opts.PrintWD, "printwd", "", "write the focused panel's working directory to this file on quit")
	cfg.Flags.StringVar(&cfg.Opts.PrintWD, "P", "", "shorthand for --printwd")
	cfg.Flags.StringVar(&cfg.Opts.Database, "database", "", "job persistence database file (default: under the user's data directory)")
	cfg.Flags.StringVar(&cfg.Opts.Database, "D", "", "shorthand for --database")
	cfg.Flags.BoolVar(&cfg.Opts.NoDB, "nodb", false, "do not use the job persistence database")
	cfg.Flags.BoolVar(&cfg.Opts.NoDB, "n", false, "shorthand for --nodb")
	cfg.Flags.BoolVar(&cfg.Opts.NoColor, "nocolor", false, "run in black and white")
	cfg.Flags.BoolVar(&cfg.Opts.NoColor, "b", false, "shorthand for --nocolor")
	cfg.Flags.IntVar(&cfg.Opts.TabSize, "tabsize", DefaultTabSize, "set tab size for the internal viewer")
	cfg.Flags.IntVar(&cfg.Opts.TabSize, "t", DefaultTabSize, "shorthand for --tabsize")
	cfg.Flags.BoolVar(&cfg.Opts.Debug, "debug", false, "activate debug logging to ~/rnr.log")
	cfg.Flags.BoolVar(&cfg.Opts.Debug, "d", false, "shorthand for --debug")
	cfg.Flags.BoolVar(&cfg.Opts.Checksum, "checksum", false, "verify a BLAKE3 digest of every copied file against its source")

	rest := args[1:]
	if err := cfg.Flags.Parse(rest); err != nil {
		return nil, fmt.Errorf("failed parsing flags: %w", err)
	}

	cfg.Flags.Visit(func(f *flag.Flag) {
		if f.Name == "tabsize" || f.Name == "t" {
			cfg.tabSizeSet = true
		}
	})

	cfg.Opts.Paths = cfg.Flags.Args()
	cfg.File = DefaultFileConfig()

	return cfg, nil
}

// LoadFile decodes a config.yaml at path on fsys, rejecting unknown keys
// the same way the teacher's yaml.Decoder.KnownFields(true) does, and
// merges it over the running defaults: an explicit -t/--tabsize always
// wins, matching parseArgs' setFlags-wins-over-YAML rule.
func (c *Config) LoadFile(fsys afero.Fs, path string) error {
	f, err := fsys.Open(path)
	if err != nil {
		return fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()

	file := DefaultFileConfig()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	if err := dec.Decode(&file); err != nil {
		return fmt.Errorf("%w: %w", errConfigMalformed, err)
	}

	c.File = file

	if !c.tabSizeSet && file.TabSize > 0 {
		c.Opts.TabSize = file.TabSize
	}

	return nil
}

// DefaultConfigPath returns $XDG_CONFIG_HOME/rnr/config.yaml (falling back
// to ~/.config), matching import_config.py's
// xdg.BaseDirectory.save_config_path('rnr').
func DefaultConfigPath() (string, error) {
	dir, err := configHome()
	if err != nil {
		return "", err
	}

	return filepath.Join(dir, "rnr", "config.yaml"), nil
}

// DefaultDatabasePath returns $XDG_DATA_HOME/rnr/rnr.db (falling back to
// ~/.local/share), matching __main__.py's
// `DATA_DIR = xdg.BaseDirectory.save_data_path('rnr')` / `DATA_DIR /
// 'rnr.db'`. The stdlib has no XDG_DATA_HOME equivalent to os.UserConfigDir,
// so this is hand-rolled rather than pulled from a library: no dependency in
// the pack wires XDG base-directory resolution, and adding one for two
// environment-variable lookups would not exercise anything else in the
// spec.
func DefaultDatabasePath() (string, error) {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}

		dir = filepath.Join(home, ".local", "share")
	}

	return filepath.Join(dir, "rnr", "rnr.db"), nil
}

// DebugLogPath returns ~/rnr.log, matching __main__.py's
// `Path.home() / 'rnr.log'`.
func DebugLogPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}

	return filepath.Join(home, "rnr.log"), nil
}

func configHome() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}

	return filepath.Join(home, ".config"), nil
}
