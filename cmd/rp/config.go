package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"repoparser/internal/config"
	"repoparser/internal/errors"
	"repoparser/internal/export"
	"repoparser/internal/paths"
	"repoparser/internal/processor"
)

// processorsFileName is created by `rp config init` next to config.json.
const processorsFileName = "processors.toml"

var (
	configFormat    string
	configInitForce bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage rp configuration",
	Long:  "View and manage rp configuration stored in .rp/config.json",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Display the configuration after defaults and RP_* environment overrides.

Examples:
  rp config show
  rp config show --format json`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration",
	Long: `Create .rp/config.json and .rp/processors.toml with the default settings
and processor definitions.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configEnvCmd = &cobra.Command{
	Use:   "env",
	Short: "List supported environment variables",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		writeEnvVars(os.Stdout, config.EnvVars())
	},
}

func init() {
	configShowCmd.Flags().StringVar(&configFormat, "format", "human", "Output format (json, human)")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite existing files")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configEnvCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	format, err := export.ParseFormat(configFormat)
	if err != nil {
		return err
	}

	s, err := openSession(cmd.Context(), ".")
	if err != nil {
		return err
	}
	defer s.close()

	source := config.Path(s.repo.Root())
	if _, err := os.Stat(source); err != nil {
		source = ""
	}
	return writeConfig(os.Stdout, s.cfg, source, format)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context(), ".")
	if err != nil {
		return err
	}
	defer s.close()

	root := s.repo.Root()
	cfgPath := config.Path(root)
	procPath := filepath.Join(paths.ConfigDir(root), processorsFileName)
	if !configInitForce {
		for _, p := range []string{cfgPath, procPath} {
			if _, err := os.Stat(p); err == nil {
				return errors.NewRpError(errors.AlreadyExists, "Configuration already exists", nil, []errors.FixAction{{
					Type:        errors.RunCommand,
					Command:     "rp config init --force",
					Description: "Overwrite the existing files",
				}}).WithDetails(map[string]interface{}{"path": p})
			}
		}
	}

	cfg := config.DefaultConfig()
	cfg.Scan.ProcessorsFile = filepath.ToSlash(filepath.Join(config.ConfigDirName, processorsFileName))
	if err := cfg.Save(root); err != nil {
		return err
	}

	f, err := os.Create(procPath)
	if err != nil {
		return err
	}
	if err := processor.DefaultDefinitions().Encode(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	s.logger.Info("Initialized configuration", "config", cfgPath, "processors", procPath)
	fmt.Printf("Created %s\nCreated %s\n", displayPath(cfgPath), displayPath(procPath))
	return nil
}

func writeConfig(w io.Writer, cfg *config.Config, source string, format export.Format) error {
	if format == export.FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	}

	current, err := flattenConfig(cfg)
	if err != nil {
		return err
	}
	defaults, err := flattenConfig(config.DefaultConfig())
	if err != nil {
		return err
	}

	if source == "" {
		fmt.Fprintln(w, "Source: defaults (no config file found)")
	} else {
		fmt.Fprintf(w, "Source: %s\n", source)
	}
	fmt.Fprintln(w)

	keys := make([]string, 0, len(current))
	for k := range current {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		line := fmt.Sprintf("%s: %s", k, current[k])
		if def, ok := defaults[k]; ok && def != current[k] {
			line += fmt.Sprintf(" (default: %s)", def)
		}
		fmt.Fprintln(w, line)
	}
	return nil
}

// flattenConfig renders cfg as dotted JSON keys mapped to JSON-encoded values.
func flattenConfig(cfg *config.Config) (map[string]string, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var tree map[string]interface{}
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, err
	}

	flat := make(map[string]string)
	var walk func(prefix string, v interface{})
	walk = func(prefix string, v interface{}) {
		if m, ok := v.(map[string]interface{}); ok {
			for k, child := range m {
				walk(strings.TrimPrefix(prefix+"."+k, "."), child)
			}
			return
		}
		b, _ := json.Marshal(v)
		flat[prefix] = string(b)
	}
	walk("", tree)
	return flat, nil
}

func writeEnvVars(w io.Writer, vars []config.EnvVar) {
	for _, v := range vars {
		fmt.Fprintf(w, "%-28s %s\n", v.Name, v.Key)
	}
	fmt.Fprintf(w, "%-28s %s\n", "RP_IDR_NO_COMMENTS", "strip comments from new IDRs (1, true, yes)")
}
