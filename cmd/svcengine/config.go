package main

import (
	"bufio"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/svcengine/internal/auth"
	"github.com/mattjoyce/svcengine/internal/config"
	"github.com/mattjoyce/svcengine/internal/doctor"
	"github.com/mattjoyce/svcengine/internal/services"
)

func newConfigCmd(load configLoader, pathOf pathResolver) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect, validate and lock configuration",
	}
	cfgCmd.AddCommand(
		newConfigCheckCmd(load),
		newConfigLockCmd(pathOf),
		newConfigShowCmd(load),
		newConfigHashPasswordCmd(),
	)
	return cfgCmd
}

func newConfigCheckCmd(load configLoader) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Load the configuration and report problems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := load(cmd)
			if err != nil {
				if jsonOut {
					return reportLoadFailure(cmd, err)
				}
				return &exitError{code: 1, err: err}
			}

			result := doctor.New(cfg, services.Kinds()).Validate()
			if jsonOut {
				out, err := doctor.FormatJSON(result)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), out)
			} else {
				fmt.Fprint(cmd.OutOrStdout(), renderReport(newPalette(), result))
			}

			if !result.Valid {
				return &exitError{code: 1, err: errors.New("")}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output the report as JSON")
	return cmd
}

// reportLoadFailure renders a load error as a doctor result so --json output
// stays machine readable.
func reportLoadFailure(cmd *cobra.Command, loadErr error) error {
	category := "config"
	if errors.Is(loadErr, config.ErrIntegrity) {
		category = "integrity"
	}
	out, err := doctor.FormatJSON(&doctor.Result{
		Valid:  false,
		Errors: []doctor.Issue{{Category: category, Message: loadErr.Error()}},
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return &exitError{code: 1, err: errors.New("")}
}

func newConfigLockCmd(pathOf pathResolver) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Write BLAKE3 checksums for the configuration files",
		Long: "Hashes the root config file and every services_dir file into .checksums next to\n" +
			"the root file. Once the manifest exists, every load verifies it.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := pathOf(cmd)
			if err != nil {
				return err
			}
			files, err := config.DiscoverFiles(path)
			if err != nil {
				return err
			}

			report, err := config.GenerateChecksumsWithReport(filepath.Dir(files[0]), files, dryRun)
			if err != nil {
				return err
			}

			p := newPalette()
			out := cmd.OutOrStdout()
			for _, f := range report.Files {
				fmt.Fprintf(out, "%s  %s\n", p.Dim.Render(f.Hash[:16]), f.Key)
			}
			if dryRun {
				fmt.Fprintf(out, "Dry run: would write %d checksum(s) to %s\n", len(report.Files), report.ChecksumPath)
				return nil
			}
			fmt.Fprintln(out, p.OK.Render(fmt.Sprintf("Wrote %d checksum(s) to %s", len(report.Files), report.ChecksumPath)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be written without writing")
	return cmd
}

func newConfigShowCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "show [path]",
		Short: "Print the effective configuration with secrets redacted",
		Long: "Without an argument the whole configuration is printed. A dot path\n" +
			"(\"service.log_level\") selects one value; \"service:NAME\" or \"service:*\"\n" +
			"selects registrations.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := load(cmd)
			if err != nil {
				return err
			}

			var value any = cfg.Redacted()
			if len(args) == 1 {
				value, err = cfg.GetPath(args[0])
				if err != nil {
					return err
				}
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(value); err != nil {
				return fmt.Errorf("render config: %w", err)
			}
			return enc.Close()
		},
	}
}

func newConfigHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for auth_password_hash",
		Long: "Hashes the password given as an argument, or the first line of stdin\n" +
			"when no argument is given, for use as an owned path's auth_password_hash.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password from stdin: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if password == "" {
				return errors.New("password must not be empty")
			}

			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
