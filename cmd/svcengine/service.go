package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/mattjoyce/svcengine/internal/service"
)

type serviceRow struct {
	Name    string   `json:"name"`
	Kind    string   `json:"kind"`
	Enabled bool     `json:"enabled"`
	AuthAll bool     `json:"auth_all_enabled"`
	Routes  []string `json:"routes"`
}

func newServiceCmd(load configLoader) *cobra.Command {
	svcCmd := &cobra.Command{
		Use:   "service",
		Short: "Inspect configured services",
	}

	var jsonOut bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List configured services and the routes they own",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := load(cmd)
			if err != nil {
				return err
			}

			rows := make([]serviceRow, 0, len(cfg.Services))
			for _, reg := range cfg.Services {
				rows = append(rows, serviceRow{
					Name:    reg.Name,
					Kind:    reg.Kind,
					Enabled: reg.Enabled,
					AuthAll: reg.AuthAll(),
					Routes:  routesOf(reg),
				})
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				data, err := json.MarshalIndent(rows, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
				return nil
			}
			fmt.Fprintln(out, renderServiceTable(newPalette(), rows))
			return nil
		},
	}
	list.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")

	svcCmd.AddCommand(list)
	return svcCmd
}

// routesOf flattens a registration into "METHOD path" strings, sorted by path.
func routesOf(reg service.Registration) []string {
	var routes []string
	for _, path := range reg.SortedPaths() {
		methods := make([]string, 0, len(reg.OwnedPaths[path].AllowedMethods))
		for _, m := range reg.OwnedPaths[path].AllowedMethods {
			methods = append(methods, strings.ToUpper(m))
		}
		sort.Strings(methods)
		for _, m := range methods {
			routes = append(routes, m+" "+path)
		}
	}
	return routes
}

func renderServiceTable(p palette, rows []serviceRow) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(p.Dim).
		Headers("NAME", "KIND", "ENABLED", "AUTH", "ROUTES").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return p.Header.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})

	for _, r := range rows {
		t.Row(r.Name, r.Kind, strconv.FormatBool(r.Enabled), strconv.FormatBool(r.AuthAll), strings.Join(r.Routes, "\n"))
	}
	return t.String()
}
