package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/amoreldmija/hospital/models"
	"github.com/amoreldmija/hospital/services/policy"
	"github.com/spf13/cobra"
)

func (c *cli) policyCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect the access control policy table",
	}
	cmd.PersistentFlags().StringVar(&file, "file", "", "YAML policy table (defaults to POLICY_FILE, then the built-in table)")

	// load resolves the table the server would run with
	load := func(cmd *cobra.Command) (*policy.Engine, error) {
		if err := c.setup(cmd.Context(), false); err != nil {
			return nil, err
		}
		path := file
		if path == "" {
			path = c.cfg.Policy.File
		}
		table, err := policy.Load(path)
		if err != nil {
			return nil, err
		}
		return policy.NewEngine(table, c.logger)
	}

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Check that every reachable action has exactly one rule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := load(cmd)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "policy %s is valid: %d actions covered\n",
				engine.Version(), len(engine.Table().Rules))
			return nil
		},
	}

	var format string
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the role matrix",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := load(cmd)
			if err != nil {
				return err
			}
			switch format {
			case "yaml":
				data, err := policy.Marshal(engine.Table())
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			case "table":
				return writeMatrix(cmd.OutOrStdout(), engine)
			default:
				return fmt.Errorf("unknown format %q (want table or yaml)", format)
			}
		},
	}
	show.Flags().StringVarP(&format, "output", "o", "table", "Output format: table or yaml")

	cmd.AddCommand(validate, show)
	return cmd
}

// writeMatrix prints one row per resource and one column per operation.
// Operations that do not apply to a resource show "-".
func writeMatrix(out io.Writer, engine *policy.Engine) error {
	reachable := make(map[models.ResourceAction]bool)
	for _, a := range models.ReachableActions() {
		reachable[a] = true
	}

	fmt.Fprintf(out, "policy version: %s\n\n", engine.Version())

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	header := []string{"RESOURCE"}
	for _, op := range models.AllOperations() {
		header = append(header, strings.ToUpper(string(op)))
	}
	fmt.Fprintln(w, strings.Join(header, "\t"))

	for _, r := range models.AllResources() {
		row := []string{string(r)}
		for _, op := range models.AllOperations() {
			a := models.Action(r, op)
			if !reachable[a] {
				row = append(row, "-")
				continue
			}
			roles := engine.AllowedRoles(a)
			names := make([]string, len(roles))
			for i, role := range roles {
				names[i] = string(role)
			}
			row = append(row, strings.Join(names, ","))
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	return w.Flush()
}
