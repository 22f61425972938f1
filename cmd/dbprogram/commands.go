package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ignaciocaff/dbprogram/internal/core"
)

func newExecCommand() *cobra.Command {
	var (
		mode string
		all  bool
		outs []string
	)
	cmd := &cobra.Command{
		Use:   "exec <database> <program> [name=value ...]",
		Short: "Run a configured program",
		Long: `Resolve a program by database id and name, bind the given name=value
arguments and run it. Output parameters named with --out are printed after
the call.`,
		Example: `  # Print the rows returned by GetOrders
  dbprogram exec orders GetOrders customer_id=42

  # Run on every connection and capture an output parameter per connection
  dbprogram exec orders Purge --mode nonquery --all --out purged before=2024-01-01`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(cmd, args[0], args[1], args[2:], mode, all, outs)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "reader", "result kind (reader|scalar|nonquery)")
	cmd.Flags().BoolVar(&all, "all", false, "run on every connection of the program's connection set")
	cmd.Flags().StringSliceVar(&outs, "out", nil, "output parameter to capture (repeatable)")
	_ = cmd.RegisterFlagCompletionFunc("mode", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"reader", "scalar", "nonquery"}, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

type capture struct {
	name  string
	out   *core.Out[any]
	multi *core.MultiOut[any]
}

func runExec(cmd *cobra.Command, databaseID, program string, pairs []string, mode string, all bool, outs []string) error {
	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	args, err := parseArgs(pairs)
	if err != nil {
		return err
	}
	var captures []capture
	for _, name := range outs {
		c := capture{name: name}
		if all {
			c.multi = core.NewMultiOut[any]()
			args = append(args, core.Named(name, c.multi))
		} else {
			c.out = core.NewOut[any]()
			args = append(args, core.Named(name, c.out))
		}
		captures = append(captures, c)
	}

	p, values, err := core.Prepare(ctx, core.GetResolver(), databaseID, program, args...)
	if err != nil {
		return err
	}
	for _, warning := range p.Definition().Warnings() {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", warning)
	}

	switch mode {
	case "nonquery":
		if all {
			counts, err := p.ExecuteNonQueryAll(ctx, values...)
			if err != nil {
				return err
			}
			for i, n := range counts {
				fmt.Fprintf(w, "%s\t%d rows affected\n", p.Connections().All()[i].Name(), n)
			}
			break
		}
		n, err := p.ExecuteNonQuery(ctx, values...)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%d rows affected\n", n)
	case "scalar":
		if all {
			results, err := p.ExecuteScalarAll(ctx, values...)
			if err != nil {
				return err
			}
			for i, v := range results {
				fmt.Fprintf(w, "%s\t%v\n", p.Connections().All()[i].Name(), v)
			}
			break
		}
		v, err := p.ExecuteScalar(ctx, values...)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%v\n", v)
	case "reader":
		show := func(r *core.Reader) error { return printRows(w, r) }
		if all {
			// rows of different connections must not interleave
			tables, err := core.ReadAll(ctx, p, func(r *core.Reader) (string, error) {
				var sb strings.Builder
				err := printRows(&sb, r)
				return sb.String(), err
			}, values...)
			if err != nil {
				return err
			}
			for i, t := range tables {
				fmt.Fprintf(w, "-- %s\n%s", p.Connections().All()[i].Name(), t)
			}
			break
		}
		if err := p.ExecuteReader(ctx, show, values...); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown mode %q (use reader, scalar or nonquery)", mode)
	}

	for _, c := range captures {
		if c.out != nil {
			fmt.Fprintf(w, "%s = %v\n", c.name, c.out.Value())
			continue
		}
		for _, v := range c.multi.Values() {
			fmt.Fprintf(w, "%s[%s] = %v\n", c.name, v.Connection, v.Value)
		}
	}
	return nil
}

// parseArgs turns name=value pairs into named arguments. Values are passed
// as text and converted to the parameter's declared type when bound.
func parseArgs(pairs []string) ([]core.Arg, error) {
	args := make([]core.Arg, 0, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("argument %q: expected name=value", pair)
		}
		if value == "NULL" {
			args = append(args, core.Named(name, nil))
			continue
		}
		args = append(args, core.Named(name, value))
	}
	return args, nil
}

func printRows(w io.Writer, r *core.Reader) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(r.Columns(), "\t"))
	rows := 0
	for r.Next() {
		cells := make([]string, 0, len(r.Columns()))
		for _, v := range r.Values() {
			if v == nil {
				cells = append(cells, "NULL")
				continue
			}
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			cells = append(cells, fmt.Sprint(v))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
		rows++
	}
	if err := r.Err(); err != nil {
		return err
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "(%d rows)\n", rows)
	return err
}

func newDescribeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "describe <database> <program> [parameter ...]",
		Short: "Resolve a program and print its definition",
		Long: `Resolve a program with the given parameter names, validate it against the
live schema and print the resulting definition. Validation mismatches are
reported as warnings instead of failing.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ignore := true
			p, err := core.GetResolver().Program(cmd.Context(), args[0], args[1], args[2:], core.Overrides{IgnoreValidationErrors: &ignore})
			if err != nil {
				return err
			}
			return printDefinition(cmd.OutOrStdout(), p.Definition())
		},
	}
}

func printDefinition(w io.Writer, def *core.Definition) error {
	fmt.Fprintf(w, "program:    %s\n", def.Name())
	fmt.Fprintf(w, "physical:   %s\n", def.PhysicalName())
	fmt.Fprintf(w, "connection: %s\n", def.Connection())
	fmt.Fprintf(w, "state:      %s\n", def.State())
	fmt.Fprintf(w, "timeout:    %s\n", def.Timeout())
	fmt.Fprintf(w, "mode:       %s\n\n", def.Mode())

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tTYPE\tDIRECTION")
	for _, pd := range def.Parameters() {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", pd.Ordinal, pd.Name, pd.Type, pd.Direction)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, warning := range def.Warnings() {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
	return nil
}
