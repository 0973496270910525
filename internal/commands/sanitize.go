package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dwsmith1983/clearmail/internal/sanitize"
)

// NewSanitizeCmd creates the sanitize command.
func NewSanitizeCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "sanitize [file]",
		Short: "Repair model output so it parses as JSON",
		Long:  "Reads a model reply from file or stdin, normalizes quotes, strips code fences and prints the result.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			data, err := io.ReadAll(in)
			if err != nil {
				return fmt.Errorf("reading input: %w", err)
			}

			out := cmd.OutOrStdout()
			if !asJSON {
				_, err = fmt.Fprint(out, sanitize.Sanitize(string(data)))
				return err
			}
			var v any
			if err := sanitize.JSON(string(data), &v); err != nil {
				return err
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(v)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Decode the result and pretty-print it")
	return cmd
}
