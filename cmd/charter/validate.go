package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/xraph/charter/policy"
	"github.com/xraph/charter/schema"
)

func newValidateCmd() *cobra.Command {
	var typeName string
	cmd := &cobra.Command{
		Use:   "validate --type <type> <file>",
		Short: "Check a YAML or JSON policy config against its type's contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := policy.ParseType(typeName)
			if err != nil {
				return err
			}
			raw, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			if err := validateConfig(t, raw); err != nil {
				var ve *schema.ValidationError
				if errors.As(err, &ve) {
					for _, f := range ve.Fields {
						fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %s\n", f.Field, f.Reason)
					}
				}
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: valid %s config\n", args[0], t)
			return err
		},
	}
	cmd.Flags().StringVar(&typeName, "type", "", "policy type (return, refund, warranty, ...)")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

// readInput reads path, or stdin when path is "-".
func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

// validateConfig runs the generic contract check, then decodes strictly into
// the typed record so misspelled keys are reported too.
func validateConfig(t policy.Type, raw []byte) error {
	var m map[string]any
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("parse %s config: %w", t, err)
	}
	if err := schema.Validate(t, m); err != nil {
		return err
	}

	cfg := policy.NewConfig(t)
	if cfg == nil || len(m) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return &schema.ValidationError{Type: t, Fields: []schema.FieldError{{Field: "config", Reason: err.Error()}}}
	}
	return schema.ValidateTyped(cfg)
}
