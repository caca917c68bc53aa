package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	dsl "github.com/toejough/behave/behavegen/run/1_dsl"
	load "github.com/toejough/behave/behavegen/run/2_load"
	expand "github.com/toejough/behave/behavegen/run/5_expand"
)

type parsedMacro struct {
	Macro      string            `yaml:"macro"`
	Pos        string            `yaml:"pos"`
	Mock       *parsedMock       `yaml:"mock,omitempty"`
	BlockID    int               `yaml:"block_id,omitempty"`
	Bindings   []parsedBinding   `yaml:"bindings,omitempty"`
	Statements []parsedStatement `yaml:"statements,omitempty"`
}

type parsedMock struct {
	Var        string   `yaml:"var,omitempty"`
	TypeName   string   `yaml:"type"`
	Traits     []string `yaml:"traits"`
	Attributes []string `yaml:"attributes,omitempty"`
}

type parsedBinding struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
	Init string `yaml:"init"`
}

type parsedStatement struct {
	ID     int    `yaml:"id"`
	Mock   string `yaml:"mock"`
	Trait  string `yaml:"trait,omitempty"`
	Method string `yaml:"method"`
	Text   string `yaml:"text"`
}

func (a *app) newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse FILE",
		Short: "Print the statements of a template as YAML",
		Long:  "Parse the macros of one template and print the resulting statement model as YAML. Nothing is resolved or written.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read template: %w", err)
			}

			pkgName, imports, err := load.TemplateHeader(args[0], string(src))
			if err != nil {
				return err
			}

			macros, err := expand.ScanMacros(load.Template{
				Path: args[0], Source: string(src), Package: pkgName, Imports: imports,
			})
			if err != nil {
				return err
			}

			encoder := yaml.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent(2)

			err = encoder.Encode(describeMacros(macros))
			if err != nil {
				return fmt.Errorf("failed to write YAML: %w", err)
			}

			return encoder.Close()
		},
	}
}

func describeMacros(macros []expand.Macro) []parsedMacro {
	described := make([]parsedMacro, 0, len(macros))

	for _, macro := range macros {
		entry := parsedMacro{Macro: macro.Name, Pos: macro.Pos}

		switch {
		case macro.NewMock != nil:
			mock := &parsedMock{
				Var:        macro.NewMock.Var,
				TypeName:   macro.NewMock.TypeName,
				Attributes: macro.NewMock.Attributes,
			}

			for _, ref := range macro.NewMock.Traits {
				mock.Traits = append(mock.Traits, ref.String())
			}

			entry.Mock = mock
		case macro.Given != nil:
			entry.BlockID, entry.Bindings = describeBinding(macro.Given.Binding)

			for _, stmt := range macro.Given.Statements {
				entry.Statements = append(entry.Statements, describeStatement(stmt.StmtID, stmt.Target, stmt.Method, stmt.String()))
			}
		case macro.Expect != nil:
			entry.BlockID, entry.Bindings = describeBinding(macro.Expect.Binding)

			for _, stmt := range macro.Expect.Statements {
				entry.Statements = append(entry.Statements, describeStatement(stmt.StmtID, stmt.Target, stmt.Method, stmt.String()))
			}
		}

		described = append(described, entry)
	}

	return described
}

func describeBinding(binding dsl.Binding) (int, []parsedBinding) {
	fields := make([]parsedBinding, 0, len(binding.Fields))
	for _, field := range binding.Fields {
		fields = append(fields, parsedBinding(field))
	}

	return binding.BlockID, fields
}

func describeStatement(id int, target dsl.Target, method, text string) parsedStatement {
	stmt := parsedStatement{ID: id, Mock: target.MockVar, Method: method, Text: text}
	if target.Trait != nil {
		stmt.Trait = target.Trait.String()
	}

	return stmt
}
