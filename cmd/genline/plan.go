package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	genlinesdk "genline/sdk/go"
)

func planCmd() *cobra.Command {
	p := &cobra.Command{Use: "plan", Short: "Manage generation plans"}
	p.AddCommand(planCreateCmd())
	p.AddCommand(planShowCmd())
	p.AddCommand(planUpdateCmd())
	p.AddCommand(planDeleteCmd())
	p.AddCommand(planListCmd())
	return p
}

type createFlags struct {
	capability  string
	projectPath string
	description string
	options     []string
}

func (f *createFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.capability, "capability", "database-integration", "capability to plan")
	cmd.Flags().StringVar(&f.projectPath, "project-path", ".", "project to analyze")
	cmd.Flags().StringVar(&f.description, "description", "", "what the plan is for; keywords pick a readable id")
	cmd.Flags().StringArrayVar(&f.options, "option", nil, "plan option key=value (repeatable)")
}

func (f *createFlags) request() (genlinesdk.CreatePlanRequest, error) {
	opts, err := parseOptions(f.options)
	if err != nil {
		return genlinesdk.CreatePlanRequest{}, err
	}
	projectPath := f.projectPath
	if abs, err := filepath.Abs(projectPath); err == nil {
		projectPath = abs
	}
	return genlinesdk.CreatePlanRequest{
		Capability:  f.capability,
		ProjectPath: projectPath,
		Description: f.description,
		Options:     opts,
	}, nil
}

func planCreateCmd() *cobra.Command {
	var f createFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Analyze a project and create a plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := f.request()
			if err != nil {
				return err
			}
			c, err := newClient()
			if err != nil {
				return err
			}
			summary, err := c.CreatePlan(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printPlan(summary)
		},
	}
	f.register(cmd)
	return cmd
}

func planShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <plan-id>",
		Short: "Show a plan by id or alias",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			summary, err := c.GetPlan(cmd.Context(), args[0])
			if err != nil {
				return explain(err)
			}
			return printPlan(summary)
		},
	}
}

func planUpdateCmd() *cobra.Command {
	var options []string
	var clearOpts bool
	cmd := &cobra.Command{
		Use:   "update <plan-id>",
		Short: "Replace plan options and refresh expiry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := parseOptions(options)
			if err != nil {
				return err
			}
			if clearOpts && opts == nil {
				opts = map[string]any{}
			}
			c, err := newClient()
			if err != nil {
				return err
			}
			summary, err := c.UpdatePlan(cmd.Context(), args[0], opts)
			if err != nil {
				return explain(err)
			}
			return printPlan(summary)
		},
	}
	cmd.Flags().StringArrayVar(&options, "option", nil, "plan option key=value (repeatable); replaces all options")
	cmd.Flags().BoolVar(&clearOpts, "clear-options", false, "drop every option")
	return cmd
}

func planDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <plan-id>",
		Short: "Delete a plan and its aliases",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			if err := c.DeletePlan(cmd.Context(), args[0]); err != nil {
				return explain(err)
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"plan_id": args[0], "deleted": true})
			}
			fmt.Printf("Deleted plan %s\n", args[0])
			return nil
		},
	}
}

func planListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List live plan ids and aliases",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			ids, err := c.ListPlans(cmd.Context())
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(ids)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Plan ID"})
			for _, id := range ids {
				tw.AppendRow(table.Row{id})
			}
			tw.Render()
			return nil
		},
	}
}

func executeCmd() *cobra.Command {
	var planID, schemaPath string
	cmd := &cobra.Command{
		Use:   "execute",
		Short: "Generate code for a schema under a plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := readSchema(schemaPath)
			if err != nil {
				return err
			}
			c, err := newClient()
			if err != nil {
				return err
			}
			res, err := c.Execute(cmd.Context(), planID, schema)
			if err != nil {
				return explain(err)
			}
			return printExecution(res)
		},
	}
	cmd.Flags().StringVar(&planID, "plan", "", "plan id or alias")
	cmd.Flags().StringVar(&schemaPath, "schema", "", "schema file (.json, .yaml or .yml)")
	_ = cmd.MarkFlagRequired("plan")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}

func quickSetupCmd() *cobra.Command {
	var f createFlags
	var schemaPath string
	cmd := &cobra.Command{
		Use:   "quick-setup",
		Short: "Create a plan and execute it immediately",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := f.request()
			if err != nil {
				return err
			}
			schema, err := readSchema(schemaPath)
			if err != nil {
				return err
			}
			c, err := newClient()
			if err != nil {
				return err
			}
			out, err := c.QuickSetup(cmd.Context(), req, schema)
			if err != nil {
				return explain(err)
			}
			if viper.GetBool("json") {
				return printJSON(out)
			}
			fmt.Printf("Plan %s\n", out.Plan.PlanID)
			return printExecution(*out.Execution)
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&schemaPath, "schema", "", "schema file (.json, .yaml or .yml)")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}

func capabilitiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "capabilities",
		Short: "Show what the server can generate",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			caps, err := c.Capabilities(cmd.Context())
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(caps)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendRows([]table.Row{
				{"Server", fmt.Sprintf("%s %s", caps.Server, caps.Version)},
				{"Capabilities", strings.Join(caps.Capabilities, ", ")},
				{"Frameworks", strings.Join(caps.SupportedFrameworks, ", ")},
				{"Languages", strings.Join(caps.SupportedLanguages, ", ")},
				{"Databases", strings.Join(caps.SupportedDatabases, ", ")},
				{"Templates", strings.Join(caps.Templates, ", ")},
			})
			tw.Render()
			return nil
		},
	}
}

func cacheCmd() *cobra.Command {
	cc := &cobra.Command{Use: "cache", Short: "Manage the server template cache"}
	cc.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Drop parsed templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			n, err := c.ClearCache(cmd.Context())
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(map[string]int{"cleared": n})
			}
			fmt.Printf("Cleared %d cached templates\n", n)
			return nil
		},
	})
	return cc
}

// readSchema loads a schema from JSON or YAML, chosen by extension.
func readSchema(path string) (genlinesdk.Schema, error) {
	var schema genlinesdk.Schema
	data, err := os.ReadFile(path)
	if err != nil {
		return schema, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &schema)
	default:
		err = json.Unmarshal(data, &schema)
	}
	if err != nil {
		return schema, fmt.Errorf("parse schema %s: %w", path, err)
	}
	if len(schema.Tables) == 0 {
		return schema, fmt.Errorf("schema %s has no tables", path)
	}
	return schema, nil
}

// explain appends the live ids to not-found errors.
func explain(err error) error {
	if !genlinesdk.IsNotFound(err) {
		return err
	}
	var ae *genlinesdk.APIError
	if errors.As(err, &ae) {
		if live := ae.LivePlanIDs(); len(live) > 0 {
			return fmt.Errorf("%s (live plans: %s)", ae.Message, strings.Join(live, ", "))
		}
		return errors.New(ae.Message)
	}
	return err
}

func printPlan(s genlinesdk.PlanSummary) error {
	if viper.GetBool("json") {
		return printJSON(s)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendRows([]table.Row{
		{"Plan ID", s.PlanID},
		{"Capability", s.Capability},
		{"Status", s.Status},
		{"Framework", s.ProjectAnalysis.DetectedFramework},
		{"Language", s.ProjectAnalysis.Language},
		{"Build tool", s.ProjectAnalysis.BuildTool},
		{"Base package", s.ProjectAnalysis.BasePackage},
		{"Compatibility", s.Compatibility.Status},
		{"Expires in", s.ExpiresIn},
	})
	keys := make([]string, 0, len(s.Options.Current))
	for k := range s.Options.Current {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		tw.AppendRow(table.Row{"Option " + k, s.Options.Current[k]})
	}
	tw.Render()
	for _, w := range s.Compatibility.Warnings {
		fmt.Println("warning:", w)
	}
	return nil
}

func printExecution(res genlinesdk.ExecutionResult) error {
	if viper.GetBool("json") {
		return printJSON(res)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Category", "Path", "Action", "Lines"})
	for _, cat := range res.GeneratedFiles {
		for _, f := range cat.Files {
			tw.AppendRow(table.Row{cat.Category, f.Path, f.Action, f.Size})
		}
	}
	tw.AppendFooter(table.Row{"", fmt.Sprintf("%d tables, %d files", res.Summary.TablesProcessed, res.Summary.FilesGenerated), "", res.Summary.TotalLinesOfCode})
	tw.Render()
	fmt.Printf("Execution %s finished in %s\n", res.ExecutionID, res.Metadata.ExecutionTime)
	for _, step := range res.PostExecutionSteps {
		fmt.Printf("%d. %s: %s\n", step.Step, step.Action, step.Description)
	}
	return nil
}
