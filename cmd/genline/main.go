package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"genline/internal/config"
	genlinesdk "genline/sdk/go"
)

var rootCmd = &cobra.Command{
	Use:   "genline",
	Short: "genline CLI",
	Long: `genline plans and generates persistence-layer code for existing projects.
- Plan: analyze a project for a capability; the plan is kept for a limited time and is reachable by its id and aliases.
- Execute: send a database schema against a plan to receive entity, repository, service, controller and configuration files.
- Serve: run the HTTP API the other commands talk to (see --server).
- Event log: lifecycle history when the sqlite store is used, view with 'genline log tail'.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("GENLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory holding genline.yml")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("server", "http://127.0.0.1:8080", "genline API URL")
	rootCmd.PersistentFlags().String("token", "", "bearer token for the API")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))
	_ = viper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(planCmd())
	rootCmd.AddCommand(executeCmd())
	rootCmd.AddCommand(quickSetupCmd())
	rootCmd.AddCommand(capabilitiesCmd())
	rootCmd.AddCommand(cacheCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(configCmd())
}

// loadConfig reads genline.yml from the workspace and applies GENLINE_*
// environment and flag overrides on top.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetString("workspace"))
	if err != nil {
		return nil, err
	}
	if err := applyOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyOverrides(cfg *config.Config) error {
	strs := map[string]*string{
		"server.addr":                  &cfg.Server.Addr,
		"server.base_path":             &cfg.Server.BasePath,
		"server.jwt_secret":            &cfg.Server.JWTSecret,
		"plans.id_strategy":            &cfg.Plans.IDStrategy,
		"plans.update_policy":          &cfg.Plans.UpdatePolicy,
		"store.backend":                &cfg.Store.Backend,
		"store.workspace":              &cfg.Store.Workspace,
		"generation.generator_version": &cfg.Generation.GeneratorVersion,
		"generation.standards_version": &cfg.Generation.StandardsVersion,
		"generation.templates_dir":     &cfg.Generation.TemplatesDir,
		"log.level":                    &cfg.Log.Level,
		"log.format":                   &cfg.Log.Format,
		"log.file":                     &cfg.Log.File,
	}
	for key, dst := range strs {
		if v := viper.GetString(key); viper.IsSet(key) && v != "" {
			*dst = v
		}
	}
	ints := map[string]*int{
		"plans.max_cached":          &cfg.Plans.MaxCached,
		"generation.parallelism":    &cfg.Generation.Parallelism,
		"generation.template_cache": &cfg.Generation.TemplateCache,
	}
	for key, dst := range ints {
		if viper.IsSet(key) {
			*dst = viper.GetInt(key)
		}
	}
	if viper.IsSet("plans.ttl") {
		cfg.Plans.TTL = viper.GetDuration("plans.ttl")
	}
	return cfg.Validate()
}

func newClient() (*genlinesdk.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	c := genlinesdk.New(viper.GetString("server"))
	c.BasePath = cfg.Server.BasePath
	c.BearerToken = viper.GetString("token")
	return c, nil
}

func configCmd() *cobra.Command {
	cfgCmd := &cobra.Command{Use: "config", Short: "Inspect configuration"}
	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(cfg)
			}
			out, err := cfg.YAML()
			if err != nil {
				return err
			}
			fmt.Print(out)
			return nil
		},
	})
	return cfgCmd
}

// --- helpers ---

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseOptions turns key=value pairs into plan options. true/false and
// integers keep their type; everything else stays a string.
func parseOptions(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid option %q, want key=value", pair)
		}
		value = strings.TrimSpace(value)
		if strings.EqualFold(value, "true") || strings.EqualFold(value, "false") {
			out[key] = strings.EqualFold(value, "true")
			continue
		}
		if n, err := strconv.Atoi(value); err == nil {
			out[key] = n
			continue
		}
		out[key] = value
	}
	return out, nil
}
