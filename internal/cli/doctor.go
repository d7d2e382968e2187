package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Personaz1/openclaw-council/internal/config"
	"github.com/Personaz1/openclaw-council/internal/council"
)

// NewDoctorCmd returns a health-check command validating config and environment.
func NewDoctorCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Validate configuration, prompt files and credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config OK. Providers: %d, roles: %d, synthesizer: %s\n", len(cfg.Providers), len(cfg.Roles), cfg.Synthesizer.Name)

			names := make([]string, 0, len(cfg.Providers))
			for name := range cfg.Providers {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				p := cfg.Providers[name]
				fmt.Fprintf(out, "  provider %s (%s, %s): %s\n", name, p.Type, p.Model, credentialStatus(p.APIKeyEnv))
			}

			prompts := council.NewFilePrompts(cfg)
			problems := 0
			for _, role := range append(append([]config.RoleConfig(nil), cfg.Roles...), cfg.Synthesizer) {
				status := "ok"
				if _, ok := cfg.Providers[role.Provider]; !ok {
					status = "unknown provider"
					problems++
				} else if _, err := prompts.Load(role); err != nil {
					status = "missing prompt"
					problems++
				}
				fmt.Fprintf(out, "  role %s -> %s: %s\n", role.Name, role.Provider, status)
			}
			fmt.Fprintf(out, "Mock fallback: %v, workers: %d, metrics: %v\n", cfg.Runtime.AllowMockFallback, cfg.Runtime.Workers(), cfg.Server.MetricsEnabled)
			if problems > 0 {
				return fmt.Errorf("%d role(s) will fail: unknown provider or missing prompt", problems)
			}
			return nil
		},
	}
}

func credentialStatus(env string) string {
	if env == "" {
		return "no credential needed"
	}
	if _, ok := council.EnvCredentials(env); ok {
		return env + " set"
	}
	return env + " missing"
}
