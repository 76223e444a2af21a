package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arc-systems/promptgate/pkg/config"
	"github.com/arc-systems/promptgate/pkg/provider"
	"github.com/arc-systems/promptgate/pkg/registry"
	"github.com/arc-systems/promptgate/pkg/retry"
	"github.com/arc-systems/promptgate/pkg/router"
	"github.com/arc-systems/promptgate/pkg/signal"
)

var (
	configFile string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "promptgate",
		Short: "Adaptive multi-provider generation router",
		Long: `Promptgate routes a text-generation request to the best available
	LLM provider based on content features and operational health,
	retries with backoff, and reroutes once to a healthy alternative
	when the primary provider is exhausted.`,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(routeCmd())
	rootCmd.AddCommand(providersCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func generateCmd() *cobra.Command {
	var systemPrompt string
	var latencyFlag string
	var timeoutSec int

	cmd := &cobra.Command{
		Use:   "generate [prompt]",
		Short: "Route and dispatch a prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := args[0]

			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			logger, err := buildLogger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			r := buildRouter(cfg, logger)

			ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSec)*time.Second)
			defer cancel()

			meta, err := r.GenerateWithMeta(ctx, router.Request{
				Prompt:       prompt,
				SystemPrompt: systemPrompt,
				Latency:      signal.Latency(latencyFlag),
			})
			if err != nil {
				return err
			}

			fmt.Println(meta.Text)
			fmt.Fprintf(os.Stderr, "\n[%s/%s]\n", meta.Provider, meta.Model)
			return nil
		},
	}

	cmd.Flags().StringVar(&systemPrompt, "system", "", "system prompt")
	cmd.Flags().StringVar(&latencyFlag, "latency", "", "latency preference override (low|normal)")
	cmd.Flags().IntVar(&timeoutSec, "timeout", 120, "request timeout in seconds")
	return cmd
}

func routeCmd() *cobra.Command {
	var latencyFlag string

	cmd := &cobra.Command{
		Use:   "route [prompt]",
		Short: "Show the routing decision for a prompt without dispatching",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := args[0]

			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			sig := signal.Extract(prompt, nil, signal.Latency(latencyFlag))

			logger, err := buildLogger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			providers := buildProviders(cfg, logger)
			disallow := disallowSet(cfg, providers)

			reg := registry.New(cfg.Cards)
			card := reg.SelectBest(sig, registry.Constraints{
				PreferProvider:    cfg.DefaultProvider,
				DisallowProviders: disallow,
			})

			out := struct {
				Signal   signal.Signal  `json:"signal"`
				Selected *registry.Card `json:"selected,omitempty"`
			}{Signal: sig, Selected: card}

			data, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	}

	cmd.Flags().StringVar(&latencyFlag, "latency", "", "latency preference override (low|normal)")
	return cmd
}

func providersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List configured provider cards and availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			logger, err := buildLogger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			providers := buildProviders(cfg, logger)
			disallow := disallowSet(cfg, providers)

			cards := cfg.Cards
			sort.Slice(cards, func(i, j int) bool { return cards[i].Key() < cards[j].Key() })

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tMODEL\tAVAILABLE\tTAGS")
			for _, card := range cards {
				available := "yes"
				if disallow[card.Provider] {
					available = "no"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", card.Provider, card.Model, available, cardTags(card))
			}
			return w.Flush()
		},
	}
}

func cardTags(card registry.Card) string {
	var tags []string
	if card.SupportsCode {
		tags = append(tags, "code")
	}
	if card.LongContext {
		tags = append(tags, "long-context")
	}
	if card.Multimodal {
		tags = append(tags, "multimodal")
	}
	if card.HighSafety {
		tags = append(tags, "high-safety")
	}
	if card.Technical {
		tags = append(tags, "technical")
	}
	if card.LowLatency {
		tags = append(tags, "low-latency")
	}
	if len(tags) == 0 {
		return "-"
	}
	out := tags[0]
	for _, t := range tags[1:] {
		out += "," + t
	}
	return out
}

func loadConfig() (*config.Config, error) {
	if configFile != "" {
		return config.Load(configFile)
	}
	return config.Default(), nil
}

func buildLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

// buildProviders constructs a backend for every enabled provider with a
// credential. Providers without a key are skipped; they end up in the
// disallow set rather than failing at runtime.
func buildProviders(cfg *config.Config, logger *zap.Logger) map[string]provider.Provider {
	providers := make(map[string]provider.Provider)
	for name, pc := range cfg.EnabledProviders() {
		if pc.APIKey == "" && name != "mock" {
			logger.Debug("provider has no credential, excluding", zap.String("provider", name))
			continue
		}
		p, err := provider.New(name, pc.APIKey)
		if err != nil {
			logger.Warn("failed to construct provider", zap.String("provider", name), zap.Error(err))
			continue
		}
		providers[name] = p
	}
	return providers
}

func disallowSet(cfg *config.Config, providers map[string]provider.Provider) map[string]bool {
	disallow := make(map[string]bool)
	for _, name := range cfg.Disallow {
		disallow[name] = true
	}
	for _, card := range cfg.Cards {
		if _, ok := providers[card.Provider]; !ok {
			disallow[card.Provider] = true
		}
	}
	return disallow
}

func buildRouter(cfg *config.Config, logger *zap.Logger) *router.Router {
	providers := buildProviders(cfg, logger)
	reg := registry.New(cfg.Cards)

	return router.New(providers, reg, router.Options{
		DefaultProvider: cfg.DefaultProvider,
		Disallow:        cfg.Disallow,
		PreferenceOrder: cfg.PreferenceOrder,
		Retry: retry.Options{
			Retries:  cfg.Retry.Retries,
			MinDelay: time.Duration(cfg.Retry.MinDelayMs) * time.Millisecond,
			MaxDelay: time.Duration(cfg.Retry.MaxDelayMs) * time.Millisecond,
		},
		Logger: logger,
	})
}
