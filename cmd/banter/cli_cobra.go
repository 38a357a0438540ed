package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dotsetgreg/banter/pkg/config"
	"github.com/dotsetgreg/banter/pkg/launcher"
	"github.com/dotsetgreg/banter/pkg/logger"
	"github.com/dotsetgreg/banter/pkg/providers"
)

const defaultConfigPath = "config.json"

func executeCLI() error {
	return buildRootCommand().Execute()
}

// botFlags holds the per-bot overrides shared by run, launch and console.
type botFlags struct {
	configPath  string
	botName     string
	personality string
	model       string
	ircServer   string
	ircPort     int
	ircChannel  string
	ollamaURL   string
}

func (f *botFlags) register(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVarP(&f.configPath, "config", "c", defaultConfigPath, "Path to the JSON config file")
	flags.StringVar(&f.botName, "bot-name", "", "Bot nickname")
	flags.StringVar(&f.personality, "personality", "", "Personality description")
	flags.StringVar(&f.model, "model", "", "Model name sent to the backend")
	flags.StringVar(&f.ircServer, "irc-server", "", "IRC server host")
	flags.IntVar(&f.ircPort, "irc-port", 0, "IRC server port")
	flags.StringVar(&f.ircChannel, "irc-channel", "", "IRC channel to join")
	flags.StringVar(&f.ollamaURL, "ollama-url", "", "Backend generate endpoint")
}

// overrides returns one Override per flag the user actually set.
func (f *botFlags) overrides() []config.Override {
	var out []config.Override
	if v := strings.TrimSpace(f.botName); v != "" {
		out = append(out, func(c *config.Config) { c.Bot.Name = v })
	}
	if v := strings.TrimSpace(f.personality); v != "" {
		out = append(out, func(c *config.Config) { c.Bot.Personality = v })
	}
	if v := strings.TrimSpace(f.model); v != "" {
		out = append(out, func(c *config.Config) { c.Bot.Model = v })
	}
	if v := strings.TrimSpace(f.ircServer); v != "" {
		out = append(out, func(c *config.Config) { c.IRC.Server = v })
	}
	if v := f.ircPort; v > 0 {
		out = append(out, func(c *config.Config) { c.IRC.Port = v })
	}
	if v := strings.TrimSpace(f.ircChannel); v != "" {
		out = append(out, func(c *config.Config) { c.IRC.Channel = config.FlexibleString(v) })
	}
	if v := strings.TrimSpace(f.ollamaURL); v != "" {
		out = append(out, func(c *config.Config) { c.Backend.URL = v })
	}
	return out
}

func buildRootCommand() *cobra.Command {
	var (
		showVersion bool
		flags       = &botFlags{}
	)

	root := &cobra.Command{
		Use:   appName,
		Short: "Multi-personality chat bots for IRC, Discord and the terminal",
		Long: strings.TrimSpace(`banter runs one or more chat bots that hang out in a shared channel,
answer each other and the humans there, and restart the conversation when
the room goes quiet.

Replies come from a local Ollama server or any OpenAI-compatible endpoint.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				printVersion(cmd)
				return nil
			}
			_ = cmd.Help()
			return fmt.Errorf("a subcommand is required")
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.Flags().BoolVarP(&showVersion, "version", "v", false, "Show build/version metadata")
	flags.register(root)

	root.AddCommand(newRunCommand(flags))
	root.AddCommand(newLaunchCommand(flags))
	root.AddCommand(newConsoleCommand(flags))
	root.AddCommand(newCheckCommand(flags))
	root.AddCommand(newVersionCommand())

	return root
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func newRunCommand(flags *botFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run a single bot on the configured transport",
		Example: strings.Join([]string{
			"  banter run",
			"  banter run --bot-name BotC --irc-channel '#lounge'",
		}, "\n"),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return runBot(ctx, flags.configPath, flags.overrides()...)
		},
	}
}

func newConsoleCommand(flags *botFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "console",
		Short:   "Chat with a single bot in the terminal",
		Example: "  banter console --personality 'a pirate who misses the sea'",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			overrides := append(flags.overrides(), func(c *config.Config) {
				c.Transport = config.TransportConsole
			})
			err := runBot(ctx, flags.configPath, overrides...)
			if isTransportClosed(err) {
				return nil
			}
			return err
		},
	}
}

func newLaunchCommand(flags *botFlags) *cobra.Command {
	var stagger time.Duration

	cmd := &cobra.Command{
		Use:   "launch N [model]",
		Short: "Run N bots with distinct names and personalities in one process",
		Long: strings.TrimSpace(`Launch N bots named BotA, BotB, ... each with a personality picked at
random from the built-in cast. Bots start one at a time, stagger apart, and
share every other setting from the config file and flags.`),
		Example: strings.Join([]string{
			"  banter launch 3",
			"  banter launch 5 llama3 --stagger 10s",
		}, "\n"),
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("bot count %q is not a number", args[0])
			}
			model := launcher.DefaultModel
			if len(args) > 1 {
				model = args[1]
			}

			ids, err := launcher.Plan(n, model, nil)
			if err != nil {
				return err
			}

			base := flags.overrides()
			cfg, err := config.LoadConfig(flags.configPath, base...)
			if err != nil {
				return err
			}
			if cfg.Transport == config.TransportConsole {
				return fmt.Errorf("launch needs a network transport, config has %q", cfg.Transport)
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			return launcher.Run(ctx, ids, stagger, func(ctx context.Context, id launcher.Identity) error {
				overrides := append(append([]config.Override(nil), base...), id.Override())
				err := runBot(ctx, flags.configPath, overrides...)
				if isTransportClosed(err) {
					logger.WarnCF("launcher", "Bot left the channel", map[string]any{
						"bot":   id.Name,
						"error": err.Error(),
					})
					return nil
				}
				return err
			})
		},
	}

	cmd.Flags().DurationVar(&stagger, "stagger", launcher.DefaultStagger, "Delay between bot starts")
	return cmd
}

func newCheckCommand(flags *botFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "check",
		Short:   "Validate the config and prompt files without connecting",
		Example: "  banter check --config ./config.json",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			cfg, err := config.LoadConfig(flags.configPath, flags.overrides()...)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Config:    %s ✓\n", flags.configPath)
			fmt.Fprintf(out, "Bot:       %s (%s)\n", cfg.Bot.Name, cfg.Bot.Model)
			fmt.Fprintf(out, "Transport: %s\n", cfg.Transport)

			provider := providers.NormalizeProviderName(cfg.Backend.Provider)
			if provider == "" {
				provider = providers.ProviderOllama
			}
			fmt.Fprintf(out, "Backend:   %s %s\n", provider, cfg.Backend.URL)

			prompts, err := config.LoadPrompts(cfg.Files.PromptFile)
			if err != nil {
				fmt.Fprintf(out, "Prompts:   %s ✗\n", cfg.Files.PromptFile)
				return err
			}
			fmt.Fprintf(out, "Prompts:   %s ✓ (tones: %s)\n", cfg.Files.PromptFile, strings.Join(prompts.ToneNames(), ", "))
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   "Show build/version metadata",
		Example: "  banter version",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printVersion(cmd)
			return nil
		},
	}
}

func printVersion(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s\n", appName, formatVersion())
	build, goVer := formatBuildInfo()
	if build != "" {
		fmt.Fprintf(out, "  Build: %s\n", build)
	}
	if goVer != "" {
		fmt.Fprintf(out, "  Go: %s\n", goVer)
	}
}
