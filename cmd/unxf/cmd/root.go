package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/abczzz13/unxf/internal/config"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

// filterFlags are shared by every subcommand and override the config file
// and environment when set.
type filterFlags struct {
	configPath      string
	trust           []string
	acceptForwarded bool
	maxChainLength  int
	onBadChain      string
	logLevel        string
}

// NewRootCmd builds the unxf command tree.
func NewRootCmd() *cobra.Command {
	flags := &filterFlags{}

	rootCmd := &cobra.Command{
		Use:          "unxf",
		Short:        "Trusted X-Forwarded-For resolution",
		Long:         "unxf resolves the client address of HTTP requests from X-Forwarded-For, X-Real-IP or Forwarded headers, trusting only configured proxies.",
		Version:      Version,
		SilenceUsage: true,
	}
	rootCmd.SetVersionTemplate(versionTemplate())

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", os.Getenv("UNXF_CONFIG"), "Path to a YAML config file")
	pf.StringSliceVar(&flags.trust, "trust", nil, "Trusted proxy CIDR, address or group name (repeatable, replaces the default groups)")
	pf.BoolVar(&flags.acceptForwarded, "accept-forwarded", false, "Accept the RFC 7239 Forwarded header")
	pf.IntVar(&flags.maxChainLength, "max-chain-length", 0, "Maximum number of hops in one header")
	pf.StringVar(&flags.onBadChain, "on-bad-chain", "", "What to do with broken or untrusted chains: reject or pass")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn or error")

	rootCmd.AddCommand(newCheckCmd(flags), newServeCmd(flags))
	return rootCmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// SetVersionInfo sets version information for the CLI.
func SetVersionInfo(version, commit, buildDate, goVersion string) {
	Version = version
	Commit = commit
	BuildDate = buildDate
	GoVersion = goVersion
}

func versionTemplate() string {
	return "Version: {{.Version}}, Commit: " + Commit + ", BuildDate: " + BuildDate + ", Go: " + GoVersion + "\n"
}

// loadConfig reads the config file and environment, then applies the flags
// the user set explicitly.
func loadConfig(cmd *cobra.Command, flags *filterFlags) (config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return config.Config{}, err
	}

	fs := cmd.Flags()
	if fs.Changed("trust") {
		if len(flags.trust) == 0 {
			return config.Config{}, fmt.Errorf("--trust needs at least one entry")
		}
		cfg.Trust = flags.trust
	}
	if fs.Changed("accept-forwarded") {
		cfg.AcceptForwarded = flags.acceptForwarded
	}
	if fs.Changed("max-chain-length") {
		cfg.MaxChainLength = flags.maxChainLength
	}
	if fs.Changed("on-bad-chain") {
		cfg.OnBadChain = flags.onBadChain
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = flags.logLevel
	}

	return cfg, cfg.Validate()
}
