package cmd

import (
	"fmt"
	"io"
	"strconv"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/abczzz13/unxf"
	"github.com/abczzz13/unxf/internal/logging"
)

type checkFlags struct {
	peer      string
	forwarded string
	realIP    string
	proto     string
	rfc7239   string
}

func newCheckCmd(flags *filterFlags) *cobra.Command {
	cf := &checkFlags{}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Resolve one synthetic request and print the result",
		Example: `  unxf check --peer 127.0.0.1 --for "0.6.6.6, 192.168.0.1" --proto https
  unxf check --peer 127.0.0.1 --for 1.6.6.6,0.6.6.6 --trust LOCALHOST --trust 0.6.6.6`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd, flags, cf)
		},
	}

	cmd.Flags().StringVar(&cf.peer, "peer", "", "Observed peer address (REMOTE_ADDR)")
	cmd.Flags().StringVar(&cf.forwarded, "for", "", "X-Forwarded-For header value")
	cmd.Flags().StringVar(&cf.realIP, "real-ip", "", "X-Real-IP header value")
	cmd.Flags().StringVar(&cf.proto, "proto", "", "X-Forwarded-Proto header value")
	cmd.Flags().StringVar(&cf.rfc7239, "forwarded", "", "Forwarded header value (needs --accept-forwarded)")
	_ = cmd.MarkFlagRequired("peer")

	return cmd
}

func runCheck(cmd *cobra.Command, flags *filterFlags, cf *checkFlags) error {
	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return err
	}

	logger := log.New()
	if err := logging.InitLog(logger, cfg.LogLevel, "", cmd.ErrOrStderr()); err != nil {
		return err
	}

	opts := append(cfg.FilterOptions(), unxf.WithLogger(logging.NewFilterLogger(logger)))
	filter, err := unxf.New(opts...)
	if err != nil {
		return err
	}

	env := unxf.Env{unxf.KeyRemoteAddr: cf.peer}
	fs := cmd.Flags()
	if fs.Changed("for") {
		env[unxf.KeyForwardedFor] = cf.forwarded
	}
	if fs.Changed("real-ip") {
		env[unxf.KeyRealIP] = cf.realIP
	}
	if fs.Changed("proto") {
		env[unxf.KeyForwardedProto] = cf.proto
	}
	if fs.Changed("forwarded") {
		env[unxf.KeyForwarded] = cf.rfc7239
	}

	result := filter.Resolve(cmd.Context(), env)
	return printResult(cmd.OutOrStdout(), result, env)
}

func printResult(w io.Writer, result unxf.Result, env unxf.Env) error {
	scheme := env[unxf.KeyURLScheme]
	if scheme == "" {
		scheme = "http"
	}

	lines := [][2]string{
		{"outcome", result.Outcome.String()},
		{"status", result.Status.String()},
		{"remote_addr", env[unxf.KeyRemoteAddr]},
		{"scheme", scheme},
	}
	if result.Err != nil {
		lines = append(lines, [2]string{"error", result.Err.Error()})
	}
	for _, key := range []string{unxf.KeyAuditFor, unxf.KeyAuditRealIP, unxf.KeyAuditProto} {
		if v, ok := env[key]; ok {
			lines = append(lines, [2]string{key, strconv.Quote(v)})
		}
	}

	for _, line := range lines {
		if _, err := fmt.Fprintf(w, "%s: %s\n", line[0], line[1]); err != nil {
			return err
		}
	}
	return nil
}
