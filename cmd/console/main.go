package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/xela07ax/spaceai-cmdgate/internal/console/api"
	"github.com/xela07ax/spaceai-cmdgate/internal/console/client"
	"github.com/xela07ax/spaceai-cmdgate/internal/domain"
)

// Консоль оператора: очередь апрувов и белый список через HTTP API шлюза.
var rootCmd = &cobra.Command{
	Use:          "cmdgate-console",
	Short:        "Operator console for the command gateway",
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("addr", envOr("CMDGATE_ADDR", "http://localhost:8080"), "gateway HTTP address")
	rootCmd.PersistentFlags().String("token", os.Getenv("CMDGATE_TOKEN"), "bearer token (env CMDGATE_TOKEN)")

	loginCmd.Flags().StringP("user", "u", "", "operator username")
	loginCmd.Flags().StringP("password", "p", "", "operator password")
	_ = loginCmd.MarkFlagRequired("user")
	_ = loginCmd.MarkFlagRequired("password")

	denyCmd.Flags().String("reason", "", "reason shown to the caller")

	execCmd.Flags().Bool("wait", false, "block until an operator decides")
	execCmd.Flags().Duration("timeout", 0, "process timeout (0 - gateway default)")
	// Все после имени команды уходит в argv как есть: exec ls -la
	execCmd.Flags().SetInterspersed(false)

	whitelistAddCmd.Flags().String("level", string(domain.LevelRequiresApproval), "security level: safe, requires_approval, forbidden")
	whitelistAddCmd.Flags().StringArray("arg", nil, "positional matcher; prefix with re: for a pattern")
	whitelistAddCmd.Flags().String("description", "", "free-form description")

	whitelistCmd.AddCommand(whitelistListCmd, whitelistAddCmd, whitelistLevelCmd, whitelistRemoveCmd)
	rootCmd.AddCommand(loginCmd, pendingCmd, approveCmd, denyCmd, execCmd, whitelistCmd)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func newClient(cmd *cobra.Command) *client.Client {
	addr, _ := cmd.Flags().GetString("addr")
	token, _ := cmd.Flags().GetString("token")
	return client.New(addr, token, nil)
}

func printYAML(cmd *cobra.Command, v interface{}) error {
	out, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Exchange operator credentials for a token",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		password, _ := cmd.Flags().GetString("password")

		resp, err := newClient(cmd).Login(cmd.Context(), user, password)
		if err != nil {
			return err
		}
		// Печатаем только токен: удобно для export CMDGATE_TOKEN=$(...)
		fmt.Fprintln(cmd.OutOrStdout(), resp.AccessToken)
		return nil
	},
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List commands awaiting approval (oldest first)",
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := newClient(cmd).Pending(cmd.Context())
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no pending commands")
			return nil
		}
		for _, p := range list {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s %v  by=%s  reason=%q\n",
				p.ID, p.RequestedAt.Format(time.RFC3339), p.Command, p.Args, p.RequestedBy, p.Reason)
		}
		return nil
	},
}

var approveCmd = &cobra.Command{
	Use:   "approve <id>",
	Short: "Approve a pending command and print its output",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := newClient(cmd).Approve(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printResult(cmd, res)
	},
}

var denyCmd = &cobra.Command{
	Use:   "deny <id>",
	Short: "Deny a pending command",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reason, _ := cmd.Flags().GetString("reason")
		if err := newClient(cmd).Deny(cmd.Context(), args[0], reason); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s denied\n", args[0])
		return nil
	},
}

var execCmd = &cobra.Command{
	Use:   "exec <command> [args...]",
	Short: "Submit a command to the gateway",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wait, _ := cmd.Flags().GetBool("wait")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		res, err := newClient(cmd).Execute(cmd.Context(), api.ExecuteRequest{
			Command:   args[0],
			Args:      args[1:],
			TimeoutMs: timeout.Milliseconds(),
			Wait:      wait,
		})
		if err != nil {
			return err
		}
		if res.Status == api.StatusPending {
			fmt.Fprintf(cmd.OutOrStdout(), "awaiting approval: %s\n", res.PendingID)
			return nil
		}
		return printResult(cmd, res)
	},
}

func printResult(cmd *cobra.Command, res *api.ExecuteResponse) error {
	fmt.Fprint(cmd.OutOrStdout(), res.Stdout)
	if res.Stderr != "" {
		fmt.Fprint(cmd.ErrOrStderr(), res.Stderr)
	}
	return nil
}

var whitelistCmd = &cobra.Command{
	Use:   "whitelist",
	Short: "Inspect and edit the gateway whitelist",
}

var whitelistListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the whitelist as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := newClient(cmd).Whitelist(cmd.Context())
		if err != nil {
			return err
		}
		return printYAML(cmd, map[string]interface{}{"whitelist": entries})
	},
}

var whitelistAddCmd = &cobra.Command{
	Use:   "add <command>",
	Short: "Add or replace a whitelist entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		level, _ := cmd.Flags().GetString("level")
		rawArgs, _ := cmd.Flags().GetStringArray("arg")
		description, _ := cmd.Flags().GetString("description")

		matchers, err := parseMatchers(rawArgs)
		if err != nil {
			return err
		}
		return newClient(cmd).AddToWhitelist(cmd.Context(), api.WhitelistEntry{
			Command:     args[0],
			Level:       domain.SecurityLevel(level),
			AllowedArgs: matchers,
			Description: description,
		})
	},
}

var whitelistLevelCmd = &cobra.Command{
	Use:   "level <command> <level>",
	Short: "Change the security level of an entry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return newClient(cmd).UpdateSecurityLevel(cmd.Context(), args[0], domain.SecurityLevel(args[1]))
	},
}

var whitelistRemoveCmd = &cobra.Command{
	Use:   "remove <command>",
	Short: "Remove an entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return newClient(cmd).RemoveFromWhitelist(cmd.Context(), args[0])
	},
}
