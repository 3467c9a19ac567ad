// Package cli implements the openvault CLI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/unkarelian/openvault/internal/config"
	"github.com/unkarelian/openvault/internal/logger"
	"github.com/unkarelian/openvault/internal/store"
	"github.com/unkarelian/openvault/internal/vault"
)

// Version is set at build time.
var Version = "dev"

var (
	dbPath     string
	configPath string
	debug      bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "openvault",
	Short: "Scene memory for roleplay chats",
	Long: "Stores what happened in a chat, tracks which characters know it, and injects the memories " +
		"relevant to the current scene into the next prompt. SQLite-backed, single binary.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $OPENVAULT_DB or ~/.openvault/openvault.db)")
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ~/.openvault/config.toml)")
	RootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
}

func loadConfig() *config.Config {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		exitErr("load config", err)
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if debug {
		cfg.Log.Debug = true
	}
	return cfg
}

func newLogger(cfg *config.Config) *slog.Logger {
	return logger.New(
		logger.WithDebug(cfg.Log.Debug),
		logger.ParseFormat(cfg.Log.Format),
		logger.WithWriter(os.Stderr),
	)
}

func openStore() (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(loadConfig().DBPath)
}

// openVault opens the store and wires the retrieval pipeline.
func openVault() (*vault.Vault, *slog.Logger) {
	cfg := loadConfig()
	log := newLogger(cfg)

	s, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		exitErr("open store", err)
	}
	v, err := vault.New(cfg, s, log)
	if err != nil {
		s.Close()
		exitErr("configure", err)
	}
	return v, log
}

func sessionFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("session", "s", "", "Session ID (required)")
	cmd.MarkFlagRequired("session")
}

func printJSON(w io.Writer, v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(w, string(b))
}

// splitList parses a comma-separated flag value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// splitInts parses a comma-separated list of message indices.
func splitInts(s string) ([]int, error) {
	var out []int
	for _, part := range splitList(s) {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid message index %q", part)
		}
		out = append(out, n)
	}
	return out, nil
}

// readText joins positional args, or reads piped stdin when there are none.
func readText(args []string) string {
	if len(args) > 0 {
		return strings.TrimSpace(strings.Join(args, " "))
	}
	stat, _ := os.Stdin.Stat()
	if (stat.Mode() & os.ModeCharDevice) == 0 {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			exitErr("read stdin", err)
		}
		return strings.TrimSpace(string(b))
	}
	return ""
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
