package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/zhouzirui/chatwidget/internal/config"
	"github.com/zhouzirui/chatwidget/internal/logging"
	"github.com/zhouzirui/chatwidget/internal/ui"
)

var (
	endpoint     string
	sessionID    string
	transport    string
	discardStale bool
	logLevel     string
	logFile      string
	plain        bool
)

var rootCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the chat server from a terminal",
	Long: `chat sends each line you type to the chat server's /chat endpoint and
shows the reply. Type exit or quit to leave.

Settings come from the environment (CHAT_ENDPOINT, CHAT_SESSION_ID,
CHAT_TRANSPORT, CHAT_DISCARD_STALE, LOG_LEVEL, optionally via .env) and are
overridden by flags.`,
	SilenceUsage: true,
	RunE:         runInteractive,
}

var sendCmd = &cobra.Command{
	Use:   "send [text]",
	Short: "Send one message and print the reply",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSend,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&endpoint, "endpoint", "", "chat endpoint URL (or set CHAT_ENDPOINT)")
	flags.StringVar(&sessionID, "session", "", "session identifier (or set CHAT_SESSION_ID)")
	flags.StringVar(&transport, "transport", "", "http or ws (or set CHAT_TRANSPORT)")
	flags.BoolVar(&discardStale, "discard-stale", false, "drop replies that arrive after a newer one")
	flags.StringVar(&logLevel, "log-level", "", "log level (or set LOG_LEVEL)")
	flags.StringVar(&logFile, "log-file", "", "write logs to this file")

	rootCmd.Flags().BoolVar(&plain, "plain", false, "line mode without the full-screen interface")

	rootCmd.AddCommand(sendCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig merges the environment with any flags set on cmd.
func loadConfig(cmd *cobra.Command) (*config.ClientConfig, error) {
	_ = godotenv.Load()

	cfg, err := config.LoadClient()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("endpoint") {
		cfg.Endpoint = endpoint
	}
	if flags.Changed("session") {
		cfg.SessionID = sessionID
	}
	if flags.Changed("transport") {
		cfg.Transport = transport
	}
	if flags.Changed("discard-stale") {
		cfg.DiscardStale = discardStale
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger keeps the full-screen interface clean: logs only go somewhere
// when a file is named or the output is line based.
func newLogger(cfg *config.ClientConfig, toStderr bool) (*zap.Logger, error) {
	if logFile == "" && !toStderr {
		return zap.NewNop(), nil
	}
	return logging.New(cfg.LogLevel, logFile)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runInteractive(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	tty := term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
	lineMode := plain || !tty

	logger, err := newLogger(cfg, lineMode)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signalContext()
	defer stop()

	sess, err := newSession(cfg, logger)
	if err != nil {
		return err
	}
	defer sess.Close()

	if lineMode {
		return runLines(ctx, sess.client, cmd.InOrStdin(), cmd.OutOrStdout())
	}

	opts := ui.RenderOptions{Styles: ui.DefaultStyles()}
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		if md, err := ui.GlamourMarkdown(width - 8); err == nil {
			opts.Markdown = md
		}
	}

	program := tea.NewProgram(ui.NewModel(ctx, sess.client, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run interface: %w", err)
	}
	return nil
}

func runSend(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, true)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signalContext()
	defer stop()

	sess, err := newSession(cfg, logger)
	if err != nil {
		return err
	}
	defer sess.Close()

	return sendOnce(ctx, sess.client, joinArgs(args), cmd.OutOrStdout())
}
