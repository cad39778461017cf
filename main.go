package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"ragdesk/internal/backend"
	"ragdesk/internal/chat"
	"ragdesk/internal/config"
	"ragdesk/internal/history"
	"ragdesk/internal/logging"
	"ragdesk/internal/notify"
	"ragdesk/internal/presence"
	"ragdesk/internal/query"
	"ragdesk/internal/session"
	"ragdesk/internal/terminal"
	"ragdesk/internal/ui"
)

// queryGCTime is how long cached reads stay fresh.
const queryGCTime = 5 * time.Minute

// app holds the wired components shared by every command
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	display *ui.EnhancedDisplay
	router  *ui.Router
	reader  *terminal.Reader
	spinner *terminal.Spinner

	session *session.Store
	api     *backend.Client
	toasts  *notify.Center
	hooks   *query.Hooks

	history       *history.Store
	sender        *chat.Sender
	conversations *chat.Conversations
	presence      *presence.Poller

	mode backend.QueryMode
}

func main() {
	if err := run(); err != nil {
		var reported reportedError
		if !errors.As(err, &reported) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run() error {
	// Set the GetEnv function for config
	config.GetEnv = os.Getenv

	var (
		configPath string
		apiURL     string
		mode       string
		timeout    time.Duration
		verbose    bool
	)

	flagSet := pflag.NewFlagSet("ragdesk", pflag.ContinueOnError)
	flagSet.SetInterspersed(false)
	flagSet.StringVar(&configPath, "config", config.DefaultFilePath(), "path to the YAML config file")
	flagSet.StringVar(&apiURL, "api-url", "", "backend API base URL (overrides RAGDESK_API_URL)")
	flagSet.StringVarP(&mode, "mode", "m", "", "query mode for chat and ask")
	flagSet.DurationVar(&timeout, "timeout", 0, "per-request timeout (0 waits indefinitely)")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log to stderr as well as the log file")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if flagSet.Changed("api-url") {
		cfg.APIURL = apiURL
	}
	if flagSet.Changed("mode") {
		cfg.DefaultMode = mode
	}
	if flagSet.Changed("timeout") {
		cfg.RequestTimeout = timeout
	}
	if flagSet.Changed("verbose") {
		cfg.Verbose = verbose
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	defaultMode, err := backend.ParseQueryMode(cfg.DefaultMode)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger, err := logging.New(cfg.LogPath, cfg.Verbose)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	a, err := newApp(cfg, logger, defaultMode, terminal.NewReader(os.Stdout), os.Stdout)
	if err != nil {
		return err
	}

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.session.NeedsRefresh() {
		a.refreshSession(ctx)
	}

	args := flagSet.Args()
	if len(args) == 0 {
		args = []string{"chat"}
	}
	return a.dispatch(ctx, args[0], args[1:])
}

func newApp(cfg *config.Config, logger *zap.Logger, mode backend.QueryMode, reader *terminal.Reader, out io.Writer) (*app, error) {
	display := ui.NewEnhancedDisplay(out)
	spinner := terminal.NewSpinner(out)

	sessionStore := session.NewStore(cfg.StatePath, logger.Named("session"))
	if err := sessionStore.Load(); err != nil {
		display.PrintWarning(fmt.Sprintf("Failed to load saved session: %v", err))
	}

	initial := ui.ViewLogin
	if sessionStore.IsAuthenticated() {
		initial = ui.ViewChat
	}
	router := ui.NewRouter(initial)
	router.OnRedirect(func(from, to string) {
		if to == ui.ViewLogin {
			spinner.Stop()
			display.PrintWarning("Your session has expired. Run `ragdesk login` to sign in again.")
		}
	})

	toasts := notify.NewCenter(cfg.NotificationTTL, func(t notify.Toast) {
		spinner.Stop()
		display.PrintToast(t)
	})

	api := backend.NewClient(cfg.APIURL, cfg.RequestTimeout,
		backend.WithSession(sessionStore),
		backend.WithNavigator(router),
		backend.WithLogger(logger.Named("backend")),
	)

	hooks := query.NewHooks(api, query.NewClient(queryGCTime, toasts, logger.Named("query")))

	conversation := history.NewStore()
	sender := chat.NewSender(api, conversation, toasts, logger.Named("chat"))
	sender.OnAnswered(hooks.QueryAnswered)

	return &app{
		cfg:           cfg,
		logger:        logger,
		display:       display,
		router:        router,
		reader:        reader,
		spinner:       spinner,
		session:       sessionStore,
		api:           api,
		toasts:        toasts,
		hooks:         hooks,
		history:       conversation,
		sender:        sender,
		conversations: chat.NewConversations(api, conversation),
		presence:      presence.NewPoller(api, cfg.PresenceInterval, uuid.NewString(), logger.Named("presence")),
		mode:          mode,
	}, nil
}

// reportedError marks an error the user has already been shown.
type reportedError struct {
	err error
}

func (e reportedError) Error() string { return e.err.Error() }
func (e reportedError) Unwrap() error { return e.err }

func reported(err error) error {
	if err == nil {
		return nil
	}
	return reportedError{err: err}
}

// requireAuth fails fast when no session is stored.
func (a *app) requireAuth() error {
	if !a.session.IsAuthenticated() {
		a.router.Navigate(ui.ViewLogin)
		return errors.New("not signed in; run `ragdesk login` first")
	}
	return nil
}

// withSpinner runs fn while the spinner shows msg.
func (a *app) withSpinner(msg string, fn func() error) error {
	a.spinner.Start(msg)
	defer a.spinner.Stop()
	return fn()
}

// show renders a cached read. Stale data is still shown when a refetch fails.
func show[T any](a *app, r query.Result[T], render func(T)) error {
	if r.Err != nil && !r.HasData() {
		return r.Err
	}
	if r.Err != nil {
		a.display.PrintWarning(fmt.Sprintf("Showing cached data: %s", backend.UserMessage(r.Err, "refresh failed")))
	}
	render(r.Data)
	return nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `ragdesk: terminal client for the multi-agent RAG platform.

Usage:
  ragdesk [flags] [command] [args]

Commands:
  chat                          interactive chat (default)
  ask <question>                ask one question and exit
  login [email]                 sign in (prompts for 2FA when enabled)
  login --refresh               renew the saved session
  register                      create an account
  logout                        sign out and forget the saved session
  whoami                        show the signed-in user
  profile name <full name>      change your display name
  passwd                        change your password
  2fa setup|enable|disable      manage two-factor authentication
  history                       list past questions
  sql <question>                generate SQL from a question
  dashboard [stats|activity]    show counters and recent activity
  docs <subcommand>             list, show, chunks, upload, delete, process, reprocess, watch
  versions <subcommand>         list, show, diff, compare, rollback, create, audit
  agents <subcommand>           list, status, run, logs
  analytics <subcommand>        dashboard, usage, patterns, documents, costs, performance, trending, export
  collab <subcommand>           shared, shares, share, revoke, permission, join, comments, comment, resolve, notifications, read, read-all
  kg <subcommand>               stats, search, entity, graph, relations, query, ask
  health                        check the backend is reachable

Flags:
%s`, flagSet.FlagUsages())
}
