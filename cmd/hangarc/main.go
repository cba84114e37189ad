package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/fatih/color"

	"github.com/hangarlabs/hangar/api"
	"github.com/hangarlabs/hangar/callback"
	"github.com/hangarlabs/hangar/config"
	"github.com/hangarlabs/hangar/gateway"
	"github.com/hangarlabs/hangar/models"
	"github.com/hangarlabs/hangar/session"
	"github.com/hangarlabs/hangar/stream"
	"github.com/hangarlabs/hangar/watch"
)

var (
	logger     *slog.Logger
	configPath string
	verbose    bool
)

func init() {
	flag.StringVar(&configPath, "config", "hangar.yaml", "Path to the dashboard configuration file")
	flag.BoolVar(&verbose, "verbose", false, "Enable debug logging")
}

func main() {
	flag.Parse()

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("Error:"), err)
		os.Exit(1)
	}

	app, err := newApp(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("Error:"), err)
		os.Exit(1)
	}
	defer app.api.Close()

	if err := app.run(args); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("Error:"), err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: hangarc [-config hangar.yaml] [-verbose] <command> [args]")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  status                    Show platform server status")
	fmt.Fprintln(os.Stderr, "  whoami                    Show the current session")
	fmt.Fprintln(os.Stderr, "  login-callback <url>      Resolve an SSO redirect URL")
	fmt.Fprintln(os.Stderr, "  switch <character-id>     Select another authenticated character")
	fmt.Fprintln(os.Stderr, "  logout                    Clear the session")
	fmt.Fprintln(os.Stderr, "  watch <feed>              Stream live events from a feed")
}

// cliNavigator renders forced navigations as URLs for the user to open,
// since there is no browser to drive.
type cliNavigator struct {
	loginURL    string
	exchangeURL string
}

func (n *cliNavigator) ToLogin(reason string) {
	target, err := url.Parse(n.loginURL)
	if err != nil {
		fmt.Printf("%s log in again at: %s\n", color.YellowString("Session ended:"), n.loginURL)
		return
	}
	q := target.Query()
	if reason != "" {
		q.Set("reason", reason)
	}
	target.RawQuery = q.Encode()
	fmt.Printf("%s log in again at: %s\n", color.YellowString("Session ended:"), target.String())
}

func (n *cliNavigator) ToExchange(code, state string) {
	target, err := url.Parse(n.exchangeURL)
	if err != nil {
		fmt.Printf("%s %s\n", color.YellowString("Continue the login at:"), n.exchangeURL)
		return
	}
	q := target.Query()
	q.Set("code", code)
	if state != "" {
		q.Set("state", state)
	}
	target.RawQuery = q.Encode()
	fmt.Printf("%s %s\n", color.YellowString("Continue the login at:"), target.String())
}

type app struct {
	cfg      *config.Dashboard
	store    session.Store
	nav      *cliNavigator
	api      *api.Client
	resolver *callback.Resolver
}

func newApp(cfg *config.Dashboard) (*app, error) {
	store, err := session.NewFileStore(logger, cfg.SessionFile)
	if err != nil {
		return nil, err
	}
	nav := &cliNavigator{loginURL: cfg.LoginURL, exchangeURL: cfg.ExchangeURL}

	gw, err := gateway.New(&gateway.Config{
		BaseURL:             cfg.BaseURL,
		Store:               store,
		Navigator:           nav,
		Logger:              logger,
		Timeout:             cfg.Gateway.Timeout.Duration(),
		RateLimit:           cfg.Gateway.RateLimit,
		RateBurst:           cfg.Gateway.RateBurst,
		CharacterParamPaths: cfg.Gateway.CharacterParamPaths,
	})
	if err != nil {
		return nil, err
	}

	apiClient := api.New(logger, gw)
	return &app{
		cfg:      cfg,
		store:    store,
		nav:      nav,
		api:      apiClient,
		resolver: callback.NewResolver(logger, store, apiClient, nav),
	}, nil
}

func (a *app) run(args []string) error {
	ctx := context.Background()
	switch args[0] {
	case "status":
		return a.cmdStatus(ctx)
	case "whoami":
		return a.cmdWhoami()
	case "login-callback":
		if len(args) < 2 {
			return fmt.Errorf("login-callback requires the redirect URL")
		}
		return a.cmdLoginCallback(ctx, args[1])
	case "switch":
		if len(args) < 2 {
			return fmt.Errorf("switch requires a character id")
		}
		return a.cmdSwitch(ctx, args[1])
	case "logout":
		return a.cmdLogout()
	case "watch":
		if len(args) < 2 {
			return fmt.Errorf("watch requires a feed name")
		}
		return a.cmdWatch(args[1])
	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func (a *app) cmdStatus(ctx context.Context) error {
	status, err := a.api.ServerStatus(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s %d players online, version %s, up since %s\n",
		color.GreenString("Online:"), status.Players, status.ServerVersion, status.StartTime.Format("2006-01-02 15:04"))
	return nil
}

func (a *app) cmdWhoami() error {
	s, ok := a.store.Get()
	if !ok {
		fmt.Println(color.YellowString("Not logged in."))
		return nil
	}
	credential := "client-held token"
	if s.ServerManaged() {
		credential = "server-managed credential"
	}
	fmt.Printf("%s %s (character %d, %s)\n", color.GreenString("Logged in:"), s.CharacterName, s.CharacterID, credential)
	return nil
}

func (a *app) cmdLoginCallback(ctx context.Context, rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("failed to parse redirect URL: %w", err)
	}
	outcome := a.resolver.Resolve(ctx, parsed.Query())
	switch outcome.State {
	case callback.StateSuccess:
		fmt.Println(color.GreenString("Login complete."))
	case callback.StateRedirecting:
		// The navigator already printed the exchange URL.
	case callback.StateFailed:
		return fmt.Errorf("login failed: %s", outcome.Reason)
	}
	return nil
}

func (a *app) cmdSwitch(ctx context.Context, rawID string) error {
	characterID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return fmt.Errorf("malformed character id '%s'", rawID)
	}
	current, ok := a.store.Get()
	if !ok {
		return fmt.Errorf("not logged in")
	}
	profile, err := a.api.CharacterProfile(ctx, characterID)
	if err != nil {
		return fmt.Errorf("failed to load character %d: %w", characterID, err)
	}
	if err := a.store.Set(models.Session{
		Token:         current.Token,
		CharacterID:   profile.CharacterID,
		CharacterName: profile.Name,
	}); err != nil {
		return err
	}
	fmt.Printf("%s now acting as %s (character %d)\n", color.GreenString("Switched:"), profile.Name, profile.CharacterID)
	fmt.Println("Open feeds keep their current identity; start a new watch to pick up the switch.")
	return nil
}

func (a *app) cmdLogout() error {
	if err := a.store.Clear(); err != nil {
		return err
	}
	fmt.Println(color.GreenString("Logged out."))
	return nil
}

func (a *app) cmdWatch(feed string) error {
	header := http.Header{}
	if s, ok := a.store.Get(); ok && !s.ServerManaged() {
		header.Set("Authorization", "Bearer "+s.Token)
	}

	registry := stream.NewRegistry(logger, func(name string) (*stream.Client, error) {
		addr, ok := a.cfg.Feeds[name]
		if !ok {
			return nil, fmt.Errorf("unknown feed '%s'", name)
		}
		return stream.NewClient(&stream.Config{
			Address:     addr,
			Header:      header,
			Logger:      logger,
			BaseDelay:   a.cfg.Stream.BaseDelay.Duration(),
			MaxAttempts: a.cfg.Stream.MaxAttempts,
		})
	})
	defer registry.CloseAll()

	client, err := registry.Get(feed)
	if err != nil {
		return err
	}

	client.OnConnected(func() {
		fmt.Println(color.GreenString("Connected to %s", feed))
	})
	client.OnDisconnected(func(err error) {
		fmt.Println(color.YellowString("Disconnected from %s", feed))
	})
	client.SubscribeAll(func(env models.Envelope) {
		if env.Message != "" {
			fmt.Printf("%s %s\n", color.CyanString("[%s]", env.Type), env.Message)
			return
		}
		fmt.Printf("%s %s\n", color.CyanString("[%s]", env.Type), string(env.Data))
	})

	if err := client.Connect(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watcher := watch.New(logger, a.store, a.cfg.Watcher.Interval.Duration())
	defer watcher.Close()
	watcher.Subscribe(func(authenticated bool) {
		if !authenticated {
			fmt.Println(color.YellowString("Session ended, stopping watch."))
			cancel()
		}
	})
	go watcher.Run(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}
	return nil
}
