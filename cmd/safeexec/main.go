// Command safeexec runs the sandboxed code-execution broker as a
// line-oriented JSON-RPC server over standard input/output.
//
// Usage:
//
//	safeexec [flags]               - Start the broker, serving stdio
//	safeexec version               - Print the build version
//	safeexec init-config <path>    - Write a starter config file
//	safeexec help                  - Show this help
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ternarybob/safeexec/internal/audit"
	"github.com/ternarybob/safeexec/internal/broker"
	"github.com/ternarybob/safeexec/internal/config"
	"github.com/ternarybob/safeexec/internal/interp"
	"github.com/ternarybob/safeexec/internal/logger"
	"github.com/ternarybob/safeexec/internal/transport"
	"github.com/ternarybob/safeexec/pkg/sandbox"
)

// version is set via -ldflags at build time.
var version = "dev"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version", "-v", "--version":
			fmt.Printf("safeexec version %s\n", version)
			return
		case "help", "-h", "--help":
			printUsage()
			return
		case "init-config":
			if err := cmdInitConfig(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				os.Exit(1)
			}
			return
		}
	}

	if err := cmdServe(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`safeexec - sandboxed code-execution broker

Usage:
  safeexec [flags]               Start the broker, serving stdio
  safeexec version               Print the build version
  safeexec init-config <path>    Write a starter config file
  safeexec help                  Show this help

Flags:
  --record <dir>             Directory to write audit records to
  --strict                   Block file-operation commands even if allowlisted
  --classified-paths <list>  Comma-separated paths treated as classified
  --quiet                    Suppress console logging
  --no-wrap                  Disable bare-expression wrapping
  --no-session               Disable session tools
  --config <path>            JSON config file (CLI flags win on conflict)
  --llm-base-url <url>       Chat endpoint base URL
  --llm-api-key <key>        Chat endpoint API key
  --llm-model <name>         Chat endpoint model name
  --http <addr>              Also serve JSON-RPC over HTTP at addr (e.g. :8080)`)
}

func cmdInitConfig(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: safeexec init-config <path>")
	}
	return config.WriteExample(args[0])
}

func cmdServe(args []string) error {
	cfg, httpAddr, err := loadConfig(args)
	if err != nil {
		return err
	}

	log := logger.SetupLogger(cfg)
	defer logger.Stop()

	recorder, err := audit.NewRecorder(cfg.RecordDir)
	if err != nil {
		return fmt.Errorf("init audit recorder: %w", err)
	}

	newSurface := func() *sandbox.Surface {
		var chatCfg *sandbox.ChatConfig
		if cfg.Chat != nil {
			chatCfg = &sandbox.ChatConfig{BaseURL: cfg.Chat.BaseURL, APIKey: cfg.Chat.APIKey, Model: cfg.Chat.Model}
		}
		return sandbox.NewSurface(cfg.ClassifiedPaths, cfg.Strict, chatCfg)
	}

	manager := interp.NewManager(newSurface, cfg.WrapCode)
	b := broker.New(manager, recorder, cfg.SessionsEnabled)
	server := transport.NewServer(b)

	log.Info().Msg("safeexec broker starting")

	// The wire protocol owns the real stdout. Point os.Stdout at stderr for
	// the rest of the process lifetime so startup noise and stray prints
	// cannot interleave with responses; only the transport writes to the
	// saved handle.
	origStdout := os.Stdout
	os.Stdout = os.Stderr

	var httpServer *http.Server
	if httpAddr != "" {
		httpServer = &http.Server{Addr: httpAddr, Handler: transport.NewHTTPHandler(server)}
		go func() {
			log.Info().Msgf("http transport listening on %s", httpAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("http transport error")
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	serveErrCh := make(chan error, 1)
	go func() {
		serveErrCh <- server.Serve(os.Stdin, origStdout)
	}()

	select {
	case sig := <-sigCh:
		log.Info().Msgf("received signal %v, shutting down", sig)
	case err := <-serveErrCh:
		if err != nil {
			log.Error().Err(err).Msg("transport error")
		}
	}

	if httpServer != nil {
		_ = httpServer.Close()
	}
	if err := b.Shutdown(); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	return nil
}

func loadConfig(args []string) (*config.Config, string, error) {
	fs := flag.NewFlagSet("safeexec", flag.ContinueOnError)
	record := fs.String("record", "", "directory to write audit records to")
	strict := fs.Bool("strict", false, "block file-operation commands even if allowlisted")
	classifiedPaths := fs.String("classified-paths", "", "comma-separated list of classified paths")
	httpAddr := fs.String("http", "", "optional HTTP transport listen address (e.g. :8080)")
	quiet := fs.Bool("quiet", false, "suppress console logging")
	noWrap := fs.Bool("no-wrap", false, "disable bare-expression wrapping")
	noSession := fs.Bool("no-session", false, "disable session tools")
	configPath := fs.String("config", "", "JSON config file path")
	llmBaseURL := fs.String("llm-base-url", "", "chat endpoint base URL")
	llmAPIKey := fs.String("llm-api-key", "", "chat endpoint API key")
	llmModel := fs.String("llm-model", "", "chat endpoint model name")

	if err := fs.Parse(args); err != nil {
		return nil, "", err
	}

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.LoadFile(*configPath)
		if err != nil {
			return nil, "", fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	changed := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { changed[f.Name] = true })

	overrides := config.CLIOverrides{
		Quiet:     flagBool(changed, "quiet", *quiet),
		NoWrap:    flagBool(changed, "no-wrap", *noWrap),
		NoSession: flagBool(changed, "no-session", *noSession),
	}
	if changed["record"] {
		overrides.RecordDir = record
	}
	if changed["strict"] {
		overrides.Strict = strict
	}
	if *classifiedPaths != "" {
		overrides.ClassifiedPaths = config.ParseClassifiedPaths(*classifiedPaths)
	}
	if *llmBaseURL != "" {
		overrides.LLMBaseURL = llmBaseURL
	}
	if *llmAPIKey != "" {
		overrides.LLMAPIKey = llmAPIKey
	}
	if *llmModel != "" {
		overrides.LLMModel = llmModel
	}

	config.ApplyCLI(cfg, overrides)

	partialDropped, err := cfg.Normalize()
	if err != nil {
		return nil, "", err
	}
	if partialDropped {
		fmt.Fprintln(os.Stderr, "warning: partial chat configuration ignored, treating chat as not configured")
	}

	return cfg, *httpAddr, nil
}

func flagBool(changed map[string]bool, name string, value bool) *bool {
	if !changed[name] {
		return nil
	}
	return &value
}
