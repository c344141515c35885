package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"client-profile-service/internal/api"
	"client-profile-service/internal/classify"
	"client-profile-service/internal/config"
	"client-profile-service/internal/emailprocessor"
	imapclient "client-profile-service/internal/imap"
	"client-profile-service/internal/llm"
	"client-profile-service/internal/logging"
	"client-profile-service/internal/mcp"
	"client-profile-service/internal/profile"
	"client-profile-service/internal/store"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		logging.Log.Fatalf("%v", err)
	}
}

func run(args []string) error {
	var configPath string
	var mcpMode bool

	flagSet := pflag.NewFlagSet("client-profile-service", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML configuration file")
	flagSet.BoolVar(&mcpMode, "mcp", false, "serve MCP tools over stdio instead of HTTP")
	showVersion := flagSet.Bool("version", false, "print version and exit")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if *showVersion {
		fmt.Println("client-profile-service", version)
		return nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("error reading configuration: %w", err)
	}

	// stdout carries the MCP protocol
	var logOut io.Writer = os.Stdout
	if mcpMode {
		logOut = os.Stderr
	}
	if err := logging.Configure(cfg.Logging.Level, cfg.Logging.Format, logOut); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.New(cfg.Store)
	if err != nil {
		return fmt.Errorf("opening %s store: %w", cfg.Store.Driver, err)
	}
	defer func() {
		_ = st.Close()
	}()

	provider, err := llm.NewProvider(llm.Config{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
		Timeout:  cfg.LLM.Timeout,
	})
	if err != nil {
		return fmt.Errorf("configuring LLM provider: %w", err)
	}

	svc := profile.NewService(st,
		classify.NewGate(provider, cfg.Pipeline.ClassifyMaxChars),
		classify.NewExtractor(provider),
		profile.Options{ClassifyNewProfiles: cfg.Pipeline.ClassifyNewProfiles},
	)

	logging.Log.WithFields(logrus.Fields{
		"store":    cfg.Store.Driver,
		"provider": provider.Name(),
		"version":  version,
	}).Info("Starting client profile service")

	if cfg.Email.Enabled {
		poller := emailprocessor.NewPoller(cfg.Email, imapclient.NewDialer(), svc)
		go poller.Run(ctx)
	}

	if mcpMode {
		return mcp.ServeStdio(ctx, mcp.NewServer(mcp.ServerConfig{Service: svc, Version: version}), os.Stdin, os.Stdout)
	}
	return serveHTTP(ctx, api.NewServer(cfg.Server.Addr, svc), cfg.Server.ShutdownTimeout)
}

func serveHTTP(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Log.Infof("Listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Log.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
