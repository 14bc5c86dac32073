package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"careLinkWs/internal/modules/bell/infrastructure"
	"careLinkWs/internal/modules/bell/ui"
	"careLinkWs/internal/shared/logging"
)

func main() {
	_ = godotenv.Load()

	serverURL := flag.StringP("url", "u", envOr("BELL_URL", "http://localhost:8080"), "realtime service base url")
	token := flag.StringP("token", "t", os.Getenv("BELL_TOKEN"), "bearer token for the websocket")
	logFile := flag.String("log-file", "", "write client logs to this file")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	if *token == "" {
		fmt.Fprintln(os.Stderr, "a token is required (--token or BELL_TOKEN)")
		os.Exit(2)
	}

	// La TUI ocupa stdout; los logs van a archivo o se descartan.
	var logOut io.Writer = io.Discard
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	}
	slog.SetDefault(logging.New(logOut, logging.Config{Level: *logLevel, Format: "text"}))

	source, err := infrastructure.NewEventSource(*serverURL, *token, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go source.Run(ctx)

	program := tea.NewProgram(ui.New(source.Updates(), source), tea.WithMouseCellMotion())
	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "bell: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
