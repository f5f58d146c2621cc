// Command client is a console client for the echo server. Each line read from stdin
// is sent as one message and every reply is printed. Type "quit" to exit.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	socket "github.com/Zereker/socket/v2"
	"github.com/Zereker/socket/v2/internal/config"
	"github.com/Zereker/socket/v2/internal/observability"
)

func main() {
	fs := flag.NewFlagSet("client", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to TOML/YAML config file")
	addr := fs.String("addr", "", "Server address, overrides the config listen address")
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Listen = *addr
	}
	cfg.Log.Outputs = []string{"stderr"}

	logger, err := observability.SetupLogger(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("client error", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	opts, err := cfg.SessionOptions()
	if err != nil {
		return err
	}
	opts = append(opts,
		socket.LoggerOption(observability.Logger(logger)),
		socket.OnMessageOption(func(_ *socket.Session, m socket.Message) error {
			fmt.Printf("Reply is: %s\nReply len is %d\n", m.Body(), m.Length())
			return nil
		}),
	)

	session, err := socket.Dial(ctx, "tcp", cfg.Listen, opts...)
	if err != nil {
		return err
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return session.Run(ctx)
	})
	group.Go(func() error {
		defer session.Close()
		return readInput(ctx, session)
	})
	return group.Wait()
}

// readInput sends every stdin line until "quit", EOF, or the session ends.
func readInput(ctx context.Context, session *socket.Session) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	fmt.Print("Enter message: ")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-session.Done():
			return nil
		case line, ok := <-lines:
			if !ok || line == "quit" {
				return nil
			}
			err := session.Send([]byte(line))
			if errors.Is(err, socket.ErrMessageTooLarge) {
				fmt.Println("Message too long")
				continue
			}
			if err != nil {
				return err
			}
		}
	}
}
