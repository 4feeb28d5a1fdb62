// receiver is a terminal client for the receiver side of the relay: it
// subscribes to the push channel, prints relayed messages most recent
// first, and prints the join URL whenever a pairing target is shown.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/paircast/relay/internal/session"
)

// termSurface renders receiver output on the terminal.
type termSurface struct{}

func (termSurface) PrependEntry(entry session.LogEntry) {
	fmt.Printf("%s: %s\n", entry.At.Format("2006-01-02 15:04:05"), entry.Body)
}

func (termSurface) ShowPairingTarget(joinURL string) {
	fmt.Printf("Pair a controller at: %s\n", joinURL)
}

func (termSurface) HidePairingTarget() {
	fmt.Println("Pairing target hidden")
}

func (termSurface) SetDegraded(degraded bool) {
	if degraded {
		fmt.Println("Connection lost; reload to reconnect")
	}
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	_ = godotenv.Load()

	var (
		serverURL = flag.String("server", "http://localhost:8080", "Relay server root address")
	)
	flag.Parse()

	root := strings.TrimSuffix(*serverURL, "/")

	s := session.NewReceiverSession(session.ReceiverConfig{
		RootURL:   root,
		Surface:   termSurface{},
		Open:      session.SSEStreamOpener(root+"/sse/", nil),
		FetchCode: session.HTTPCodeFetcher(root+"/code/", nil),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Connect(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to connect")
	}

	fmt.Println("Listening for messages. Ctrl-c to quit.")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
}
