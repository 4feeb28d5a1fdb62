// controller is a terminal client for the controller side of the relay:
// it authenticates with an access code and submits text updates read from
// stdin, printing the server's delivery feedback.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/paircast/relay/internal/session"
)

// termSurface renders controller feedback on the terminal.
type termSurface struct{}

func (termSurface) Feedback(msg string) {
	if msg != "" {
		fmt.Printf("> %s\n", msg)
	}
}

func (termSurface) ClearInput() {}

func (termSurface) SetSubmitEnabled(enabled bool) {
	if !enabled {
		fmt.Println("> Submission disabled")
	}
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	_ = godotenv.Load()

	var (
		serverURL = flag.String("server", "ws://localhost:8080/ws/", "Relay server websocket address")
		code      = flag.String("code", "", "Access code from the receiver's pairing target")
		queue     = flag.Bool("queue", false, "Queue submissions made before the channel opens instead of rejecting them")
	)
	flag.Parse()

	policy := session.SubmitReject
	if *queue {
		policy = session.SubmitQueue
	}

	s := session.NewControllerSession(session.ControllerConfig{
		Code:         *code,
		Surface:      termSurface{},
		Dial:         session.WebsocketDialer(*serverURL),
		SubmitPolicy: policy,
	})

	if s.Disabled() {
		os.Exit(1)
	}

	ctx := context.Background()
	if err := s.Connect(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to connect")
	}
	defer s.Close()

	fmt.Println("Connected. Type a message and press enter to send; ctrl-d to quit.")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if s.Disabled() {
			break
		}
		s.Submit(strings.TrimRight(scanner.Text(), "\r\n"))
	}
}
