// Command roomctl is an operator CLI for a running room server. It talks to
// the REST API and covers the day-to-day tasks: listing rooms and clients,
// driving the room state machine, forcing a pool dispatch, and broadcasting
// operator notices to connected players.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:  "roomctl",
		Usage: "operator CLI for the room server REST API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Value:   "http://localhost:8080",
				Usage:   "base URL of the room server",
				Sources: cli.EnvVars("ROOMSERVER_URL"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "rooms",
				Usage: "list rooms, or show one room when an id is given",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if id := cmd.Args().First(); id != "" {
						return get(cmd, "/api/rooms/"+id)
					}
					return get(cmd, "/api/rooms")
				},
			},
			{
				Name:      "destroy",
				Usage:     "destroy a room",
				ArgsUsage: "<room-id>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id := cmd.Args().First()
					if id == "" {
						return fmt.Errorf("room id is required")
					}
					return del(cmd, "/api/rooms/"+id)
				},
			},
			{
				Name:      "command",
				Usage:     "send a state machine command (start, pause, resume, stop) to a room",
				ArgsUsage: "<room-id> <command>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "to-players",
						Usage: "also relay the command to the room's players",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id := cmd.Args().Get(0)
					command := cmd.Args().Get(1)
					if id == "" || command == "" {
						return fmt.Errorf("usage: roomctl command <room-id> <command>")
					}
					return post(cmd, "/api/rooms/"+id+"/command", map[string]any{
						"command":    command,
						"to_players": cmd.Bool("to-players"),
					})
				},
			},
			{
				Name:  "clients",
				Usage: "list clients, or show one client when an id is given",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if id := cmd.Args().First(); id != "" {
						return get(cmd, "/api/clients/"+id)
					}
					return get(cmd, "/api/clients")
				},
			},
			{
				Name:      "purge",
				Usage:     "purge a disconnected client from the registry",
				ArgsUsage: "<client-id>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id := cmd.Args().First()
					if id == "" {
						return fmt.Errorf("client id is required")
					}
					return del(cmd, "/api/clients/"+id)
				},
			},
			{
				Name:  "pool",
				Usage: "show the waiting pool state",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return get(cmd, "/api/pool")
				},
			},
			{
				Name:  "dispatch",
				Usage: "force an immediate pool dispatch with whoever is waiting",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return post(cmd, "/api/pool/dispatch", map[string]any{})
				},
			},
			{
				Name:      "broadcast",
				Usage:     "send a text notice to all connected players",
				ArgsUsage: "<text>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					text := cmd.Args().First()
					if text == "" {
						return fmt.Errorf("broadcast text is required")
					}
					return post(cmd, "/api/broadcast", map[string]any{"text": text})
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

var httpClient = &http.Client{Timeout: 10 * time.Second}

func get(cmd *cli.Command, path string) error {
	req, err := http.NewRequest(http.MethodGet, cmd.String("server")+path, nil)
	if err != nil {
		return err
	}
	return do(req)
}

func del(cmd *cli.Command, path string) error {
	req, err := http.NewRequest(http.MethodDelete, cmd.String("server")+path, nil)
	if err != nil {
		return err
	}
	return do(req)
}

func post(cmd *cli.Command, path string, body map[string]any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, cmd.String("server")+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return do(req)
}

// do executes the request and pretty-prints the JSON response to stdout.
// Non-2xx responses become errors so the exit code reflects the outcome.
func do(req *http.Request) error {
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		pretty.Write(data)
	}
	fmt.Println(pretty.String())

	if resp.StatusCode >= 400 {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	return nil
}
