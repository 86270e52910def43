// chatmesh CLI - minimal command line client for a chatmesh gateway.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/chatmesh-io/chatmesh/clients/go/chatmesh"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	url := os.Getenv("CHATMESH_URL")
	if url == "" {
		url = "ws://localhost:8080/ws"
	}
	token := os.Getenv("CHATMESH_TOKEN")
	secret := os.Getenv("CHATMESH_SECRET")
	if token == "" || secret == "" {
		fmt.Fprintln(os.Stderr, "CHATMESH_TOKEN and CHATMESH_SECRET must be set")
		os.Exit(1)
	}

	client, err := chatmesh.NewClient(url, token, secret)
	exitOnError(err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	exitOnError(client.Connect(ctx))
	cancel()
	defer client.Close()

	switch os.Args[1] {
	case "send":
		if len(os.Args) < 4 {
			fmt.Fprintln(os.Stderr, "Usage: chatmesh send <chat-id> <body>")
			os.Exit(1)
		}
		exitOnError(client.Send(os.Args[2], os.Args[3]))

		// Wait for the server's acknowledgement before hanging up.
		frame, err := client.Receive()
		exitOnError(err)
		fmt.Printf("[%s] %s\n", frame.Status, frame.Text)

	case "listen":
		fmt.Fprintln(os.Stderr, "listening, Ctrl-C to stop")
		for {
			frame, err := client.Receive()
			exitOnError(err)
			ts := time.UnixMilli(frame.Timestamp).Format("2006-01-02 15:04:05")
			fmt.Printf("[%s] %s %s: %s\n", ts, frame.ChatID, frame.Status, frame.Text)
		}

	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `chatmesh - command line chat client

Usage:
  chatmesh send <chat-id> <body>   send one message and print the ack
  chatmesh listen                  print every frame the server pushes

Environment:
  CHATMESH_URL     gateway endpoint (default ws://localhost:8080/ws)
  CHATMESH_TOKEN   JWT access token
  CHATMESH_SECRET  base64 shared signing secret`)
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
