package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/chatmesh-io/chatmesh/internal/crypto"
	"github.com/chatmesh-io/chatmesh/internal/models"
)

func main() {
	keyB64 := flag.String("key", "", "Base64-encoded shared signing secret")
	frameFile := flag.String("frame", "", "File containing a JSON frame (or use stdin)")
	flag.Parse()

	if *keyB64 == "" {
		fmt.Fprintln(os.Stderr, "Usage: sign -key <signing-secret-base64> [-frame <file>]")
		fmt.Fprintln(os.Stderr, "  Reads the frame from stdin if -frame not specified")
		os.Exit(1)
	}

	signer, err := crypto.NewSigner(*keyB64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid signing key: %v\n", err)
		os.Exit(1)
	}

	var raw []byte
	if *frameFile != "" {
		raw, err = os.ReadFile(*frameFile)
	} else {
		raw, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read frame: %v\n", err)
		os.Exit(1)
	}

	var frame models.RawMessage
	if err := json.Unmarshal(raw, &frame); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid frame JSON: %v\n", err)
		os.Exit(1)
	}

	frame.IntegritySignature = signer.Sign(frame.SigningPayload())

	out, err := json.Marshal(&frame)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode frame: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
