package main

import (
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"unicode/utf8"

	"github.com/hongjun500/chat-relay/internal/transport"
)

func main() {
	var (
		addr   = flag.String("addr", "localhost:8080", "relay address")
		maxLen = flag.Int("max", 80, "truncate printed chunks to this many characters")
	)
	flag.Parse()

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dial error: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	buf := make([]byte, transport.ChunkSize)
	for n := 1; ; n++ {
		k, err := conn.Read(buf)
		if k > 0 {
			printChunk(n, buf[:k], *maxLen)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			fmt.Fprintf(os.Stderr, "read error: %v\n", err)
			os.Exit(1)
		}
	}
}

// printChunk shows one read; reads do not line up with broadcast messages.
func printChunk(n int, data []byte, maxLen int) {
	fmt.Printf("chunk %d (%d bytes)\n", n, len(data))
	if utf8.Valid(data) {
		fmt.Printf("  text: %q\n", truncate(string(data), maxLen))
		return
	}
	fmt.Printf("  base64: %q\n", truncate(base64.StdEncoding.EncodeToString(data), maxLen))
}

// truncate cuts s to at most maxLen runes; maxLen <= 0 keeps everything.
func truncate(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	i, runes := 0, 0
	for i = range s {
		if runes == maxLen {
			break
		}
		runes++
	}
	return s[:i] + "..."
}
