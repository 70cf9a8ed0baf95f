package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8080", "relay address")
	flag.Parse()

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dial error: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()
	fmt.Fprintln(os.Stderr, "connected:", *addr)

	// everything the relay broadcasts, our own lines included
	go func() {
		_, _ = io.Copy(os.Stdout, conn)
		fmt.Fprintln(os.Stderr, "connection closed")
		os.Exit(0)
	}()

	in := bufio.NewReader(os.Stdin)
	for {
		line, err := in.ReadString('\n')
		if len(line) > 0 {
			if _, werr := conn.Write([]byte(line)); werr != nil {
				fmt.Fprintf(os.Stderr, "write error: %v\n", werr)
				os.Exit(1)
			}
		}
		if err != nil {
			return
		}
	}
}
