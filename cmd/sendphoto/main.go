// Command sendphoto pushes one image to a running ingest listener, speaking
// the same protocol as the capture devices: a JSON header line followed by
// the raw image bytes.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"snapsort/internal/filter"
)

type header struct {
	Filename      string `json:"filename"`
	Timestamp     string `json:"timestamp"`
	Filter        string `json:"filter"`
	FilterDisplay string `json:"filter_display,omitempty"`
	Size          int64  `json:"size,omitempty"`
}

func main() {
	addr := flag.String("addr", "127.0.0.1:5001", "ingest listener address")
	file := flag.String("file", "", "path of the JPEG to send")
	name := flag.String("name", "", "filename to store under (defaults to the file's base name)")
	filterID := flag.String("filter", "normal", "filter to apply: normal, bw or vintage")
	framed := flag.Bool("framed", false, "declare the body size in the header instead of relying on the idle timeout")
	flag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "usage: sendphoto -file photo.jpg [-addr host:port] [-filter bw] [-framed]")
		os.Exit(2)
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read %s: %v\n", *file, err)
		os.Exit(1)
	}

	filename := *name
	if filename == "" {
		filename = filepath.Base(*file)
	}

	h := header{
		Filename:      filename,
		Timestamp:     time.Now().Format(time.RFC3339),
		Filter:        *filterID,
		FilterDisplay: filter.DisplayName(*filterID),
	}
	if *framed {
		h.Size = int64(len(data))
	}
	line, err := json.Marshal(h)
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode header: %v\n", err)
		os.Exit(1)
	}

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect %s: %v\n", *addr, err)
		os.Exit(1)
	}
	defer conn.Close()

	if _, err := conn.Write(append(line, '\n')); err != nil {
		fmt.Fprintf(os.Stderr, "send header: %v\n", err)
		os.Exit(1)
	}
	if _, err := conn.Write(data); err != nil {
		fmt.Fprintf(os.Stderr, "send body: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("sent %s (%d bytes) as %s with filter %s\n", *file, len(data), filename, *filterID)
}
