package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"laserhal/host/sender"
	"laserhal/host/serial"
)

var (
	device  = flag.String("device", "/dev/ttyACM0", "Serial device path")
	baud    = flag.Int("baud", 115200, "Baud rate (ignored for USB CDC)")
	file    = flag.String("file", "", "G-code file to stream before entering the console")
	verbose = flag.Bool("verbose", false, "Print controller push messages")
)

func main() {
	flag.Parse()

	cfg := serial.DefaultConfig(*device)
	cfg.Baud = *baud

	fmt.Printf("Connecting to %s...\n", *device)
	port, err := serial.Open(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer port.Close()

	s := sender.New(port)
	if *verbose {
		s.Output = func(msg string) { fmt.Println(msg) }
	}

	if *file != "" {
		f, err := os.Open(*file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		sent, err := s.Stream(f)
		f.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error after %d lines: %v\n", sent, err)
			os.Exit(1)
		}
		fmt.Printf("Streamed %d lines\n", sent)
	}

	// Interactive console
	fmt.Println("Enter commands ('status', 'reset' or 'quit'; anything else is sent as G-code):")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch line {

		case "quit", "exit":
			return

		case "status":
			state, err := s.Status()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				continue
			}
			fmt.Println(state)

		case "reset":
			if err := s.Reset(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}

		default:
			if err := s.SendLine(line); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			} else {
				fmt.Println("ok")
			}
		}
	}
}
