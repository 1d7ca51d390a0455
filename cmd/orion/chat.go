package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

const consoleUserID = "+00 000 00 00 00"

const consolePreamble = "Sesión de consola para pruebas internas. Atiende en español y " +
	"utiliza las herramientas disponibles cuando corresponda."

// runChat drives the reasoning loop from stdin. WhatsApp notices the tools
// schedule still go through the dispatcher and simply fail against the real
// API when no token is configured; they are logged, not fatal.
func runChat(ctx context.Context, configPath string) error {
	rt, err := buildRuntime(configPath)
	if err != nil {
		return err
	}
	defer rt.close()

	rt.sessions.Init(consoleUserID, consolePreamble)
	fmt.Println("Console chat. /reset starts over, /exit leaves.")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/exit":
			return nil
		case line == "/reset":
			rt.sessions.Init(consoleUserID, consolePreamble)
			fmt.Println("Conversation reset.")
			continue
		}

		answer, err := rt.bot.Process(ctx, consoleUserID, consoleUserID, line)
		if err != nil {
			fmt.Fprintln(os.Stderr, "turn failed:", err)
			rt.sessions.Init(consoleUserID, consolePreamble)
			continue
		}
		fmt.Println(answer)
	}
}
