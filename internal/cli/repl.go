package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// execIface is the command surface the REPL dispatches to.
type execIface interface {
	Help(ctx context.Context) error
	Token(ctx context.Context, args []string) error
	Login(ctx context.Context) error
	Identifier(ctx context.Context) error
	Register(ctx context.Context) error
	Verify(ctx context.Context, args []string) error
	Bindings(ctx context.Context, args []string) error
}

// runREPL reads commands from reader until EOF, "exit" or "quit". Errors
// from handlers are ignored here; handlers report them to the user.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader, out io.Writer) {
	for {
		fmt.Fprintf(out, "uc %s> ", statusFn())
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(out)
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			_ = a.Help(ctx)
		case "token":
			_ = a.Token(ctx, args)
		case "login":
			_ = a.Login(ctx)
		case "identifier", "id":
			_ = a.Identifier(ctx)
		case "register":
			_ = a.Register(ctx)
		case "verify":
			_ = a.Verify(ctx, args)
		case "bindings":
			_ = a.Bindings(ctx, args)
		case "exit", "quit":
			fmt.Fprintln(out, "Bye!")
			return
		default:
			fmt.Fprintln(out, "Unknown command:", cmd)
		}
	}
}

// Root runs the interactive shell.
func (a *App) Root(ctx context.Context) {
	fmt.Fprintln(a.out, "Welcome to the UCenter gateway CLI (type 'help' for commands)")
	runREPL(ctx, a, a.status, a.reader, a.out)
}
