// Package adminctl implements the srbio-admin command, which creates admin
// accounts and resets their passwords from a shell.
//
// Usage:
//
//	srbio-admin create [username] [config flags]
//	srbio-admin reset  [username] [config flags]
//
// The password is always prompted for, twice, without echo.
package adminctl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/dmitrijs2005/srbio/internal/common"
	"github.com/dmitrijs2005/srbio/internal/models"
)

// Test seams for the terminal.
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
)

// Accounts is the part of the auth service the command needs.
type Accounts interface {
	CreateAdmin(ctx context.Context, username, password string) (*models.Admin, error)
	ResetPassword(ctx context.Context, username, password string) error
}

// Command splits the leading words of args off the config flags.
func Command(args []string) (words, rest []string) {
	i := 0
	for i < len(args) && !strings.HasPrefix(args[i], "-") {
		i++
	}
	return args[:i], args[i:]
}

// GetSimpleText prints a prompt and reads one trimmed line. A final line
// without a newline is accepted.
func GetSimpleText(reader *bufio.Reader, prompt string, w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, prompt+"\n> "); err != nil {
		return "", err
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// GetPassword reads a password without echo. When stdin is not a terminal
// the password is read as a plain line from reader.
//
// The returned slice should be wiped by the caller.
func GetPassword(reader *bufio.Reader, prompt string, w io.Writer) ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !isTerminal(fd) {
		line, err := GetSimpleText(reader, prompt, w)
		return []byte(line), err
	}
	if _, err := fmt.Fprint(w, prompt+" "); err != nil {
		return nil, err
	}
	pw, err := readPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	return pw, nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func usage() error {
	return fmt.Errorf("usage: srbio-admin create|reset [username]: %w", common.ErrorInvalidArgument)
}

// Run executes one command against accts.
func Run(ctx context.Context, accts Accounts, words []string, reader *bufio.Reader, w io.Writer) error {
	if len(words) == 0 || len(words) > 2 {
		return usage()
	}
	cmd := words[0]
	if cmd != "create" && cmd != "reset" {
		return usage()
	}

	var username string
	if len(words) == 2 {
		username = words[1]
	} else {
		u, err := GetSimpleText(reader, "Username", w)
		if err != nil {
			return err
		}
		username = u
	}

	pw, err := GetPassword(reader, "Password:", w)
	if err != nil {
		return err
	}
	defer wipe(pw)
	again, err := GetPassword(reader, "Repeat password:", w)
	if err != nil {
		return err
	}
	defer wipe(again)
	if string(pw) != string(again) {
		return fmt.Errorf("passwords do not match: %w", common.ErrorInvalidArgument)
	}

	switch cmd {
	case "create":
		admin, err := accts.CreateAdmin(ctx, username, string(pw))
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "admin %q created (id %s)\n", admin.Username, admin.ID)
	case "reset":
		if err := accts.ResetPassword(ctx, username, string(pw)); err != nil {
			return err
		}
		fmt.Fprintf(w, "password of %q reset\n", username)
	}
	return nil
}
