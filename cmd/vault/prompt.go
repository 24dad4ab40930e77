package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/tdex-network/vaultd/internal/core/application/vault"
)

const maxPromptAttempts = 3

// terminalPrompt reads the password from the terminal without echoing it.
type terminalPrompt struct{}

func (terminalPrompt) PromptPassword(_ context.Context, attempt int) (string, error) {
	if attempt > maxPromptAttempts {
		return "", vault.ErrInvalidPassword
	}
	if attempt > 1 {
		fmt.Println("Wrong password, try again")
	}
	pwd, err := readPassword("Password: ")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(pwd)), nil
}

// staticPrompt always gives the same password and gives up as soon as it's
// rejected.
type staticPrompt string

func (p staticPrompt) PromptPassword(_ context.Context, attempt int) (string, error) {
	if attempt > 1 {
		return "", vault.ErrInvalidPassword
	}
	return string(p), nil
}

// readNewPassword asks for a password twice and makes sure they match.
func readNewPassword() (string, error) {
	pwd, err := readPassword("New password: ")
	if err != nil {
		return "", err
	}
	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		return "", err
	}
	if string(pwd) != string(confirm) {
		return "", fmt.Errorf("passwords don't match")
	}
	return string(pwd), nil
}

func readPassword(text string) ([]byte, error) {
	fmt.Print(text)

	// syscall.Stdin is not an int on every platform.
	pwd, err := term.ReadPassword(int(syscall.Stdin)) // nolint:unconvert
	fmt.Println()
	return pwd, err
}

// logAlerter reports unrecoverable failures on stderr.
type logAlerter struct{}

func (logAlerter) Alert(_ context.Context, title, message string) {
	log.WithField("alert", title).Error(message)
	_, _ = fmt.Fprintf(os.Stderr, "%s: %s\n", title, message)
}
