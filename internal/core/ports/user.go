package ports

import "context"

// PasswordPrompt asks the user for the vault password. It's called again
// with an increased attempt number after every wrong password.
type PasswordPrompt interface {
	PromptPassword(ctx context.Context, attempt int) (string, error)
}

// Alerter notifies the user of failures that can't be recovered silently.
type Alerter interface {
	Alert(ctx context.Context, title, message string)
}
