package simple

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/crypto/bcrypt"

	"skein.org/internal/auth"
)

// CLICommands vends the backend's management commands to the platform CLI.
func (m *Manager) CLICommands() []auth.CLICommand {
	return []auth.CLICommand{
		{
			Name:  "users-list",
			Usage: "print the configured users and their roles",
			Run:   m.runUsersList,
		},
		{
			Name:  "password-hash",
			Usage: "bcrypt-hash a password for the users configuration",
			Run:   runPasswordHash,
		},
	}
}

func (m *Manager) runUsersList(_ context.Context, _ []string) error {
	usernames := make([]string, 0, len(m.users))
	for name := range m.users {
		usernames = append(usernames, name)
	}
	sort.Strings(usernames)
	for _, name := range usernames {
		fmt.Printf("%s\t%s\n", name, m.users[name].Role)
	}
	return nil
}

func runPasswordHash(_ context.Context, args []string) error {
	if len(args) != 1 || args[0] == "" {
		return errors.New("usage: password-hash <password>")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(args[0]), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	fmt.Println(string(hash))
	return nil
}
