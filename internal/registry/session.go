package registry

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/oshokin/compose-updater/internal/logger"
)

const dockerBinary = "docker"

// Session tracks the registries the updater has logged into, so the run can
// log out of exactly those afterwards.
type Session struct {
	loggedIn []string
}

// Login authenticates against every configured registry. The login goes
// through the docker CLI because the Engine API validates credentials
// without persisting them, and the compose plugin reads the credential
// store when it pulls.
//
// The returned session covers the registries authenticated so far and is
// usable for Logout even when Login fails halfway.
func Login(ctx context.Context, creds []Credential) (*Session, error) {
	session := &Session{}

	for _, cred := range creds {
		if err := login(ctx, cred); err != nil {
			return session, err
		}

		session.loggedIn = append(session.loggedIn, cred.Host)
	}

	return session, nil
}

// login sends the password over stdin, never through the command line.
func login(ctx context.Context, cred Credential) error {
	logger.Infof(ctx, "Logging in to %s as %s", cred.Host, cred.Username)

	cmd := exec.CommandContext(ctx, dockerBinary,
		"login", "--username", cred.Username, "--password-stdin", cred.Host)
	cmd.Stdin = strings.NewReader(cred.Password + "\n")

	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("login to %s: %w: %s", cred.Host, err, strings.TrimSpace(string(out)))
	}

	return nil
}

// Logout ends the sessions opened by Login.
// Failures are logged and otherwise ignored.
func (s *Session) Logout(ctx context.Context) {
	for _, host := range s.loggedIn {
		cmd := exec.CommandContext(ctx, dockerBinary, "logout", host)

		if out, err := cmd.CombinedOutput(); err != nil {
			logger.Warnf(ctx, "Could not log out of %s: %s", host, strings.TrimSpace(string(out)))
			continue
		}

		logger.Infof(ctx, "Logged out of %s", host)
	}
}

// Hosts returns the registries the session is logged into.
func (s *Session) Hosts() []string {
	return s.loggedIn
}
