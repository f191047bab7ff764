package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmcleod/mathquiz/client"
	"github.com/jmcleod/mathquiz/credstore"
	"github.com/jmcleod/mathquiz/state"
)

// session is an API client whose session store is loaded from, and saved
// back to, the current profile.
type session struct {
	*client.Client
	store *credstore.Store
	stop  func()
}

// openSession loads the profile's stored session and starts tracking it so
// every login, refresh and logout is persisted.
func openSession() (*session, error) {
	store, err := credstore.OpenDir(cfg.dataDir)
	if err != nil {
		return nil, fmt.Errorf("opening profile store: %w", err)
	}
	sessions := state.NewSessionStore(time.Now())
	saved, err := store.Load(cfg.profile)
	switch {
	case errors.Is(err, credstore.ErrNoSession):
	case err != nil:
		store.Close()
		return nil, fmt.Errorf("loading profile %q: %w", cfg.profile, err)
	default:
		sessions.Set(saved)
	}

	stop := store.Track(cfg.profile, sessions, logger)
	c := client.New(cfg.server,
		client.WithLogger(logger),
		client.WithSessionStore(sessions),
	)
	return &session{Client: c, store: store, stop: stop}, nil
}

func (s *session) Close() error {
	s.stop()
	return s.store.Close()
}

// withSession opens the profile session for the duration of fn.
func withSession(fn func(s *session) error) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

// stdinReader is shared so that several prompts can consume successive
// lines of piped input.
var (
	stdinSource io.Reader
	stdinReader *bufio.Reader
)

func readLine(cmd *cobra.Command, prompt string) (string, error) {
	if in := cmd.InOrStdin(); stdinReader == nil || stdinSource != in {
		stdinSource = in
		stdinReader = bufio.NewReader(in)
	}
	if prompt != "" {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
	}
	line, err := stdinReader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			return "", errors.New("unexpected end of input")
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readPassword returns flagValue if set, then $MATHQUIZ_PASSWORD, then a
// line read from stdin.
func readPassword(cmd *cobra.Command, flagValue, prompt string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if v := os.Getenv(envPassword); v != "" {
		return v, nil
	}
	return readLine(cmd, prompt)
}
