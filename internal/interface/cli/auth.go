package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"golang.org/x/crypto/bcrypt"

	"github.com/Dhanush6858/green-gaurdian/internal/interface/http/handlers"
)

// AuthCmd issues API credentials from the local configuration.
type AuthCmd struct {
	auth *handlers.Authenticator
	in   io.Reader
	out  io.Writer
}

type HashKeyInput struct {
	// Key is read from stdin when empty.
	Key  string
	Cost int
}

type TokenInput struct {
	InstallationID string
	Output         string
}

func (c AuthCmd) HashKey(in HashKeyInput) error {
	key := strings.TrimSpace(in.Key)
	if key == "" {
		line, err := bufio.NewReader(c.in).ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("read key: %w", err)
		}
		key = strings.TrimSpace(line)
	}
	if key == "" {
		return fmt.Errorf("an API key is required (argument or stdin)")
	}
	if in.Cost == 0 {
		in.Cost = bcrypt.DefaultCost
	}

	hash, err := handlers.HashAPIKey(key, in.Cost)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.out, hash)
	return err
}

func (c AuthCmd) Token(in TokenInput) error {
	if err := checkOutput(in.Output); err != nil {
		return err
	}
	if strings.TrimSpace(in.InstallationID) == "" {
		return fmt.Errorf("--installation is required")
	}

	token, exp, err := c.auth.IssueToken(in.InstallationID)
	if err != nil {
		return err
	}
	if in.Output == "json" {
		return ProgressCmd{out: c.out}.printJSON(map[string]any{
			"token":     token,
			"expiresAt": exp.UTC().Format(time.RFC3339),
		})
	}

	pterm.Info.Printf("Token for '%s' expires %s\n", in.InstallationID, exp.UTC().Format(time.RFC3339))
	_, err = fmt.Fprintln(c.out, token)
	return err
}
