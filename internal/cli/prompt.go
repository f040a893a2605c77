package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/glorpus-work/fetch/pkg/model"
)

// terminalPrompter asks the user for credentials on the terminal. It
// implements credentials.Prompter.
type terminalPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newTerminalPrompter(in io.Reader, out io.Writer) *terminalPrompter {
	return &terminalPrompter{in: bufio.NewReader(in), out: out}
}

// Prompt asks for a username and password for the given origin. An empty
// username aborts the prompt and means no credential is available.
func (p *terminalPrompter) Prompt(ctx context.Context, origin model.Origin, retry bool) (*model.Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if retry {
		fmt.Fprintf(p.out, "The previous credentials for %s were rejected.\n", origin.String())
	}
	fmt.Fprintf(p.out, "Authentication required for %s\n", origin.String())

	fmt.Fprint(p.out, "Username (empty to skip): ")
	username, err := p.readLine()
	if err != nil {
		return nil, fmt.Errorf("failed to read username: %w", err)
	}
	if username == "" {
		return nil, nil
	}

	fmt.Fprint(p.out, "Password: ")
	password, err := p.readLine()
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}

	return &model.Credential{Username: username, Password: password}, nil
}

func (p *terminalPrompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
