// Copyright 2023 The Authors (see AUTHORS file)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/mattn/go-isatty"
)

// Command is a runnable command or command group. [BaseCommand] provides the
// stream handling.
type Command interface {
	// Desc is a one-line description shown in the parent's listing.
	Desc() string

	// Help is the long-form help output.
	Help() string

	// Hidden commands are omitted from the parent's listing. Aliases are
	// hidden.
	Hidden() bool

	Run(ctx context.Context, args []string) error

	Prompt(msg string) (string, error)

	Stdout() io.Writer
	SetStdout(w io.Writer)

	Stderr() io.Writer
	SetStderr(w io.Writer)

	Stdin() io.Reader
	SetStdin(r io.Reader)

	// Pipe replaces the streams with new buffers and returns them.
	Pipe() (stdin, stdout, stderr *bytes.Buffer)
}

// CommandFactory creates a command on demand so that only the invoked branch
// of the tree is constructed.
type CommandFactory func() Command

var _ Command = (*RootCommand)(nil)

// RootCommand dispatches to named subcommands. Definition groups become
// RootCommands.
type RootCommand struct {
	BaseCommand

	// Name is the binary name for the top-level command, or the subcommand
	// name. Parents prefix it with their own name before running it.
	Name string

	Description string

	Hide bool

	// Version is printed for "--version". Subcommands inherit it.
	Version string

	// Examples, when set, produces the output of "--help-examples".
	Examples func() string

	// WebHelp, when set, produces the HTML page written for "--help-web".
	WebHelp func() (string, error)

	Commands map[string]CommandFactory
}

func (r *RootCommand) Desc() string {
	return r.Description
}

func (r *RootCommand) Hidden() bool {
	return r.Hide
}

// Help lists the visible subcommands in name order.
func (r *RootCommand) Help() string {
	var b strings.Builder

	longest := 0
	names := make([]string, 0, len(r.Commands))
	for name := range r.Commands {
		names = append(names, name)
		if l := len(name); l > longest {
			longest = l
		}
	}
	sort.Strings(names)

	fmt.Fprintf(&b, "Usage: %s COMMAND\n\n", r.Name)
	if r.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", wrapAtLengthWithPadding(r.Description, 0))
	}
	for _, name := range names {
		cmd := r.Commands[name]()
		if cmd == nil || cmd.Hidden() {
			continue
		}
		fmt.Fprintf(&b, "  %-*s%s\n", longest+4, name, cmd.Desc())
	}

	return strings.TrimRight(b.String(), "\n")
}

// Run prints help, version, or examples, or runs the named subcommand with
// the remaining arguments.
func (r *RootCommand) Run(ctx context.Context, args []string) error {
	name, args := extractCommandAndArgs(args)

	switch name {
	case "", "-h", "-help", "--help":
		fmt.Fprintln(r.Stderr(), r.Help())
		return nil
	case "-v", "-version", "--version":
		fmt.Fprintln(r.Stderr(), r.Version)
		return nil
	case "--help-examples":
		if r.Examples != nil {
			fmt.Fprintln(r.Stdout(), r.Examples())
			return nil
		}
	case "--help-web":
		if r.WebHelp != nil {
			page, err := r.WebHelp()
			if err != nil {
				return err
			}
			fmt.Fprint(r.Stdout(), page)
			return nil
		}
	}

	cmd, ok := r.Commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q", name)
	}
	instance := cmd()

	instance.SetStdin(r.stdin)
	instance.SetStdout(r.stdout)
	instance.SetStderr(r.stderr)

	if typ, ok := instance.(*RootCommand); ok {
		typ.Name = r.Name + " " + typ.Name
		typ.Version = r.Version
		return typ.Run(ctx, args)
	}

	if err := instance.Run(ctx, args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(instance.Stderr(), instance.Help())
			return nil
		}
		//nolint:wrapcheck // We want to bubble this error exactly as-is.
		return err
	}
	return nil
}

func extractCommandAndArgs(args []string) (string, []string) {
	switch len(args) {
	case 0:
		return "", nil
	case 1:
		return args[0], nil
	default:
		return args[0], args[1:]
	}
}

// BaseCommand holds the standard streams. Commands embed it.
type BaseCommand struct {
	stdout, stderr io.Writer
	stdin          io.Reader
}

func (c *BaseCommand) Hidden() bool {
	return false
}

// Prompt writes msg when stdin is an interactive terminal and reads one line.
func (c *BaseCommand) Prompt(msg string) (string, error) {
	scanner := bufio.NewScanner(io.LimitReader(c.Stdin(), 64*1_000))

	if c.Stdin() == os.Stdin && isatty.IsTerminal(os.Stdin.Fd()) {
		fmt.Fprint(c.Stdout(), msg)
	}

	scanner.Scan()

	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return scanner.Text(), nil
}

// Interactive reports whether stdin is a terminal. Piped input is never
// interactive.
func (c *BaseCommand) Interactive() bool {
	return c.Stdin() == os.Stdin && isatty.IsTerminal(os.Stdin.Fd())
}

func (c *BaseCommand) Stdout() io.Writer {
	if v := c.stdout; v != nil {
		return v
	}
	return os.Stdout
}

func (c *BaseCommand) SetStdout(w io.Writer) {
	c.stdout = w
}

func (c *BaseCommand) Stderr() io.Writer {
	if v := c.stderr; v != nil {
		return v
	}
	return os.Stderr
}

func (c *BaseCommand) SetStderr(w io.Writer) {
	c.stderr = w
}

func (c *BaseCommand) Stdin() io.Reader {
	if v := c.stdin; v != nil {
		return v
	}
	return os.Stdin
}

func (c *BaseCommand) SetStdin(r io.Reader) {
	c.stdin = r
}

// Pipe replaces the streams with new buffers, mostly for tests.
func (c *BaseCommand) Pipe() (stdin, stdout, stderr *bytes.Buffer) {
	stdin = bytes.NewBuffer(nil)
	stdout = bytes.NewBuffer(nil)
	stderr = bytes.NewBuffer(nil)
	c.stdin = stdin
	c.stdout = stdout
	c.stderr = stderr
	return
}
