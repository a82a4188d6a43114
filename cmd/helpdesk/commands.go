package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/lorrc/helpdesk-client/internal/adapters/primary/cli"
	"github.com/lorrc/helpdesk-client/internal/config"
	"github.com/lorrc/helpdesk-client/internal/core/domain"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

// env carries what every command shares before the app is wired.
type env struct {
	cfg    *config.Config
	output string

	stdin  *bufio.Reader
	rawIn  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func rootCommand(stdin io.Reader, stdout, stderr io.Writer) *cli.Command {
	e := &env{
		cfg:    config.LoadEnv(),
		output: string(cli.FormatTable),
		stdin:  bufio.NewReader(stdin),
		rawIn:  stdin,
		stdout: stdout,
		stderr: stderr,
	}

	return &cli.Command{
		Name:    "helpdesk",
		Summary: "Work the helpdesk ticket queue from the terminal",
		Help:    stdout,
		Subcommands: []*cli.Command{
			e.loginCommand(),
			e.logoutCommand(),
			e.whoamiCommand(),
			e.listCommand(),
			e.showCommand(),
			e.summaryCommand(),
			e.createCommand(),
			e.updateCommand(),
			e.cancelCommand(),
			e.assigneesCommand(),
			e.watchCommand(),
			e.serveCommand(),
			e.signupCommand(),
			e.registerCommand(),
			e.passwdCommand(),
			e.forgotPasswordCommand(),
			e.versionCommand(),
		},
	}
}

// flags returns a flag set carrying the configuration overrides and
// --output.
func (e *env) flags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	e.cfg.BindFlags(fs)
	fs.StringVarP(&e.output, "output", "o", e.output, "output format (table|json|yaml)")
	return fs
}

func (e *env) open() (*app, error) {
	format, err := cli.ParseFormat(e.output)
	if err != nil {
		return nil, err
	}
	return newApp(e.cfg, format, e.rawIn, e.stdout, e.stderr)
}

// withApp wires the app for the duration of fn.
func (e *env) withApp(fn func(ctx context.Context, a *app, args []string) error) func(context.Context, []string) error {
	return func(ctx context.Context, args []string) error {
		a, err := e.open()
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(ctx, a, args)
	}
}

func exactArgs(n int, usage string) func([]string) error {
	return func(args []string) error {
		if len(args) != n {
			return cli.Usagef("usage: %s", usage)
		}
		return nil
	}
}

// prompt reads one line from stdin after writing label to stderr.
func (e *env) prompt(label string) (string, error) {
	fmt.Fprint(e.stderr, label)
	line, err := e.stdin.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(strings.ToLower(label), ": "), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// secret reads a password without echo when stdin is a terminal and as a
// plain line otherwise.
func (e *env) secret(label string) (string, error) {
	if f, ok := e.rawIn.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(e.stderr, label)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(e.stderr)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	return e.prompt(label)
}

// secretFrom reads a password from path, or prompts when path is empty.
func (e *env) secretFrom(path, label string) (string, error) {
	if path == "" {
		return e.secret(label)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read password file: %w", err)
	}
	return strings.TrimRight(string(b), "\r\n"), nil
}

func (e *env) loginCommand() *cli.Command {
	var email, passwordFile string
	return &cli.Command{
		Name:    "login",
		Summary: "Sign in and remember the session",
		Flags: func() *pflag.FlagSet {
			fs := e.flags("login")
			fs.StringVar(&email, "email", "", "account email (prompted when empty)")
			fs.StringVar(&passwordFile, "password-file", "", "read the password from this file")
			return fs
		},
		Run: e.withApp(func(ctx context.Context, a *app, _ []string) error {
			if email == "" {
				var err error
				if email, err = e.prompt("Email: "); err != nil {
					return err
				}
			}
			password, err := e.secretFrom(passwordFile, "Password: ")
			if err != nil {
				return err
			}

			session, err := a.sessions.Login(ctx, email, password)
			if err != nil {
				return err
			}
			return a.render.Identity(session)
		}),
	}
}

func (e *env) logoutCommand() *cli.Command {
	return &cli.Command{
		Name:    "logout",
		Summary: "Forget the stored session",
		Flags:   func() *pflag.FlagSet { return e.flags("logout") },
		Run: e.withApp(func(ctx context.Context, a *app, _ []string) error {
			if _, err := a.sessions.Init(ctx); err != nil {
				a.logger.WarnContext(ctx, "could not restore session before logout", "error", err)
			}
			if err := a.sessions.Logout(ctx); err != nil {
				return err
			}
			return a.render.Line("Signed out.")
		}),
	}
}

func (e *env) whoamiCommand() *cli.Command {
	return &cli.Command{
		Name:    "whoami",
		Summary: "Show the signed-in identity",
		Flags:   func() *pflag.FlagSet { return e.flags("whoami") },
		Run: e.withApp(func(ctx context.Context, a *app, _ []string) error {
			session, err := a.requireSession(ctx)
			if err != nil {
				return err
			}
			return a.render.Identity(session)
		}),
	}
}

func (e *env) signupCommand() *cli.Command {
	var params domain.RegistrationParams
	var passwordFile string
	return &cli.Command{
		Name:    "signup",
		Summary: "Create your own account",
		Flags: func() *pflag.FlagSet {
			fs := e.flags("signup")
			fs.StringVar(&params.FirstName, "first-name", "", "first name (prompted when empty)")
			fs.StringVar(&params.LastName, "last-name", "", "last name")
			fs.StringVar(&params.Email, "email", "", "account email (prompted when empty)")
			fs.StringVar(&params.Company, "company", "", "company")
			fs.StringVar(&passwordFile, "password-file", "", "read the password from this file")
			return fs
		},
		Run: e.withApp(func(ctx context.Context, a *app, _ []string) error {
			var err error
			if params.FirstName == "" {
				if params.FirstName, err = e.prompt("First name: "); err != nil {
					return err
				}
			}
			if params.Email == "" {
				if params.Email, err = e.prompt("Email: "); err != nil {
					return err
				}
			}
			if params.Password, err = e.secretFrom(passwordFile, "Password: "); err != nil {
				return err
			}
			if passwordFile == "" {
				confirm, err := e.secret("Confirm password: ")
				if err != nil {
					return err
				}
				if confirm != params.Password {
					return cli.Usagef("passwords do not match")
				}
			}

			if err := a.sessions.SignUp(ctx, params); err != nil {
				return err
			}
			return a.render.Line("Account created for %s. Sign in with helpdesk login.", strings.TrimSpace(params.Email))
		}),
	}
}

func (e *env) registerCommand() *cli.Command {
	var params domain.RegistrationParams
	var role, passwordFile string
	return &cli.Command{
		Name:    "register",
		Summary: "Create a user account (admins only)",
		Flags: func() *pflag.FlagSet {
			fs := e.flags("register")
			fs.StringVar(&params.FirstName, "first-name", "", "first name")
			fs.StringVar(&params.LastName, "last-name", "", "last name")
			fs.StringVar(&params.Email, "email", "", "account email")
			fs.StringVar(&params.Company, "company", "", "company (defaults to yours)")
			fs.StringVar(&role, "role", string(domain.RoleUser), "role (user|manager|admin)")
			fs.StringVar(&passwordFile, "password-file", "", "read the initial password from this file")
			return fs
		},
		Run: e.withApp(func(ctx context.Context, a *app, _ []string) error {
			r, ok := domain.ParseRole(role)
			if !ok {
				return cli.Usagef("unknown role %q", role)
			}
			params.Role = r

			if _, err := a.requireSession(ctx); err != nil {
				return err
			}
			password, err := e.secretFrom(passwordFile, "Initial password: ")
			if err != nil {
				return err
			}
			params.Password = password

			if err := a.sessions.Register(ctx, params); err != nil {
				return err
			}
			return a.render.Line("Registered %s.", params.Email)
		}),
	}
}

func (e *env) passwdCommand() *cli.Command {
	return &cli.Command{
		Name:    "passwd",
		Summary: "Change your password",
		Flags:   func() *pflag.FlagSet { return e.flags("passwd") },
		Run: e.withApp(func(ctx context.Context, a *app, _ []string) error {
			if _, err := a.requireSession(ctx); err != nil {
				return err
			}
			current, err := e.secret("Current password: ")
			if err != nil {
				return err
			}
			next, err := e.secret("New password: ")
			if err != nil {
				return err
			}

			change := domain.PasswordChange{CurrentPassword: current, NewPassword: next}
			if err := a.sessions.ChangePassword(ctx, change); err != nil {
				return err
			}
			return a.render.Line("Password changed.")
		}),
	}
}

func (e *env) forgotPasswordCommand() *cli.Command {
	var email string
	return &cli.Command{
		Name:    "forgot-password",
		Summary: "Mail a password reset link",
		Flags: func() *pflag.FlagSet {
			fs := e.flags("forgot-password")
			fs.StringVar(&email, "email", "", "account email (prompted when empty)")
			return fs
		},
		Run: e.withApp(func(ctx context.Context, a *app, _ []string) error {
			if email == "" {
				var err error
				if email, err = e.prompt("Email: "); err != nil {
					return err
				}
			}
			if err := a.sessions.ForgotPassword(ctx, email); err != nil {
				return err
			}
			return a.render.Line("If %s has an account, a reset link is on its way.", strings.TrimSpace(email))
		}),
	}
}

func (e *env) versionCommand() *cli.Command {
	return &cli.Command{
		Name:    "version",
		Summary: "Print the client version",
		Run: func(context.Context, []string) error {
			_, err := fmt.Fprintf(e.stdout, "%s %s\n", e.cfg.App.Name, e.cfg.App.Version)
			return err
		},
	}
}
