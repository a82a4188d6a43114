package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/lorrc/helpdesk-client/internal/adapters/primary/cli"
	apperrors "github.com/lorrc/helpdesk-client/internal/core/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", describe(err))
		var usage *cli.ErrUsage
		if errors.As(err, &usage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	return rootCommand(stdin, stdout, stderr).Execute(ctx, args)
}

// describe spells out field errors, which the error string only counts.
func describe(err error) string {
	var verrs *apperrors.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	fields := make([]string, 0, len(verrs.Errors))
	for field := range verrs.Errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var b strings.Builder
	b.WriteString("validation failed")
	for _, field := range fields {
		fmt.Fprintf(&b, "\n  %s: %s", field, strings.Join(verrs.Errors[field], "; "))
	}
	return b.String()
}
