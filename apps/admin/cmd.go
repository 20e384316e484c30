package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/admissions/core/account"
	"github.com/trezcool/admissions/core/admission"
	"github.com/trezcool/admissions/core/student"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

// admissionService is the part of admission.Service the CLI drives.
type admissionService interface {
	Reconcile(ctx context.Context) ([]student.Student, error)
	Cancel(ctx context.Context, studentID string, cr admission.CancelRequest) (student.Student, error)
	ConfirmRegistration(ctx context.Context, studentID string, creds account.Credentials) (student.Student, error)
}

type commandLine struct {
	db  *sql.DB
	svc admissionService
	out io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose command (up, up-to, down, down-to, redo, reset, status, version, create, fix)")
	fmt.Fprintln(cli.out, "  reconcile - re-derive every student's pending fees from its receipts")
	fmt.Fprintln(cli.out, "  cancel -student ID -reason REASON - cancel a student's admission")
	fmt.Fprintln(cli.out, "  issue-credentials -student ID -username USERNAME - confirm a registration; the password is prompted next")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	cancelCmd := flag.NewFlagSet("cancel", flag.ContinueOnError)
	cancelStudent := cancelCmd.String("student", "", "The student's ID.")
	cancelReason := cancelCmd.String("reason", "", "Why the admission is cancelled.")

	issueCmd := flag.NewFlagSet("issue-credentials", flag.ContinueOnError)
	issueStudent := issueCmd.String("student", "", "The student's ID.")
	issueUname := issueCmd.String("username", "", "The account's username. The password will be prompted next.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "reconcile":
		return cli.reconcile(ctx)

	case "cancel":
		cancelCmd.SetOutput(cli.out)
		if err := cancelCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *cancelStudent == "" {
			cancelCmd.Usage()
			return errHelp
		}
		return cli.cancel(ctx, *cancelStudent, *cancelReason)

	case "issue-credentials":
		issueCmd.SetOutput(cli.out)
		if err := issueCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *issueStudent == "" || *issueUname == "" {
			issueCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword("Enter password:")
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			issueCmd.Usage()
			return errHelp
		}
		confirm, err := cli.promptPassword("Confirm password:")
		if err != nil {
			return err
		}
		return cli.issueCredentials(ctx, *issueStudent, account.Credentials{
			Username:        *issueUname,
			Password:        pwd,
			PasswordConfirm: confirm,
		})

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) promptPassword(prompt string) (string, error) {
	fmt.Fprint(cli.out, prompt)
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}
