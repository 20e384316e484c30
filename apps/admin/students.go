package main

import (
	"context"
	"fmt"

	"github.com/trezcool/admissions/core/account"
	"github.com/trezcool/admissions/core/admission"
)

func (cli *commandLine) reconcile(ctx context.Context) error {
	fixed, err := cli.svc.Reconcile(ctx)
	if err != nil {
		return err
	}
	for _, std := range fixed {
		fmt.Fprintf(cli.out, "%s\t%s\tpending fees: %s\n", std.ID, std.FullName(), std.PendingFees.StringFixed(2))
	}
	fmt.Fprintf(cli.out, "%d student(s) reconciled\n", len(fixed))
	return nil
}

func (cli *commandLine) cancel(ctx context.Context, studentID, reason string) error {
	std, err := cli.svc.Cancel(ctx, studentID, admission.CancelRequest{Reason: reason})
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "admission of %s (%s) cancelled\n", std.FullName(), std.ID)
	return nil
}

// issueCredentials confirms the registration of a student with the given credentials.
func (cli *commandLine) issueCredentials(ctx context.Context, studentID string, creds account.Credentials) error {
	std, err := cli.svc.ConfirmRegistration(ctx, studentID, creds)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%s registered with username %q\n", std.FullName(), std.Username.String)
	return nil
}
