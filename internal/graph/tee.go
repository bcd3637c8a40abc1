package graph

import (
	"context"
	"errors"
)

type tee []Host

// Tee returns a Host that forwards every call to each of hosts in order.
// Errors are joined; a failing host does not stop the others.
func Tee(hosts ...Host) Host {
	return tee(hosts)
}

func (t tee) NavigateMain(ctx context.Context, target string) error {
	var errs []error
	for _, h := range t {
		errs = append(errs, h.NavigateMain(ctx, target))
	}
	return errors.Join(errs...)
}

func (t tee) NavigateSide(ctx context.Context, uuid string) error {
	var errs []error
	for _, h := range t {
		errs = append(errs, h.NavigateSide(ctx, uuid))
	}
	return errors.Join(errs...)
}

func (t tee) Notify(ctx context.Context, message string, severity Severity) error {
	var errs []error
	for _, h := range t {
		errs = append(errs, h.Notify(ctx, message, severity))
	}
	return errors.Join(errs...)
}
