package firestore

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestWrapErrorClassifiesStatusCodes(t *testing.T) {
	cases := []struct {
		code                            codes.Code
		notFound, conflict, unavailable bool
	}{
		{codes.NotFound, true, false, false},
		{codes.AlreadyExists, false, true, false},
		{codes.Aborted, false, true, false},
		{codes.Unavailable, false, false, true},
		{codes.DeadlineExceeded, false, false, true},
		{codes.InvalidArgument, false, false, false},
	}
	for _, tc := range cases {
		err := WrapError("orders.get", status.Error(tc.code, "x"))
		var e *Error
		if !errors.As(err, &e) {
			t.Fatalf("%s: expected *Error, got %T", tc.code, err)
		}
		if e.IsNotFound() != tc.notFound || e.IsConflict() != tc.conflict || e.IsUnavailable() != tc.unavailable {
			t.Fatalf("%s: unexpected classification %+v", tc.code, e)
		}
	}
}

func TestWrapErrorPassesContextErrors(t *testing.T) {
	if err := WrapError("op", context.Canceled); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if err := WrapError("op", status.Error(codes.Canceled, "x")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled for grpc canceled, got %v", err)
	}
	if WrapError("op", nil) != nil {
		t.Fatalf("expected nil")
	}
}

func TestWrapErrorKeepsSentinelChain(t *testing.T) {
	sentinel := errors.New("order already paid")
	err := WrapError("transaction", sentinel)
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel to remain reachable")
	}
}
