package api

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/quotekeeper/internal/types"
)

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"nil", nil, codes.OK},
		{"quote input", types.InputError("course_details", "required"), codes.InvalidArgument},
		{"rule", types.RuleError("start_date", "required"), codes.InvalidArgument},
		{"field type", fmt.Errorf("%w: number", types.ErrUnknownFieldType), codes.InvalidArgument},
		{"rule not found", storeErr("get rule", types.ErrRuleNotFound), codes.NotFound},
		{"quote not found", storeErr("get quote", types.ErrQuoteNotFound), codes.NotFound},
		{"deadline", storeErr("list rules", context.DeadlineExceeded), codes.DeadlineExceeded},
		{"canceled", storeErr("list rules", context.Canceled), codes.Canceled},
		{"store", storeErr("list rules", errors.New("connection refused")), codes.Unavailable},
		{"other", errors.New("boom"), codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Code(tt.err); got != tt.want {
				t.Errorf("Code(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestToStatus(t *testing.T) {
	if err := ToStatus(nil); err != nil {
		t.Fatalf("ToStatus(nil) = %v, want nil", err)
	}

	err := ToStatus(types.RuleError("value_type", "unknown"))
	if got := status.Code(err); got != codes.InvalidArgument {
		t.Errorf("status.Code() = %v, want InvalidArgument", got)
	}

	already := status.Error(codes.PermissionDenied, "nope")
	if got := ToStatus(already); got != already {
		t.Errorf("ToStatus() = %v, want status passed through", got)
	}
}
