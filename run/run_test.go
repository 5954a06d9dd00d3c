package run

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type usageError struct{}

func (usageError) Error() string { return "usage" }
func (usageError) ExitCode() int { return 2 }

func TestExitCode(t *testing.T) {
	require.Equal(t, 0, exitCode(nil))
	require.Equal(t, 1, exitCode(errors.New("boom")))
	require.Equal(t, 2, exitCode(usageError{}))
	require.Equal(t, 2, exitCode(fmt.Errorf("wrapped: %w", usageError{})))
	require.Equal(t, 1, exitCode(context.Canceled))
}
