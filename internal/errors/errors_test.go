package errors_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hserrors "github.com/sibilleb/hatstart/internal/errors"
)

func TestDiagnosticError(t *testing.T) {
	d := hserrors.NewError(hserrors.CodeMissingToolID, "tools[0]", "tool id is required")
	assert.Equal(t, "MISSING_TOOL_ID: tool id is required", d.Error())
	assert.Equal(t, hserrors.SeverityError, d.Severity)
}

func TestDiagnosticWrapUnwrap(t *testing.T) {
	cause := errors.New("boom")
	d := hserrors.Wrap(hserrors.CodeDetectionFailure, "", "detector panicked", cause)
	require.ErrorIs(t, d, cause)
}

func TestDiagnosticIsMatchesByCode(t *testing.T) {
	a := hserrors.NewError(hserrors.CodeCircularDependencies, "a", "cycle")
	b := hserrors.NewError(hserrors.CodeCircularDependencies, "b", "different message, same code")
	assert.ErrorIs(t, a, b)

	c := hserrors.NewWarning(hserrors.CodeMissingDependency, "c", "dangling edge")
	assert.False(t, errors.Is(a, c))
}

func TestDiagnosticsFiltering(t *testing.T) {
	ds := hserrors.Diagnostics{
		hserrors.NewError(hserrors.CodeDuplicateTool, "", "dup"),
		hserrors.NewWarning(hserrors.CodeMissingDependency, "", "dangling"),
	}
	assert.True(t, ds.HasErrors())
	assert.Len(t, ds.Errors(), 1)
	assert.Len(t, ds.Warnings(), 1)
}
