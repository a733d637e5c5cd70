package internal

import (
	"errors"
	"fmt"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	t.Run("Should match sentinels through wrapping", func(t *testing.T) {
		err := fmt.Errorf("lookup: %w", NewMalformed("/tmp/a.yaml", "missing %s", "name"))
		assert.ErrorIs(t, err, ErrMalformedDefinition)
		assert.NotErrorIs(t, err, ErrDefinitionNotFound)
		assert.Contains(t, err.Error(), "/tmp/a.yaml: missing name")
	})

	t.Run("Should list every searched root", func(t *testing.T) {
		err := &DefinitionNotFoundError{Name: "login", Roots: []string{"/a", "/b"}}
		assert.ErrorIs(t, err, ErrDefinitionNotFound)
		assert.Equal(t, `workflow "login" not found (searched: /a, /b)`, err.Error())
	})

	t.Run("Should unwrap spawn causes", func(t *testing.T) {
		err := &SpawnError{Command: "claude", Cause: exec.ErrNotFound}
		assert.ErrorIs(t, err, ErrSpawnFailure)
		assert.True(t, errors.Is(err, exec.ErrNotFound))
	})

	t.Run("Should surface agent output verbatim on non-zero exit", func(t *testing.T) {
		err := &ExitError{Code: 2, Output: "boom\n"}
		assert.ErrorIs(t, err, ErrNonZeroExit)
		assert.Equal(t, "boom", err.Error())
		assert.Equal(t, "agent exited with code 3", (&ExitError{Code: 3}).Error())
	})

	t.Run("Should list every validation issue", func(t *testing.T) {
		err := &InvalidParametersError{Workflow: "scrape", Issues: []Issue{
			{Param: "url", Message: "required parameter is missing"},
			{Param: "x", Message: "unknown parameter"},
		}}
		assert.ErrorIs(t, err, ErrInvalidParameters)
		assert.Equal(t, "invalid parameters for \"scrape\":\n  - url: required parameter is missing\n  - x: unknown parameter", err.Error())
	})
}

func TestTaskDefinition_ParamNames(t *testing.T) {
	def := &TaskDefinition{
		Params:     map[string]ParameterSpec{"b": {}, "a": {}},
		ParamOrder: []string{"b", "a"},
	}
	assert.Equal(t, []string{"b", "a"}, def.ParamNames())

	def.ParamOrder = nil
	assert.Equal(t, []string{"a", "b"}, def.ParamNames())
}
