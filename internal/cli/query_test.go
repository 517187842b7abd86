package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sqlchef/internal/testutil"
)

func TestQuery_Text(t *testing.T) {
	res := execute(t, nil, "", "query", "SELECT 1 AS x")
	require.NoError(t, res.err)
	assert.Equal(t, "x\n1\n(1 row)\n", res.stdout)
}

func TestQuery_TextColumnOrderAndNull(t *testing.T) {
	res := execute(t, nil, "", "query", "SELECT 'b' AS second, NULL AS first")
	require.NoError(t, res.err)
	assert.Equal(t, "second  first\nb       NULL\n(1 row)\n", res.stdout)
}

func TestQuery_JSONLines(t *testing.T) {
	res := execute(t, nil, "", "--format", "json", "query",
		"SELECT 2 AS n, 'two' AS name UNION ALL SELECT 1, 'one'")
	require.NoError(t, res.err)
	assert.Equal(t, "{\"n\":2,\"name\":\"two\"}\n{\"n\":1,\"name\":\"one\"}\n", res.stdout)
}

func TestQuery_Malformed(t *testing.T) {
	res := execute(t, nil, "", "query", "SELEC 1")
	require.Error(t, res.err)
	assert.Equal(t, ExitFailure, GetExitCode(res.err))
	assert.Contains(t, res.err.Error(), "query failed")
	assert.Contains(t, res.err.Error(), "syntax error")
}

func TestQuery_RequiresOneArg(t *testing.T) {
	res := execute(t, nil, "", "query")
	require.Error(t, res.err)
	assert.Equal(t, ExitCommandError, GetExitCode(res.err))

	res = execute(t, nil, "", "query", "SELECT 1", "SELECT 2")
	require.Error(t, res.err)
	assert.Equal(t, ExitCommandError, GetExitCode(res.err))
}

func TestQuery_EngineFailsToStart(t *testing.T) {
	l := testutil.NewFakeLauncher()
	l.FailLaunch(errors.New("out of memory"))

	res := execute(t, &RootOptions{Launcher: l}, "", "query", "SELECT 1")
	require.Error(t, res.err)
	assert.Equal(t, ExitFailure, GetExitCode(res.err))
	assert.Contains(t, res.err.Error(), "engine failed to start")
	assert.Contains(t, res.err.Error(), "out of memory")
}

func TestQuery_ReleasesSession(t *testing.T) {
	l := testutil.NewFakeLauncher()

	res := execute(t, &RootOptions{Launcher: l}, "", "query", "SELECT 1")
	require.NoError(t, res.err)

	require.Len(t, l.Instances(), 1)
	inst := l.Instances()[0]
	assert.True(t, inst.Terminated())
	require.Len(t, inst.Conns(), 1)
	assert.True(t, inst.Conns()[0].Closed())
	assert.Equal(t, []string{"SELECT 1"}, inst.Conns()[0].Queries())
}
