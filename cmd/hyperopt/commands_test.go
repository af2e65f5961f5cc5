package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/thalesfsp/hyperopt"
)

const experiment = `
max_evals: 12
max_queue_len: 3
seed: 4
log:
  level: error
dimensions:
  - name: x
    min: -2
    max: 2
  - name: n
    type: int
    min: 0
    max: 3
objective:
  expr: "x * x + n"
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer

	root := buildRoot()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)

	err := root.Execute()

	return out.String(), err
}

func TestRunAndInspect(t *testing.T) {
	dir := t.TempDir()

	cfgPath := filepath.Join(dir, "exp.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(experiment), 0o600))

	dsn := "sqlite://" + filepath.Join(dir, "trials.db")

	out, err := execute(t, "run", "--config", cfgPath, "--dsn", dsn, "--exp-key", "demo")
	require.NoError(t, err)

	var sum summary
	require.NoError(t, yaml.Unmarshal([]byte(out), &sum))

	assert.Equal(t, "demo", sum.ExpKey)
	assert.Equal(t, 12, sum.Trials)
	assert.Equal(t, 12, sum.Done)
	assert.Zero(t, sum.Failed)
	require.NotNil(t, sum.Best)
	assert.GreaterOrEqual(t, sum.Best.Result.Loss, 0.0)

	// Resuming with a larger budget only adds the missing trials.
	out, err = execute(t, "run", "--config", cfgPath, "--dsn", dsn, "--exp-key", "demo", "--max-evals", "15")
	require.NoError(t, err)
	require.NoError(t, yaml.Unmarshal([]byte(out), &sum))
	assert.Equal(t, 15, sum.Trials)

	out, err = execute(t, "trials", "--dsn", dsn, "--exp-key", "demo")
	require.NoError(t, err)

	var docs []hyperopt.Trial
	require.NoError(t, yaml.Unmarshal([]byte(out), &docs))
	require.Len(t, docs, 15)

	for i, doc := range docs {
		assert.Equal(t, int64(i), doc.TID)
		assert.Equal(t, hyperopt.StateDone, doc.State)
	}

	out, err = execute(t, "trials", "--dsn", dsn, "--exp-key", "demo", "--best")
	require.NoError(t, err)

	var best hyperopt.Trial
	require.NoError(t, yaml.Unmarshal([]byte(out), &best))
	assert.Equal(t, sum.Best.TID, best.TID)
}

func TestRunInMemory(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "exp.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(experiment), 0o600))

	out, err := execute(t, "run", "--config", cfgPath, "--max-evals", "4")
	require.NoError(t, err)

	var sum summary
	require.NoError(t, yaml.Unmarshal([]byte(out), &sum))

	assert.Empty(t, sum.ExpKey)
	assert.Equal(t, 4, sum.Done)
}

func TestRunRequiresConfig(t *testing.T) {
	_, err := execute(t, "run")
	assert.Error(t, err)

	_, err = execute(t, "trials", "--dsn", "x.db")
	assert.Error(t, err)
}

func TestTrialsBestWithoutResults(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "trials.db")

	_, err := execute(t, "trials", "--dsn", dsn, "--exp-key", "empty", "--best")
	assert.ErrorContains(t, err, "no completed trial")
}
