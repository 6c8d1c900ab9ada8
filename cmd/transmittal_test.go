package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ginjaninja78/transmittal-log/internal/apperr"
	"github.com/ginjaninja78/transmittal-log/internal/config"
	"github.com/ginjaninja78/transmittal-log/internal/ledger"
	"github.com/ginjaninja78/transmittal-log/internal/transmittal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const submissionYAML = `transmittal_no: "20261018-4821"
from_name: Ana Cruz
from_department: FIN
date_transmitted: "2026-10-18"
to_name: Ben Reyes
items:
  - reference_number: RFP-1
    amount: "100.00"
`

// useConfig points the command globals at a fresh log in a temp dir.
func useConfig(t *testing.T, mutate func(*config.Config)) string {
	t.Helper()
	dir := t.TempDir()

	c := config.Default()
	c.Ledger.Path = filepath.Join(dir, "log.xlsx")
	c.Storage.FS.BaseDir = filepath.Join(dir, "documents")
	c.Renderer.Enabled = false
	if mutate != nil {
		mutate(&c)
	}
	require.NoError(t, ledger.New(c.Ledger.Path, c.Ledger.Sheet).Init(false))

	prevCfg, prevLog := cfg, zlog
	cfg, zlog = &c, zaptest.NewLogger(t)
	t.Cleanup(func() { cfg, zlog = prevCfg, prevLog })
	return dir
}

func TestSubmit_DocumentFailureExitsNonZero(t *testing.T) {
	dir := useConfig(t, nil)
	path := filepath.Join(dir, "form.yaml")
	require.NoError(t, os.WriteFile(path, []byte(submissionYAML), 0o644))

	var out bytes.Buffer
	submitCmd.SetOut(&out)
	t.Cleanup(func() { submitCmd.SetOut(nil) })

	err := submitCmd.RunE(submitCmd, []string{path})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrDocumentGenerationFailed))

	var res transmittal.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &res), "result is still printed")
	assert.Equal(t, "20261018-4821", res.TransmittalNo)
	assert.True(t, res.Pending)
}

func TestMutatingCommandsRefuseMemoryLock(t *testing.T) {
	useConfig(t, func(c *config.Config) { c.Lock.Backend = config.LockBackendMemory })

	for _, c := range []struct {
		name string
		run  func() error
	}{
		{"allocate", func() error { return allocateCmd.RunE(allocateCmd, nil) }},
		{"submit", func() error { return submitCmd.RunE(submitCmd, []string{"form.yaml"}) }},
		{"reconcile", func() error { return reconcileCmd.RunE(reconcileCmd, nil) }},
	} {
		t.Run(c.name, func(t *testing.T) {
			err := c.run()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "lock.backend")
		})
	}
}

func TestAllocate_FileLock(t *testing.T) {
	useConfig(t, nil)

	var out bytes.Buffer
	allocateCmd.SetOut(&out)
	t.Cleanup(func() { allocateCmd.SetOut(nil) })

	require.NoError(t, allocateCmd.RunE(allocateCmd, nil))
	assert.Regexp(t, `^\d{8}-\d{4}\n$`, out.String())
	assert.FileExists(t, filepath.Join(filepath.Dir(cfg.Ledger.Path), ".transmittal-log.lock"))
}
