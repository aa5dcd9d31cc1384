package daemon

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stalePID is above the default pid_max of most systems.
const stalePID = 4194304

func TestPIDFile_WriteRead(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "nested", "daemon.pid")
	pf := NewPIDFile(pidPath)

	require.NoError(t, pf.Write())

	pid, err := pf.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestPIDFile_Read(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
		wantErr bool
	}{
		{"plain", "12345", 12345, false},
		{"trailing newline", "12345\n", 12345, false},
		{"garbage", "not-a-number", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pidPath := filepath.Join(t.TempDir(), "daemon.pid")
			require.NoError(t, os.WriteFile(pidPath, []byte(tt.content), 0o644))

			pid, err := NewPIDFile(pidPath).Read()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, pid)
		})
	}
}

func TestPIDFile_Read_NotExists(t *testing.T) {
	_, err := NewPIDFile(filepath.Join(t.TempDir(), "missing.pid")).Read()

	assert.ErrorIs(t, err, ErrPIDFileNotFound)
}

func TestPIDFile_Remove(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "daemon.pid")
	require.NoError(t, os.WriteFile(pidPath, []byte("12345"), 0o644))
	pf := NewPIDFile(pidPath)

	require.NoError(t, pf.Remove())
	_, err := os.Stat(pidPath)
	assert.True(t, os.IsNotExist(err))

	// Removing twice is fine
	require.NoError(t, pf.Remove())
}

func TestPIDFile_IsRunning(t *testing.T) {
	dir := t.TempDir()

	current := filepath.Join(dir, "current.pid")
	require.NoError(t, os.WriteFile(current, []byte(strconv.Itoa(os.Getpid())), 0o644))
	assert.True(t, NewPIDFile(current).IsRunning())

	stale := filepath.Join(dir, "stale.pid")
	require.NoError(t, os.WriteFile(stale, []byte(strconv.Itoa(stalePID)), 0o644))
	assert.False(t, NewPIDFile(stale).IsRunning())

	assert.False(t, NewPIDFile(filepath.Join(dir, "missing.pid")).IsRunning())
}

func TestPIDFile_Acquire(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "daemon.pid")

	// Given: a file left behind by a dead process
	require.NoError(t, os.WriteFile(pidPath, []byte(strconv.Itoa(stalePID)), 0o644))

	// When: acquiring
	pf := NewPIDFile(pidPath)
	require.NoError(t, pf.Acquire())

	// Then: the file now holds this process
	pid, err := pf.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestPIDFile_Acquire_LiveOwner(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "daemon.pid")
	// The test runner's parent is alive and owned by the same user
	require.NoError(t, os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getppid())), 0o644))

	err := NewPIDFile(pidPath).Acquire()

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAlreadyRunning))
}

func TestPIDFile_Signal(t *testing.T) {
	dir := t.TempDir()

	current := filepath.Join(dir, "current.pid")
	require.NoError(t, os.WriteFile(current, []byte(strconv.Itoa(os.Getpid())), 0o644))
	require.NoError(t, NewPIDFile(current).Signal(syscall.Signal(0)))

	stale := filepath.Join(dir, "stale.pid")
	require.NoError(t, os.WriteFile(stale, []byte(strconv.Itoa(stalePID)), 0o644))
	require.Error(t, NewPIDFile(stale).Signal(syscall.Signal(0)))
}
