package main

import (
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func memoryEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("STORAGE_BACKEND", "memory")
	t.Setenv("CONVERSATION_BACKEND", "memory")
	t.Setenv("LOG_LEVEL", "error")
}

func TestMigrateNeedsPostgres(t *testing.T) {
	memoryEnv(t)
	rootCmd.SetArgs([]string{"migrate"})
	assert.EqualError(t, rootCmd.Execute(), "migrate needs a postgres backend")
}

func TestResetUserValidatesArgs(t *testing.T) {
	memoryEnv(t)

	rootCmd.SetArgs([]string{"reset-user", "not-a-uuid"})
	assert.ErrorContains(t, rootCmd.Execute(), "invalid user id")

	rootCmd.SetArgs([]string{"reset-user", uuid.NewString()})
	assert.EqualError(t, rootCmd.Execute(), "reset-user needs STORAGE_BACKEND=postgres")
}

// chdir changes the working directory for the test and restores it on cleanup.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
