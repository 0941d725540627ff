package main

import (
	"bytes"
	"testing"
)

func TestRootCommand_Subcommands(t *testing.T) {
	root := newRootCmd()
	want := []string{"worker", "serve", "enqueue", "reprocess", "migrate"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("expected subcommand %q, got %v (err %v)", name, cmd, err)
		}
	}
	if root.PersistentFlags().Lookup("config") == nil {
		t.Error("expected persistent --config flag")
	}
}

func TestMigrate_Subcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"up", "down", "status"} {
		cmd, _, err := root.Find([]string{"migrate", name})
		if err != nil || cmd.Name() != name {
			t.Errorf("expected migrate subcommand %q, got %v (err %v)", name, cmd, err)
		}
	}
}

func TestMigrate_RejectsArgs(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"migrate", "up", "extra"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	if err := root.Execute(); err == nil {
		t.Fatal("expected error for an extra argument")
	}
}

func TestEnqueue_RequiresTarget(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"enqueue"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	if err := root.Execute(); err == nil {
		t.Fatal("expected error without report ids or --status")
	}
}

func TestEnqueue_RejectsUnknownStatus(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"enqueue", "--status", "sent"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	if err := root.Execute(); err == nil {
		t.Fatal("expected error for --status sent")
	}
}

func TestReprocess_RequiresTarget(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"reprocess"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	if err := root.Execute(); err == nil {
		t.Fatal("expected error without entry ids or --list")
	}
}

func TestLoadApp_InvalidConfig(t *testing.T) {
	t.Setenv("REPORT_MAILER_DELIVERY_MAX_ATTEMPTS", "0")
	if _, err := loadApp("../../config"); err == nil {
		t.Fatal("expected validation error for zero attempts")
	}
}
