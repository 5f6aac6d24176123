package main

import (
	"testing"
)

func TestRootCommandWiring(t *testing.T) {
	root := buildRootCmd()

	want := []string{"plan", "execute", "refine", "cleanup-containers", "list-sessions", "run-evaluation"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("command %q not wired: %v", name, err)
		}
	}

	if root.PersistentFlags().Lookup("config") == nil {
		t.Error("missing persistent --config flag")
	}
	if root.PersistentFlags().Lookup("debug") == nil {
		t.Error("missing persistent --debug flag")
	}
}

func TestPlanCommandRequiresPrompt(t *testing.T) {
	root := buildRootCmd()
	root.SetArgs([]string{"plan"})
	if err := root.Execute(); err == nil {
		t.Fatal("expected error for missing --prompt")
	}
}
