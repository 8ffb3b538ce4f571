package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

// executeCommand runs rootCmd with args and returns its combined output.
func executeCommand(root *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)

	err := root.Execute()
	return buf.String(), err
}

// resetFlags restores every subcommand's flags to their zero values, since
// cobra flag variables are package-level globals shared across tests.
func resetFlags() {
	configPath = ""
	initKeyBits = 0
	issueRequestPath = ""
	revokeKeyID = ""
	crlOutput = ""
}

func writeConfig(t *testing.T, dir string, extra string) string {
	t.Helper()
	path := filepath.Join(dir, "qcertd.yaml")
	body := "issuer-domain: ca.test.example\n" +
		"pfx-passphrase: correct-horse-battery-staple\n" +
		"bootstrap-path: " + dir + "\n" +
		extra
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
