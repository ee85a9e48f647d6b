package readeck

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// CreateUserCLI creates a Readeck account through the local `readeck
// user` command. Used by /register when the bot runs next to the
// server; the caller falls back to a guidance reply when the binary is
// not available.
func CreateUserCLI(ctx context.Context, configPath, dataPath, username, password string) error {
	args := []string{"user"}
	if configPath != "" {
		args = append(args, "-config", configPath)
	}
	args = append(args, "-u", username, "-p", password)

	cmd := exec.CommandContext(ctx, "readeck", args...)
	if dataPath != "" {
		cmd.Dir = filepath.Dir(dataPath)
	}

	out, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg == "" {
			return fmt.Errorf("readeck user command failed: %w", err)
		}
		return fmt.Errorf("readeck user command failed: %s", msg)
	}
	return nil
}
