package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scan-io-git/mettalint/internal/config"
	"github.com/scan-io-git/mettalint/pkg/shared/errors"
)

func TestRunWatchCommandRejectsInvalidTarget(t *testing.T) {
	AppConfig = config.Default()
	file := filepath.Join(t.TempDir(), "main.metta")
	require.NoError(t, os.WriteFile(file, []byte("(= (a) b)\n"), 0o644))

	for _, target := range []string{file, filepath.Join(t.TempDir(), "missing")} {
		cmd := &cobra.Command{}
		cmd.SetContext(context.Background())

		err := runWatchCommand(cmd, []string{target})
		var cmdErr *errors.CommandError
		require.ErrorAs(t, err, &cmdErr, target)
		assert.Equal(t, 2, cmdErr.ExitCode)
	}
}
