//go:build !windows

package copyto

import (
	"io"
	"os"

	"github.com/google/renameio/v2"
)

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	t, err := renameio.TempFile("", dst)
	if err != nil {
		return err
	}
	defer t.Cleanup()

	if _, err := io.Copy(t, in); err != nil {
		return err
	}
	if err := t.Chmod(info.Mode().Perm()); err != nil {
		return err
	}
	return t.CloseAtomicallyReplace()
}
