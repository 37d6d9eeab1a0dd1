package utils

import (
	"fmt"
	"path/filepath"
)

func inTrustedRoot(path string, trustedRoot string) error {
	for path != "/" && path != "." {
		path = filepath.Dir(path)
		if path == trustedRoot {
			return nil
		}
	}
	return fmt.Errorf("path %s is outside of %s", path, trustedRoot)
}

// VerifyPath verifies that path is strictly inside basePath. Both are
// resolved to absolute paths first.
func VerifyPath(path, basePath string) error {
	absBase, err := filepath.Abs(basePath)
	if err != nil {
		return err
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := inTrustedRoot(absPath, absBase); err != nil {
		return fmt.Errorf("%s is outside of %s", path, basePath)
	}
	return nil
}
