package main

import (
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

func TestRealMainArgs(t *testing.T) {
	test.That(t, realMain(nil), test.ShouldNotBeNil)
	test.That(t, realMain([]string{"only.bag"}), test.ShouldNotBeNil)
	err := realMain([]string{filepath.Join(t.TempDir(), "missing.bag"), "/camera/color/image_raw", t.TempDir()})
	test.That(t, err, test.ShouldNotBeNil)
}
