//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Builds the shaders and starts the testbed.
func (Run) Testbed() error {
	mg.Deps(Build.Shaders)
	fmt.Println("Run testbed...")
	if _, err := executeCmd("go", withArgs("run", "./testbed"), withStream()); err != nil {
		return err
	}
	return nil
}
