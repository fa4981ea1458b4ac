package logging

import (
	"testing"

	"go.viam.com/test"
)

func TestRegistry(t *testing.T) {
	registry := NewRegistry()
	test.That(t, registry.Names(), test.ShouldBeEmpty)

	node := NewBlankLogger("node")
	engine := NewBlankLogger("node.engine")
	registry.Register("node", node)
	registry.Register("node.engine", engine)
	test.That(t, registry.Names(), test.ShouldResemble, []string{"node", "node.engine"})

	test.That(t, registry.UpdateLevel("node.engine", WARN), test.ShouldBeNil)
	test.That(t, engine.GetLevel(), test.ShouldEqual, WARN)
	test.That(t, node.GetLevel(), test.ShouldEqual, DEBUG)
	test.That(t, registry.Levels(), test.ShouldResemble, map[string]Level{"node": DEBUG, "node.engine": WARN})

	err := registry.UpdateLevel("camera", INFO)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "not recognized")
}
