package daemon

import (
	"testing"

	"go.uber.org/fx"

	"github.com/mementolab/wagate/internal/config"
)

// TestModuleGraphResolves verifies the fx dependency graph is complete.
// Providers are not invoked, so no lock or listener is touched.
func TestModuleGraphResolves(t *testing.T) {
	if err := fx.ValidateApp(Module(config.Default())); err != nil {
		t.Fatalf("fx graph validation failed: %v", err)
	}
}
