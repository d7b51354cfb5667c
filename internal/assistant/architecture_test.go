package assistant

import (
	"testing"

	"pharmacore/testutil"
)

func TestAssistantHasNoPathIntoCore(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".",
		testutil.PackagesForbidden("internal/core", "internal/infra", "internal/settings", "internal/api"),
		"the assistant only reads the inventory sample it is handed")
}
