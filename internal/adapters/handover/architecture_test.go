package handover

import (
	"testing"

	"signout/testutil"
)

func TestWorkbookDependsOnlyOnRecordModel(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.Under("internal", "cmd"), "the workbook renders domain records only")
	testutil.AssertNoTransitiveDependency(t, "signout/internal/adapters/handover", testutil.Under("internal/infra", "internal/core"), "rendering never touches storage")
}
