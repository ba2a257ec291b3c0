// Package shared holds helpers used across the pipeline packages.
//
// The testutil subpackage provides log capture for asserting on structured
// log output and synthetic booking histories for assembler and exporter
// tests:
//
//	func TestSomething(t *testing.T) {
//	    logger, logs := testutil.NewTestLogger(t)
//	    rows := testutil.DailyHistory(testutil.Day(2024, 1, 1), 70)
//	    // ...
//	    testutil.AssertNoErrors(t, logs)
//	}
//
// Nothing here may import domain packages other than pkg/contracts.
package shared
