package core

// TestReporter is the subset of *testing.T the mocks report through.
type TestReporter interface {
	Helper()
	Fatalf(format string, args ...any)
}

// fail reports a fatal failure. Reporters whose Fatalf returns (fakes, custom
// harnesses) still must not see the mock carry on, so the failure panics.
func fail(t TestReporter, message string) {
	t.Helper()
	t.Fatalf("%s", message)

	panic(message)
}
