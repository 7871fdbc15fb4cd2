package daqlog

import "testing"

func TestAttachRoutesToSink(t *testing.T) {
	var gotLevel Level
	var gotMsg string
	Attach(func(level Level, msg string) {
		gotLevel = level
		gotMsg = msg
	})
	defer Attach(nil)

	Emit(Warn, "disk getting full")

	if gotLevel != Warn || gotMsg != "disk getting full" {
		t.Fatalf("sink received (%v, %q), want (%v, %q)", gotLevel, gotMsg, Warn, "disk getting full")
	}
}

func TestAttachNilRestoresDefault(t *testing.T) {
	Attach(func(Level, string) {})
	Attach(nil)

	// Should not panic and should fall through to the default path.
	Emit(Info, "back to default routing")
}
