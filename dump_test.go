package ft2engine

import (
	"bytes"
	"testing"
)

func TestDumpfIsNoOpWithNoWriterSet(t *testing.T) {
	SetDumpWriter(nil)
	dumpf("should not panic: %d", 42) // must be silently dropped
}

func TestSetDumpWriterDirectsOutput(t *testing.T) {
	var buf bytes.Buffer
	SetDumpWriter(&buf)
	defer SetDumpWriter(nil)

	dumpf("order=%d row=%d", 1, 2)

	if got := buf.String(); got != "order=1 row=2" {
		t.Errorf("dumpf output = %q, want %q", got, "order=1 row=2")
	}
}
