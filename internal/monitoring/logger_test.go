package monitoring

import (
	"fmt"
	"testing"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got string
	SetLogger(func(format string, v ...interface{}) {
		got = fmt.Sprintf(format, v...)
	})
	Logf("fetched %d bytes from %s", 42, "dos_fs")
	if got != "fetched 42 bytes from dos_fs" {
		t.Errorf("custom logger got %q", got)
	}

	got = ""
	SetLogger(nil)
	Logf("ignored")
	if got != "" {
		t.Error("nil logger should be a no-op")
	}
}

func TestMute(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	calls := 0
	SetLogger(func(string, ...interface{}) { calls++ })

	restore := Mute()
	Logf("muted")
	if calls != 0 {
		t.Errorf("muted logger was called %d times", calls)
	}

	restore()
	Logf("restored")
	if calls != 1 {
		t.Errorf("restored logger calls = %d, want 1", calls)
	}
}

func TestLogf_Default(t *testing.T) {
	if Logf == nil {
		t.Fatal("Logf should not be nil by default")
	}
}
