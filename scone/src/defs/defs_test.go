package defs

import "testing"

func TestErrstr(t *testing.T) {
	for _, c := range []struct {
		e    Err_t
		want string
	}{
		{EIO, "input/output error"},
		{-EIO, "input/output error"},
		{-ETIMEDOUT, "timed out"},
		{Err_t(9999), "unknown error"},
	} {
		if got := Errstr(c.e); got != c.want {
			t.Fatalf("Errstr(%v) = %q", int(c.e), got)
		}
	}
}
