package s3

import "testing"

func TestObjectURL(t *testing.T) {
	got := ObjectURL("http://localhost:9000", "snapshots", "cam-1/f-1.jpg")
	if want := "http://localhost:9000/snapshots/cam-1/f-1.jpg"; got != want {
		t.Errorf("ObjectURL() = %q, want %q", got, want)
	}
}
