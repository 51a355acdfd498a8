package detector

import (
	"testing"
)

type artifact struct {
	Name  string
	Value float64
}

func TestModelStoreRoundtrip(t *testing.T) {
	s, err := NewModelStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	in := artifact{Name: "x", Value: 4.2}
	if err := s.save("probe", in); err != nil {
		t.Fatalf("save: %v", err)
	}

	var out artifact
	ok, err := s.load("probe", &out)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !ok {
		t.Fatal("saved artifact reported missing")
	}
	if out != in {
		t.Errorf("roundtrip = %+v, want %+v", out, in)
	}
}

func TestModelStoreMissingArtifact(t *testing.T) {
	s, err := NewModelStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	var out artifact
	ok, err := s.load("absent", &out)
	if err != nil {
		t.Fatalf("missing artifact must not error, got %v", err)
	}
	if ok {
		t.Error("missing artifact reported present")
	}
}

func TestModelStoreOverwrite(t *testing.T) {
	s, err := NewModelStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.save("probe", artifact{Value: 1}); err != nil {
		t.Fatal(err)
	}
	if err := s.save("probe", artifact{Value: 2}); err != nil {
		t.Fatal(err)
	}
	var out artifact
	if _, err := s.load("probe", &out); err != nil {
		t.Fatal(err)
	}
	if out.Value != 2 {
		t.Errorf("value = %g after overwrite, want 2", out.Value)
	}
}
