package app

import (
	"reflect"
	"testing"
	"time"
)

func TestEnvCSV(t *testing.T) {
	cases := []struct {
		name string
		set  string
		def  string
		want []string
	}{
		{name: "default used", set: "", def: "a,b", want: []string{"a", "b"}},
		{name: "explicit wins", set: "x, y ,", def: "a,b", want: []string{"x", "y"}},
		{name: "empty everywhere", set: "", def: "", want: nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("PIGEON_TEST_CSV", tc.set)
			got := EnvCSV("PIGEON_TEST_CSV", tc.def)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("EnvCSV=%v want=%v", got, tc.want)
			}
		})
	}
}

func TestEnvDuration(t *testing.T) {
	t.Setenv("PIGEON_TEST_DUR", "250ms")
	if got := EnvDuration("PIGEON_TEST_DUR", time.Second); got != 250*time.Millisecond {
		t.Fatalf("EnvDuration=%v", got)
	}

	t.Setenv("PIGEON_TEST_DUR", "garbage")
	if got := EnvDuration("PIGEON_TEST_DUR", time.Second); got != time.Second {
		t.Fatalf("invalid value must fall back: %v", got)
	}

	t.Setenv("PIGEON_TEST_DUR", "-5s")
	if got := EnvDuration("PIGEON_TEST_DUR", time.Second); got != time.Second {
		t.Fatalf("negative value must fall back: %v", got)
	}
}

func TestEnvInt32(t *testing.T) {
	t.Setenv("PIGEON_TEST_I32", "12")
	if got := EnvInt32("PIGEON_TEST_I32", 3); got != 12 {
		t.Fatalf("EnvInt32=%d", got)
	}

	t.Setenv("PIGEON_TEST_I32", "-1")
	if got := EnvInt32("PIGEON_TEST_I32", 3); got != 3 {
		t.Fatalf("negative must fall back: %d", got)
	}
}
