package filter

import "testing"

func TestPrefixFilterDrop(t *testing.T) {
	f, err := New(Config{
		Name:     "drop-private",
		InPrefix: "private/{{instance-id}}/",
		Drop:     true,
	}, "veh-1", "p", "s", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res := f.Apply("private/veh-1/cam", []byte("{}"), nil)
	if !res.Dropped {
		t.Fatalf("expected message to be dropped")
	}
	res2 := f.Apply("public/veh-1/cam", []byte("{}"), nil)
	if res2.Dropped {
		t.Fatalf("non-matching topic should not be dropped")
	}
}

func TestRegexFilterRetainFixedInt(t *testing.T) {
	f, err := New(Config{
		Name:    "retain-cam",
		InRegex: `^cam/.*$`,
		Retain:  "1",
	}, "veh-1", "", "", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res := f.Apply("cam/030", []byte("{}"), false)
	if res.Dropped {
		t.Fatalf("should not drop")
	}
	if res.Retain != 1 {
		t.Fatalf("retain = %v, want 1", res.Retain)
	}
}

func TestJSONPathRetainWithFallback(t *testing.T) {
	f, err := New(Config{
		Name:    "retain-json",
		InRegex: `^.*$`,
		Retain:  "json:message.qos 0",
	}, "veh-1", "", "", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	match := f.Apply("any/topic", []byte(`{"message":{"qos":7}}`), nil)
	if match.Retain != int64(7) && match.Retain != float64(7) {
		t.Fatalf("retain = %v (%T), want 7", match.Retain, match.Retain)
	}

	fallback := f.Apply("any/topic", []byte(`{"message":{}}`), nil)
	if fallback.Retain != 0 {
		t.Fatalf("retain = %v, want fallback 0", fallback.Retain)
	}
}

func TestMultiplePatternsIsAnError(t *testing.T) {
	_, err := New(Config{
		Name:      "bad",
		InPrefix:  "a/",
		OutPrefix: "b/",
	}, "v", "", "", nil)
	if err == nil {
		t.Fatalf("expected an error for multiple pattern fields")
	}
}
