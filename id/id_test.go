package id_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/xraph/courier/id"
)

// kinds enumerates every prefixed identifier alongside its constructor and
// checked parser, so the lifecycle tests cover all of them uniformly.
var kinds = []struct {
	label  string
	prefix string
	make   func() id.ID
	parse  func(string) (id.ID, error)
}{
	{"job", "job_", id.NewJobID, id.ParseJobID},
	{"worker", "wkr_", id.NewWorkerID, id.ParseWorkerID},
	{"dlq", "dlq_", id.NewDLQID, id.ParseDLQID},
	{"cron", "cron_", id.NewCronID, id.ParseCronID},
}

func TestKinds_PrefixAndRoundTrip(t *testing.T) {
	for _, k := range kinds {
		t.Run(k.label, func(t *testing.T) {
			fresh := k.make()
			if s := fresh.String(); !strings.HasPrefix(s, k.prefix) {
				t.Fatalf("String() = %q, want prefix %q", s, k.prefix)
			}

			parsed, err := k.parse(fresh.String())
			if err != nil {
				t.Fatalf("parse own output: %v", err)
			}
			if parsed != fresh {
				t.Errorf("round trip changed the ID: %v != %v", parsed, fresh)
			}
		})
	}
}

func TestKinds_RejectForeignPrefix(t *testing.T) {
	for i, k := range kinds {
		// Feed each parser an ID minted by the next kind over.
		foreign := kinds[(i+1)%len(kinds)].make().String()
		t.Run(k.label, func(t *testing.T) {
			if _, err := k.parse(foreign); err == nil {
				t.Errorf("parser for %q accepted %q", k.prefix, foreign)
			}
		})
	}
}

func TestParse_MalformedInput(t *testing.T) {
	for _, input := range []string{"", "not-a-typeid", "job_!!!"} {
		if _, err := id.Parse(input); err == nil {
			t.Errorf("Parse(%q) = nil error, want failure", input)
		}
	}
}

func TestNilID(t *testing.T) {
	if !id.Nil.IsNil() {
		t.Fatal("Nil.IsNil() = false")
	}
	if got := id.Nil.String(); got != "" {
		t.Errorf("Nil.String() = %q, want empty", got)
	}
	if id.NewJobID().IsNil() {
		t.Error("freshly minted ID reports IsNil")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	original := id.NewJobID()

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded id.ID
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded != original {
		t.Errorf("JSON round trip changed the ID: %v != %v", decoded, original)
	}
}

func TestScanValue(t *testing.T) {
	original := id.NewJobID()

	v, err := original.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}

	var scanned id.ID
	if err := scanned.Scan(v); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if scanned != original {
		t.Errorf("driver round trip changed the ID: %v != %v", scanned, original)
	}

	var null id.ID
	if err := null.Scan(nil); err != nil {
		t.Fatalf("Scan(nil): %v", err)
	}
	if !null.IsNil() {
		t.Error("Scan(nil) should leave the Nil ID")
	}
}
