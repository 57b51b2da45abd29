package directory

import (
	"testing"
)

func TestJSONListScan(t *testing.T) {
	t.Run("MixedElements", func(t *testing.T) {
		// JSONB arrays in the wild mix plain strings and objects, e.g.
		// promotions stored as either a title string or a {title, discount}
		// document. Both element shapes must survive a scan.
		var l JSONList
		raw := `["10% off dairy", {"title": "weekend special", "discount": 15}]`
		if err := l.Scan([]byte(raw)); err != nil {
			t.Fatalf("Scan() error = %v", err)
		}
		if len(l) != 2 {
			t.Fatalf("len = %d, want 2", len(l))
		}
		if s, ok := l[0].(string); !ok || s != "10% off dairy" {
			t.Errorf("l[0] = %#v, want string element", l[0])
		}
		obj, ok := l[1].(map[string]interface{})
		if !ok {
			t.Fatalf("l[1] = %#v, want object element", l[1])
		}
		if obj["title"] != "weekend special" {
			t.Errorf("title = %v", obj["title"])
		}
	})

	t.Run("StringSource", func(t *testing.T) {
		var l JSONList
		if err := l.Scan(`[{"item": "milk"}]`); err != nil {
			t.Fatalf("Scan() error = %v", err)
		}
		if len(l) != 1 {
			t.Fatalf("len = %d, want 1", len(l))
		}
	})

	t.Run("NilSource", func(t *testing.T) {
		var l JSONList
		if err := l.Scan(nil); err != nil {
			t.Fatalf("Scan(nil) error = %v", err)
		}
		if l != nil {
			t.Errorf("l = %#v, want nil", l)
		}
	})

	t.Run("ValueOfNil", func(t *testing.T) {
		var l JSONList
		v, err := l.Value()
		if err != nil {
			t.Fatalf("Value() error = %v", err)
		}
		if v != "[]" {
			t.Errorf("Value() = %v, want []", v)
		}
	})
}
